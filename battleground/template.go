package battleground

import (
	"errors"
	"fmt"

	"agones-battleground/spawn"
)

var ErrInvalidTemplate = errors.New("invalid battleground template")

// Default start sequence: thresholds in ms and the message of each step.
var (
	DefaultStartDelays   = [4]int64{120000, 60000, 30000, 0}
	DefaultStartMessages = [4]TextID{TextStartTwoMinutes, TextStartOneMinute, TextStartHalfMinute, TextHasBegun}
)

// RewardTable holds reward ids per team and tier. Zero means no reward.
type RewardTable struct {
	AllianceWin  uint32 `yaml:"allianceWin" json:"allianceWin"`
	AllianceLose uint32 `yaml:"allianceLose" json:"allianceLose"`
	HordeWin     uint32 `yaml:"hordeWin" json:"hordeWin"`
	HordeLose    uint32 `yaml:"hordeLose" json:"hordeLose"`
}

func (r RewardTable) For(team Team, won bool) uint32 {
	switch {
	case team == TeamAlliance && won:
		return r.AllianceWin
	case team == TeamAlliance:
		return r.AllianceLose
	case team == TeamHorde && won:
		return r.HordeWin
	case team == TeamHorde:
		return r.HordeLose
	}
	return 0
}

// Binding ties one world entity to the coordinates it participates in. Exactly
// one of Creature and Object is set.
type Binding struct {
	Creature    uint64             `yaml:"creature,omitempty"`
	Object      uint64             `yaml:"object,omitempty"`
	Coordinates []spawn.Coordinate `yaml:"coordinates"`
}

func (b Binding) Ref() (spawn.EntityRef, error) {
	switch {
	case b.Creature != 0 && b.Object == 0:
		return spawn.CreatureRef(b.Creature), nil
	case b.Object != 0 && b.Creature == 0:
		return spawn.ObjectRef(b.Object), nil
	}
	return spawn.EntityRef{}, fmt.Errorf("binding must name exactly one creature or object: %w", ErrInvalidTemplate)
}

// Template is the static description of a battleground kind.
type Template struct {
	TypeID        TypeID           `yaml:"typeId"`
	Name          string           `yaml:"name"`
	MinPerTeam    int              `yaml:"minPerTeam"`
	MaxPerTeam    int              `yaml:"maxPerTeam"`
	AllianceStart Position         `yaml:"allianceStart"`
	HordeStart    Position         `yaml:"hordeStart"`
	StartDelays   [4]int64         `yaml:"startDelaysMs"`
	StartMessages [4]TextID        `yaml:"startMessages"`
	AllianceWins  TextID           `yaml:"allianceWinsText"`
	HordeWins     TextID           `yaml:"hordeWinsText"`
	Rewards       RewardTable      `yaml:"rewards"`
	Categories    []spawn.Category `yaml:"categories"`
	Bindings      []Binding        `yaml:"bindings"`
}

// WithDefaults fills the unset start sequence and win texts.
func (t Template) WithDefaults() Template {
	if t.StartDelays == [4]int64{} {
		t.StartDelays = DefaultStartDelays
	}
	if t.StartMessages == [4]TextID{} {
		t.StartMessages = DefaultStartMessages
	}
	if t.AllianceWins == 0 {
		t.AllianceWins = TextAllianceWins
	}
	if t.HordeWins == 0 {
		t.HordeWins = TextHordeWins
	}
	return t
}

// Validate checks team sizes, the start sequence ordering and every binding.
func (t Template) Validate() error {
	if t.TypeID == 0 {
		return fmt.Errorf("template %q: missing type id: %w", t.Name, ErrInvalidTemplate)
	}
	if t.MaxPerTeam <= 0 || t.MinPerTeam < 0 || t.MinPerTeam > t.MaxPerTeam {
		return fmt.Errorf("template %q: team size %d..%d: %w", t.Name, t.MinPerTeam, t.MaxPerTeam, ErrInvalidTemplate)
	}
	for i := 1; i < len(t.StartDelays); i++ {
		if t.StartDelays[i] > t.StartDelays[i-1] {
			return fmt.Errorf("template %q: start delays must not increase: %w", t.Name, ErrInvalidTemplate)
		}
	}
	for i, b := range t.Bindings {
		if _, err := b.Ref(); err != nil {
			return fmt.Errorf("template %q binding %d: %w", t.Name, i, err)
		}
	}
	return nil
}

// StartPosition returns the team's start position.
func (t Template) StartPosition(team Team) (Position, bool) {
	switch team {
	case TeamAlliance:
		return t.AllianceStart, true
	case TeamHorde:
		return t.HordeStart, true
	}
	return Position{}, false
}

// WinText returns the announcement for a winning team, 0 for none.
func (t Template) WinText(team Team) TextID {
	switch team {
	case TeamAlliance:
		return t.AllianceWins
	case TeamHorde:
		return t.HordeWins
	}
	return 0
}

func (t Template) bindingMap() map[spawn.EntityRef][]spawn.Coordinate {
	out := make(map[spawn.EntityRef][]spawn.Coordinate, len(t.Bindings))
	for _, b := range t.Bindings {
		ref, err := b.Ref()
		if err != nil {
			continue
		}
		out[ref] = append(out[ref], b.Coordinates...)
	}
	return out
}

// doorDespawnAfter is the elapsed time after which the doors are removed: the
// sum of the two longest start delays.
func (t Template) doorDespawnAfter() int64 {
	first, second := int64(0), int64(0)
	for _, d := range t.StartDelays {
		switch {
		case d > first:
			first, second = d, first
		case d > second:
			second = d
		}
	}
	return first + second
}

// Settings are the process-wide knobs shared by every match.
type Settings struct {
	// PrematureFinishTime is the countdown in ms once a team falls below its
	// minimum. Zero disables the watch.
	PrematureFinishTime int64

	// Testing silences the premature countdown announcements.
	Testing    bool
	LogMatches bool

	// RemovalWindow is how long participants stay after the end, in ms.
	RemovalWindow int64

	// LoserRewardAfter is the minimum elapsed time for the losing tier reward.
	LoserRewardAfter int64

	// ReturnDistance is how far from its start position a participant may stand
	// when the doors open.
	ReturnDistance float64
	HonorCurveBase float64

	// HonorRamp is the elapsed time, in ms, after which honor is no longer scaled.
	HonorRamp int64
}

func DefaultSettings() Settings {
	return Settings{
		PrematureFinishTime: 300000,
		RemovalWindow:       120000,
		LoserRewardAfter:    600000,
		ReturnDistance:      100,
		HonorCurveBase:      60,
		HonorRamp:           3600000,
	}
}
