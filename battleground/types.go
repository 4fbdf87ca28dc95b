package battleground

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// TypeID identifies a battleground kind (one template per kind).
type TypeID uint32

// Team is one of the two opposing sides.
type Team uint8

const (
	TeamNone Team = iota
	TeamAlliance
	TeamHorde
)

var ErrInvalidTeam = errors.New("invalid team")

func (t Team) String() string {
	switch t {
	case TeamAlliance:
		return "alliance"
	case TeamHorde:
		return "horde"
	default:
		return "none"
	}
}

// Opponent returns the opposing team, or TeamNone.
func (t Team) Opponent() Team {
	switch t {
	case TeamAlliance:
		return TeamHorde
	case TeamHorde:
		return TeamAlliance
	default:
		return TeamNone
	}
}

// index maps a team to its slot in per-team arrays, -1 for TeamNone.
func (t Team) index() int {
	switch t {
	case TeamAlliance:
		return 0
	case TeamHorde:
		return 1
	default:
		return -1
	}
}

func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(b []byte) error {
	v, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTeam accepts "alliance", "horde" and "none" (case-insensitive).
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alliance":
		return TeamAlliance, nil
	case "horde":
		return TeamHorde, nil
	case "", "none":
		return TeamNone, nil
	}
	return TeamNone, fmt.Errorf("parse team %q: %w", s, ErrInvalidTeam)
}

// Status is the lifecycle phase of a match.
type Status uint8

const (
	StatusNone Status = iota
	StatusWaitQueue
	StatusWaitJoin
	StatusInProgress
	StatusWaitLeave
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusWaitQueue:
		return "WAIT_QUEUE"
	case StatusWaitJoin:
		return "WAIT_JOIN"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusWaitLeave:
		return "WAIT_LEAVE"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TickResult tells the owning scheduler what to do with the match after a tick.
type TickResult uint8

const (
	TickContinue TickResult = iota
	TickRetire
)

// Bits of the events mask.
const (
	EventStartFirst uint32 = 1 << iota
	EventStartSecond
	EventStartThird
	EventStartFourth
	EventDoorsDespawned
)

// Sounds played by the match.
const (
	SoundStart        uint32 = 3439
	SoundHordeWins    uint32 = 8454
	SoundAllianceWins uint32 = 8455
)

// Position is a point plus orientation in the match map.
type Position struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
	O float32 `yaml:"o" json:"o"`
}

// Distance returns the 3D distance between two positions.
func (p Position) Distance(o Position) float64 {
	dx := float64(p.X - o.X)
	dy := float64(p.Y - o.Y)
	dz := float64(p.Z - o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Entry is a roster entry. Team may be TeamNone and is then resolved from the
// participant's live team.
type Entry struct {
	Team Team
}

// Score holds the per-participant counters. They only grow.
type Score struct {
	KillingBlows   uint32 `json:"killingBlows"`
	Deaths         uint32 `json:"deaths"`
	HonorableKills uint32 `json:"honorableKills"`
	BonusHonor     uint32 `json:"bonusHonor"`
}

// ScoreKind selects the counter updated by RecordAndAggregate.
type ScoreKind uint8

const (
	ScoreKillingBlows ScoreKind = iota + 1
	ScoreDeaths
	ScoreHonorableKills
	ScoreBonusHonor
)

func (k ScoreKind) String() string {
	switch k {
	case ScoreKillingBlows:
		return "killing-blows"
	case ScoreDeaths:
		return "deaths"
	case ScoreHonorableKills:
		return "honorable-kills"
	case ScoreBonusHonor:
		return "bonus-honor"
	default:
		return "unknown"
	}
}
