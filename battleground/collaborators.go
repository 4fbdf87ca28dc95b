package battleground

import (
	"fmt"
	"time"

	"agones-battleground/spawn"

	"github.com/rs/zerolog/log"
)

// Participant is the live view of a connected player. Lookups through the
// Directory may fail at any time once the player disconnects.
type Participant interface {
	ID() string
	Name() string
	Locale() string
	Team() Team
	Position() Position
	Alive() bool
	GameMaster() bool
	// LeadsOriginalGroup reports whether the player led the group they queued with.
	LeadsOriginalGroup() bool
	// InRewardRange reports whether other is close enough to share kill credit.
	InRewardRange(other Participant) bool
	InRedemption() bool
	ClearRedemption()
	Resurrect()
	StopCombat()
	BlockMovement()
	ReturnToRallyPoint()
	// DetachFromMatch drops the match binding, optionally teleporting the player
	// back to where they entered from.
	DetachFromMatch(teleport bool)
}

// Directory resolves participant ids to live participants.
type Directory interface {
	Lookup(id string) (Participant, bool)
}

// Gateway delivers messages to a participant's session.
type Gateway interface {
	Send(p Participant, msg Message)
}

// Localizer formats a text id for a recipient locale.
type Localizer interface {
	Text(locale string, id TextID, args ...any) string
}

// Ledger accepts or rejects honor grants.
type Ledger interface {
	Grant(p Participant, amount uint32) bool
}

// RewardDef is a reward definition resolved from a reward id.
type RewardDef struct {
	ID         uint32 `yaml:"id" json:"id"`
	BonusHonor uint32 `yaml:"bonusHonor" json:"bonusHonor"`
	ItemID     uint32 `yaml:"itemId" json:"itemId"`
	ItemCount  uint32 `yaml:"itemCount" json:"itemCount"`
	SpellID    uint32 `yaml:"spellId" json:"spellId"`
}

// Rewards resolves reward ids.
type Rewards interface {
	Lookup(id uint32) (RewardDef, bool)
}

// Grantor hands out the item and spell parts of a reward.
type Grantor interface {
	Apply(p Participant, def RewardDef)
}

// Raid is a team's group handle.
type Raid interface {
	IsMember(id string) bool
	// Attach rebinds a returning member's session to the raid.
	Attach(p Participant)
	Add(p Participant)
	Promote(id string)
	// Remove drops a member and returns the number of members left.
	Remove(id string) int
	Release()
}

// RaidFactory creates a team raid led by its first member.
type RaidFactory interface {
	NewRaid(team Team, leader Participant) Raid
}

// LogRecord is one per-participant row written when a match ends.
type LogRecord struct {
	Instance       uint32
	Type           TypeID
	Duration       time.Duration
	TeamCount      int
	Participant    string
	Team           Team
	Deaths         uint32
	BonusHonor     uint32
	HonorableKills uint32
}

// MatchLog persists end-of-match records.
type MatchLog interface {
	Record(rec LogRecord) error
}

// QueueNotifier is told when a match of a type may accept new participants.
type QueueNotifier interface {
	ScheduleQueueUpdate(t TypeID)
}

// Script holds the per-battleground hooks.
type Script interface {
	// Setup materializes the battleground entities. An error ends the match.
	Setup(m *Match) error
	CloseDoors(m *Match)
	OpenDoors(m *Match)
	OnStart(m *Match)
	OnEventStateChanged(m *Match, c spawn.Coordinate, active bool)
}

// Deps are the collaborators of a match. Nil members fall back to inert
// implementations.
type Deps struct {
	Directory Directory
	Gateway   Gateway
	Localizer Localizer
	Ledger    Ledger
	Rewards   Rewards
	Grantor   Grantor
	Raids     RaidFactory
	Log       MatchLog
	Queue     QueueNotifier
	FreeSlots *FreeSlotRegistry
	Script    Script
	World     spawn.World
}

func (d Deps) withDefaults() Deps {
	if d.Directory == nil {
		d.Directory = nopDirectory{}
	}
	if d.Gateway == nil {
		d.Gateway = nopGateway{}
	}
	if d.Localizer == nil {
		d.Localizer = rawLocalizer{}
	}
	if d.Ledger == nil {
		d.Ledger = acceptAllLedger{}
	}
	if d.Rewards == nil {
		d.Rewards = noRewards{}
	}
	if d.Grantor == nil {
		d.Grantor = nopGrantor{}
	}
	if d.Queue == nil {
		d.Queue = nopQueue{}
	}
	if d.FreeSlots == nil {
		d.FreeSlots = NewFreeSlotRegistry()
	}
	if d.Script == nil {
		d.Script = DefaultScript{}
	}
	if d.World == nil {
		d.World = emptyWorld{}
	}
	return d
}

type nopDirectory struct{}

func (nopDirectory) Lookup(string) (Participant, bool) { return nil, false }

type nopGateway struct{}

func (nopGateway) Send(Participant, Message) {}

type rawLocalizer struct{}

func (rawLocalizer) Text(_ string, id TextID, args ...any) string {
	if len(args) == 0 {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("#%d %v", id, args)
}

type acceptAllLedger struct{}

func (acceptAllLedger) Grant(Participant, uint32) bool { return true }

type noRewards struct{}

func (noRewards) Lookup(uint32) (RewardDef, bool) { return RewardDef{}, false }

type nopGrantor struct{}

func (nopGrantor) Apply(Participant, RewardDef) {}

type emptyWorld struct{}

func (emptyWorld) Creature(uint64) (spawn.Creature, bool) { return nil, false }
func (emptyWorld) Object(uint64) (spawn.Object, bool)     { return nil, false }

type nopQueue struct{}

func (nopQueue) ScheduleQueueUpdate(TypeID) {}

// DefaultScript loads the template's entities and drives the entry doors.
type DefaultScript struct{}

func (DefaultScript) Setup(m *Match) error {
	return m.LoadEntities()
}

func (DefaultScript) CloseDoors(m *Match) {
	if err := m.CloseDoorEvent(spawn.CategoryDoor, 0); err != nil {
		log.Debug().Err(err).Uint32("instance", m.ID()).Msg("battleground: close doors skipped")
	}
}

func (DefaultScript) OpenDoors(m *Match) {
	if err := m.OpenDoorEvent(spawn.CategoryDoor, 0); err != nil {
		log.Debug().Err(err).Uint32("instance", m.ID()).Msg("battleground: open doors skipped")
	}
}

func (DefaultScript) OnStart(*Match) {}

func (DefaultScript) OnEventStateChanged(*Match, spawn.Coordinate, bool) {}
