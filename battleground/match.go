package battleground

import (
	"errors"
	"fmt"
	"sort"

	"agones-battleground/spawn"

	"github.com/rs/zerolog/log"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrAlreadyInvited  = errors.New("participant already invited")
	ErrUnknownReward   = errors.New("unknown reward")
	ErrMissingEntities = errors.New("battleground entities could not be materialized")
)

// Match is one running battleground instance. It holds no locks: every call,
// including Tick, must come from the goroutine that owns the match.
type Match struct {
	id       uint32
	tpl      Template
	settings Settings
	deps     Deps
	registry *spawn.Registry

	status     Status
	startTime  int64
	endTime    int64
	startDelay int64
	events     uint32
	winner     Team

	invited     [2]int
	present     [2]int
	invitations map[string]Team
	roster      map[string]*Entry
	scores      map[string]*Score
	raids       [2]Raid
	inFreeSlots bool

	prematureCountdown bool
	prematureTimer     int64
	stopRequested      bool

	finalScore *FinalScore
}

// New builds a match from a template. An id of zero makes a template instance
// that never retires.
func New(id uint32, tpl Template, settings Settings, deps Deps) *Match {
	m := &Match{
		id:          id,
		tpl:         tpl.WithDefaults(),
		settings:    settings,
		deps:        deps.withDefaults(),
		invitations: make(map[string]Team),
		roster:      make(map[string]*Entry),
		scores:      make(map[string]*Score),
	}
	m.registry = spawn.NewRegistry(m.deps.World, m.tpl.Categories, m.tpl.bindingMap(),
		spawn.WithObserver(func(c spawn.Coordinate, active bool) {
			m.deps.Script.OnEventStateChanged(m, c, active)
		}))
	return m
}

func (m *Match) ID() uint32                { return m.id }
func (m *Match) TypeID() TypeID            { return m.tpl.TypeID }
func (m *Match) Name() string              { return m.tpl.Name }
func (m *Match) Template() Template        { return m.tpl }
func (m *Match) Status() Status            { return m.status }
func (m *Match) Winner() Team              { return m.winner }
func (m *Match) StartTime() int64          { return m.startTime }
func (m *Match) EndTime() int64            { return m.endTime }
func (m *Match) Events() uint32            { return m.events }
func (m *Match) IsTemplate() bool          { return m.id == 0 }
func (m *Match) RosterSize() int           { return len(m.roster) }
func (m *Match) Registry() *spawn.Registry { return m.registry }

// InvitedCount returns the number of participants invited or counted in for a team.
func (m *Match) InvitedCount(team Team) int {
	if i := team.index(); i >= 0 {
		return m.invited[i]
	}
	return 0
}

// PresentCount returns the number of participants of a team in the roster.
func (m *Match) PresentCount(team Team) int {
	if i := team.index(); i >= 0 {
		return m.present[i]
	}
	return 0
}

// InRoster reports whether the participant is part of the match.
func (m *Match) InRoster(id string) bool {
	_, ok := m.roster[id]
	return ok
}

// Score returns a copy of the participant's score.
func (m *Match) Score(id string) (Score, bool) {
	s, ok := m.scores[id]
	if !ok {
		return Score{}, false
	}
	return *s, true
}

// Premature reports whether the premature-finish countdown runs and the time left.
func (m *Match) Premature() (bool, int64) {
	return m.prematureCountdown, m.prematureTimer
}

// FinalScore returns the end-of-match scoreboard once the match ended.
func (m *Match) FinalScore() *FinalScore {
	return m.finalScore
}

// AliveCount returns the number of reachable, alive participants of a team.
func (m *Match) AliveCount(team Team) int {
	n := 0
	m.forEachParticipant(func(_ string, t Team, p Participant) {
		if t == team && p.Alive() {
			n++
		}
	})
	return n
}

// Start opens the match to participants.
func (m *Match) Start() {
	m.startTime = 0
	m.status = StatusWaitJoin
	m.register()
	log.Info().Uint32("instance", m.id).Uint32("type", uint32(m.tpl.TypeID)).Str("name", m.tpl.Name).Msg("battleground: match started")
}

// Reset returns a match to WAIT_QUEUE with empty counters and roster so the
// instance can be reused.
func (m *Match) Reset() {
	m.winner = TeamNone
	m.status = StatusWaitQueue
	m.startTime = 0
	m.endTime = 0
	m.startDelay = 0
	m.events = 0
	m.registry.Reset()

	if m.invited[0] > 0 || m.invited[1] > 0 {
		log.Error().Uint32("instance", m.id).Int("alliance", m.invited[0]).Int("horde", m.invited[1]).Msg("battleground: invited counters not zero on reset")
	}
	m.invited = [2]int{}
	m.present = [2]int{}
	m.invitations = make(map[string]Team)
	m.unregister()

	m.roster = make(map[string]*Entry)
	m.scores = make(map[string]*Score)
	for i, raid := range m.raids {
		if raid != nil {
			raid.Release()
		}
		m.raids[i] = nil
	}

	m.prematureCountdown = false
	m.prematureTimer = 0
	m.stopRequested = false
	m.finalScore = nil
}

// Close drops the free-slot registration and the team raids of a retired match.
func (m *Match) Close() {
	m.unregister()
	for i, raid := range m.raids {
		if raid != nil {
			raid.Release()
		}
		m.raids[i] = nil
	}
}

// LoadEntities binds every templated entity to its coordinates. It fails when
// one of them is missing from the world.
func (m *Match) LoadEntities() error {
	refs := make([]spawn.EntityRef, 0, len(m.tpl.Bindings))
	for _, b := range m.tpl.Bindings {
		ref, err := b.Ref()
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	var missing []string
	for _, ref := range refs {
		if !m.entityExists(ref) {
			missing = append(missing, ref.String())
			continue
		}
		if err := m.OnEntityLoad(ref); err != nil {
			log.Error().Err(err).Uint32("instance", m.id).Str("entity", ref.String()).Msg("battleground: entity binding skipped")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("match %d: %v: %w", m.id, missing, ErrMissingEntities)
	}
	return nil
}

// OnEntityLoad binds an entity that just appeared in the world.
func (m *Match) OnEntityLoad(ref spawn.EntityRef) error {
	return m.registry.OnLoad(ref, m.status >= StatusInProgress)
}

func (m *Match) entityExists(ref spawn.EntityRef) bool {
	switch ref.Kind {
	case spawn.KindCreature:
		_, ok := m.deps.World.Creature(ref.ID)
		return ok
	case spawn.KindObject:
		_, ok := m.deps.World.Object(ref.ID)
		return ok
	}
	return false
}

// SpawnEvent activates or deactivates an event coordinate of this match.
func (m *Match) SpawnEvent(c spawn.Category, s spawn.SubState, activate, forceDespawn bool, respawnDelay uint32) error {
	return m.registry.SpawnEvent(c, s, activate, forceDespawn, respawnDelay)
}

func (m *Match) OpenDoorEvent(c spawn.Category, s spawn.SubState) error {
	return m.registry.OpenDoors(c, s)
}

func (m *Match) CloseDoorEvent(c spawn.Category, s spawn.SubState) error {
	return m.registry.CloseDoors(c, s)
}

// rosterIDs returns the roster ids in a stable order.
func (m *Match) rosterIDs() []string {
	ids := make([]string, 0, len(m.roster))
	for id := range m.roster {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// forEachParticipant visits every reachable roster participant with its
// resolved team. Unreachable participants are logged and skipped.
func (m *Match) forEachParticipant(fn func(id string, team Team, p Participant)) {
	for _, id := range m.rosterIDs() {
		p, ok := m.deps.Directory.Lookup(id)
		if !ok {
			log.Error().Uint32("instance", m.id).Str("participant", id).Msg("battleground: participant not found")
			continue
		}
		team := m.roster[id].Team
		if team == TeamNone {
			team = p.Team()
		}
		fn(id, team, p)
	}
}

func (m *Match) send(p Participant, src MessageSource) {
	m.deps.Gateway.Send(p, src.Message(m.deps.Localizer, p.Locale()))
}

// SendToAll delivers a message to every reachable participant.
func (m *Match) SendToAll(src MessageSource) {
	m.forEachParticipant(func(_ string, _ Team, p Participant) {
		m.send(p, src)
	})
}

// SendToTeam delivers a message to a team, skipping the excluded participant.
func (m *Match) SendToTeam(team Team, src MessageSource, exclude string) {
	m.forEachParticipant(func(id string, t Team, p Participant) {
		if t == team && id != exclude {
			m.send(p, src)
		}
	})
}

func (m *Match) PlaySoundToAll(sound uint32) {
	m.SendToAll(Sound(sound))
}

func (m *Match) statusUpdate(team Team) StatusUpdate {
	return StatusUpdate{
		Instance: m.id,
		Type:     m.tpl.TypeID,
		Status:   m.status,
		Team:     team,
		Elapsed:  m.startTime,
		Winner:   m.winner,
	}
}

func (m *Match) sendStatus(p Participant, team Team) {
	st := m.statusUpdate(team)
	m.send(p, Static{Kind: KindStatus, Status: &st})
}

func (m *Match) register() {
	if m.inFreeSlots {
		return
	}
	m.deps.FreeSlots.add(m)
	m.inFreeSlots = true
}

func (m *Match) unregister() {
	if !m.inFreeSlots {
		return
	}
	m.deps.FreeSlots.remove(m)
	m.inFreeSlots = false
}
