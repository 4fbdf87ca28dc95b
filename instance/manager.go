// Package instance owns the running battleground matches and drives them
// from a single goroutine.
package instance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/metrics"
	"agones-battleground/spawn"

	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownType = errors.New("unknown battleground type")
	ErrCapacity    = errors.New("instance capacity reached")
	ErrNoSlot      = errors.New("no free slot")
)

const (
	commandBuffer = 256
	updateBuffer  = 64
	outcomeBuffer = 16
)

// WorldFactory builds the entity world of a new match.
type WorldFactory func(tpl battleground.Template) spawn.World

// Config holds what the manager needs besides its collaborators.
type Config struct {
	Templates    []battleground.Template
	Settings     battleground.Settings
	MaxInstances int
}

type slot struct {
	match    *battleground.Match
	world    spawn.World
	reported bool
}

// Manager is the single owner of every match. All match calls run on the
// goroutine executing Run; other goroutines submit work through Do and Exec.
type Manager struct {
	templates    map[battleground.TypeID]battleground.Template
	settings     battleground.Settings
	maxInstances int
	deps         battleground.Deps
	newWorld     WorldFactory
	freeSlots    *battleground.FreeSlotRegistry
	now          func() time.Time

	commands chan func()
	updates  chan battleground.TypeID
	outcomes chan *battleground.FinalScore
	running  atomic.Bool

	// Loop-owned.
	matches map[uint32]*slot
	nextID  uint32
}

// New builds a manager. deps are shared by every match; the manager fills in
// the free-slot registry, the queue notifier and the world.
func New(cfg Config, deps battleground.Deps, newWorld WorldFactory) (*Manager, error) {
	m := &Manager{
		templates:    make(map[battleground.TypeID]battleground.Template, len(cfg.Templates)),
		settings:     cfg.Settings,
		maxInstances: cfg.MaxInstances,
		newWorld:     newWorld,
		freeSlots:    deps.FreeSlots,
		now:          time.Now,
		commands:     make(chan func(), commandBuffer),
		updates:      make(chan battleground.TypeID, updateBuffer),
		outcomes:     make(chan *battleground.FinalScore, outcomeBuffer),
		matches:      make(map[uint32]*slot),
	}
	for _, tpl := range cfg.Templates {
		tpl = tpl.WithDefaults()
		if err := tpl.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.templates[tpl.TypeID]; dup {
			return nil, fmt.Errorf("template %d defined twice: %w", tpl.TypeID, battleground.ErrInvalidTemplate)
		}
		m.templates[tpl.TypeID] = tpl
	}
	if m.freeSlots == nil {
		m.freeSlots = battleground.NewFreeSlotRegistry()
	}
	deps.FreeSlots = m.freeSlots
	deps.Queue = m
	m.deps = deps
	return m, nil
}

// FreeSlots returns the registry shared with the matchmaker.
func (m *Manager) FreeSlots() *battleground.FreeSlotRegistry { return m.freeSlots }

// Updates delivers the types whose matches may take new participants again.
func (m *Manager) Updates() <-chan battleground.TypeID { return m.updates }

// Outcomes delivers the final scoreboard of every match that ended.
func (m *Manager) Outcomes() <-chan *battleground.FinalScore { return m.outcomes }

// Ready reports whether the loop is running.
func (m *Manager) Ready() bool { return m.running.Load() }

// Types lists the configured battleground types in ascending order.
func (m *Manager) Types() []battleground.TypeID {
	out := make([]battleground.TypeID, 0, len(m.templates))
	for t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScheduleQueueUpdate implements battleground.QueueNotifier. It runs on the
// loop and never blocks it.
func (m *Manager) ScheduleQueueUpdate(t battleground.TypeID) {
	select {
	case m.updates <- t:
	default:
		log.Debug().Uint32("type", uint32(t)).Msg("manager: queue update dropped, channel full")
	}
}

// Do queues fn for the loop goroutine.
func (m *Manager) Do(ctx context.Context, fn func()) error {
	select {
	case m.commands <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exec runs fn on the loop goroutine and waits for its result.
func (m *Manager) Exec(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := m.Do(ctx, func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains commands and ticks every match each interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.running.Store(true)
	defer m.running.Store(false)
	log.Info().Dur("interval", interval).Int("types", len(m.templates)).Msg("manager: loop started")

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			log.Info().Msg("manager: loop stopped")
			return nil
		case fn := <-m.commands:
			fn()
			m.collect()
		case <-ticker.C:
			now := m.now()
			diff := now.Sub(last).Milliseconds()
			if diff <= 0 {
				continue
			}
			last = last.Add(time.Duration(diff) * time.Millisecond)
			m.TickAll(diff)
		}
	}
}

// TickAll advances every match by diff milliseconds. Loop only.
func (m *Manager) TickAll(diff int64) {
	started := time.Now()
	for _, id := range m.ids() {
		s := m.matches[id]
		if s.match.Tick(diff) == battleground.TickRetire {
			m.retire(id)
		}
	}
	m.collect()
	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// Create starts a new match of type t. Loop only.
func (m *Manager) Create(t battleground.TypeID) (*battleground.Match, error) {
	tpl, ok := m.templates[t]
	if !ok {
		return nil, fmt.Errorf("create %d: %w", t, ErrUnknownType)
	}
	if m.maxInstances > 0 && len(m.matches) >= m.maxInstances {
		return nil, fmt.Errorf("create %d: %w", t, ErrCapacity)
	}
	m.nextID++
	id := m.nextID

	deps := m.deps
	var world spawn.World
	if m.newWorld != nil {
		world = m.newWorld(tpl)
		deps.World = world
	}
	match := battleground.New(id, tpl, m.settings, deps)
	match.Start()
	m.matches[id] = &slot{match: match, world: world}
	log.Info().Uint32("instance", id).Uint32("type", uint32(t)).Msg("manager: match created")
	return match, nil
}

// Assign invites a participant into a match of type t with a free slot for
// team, creating a match when none has room. Loop only.
func (m *Manager) Assign(t battleground.TypeID, team battleground.Team, participant string) (uint32, error) {
	for _, match := range m.freeSlots.Matches(t) {
		if match.FreeSlots(team) == 0 {
			continue
		}
		if err := match.Invite(participant, team); err != nil {
			return 0, err
		}
		return match.ID(), nil
	}
	match, err := m.Create(t)
	if err != nil {
		if errors.Is(err, ErrCapacity) {
			return 0, fmt.Errorf("assign %s: %w", participant, ErrNoSlot)
		}
		return 0, err
	}
	if err := match.Invite(participant, team); err != nil {
		return 0, err
	}
	return match.ID(), nil
}

// Withdraw drops a pending invitation of participant from any match. Loop only.
func (m *Manager) Withdraw(participant string) bool {
	for _, id := range m.ids() {
		if m.matches[id].match.Uninvite(participant) {
			return true
		}
	}
	return false
}

// Match returns a live match. Loop only.
func (m *Manager) Match(id uint32) (*battleground.Match, bool) {
	s, ok := m.matches[id]
	if !ok {
		return nil, false
	}
	return s.match, true
}

// World returns the entity world of a live match. Loop only.
func (m *Manager) World(id uint32) (spawn.World, bool) {
	s, ok := m.matches[id]
	if !ok || s.world == nil {
		return nil, false
	}
	return s.world, true
}

// Len returns the number of live matches. Loop only.
func (m *Manager) Len() int { return len(m.matches) }

func (m *Manager) ids() []uint32 {
	ids := make([]uint32, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) retire(id uint32) {
	s := m.matches[id]
	s.match.Close()
	delete(m.matches, id)
	log.Info().Uint32("instance", id).Uint32("type", uint32(s.match.TypeID())).Msg("manager: match retired")
}

// collect publishes outcomes of newly ended matches and refreshes the gauges.
func (m *Manager) collect() {
	byStatus := map[battleground.Status]int{}
	participants := 0
	for _, id := range m.ids() {
		s := m.matches[id]
		match := s.match
		byStatus[match.Status()]++
		participants += match.RosterSize()
		if s.reported || match.Status() != battleground.StatusWaitLeave {
			continue
		}
		s.reported = true
		metrics.MatchOutcomes.WithLabelValues(match.Winner().String()).Inc()
		metrics.MatchDuration.Observe(float64(match.StartTime()) / 1000)
		if board := match.FinalScore(); board != nil {
			select {
			case m.outcomes <- board:
			default:
				log.Warn().Uint32("instance", id).Msg("manager: outcome dropped, channel full")
			}
		}
	}
	for _, st := range []battleground.Status{battleground.StatusWaitQueue, battleground.StatusWaitJoin, battleground.StatusInProgress, battleground.StatusWaitLeave} {
		metrics.Matches.WithLabelValues(st.String()).Set(float64(byStatus[st]))
	}
	metrics.Participants.Set(float64(participants))
}

// shutdown ends every running match without a winner and removes its roster.
func (m *Manager) shutdown() {
	for _, id := range m.ids() {
		match := m.matches[id].match
		if match.Status() != battleground.StatusWaitLeave {
			match.EndNow()
		}
		match.Tick(0)
		m.retire(id)
	}
	m.collect()
}
