package instance

import (
	"context"
	"fmt"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/spawn"

	"github.com/rs/zerolog/log"
)

const routeTimeout = 5 * time.Second

// Join adds a connected participant to its match.
func (m *Manager) Join(instance uint32, p battleground.Participant) error {
	ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
	defer cancel()
	return m.Exec(ctx, func() error {
		match, ok := m.Match(instance)
		if !ok {
			return fmt.Errorf("join %d: %w", instance, battleground.ErrMatchNotFound)
		}
		if match.Status() == battleground.StatusWaitLeave && match.EndTime() == 0 {
			return fmt.Errorf("join %d: match is closing: %w", instance, battleground.ErrMatchNotFound)
		}
		if match.InRoster(p.ID()) {
			log.Info().Uint32("instance", instance).Str("participant", p.ID()).Msg("manager: participant reconnected")
			return nil
		}
		match.Join(p)
		return nil
	})
}

// Leave removes a participant through the normal leave path.
func (m *Manager) Leave(instance uint32, id string) {
	m.route(instance, "leave", func(match *battleground.Match) {
		match.Leave(id, true, true)
	})
}

// Kill credits a death reported by the victim's session. The killer only gets
// credit from within the victim's reward range.
func (m *Manager) Kill(instance uint32, victim, killer string) {
	m.route(instance, "kill", func(match *battleground.Match) {
		v, ok := m.deps.Directory.Lookup(victim)
		if !ok {
			return
		}
		var k battleground.Participant
		if killer != "" {
			if p, ok := m.deps.Directory.Lookup(killer); ok && match.InRoster(killer) && v.InRewardRange(p) {
				k = p
			} else {
				log.Debug().Uint32("instance", instance).Str("victim", victim).Str("killer", killer).Msg("manager: kill credit rejected")
			}
		}
		match.HandleKill(v, k)
	})
}

func (m *Manager) route(instance uint32, op string, fn func(*battleground.Match)) {
	ctx, cancel := context.WithTimeout(context.Background(), routeTimeout)
	defer cancel()
	err := m.Do(ctx, func() {
		match, ok := m.Match(instance)
		if !ok {
			log.Debug().Uint32("instance", instance).Str("op", op).Msg("manager: no such match")
			return
		}
		fn(match)
	})
	if err != nil {
		log.Warn().Err(err).Uint32("instance", instance).Str("op", op).Msg("manager: command not queued")
	}
}

// MatchInfo is the administrative view of one match.
type MatchInfo struct {
	Instance  uint32                             `json:"instance"`
	Type      battleground.TypeID                `json:"type"`
	Name      string                             `json:"name"`
	Status    battleground.Status                `json:"status"`
	ElapsedMs int64                              `json:"elapsedMs"`
	Winner    battleground.Team                  `json:"winner"`
	Roster    int                                `json:"roster"`
	Invited   map[string]int                     `json:"invited"`
	Present   map[string]int                     `json:"present"`
	Events    map[string][]spawn.SubStateSummary `json:"events,omitempty"`
}

// Snapshot describes every live match.
func (m *Manager) Snapshot(ctx context.Context) ([]MatchInfo, error) {
	var out []MatchInfo
	err := m.Exec(ctx, func() error {
		for _, id := range m.ids() {
			out = append(out, describe(m.matches[id].match))
		}
		return nil
	})
	return out, err
}

func describe(match *battleground.Match) MatchInfo {
	info := MatchInfo{
		Instance:  match.ID(),
		Type:      match.TypeID(),
		Name:      match.Name(),
		Status:    match.Status(),
		ElapsedMs: match.StartTime(),
		Winner:    match.Winner(),
		Roster:    match.RosterSize(),
		Invited:   map[string]int{},
		Present:   map[string]int{},
		Events:    map[string][]spawn.SubStateSummary{},
	}
	for _, team := range []battleground.Team{battleground.TeamAlliance, battleground.TeamHorde} {
		info.Invited[team.String()] = match.InvitedCount(team)
		info.Present[team.String()] = match.PresentCount(team)
	}
	cats := append([]spawn.Category{spawn.CategoryDoor}, match.Template().Categories...)
	for _, c := range cats {
		if summary := match.Registry().Summary(c); len(summary) > 0 {
			info.Events[fmt.Sprint(c)] = summary
		}
	}
	return info
}

// SpawnEvent toggles an event coordinate of a live match.
func (m *Manager) SpawnEvent(ctx context.Context, instance uint32, c spawn.Category, s spawn.SubState, activate bool) error {
	return m.Exec(ctx, func() error {
		match, ok := m.Match(instance)
		if !ok {
			return fmt.Errorf("spawn event %d: %w", instance, battleground.ErrMatchNotFound)
		}
		return match.SpawnEvent(c, s, activate, false, 0)
	})
}

// End force ends a live match. TeamNone stops it through the premature
// countdown instead.
func (m *Manager) End(ctx context.Context, instance uint32, winner battleground.Team) error {
	return m.Exec(ctx, func() error {
		match, ok := m.Match(instance)
		if !ok {
			return fmt.Errorf("end %d: %w", instance, battleground.ErrMatchNotFound)
		}
		if winner == battleground.TeamNone {
			match.Stop()
			return nil
		}
		match.ForceEnd(winner)
		return nil
	})
}
