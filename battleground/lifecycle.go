package battleground

import (
	"github.com/rs/zerolog/log"
)

const (
	minuteMs  = 60000
	quarterMs = 15000
	stopDelay = 100
)

// Tick advances the match by diff milliseconds.
func (m *Match) Tick(diff int64) TickResult {
	if len(m.roster) == 0 {
		if m.invited[0] == 0 && m.invited[1] == 0 && !m.IsTemplate() {
			log.Debug().Uint32("instance", m.id).Msg("battleground: empty match retired")
			return TickRetire
		}
		return TickContinue
	}

	m.tickPremature(diff)

	if m.status == StatusWaitJoin {
		if !m.tickStarting(diff) {
			return TickContinue
		}
	}

	if m.status == StatusInProgress && m.events&EventDoorsDespawned == 0 && m.startTime > m.tpl.doorDespawnAfter() {
		m.events |= EventDoorsDespawned
		m.registry.RemoveDoors()
	}

	if m.status == StatusWaitLeave {
		m.endTime -= diff
		if m.endTime <= 0 {
			m.endTime = 0
			for _, id := range m.rosterIDs() {
				m.Leave(id, true, true)
			}
		}
	}

	m.startTime += diff
	return TickContinue
}

func (m *Match) belowMinimum() bool {
	return m.present[0] < m.tpl.MinPerTeam || m.present[1] < m.tpl.MinPerTeam
}

func (m *Match) tickPremature(diff int64) {
	watching := m.status == StatusInProgress &&
		(m.stopRequested || (m.settings.PrematureFinishTime > 0 && m.belowMinimum()))
	if !watching {
		if m.prematureCountdown {
			log.Debug().Uint32("instance", m.id).Msg("battleground: premature finish cancelled")
		}
		m.prematureCountdown = false
		return
	}

	if !m.prematureCountdown {
		m.prematureCountdown = true
		m.prematureTimer = m.settings.PrematureFinishTime
		log.Info().Uint32("instance", m.id).Int64("timerMs", m.prematureTimer).Msg("battleground: premature finish countdown started")
		return
	}

	if m.prematureTimer < diff {
		winner := TeamNone
		switch {
		case m.stopRequested:
		case m.present[0] >= m.tpl.MinPerTeam:
			winner = TeamAlliance
		case m.present[1] >= m.tpl.MinPerTeam:
			winner = TeamHorde
		}
		m.prematureCountdown = false
		m.stopRequested = false
		log.Info().Uint32("instance", m.id).Str("winner", winner.String()).Msg("battleground: premature finish")
		m.End(winner)
		return
	}

	if !m.settings.Testing {
		next := m.prematureTimer - diff
		if next > minuteMs {
			if next/minuteMs != m.prematureTimer/minuteMs {
				m.SendToAll(Formatted{ID: TextPrematureFinishMinutes, Args: []any{m.prematureTimer / minuteMs}})
			}
		} else if next/quarterMs != m.prematureTimer/quarterMs {
			m.SendToAll(Formatted{ID: TextPrematureFinishSeconds, Args: []any{m.prematureTimer / 1000}})
		}
	}
	m.prematureTimer -= diff
}

// tickStarting runs at most one step of the start sequence. It returns false
// when setup failed and the match was ended.
func (m *Match) tickStarting(diff int64) bool {
	m.startDelay -= diff
	delays := m.tpl.StartDelays
	msgs := m.tpl.StartMessages

	switch {
	case m.events&EventStartFirst == 0:
		m.events |= EventStartFirst
		if err := m.deps.Script.Setup(m); err != nil {
			log.Error().Err(err).Uint32("instance", m.id).Msg("battleground: setup failed")
			m.EndNow()
			return false
		}
		m.deps.Script.CloseDoors(m)
		m.startDelay = delays[0]
		m.announce(msgs[0])
	case m.startDelay <= delays[1] && m.events&EventStartSecond == 0:
		m.events |= EventStartSecond
		m.announce(msgs[1])
	case m.startDelay <= delays[2] && m.events&EventStartThird == 0:
		m.events |= EventStartThird
		m.announce(msgs[2])
	case m.startDelay <= 0 && m.events&EventStartFourth == 0:
		m.events |= EventStartFourth
		m.deps.Script.OpenDoors(m)
		m.returnToStart()
		m.announce(msgs[3])
		m.status = StatusInProgress
		m.startDelay = delays[3]
		m.PlaySoundToAll(SoundStart)
		m.deps.Script.OnStart(m)
		log.Info().Uint32("instance", m.id).Int("alliance", m.present[0]).Int("horde", m.present[1]).Msg("battleground: match in progress")
	}
	return true
}

func (m *Match) announce(id TextID) {
	if id != 0 {
		m.SendToAll(Broadcast{ID: id})
	}
}

// returnToStart sends participants who strayed from their start position back
// to their rally point. Game masters are left alone.
func (m *Match) returnToStart() {
	m.forEachParticipant(func(_ string, _ Team, p Participant) {
		if p.GameMaster() {
			return
		}
		pos, ok := m.tpl.StartPosition(p.Team())
		if !ok {
			return
		}
		if p.Position().Distance(pos) > m.settings.ReturnDistance {
			p.ReturnToRallyPoint()
		}
	})
}

// Stop ends a running match without a winner after a short countdown. A match
// that has not started yet ends immediately.
func (m *Match) Stop() {
	switch m.status {
	case StatusInProgress:
		m.stopRequested = true
		m.prematureCountdown = true
		m.prematureTimer = stopDelay
		log.Info().Uint32("instance", m.id).Msg("battleground: stop requested")
	case StatusWaitJoin:
		m.EndNow()
	}
}
