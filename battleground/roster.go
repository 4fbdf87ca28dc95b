package battleground

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Invite records a pending invitation issued by the matchmaker and counts it
// against the team's slots.
func (m *Match) Invite(id string, team Team) error {
	i := team.index()
	if i < 0 {
		return fmt.Errorf("invite %s: %w", id, ErrInvalidTeam)
	}
	if _, ok := m.invitations[id]; ok {
		return fmt.Errorf("invite %s: %w", id, ErrAlreadyInvited)
	}
	if _, ok := m.roster[id]; ok {
		return fmt.Errorf("invite %s: already in roster: %w", id, ErrAlreadyInvited)
	}
	m.invitations[id] = team
	m.invited[i]++
	log.Debug().Uint32("instance", m.id).Str("participant", id).Str("team", team.String()).Msg("battleground: participant invited")
	return nil
}

// Uninvite drops a pending invitation that was declined or expired.
func (m *Match) Uninvite(id string) bool {
	team, ok := m.invitations[id]
	if !ok {
		return false
	}
	delete(m.invitations, id)
	m.decrementInvited(team)
	if m.status < StatusWaitLeave {
		m.register()
		m.deps.Queue.ScheduleQueueUpdate(m.tpl.TypeID)
	}
	return true
}

// Join adds a participant to the roster.
func (m *Match) Join(p Participant) {
	id := p.ID()
	if _, ok := m.roster[id]; ok {
		log.Warn().Uint32("instance", m.id).Str("participant", id).Msg("battleground: participant already in roster")
		return
	}
	// An invitation fixes the team its slot was counted against.
	team := p.Team()
	invited, hasInvite := m.invitations[id]
	if hasInvite {
		delete(m.invitations, id)
		if team != invited {
			log.Warn().Uint32("instance", m.id).Str("participant", id).Str("team", team.String()).Str("invited", invited.String()).Msg("battleground: joined with a different team than invited")
		}
		team = invited
	}
	m.roster[id] = &Entry{Team: team}
	m.scores[id] = &Score{}

	if i := team.index(); i >= 0 {
		m.present[i]++
		if !hasInvite {
			m.invited[i]++
		}
	}

	m.SendToTeam(team, Static{Kind: KindJoined, Participant: id}, id)

	if m.status == StatusWaitLeave {
		p.BlockMovement()
		if m.finalScore != nil {
			m.send(p, Static{Kind: KindScoreboard, Scoreboard: m.finalScore})
		}
		m.sendStatus(p, team)
	}

	m.attachRaid(p, team)
	log.Info().Uint32("instance", m.id).Str("participant", id).Str("team", team.String()).Msg("battleground: participant joined")
}

// Leave removes a participant. Leaves of non-roster participants skip every
// counter and only detach the participant.
func (m *Match) Leave(id string, teleport, notify bool) {
	p, reachable := m.deps.Directory.Lookup(id)

	team := TeamNone
	entry, inRoster := m.roster[id]
	if inRoster {
		team = entry.Team
		delete(m.roster, id)
		delete(m.scores, id)
	}
	if team == TeamNone && reachable {
		team = p.Team()
	}

	if reachable {
		if p.InRedemption() {
			p.ClearRedemption()
		}
		if !p.Alive() {
			p.Resurrect()
		}
	}

	if inRoster && team.index() >= 0 {
		i := team.index()
		if m.present[i] > 0 {
			m.present[i]--
		}
		if reachable && notify {
			m.send(p, Static{Kind: KindStatus, Status: &StatusUpdate{}})
		}
		m.detachRaid(id, team)
		m.decrementInvited(team)

		if m.status < StatusWaitLeave {
			m.register()
			m.deps.Queue.ScheduleQueueUpdate(m.tpl.TypeID)
			m.SendToTeam(team, Static{Kind: KindLeft, Participant: id}, id)
		}
		log.Info().Uint32("instance", m.id).Str("participant", id).Str("team", team.String()).Msg("battleground: participant left")
	}

	if reachable {
		p.DetachFromMatch(teleport)
	}
}

func (m *Match) decrementInvited(team Team) {
	i := team.index()
	if i < 0 {
		return
	}
	if m.invited[i] == 0 {
		log.Error().Uint32("instance", m.id).Str("team", team.String()).Msg("battleground: invited counter underflow")
		return
	}
	m.invited[i]--
}

// FreeSlots returns how many more participants a team may receive.
func (m *Match) FreeSlots(team Team) int {
	if m.status != StatusWaitJoin && m.status != StatusInProgress {
		return 0
	}
	i := team.index()
	if i < 0 {
		return 0
	}
	if free := m.tpl.MaxPerTeam - m.invited[i]; free > 0 {
		return free
	}
	return 0
}

// HasFreeSlots reports whether the roster is below its full size.
func (m *Match) HasFreeSlots() bool {
	return len(m.roster) < 2*m.tpl.MaxPerTeam
}

func (m *Match) attachRaid(p Participant, team Team) {
	i := team.index()
	if i < 0 || m.deps.Raids == nil {
		return
	}
	raid := m.raids[i]
	if raid == nil {
		m.raids[i] = m.deps.Raids.NewRaid(team, p)
		return
	}
	if raid.IsMember(p.ID()) {
		raid.Attach(p)
		return
	}
	raid.Add(p)
	if p.LeadsOriginalGroup() {
		raid.Promote(p.ID())
	}
}

func (m *Match) detachRaid(id string, team Team) {
	i := team.index()
	if i < 0 || m.raids[i] == nil {
		return
	}
	if m.raids[i].Remove(id) == 0 {
		m.raids[i].Release()
		m.raids[i] = nil
	}
}
