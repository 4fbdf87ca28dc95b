package battleground

import (
	"time"

	"github.com/rs/zerolog/log"
)

// End resolves the match with a winner (TeamNone for a draw), rewards the
// roster and opens the removal window.
func (m *Match) End(winner Team) {
	m.unregister()

	switch winner {
	case TeamAlliance:
		m.PlaySoundToAll(SoundAllianceWins)
	case TeamHorde:
		m.PlaySoundToAll(SoundHordeWins)
	}

	m.winner = winner
	m.status = StatusWaitLeave
	m.endTime = m.settings.RemovalWindow
	board := m.buildFinalScore()

	m.forEachParticipant(func(id string, team Team, p Participant) {
		if p.InRedemption() {
			p.ClearRedemption()
		}
		if !p.Alive() {
			p.Resurrect()
		} else {
			p.StopCombat()
		}

		switch {
		case team == winner:
			m.reward(p, team, true)
		case m.startTime >= m.settings.LoserRewardAfter:
			m.reward(p, team, false)
		}

		p.BlockMovement()
		m.send(p, Static{Kind: KindScoreboard, Scoreboard: board})
		m.sendStatus(p, team)

		if m.settings.LogMatches && m.deps.Log != nil {
			m.logParticipant(id, team)
		}
	})

	m.announce(m.tpl.WinText(winner))
	log.Info().Uint32("instance", m.id).Str("winner", winner.String()).Int64("elapsedMs", m.startTime).Msg("battleground: match ended")
}

// EndNow ends the match without a winner and with no removal window.
func (m *Match) EndNow() {
	m.unregister()
	m.status = StatusWaitLeave
	m.endTime = 0
	m.buildFinalScore()
	log.Info().Uint32("instance", m.id).Msg("battleground: match ended immediately")
}

// ForceEnd is the administrative end with an explicit winner.
func (m *Match) ForceEnd(winner Team) {
	if m.status == StatusWaitLeave {
		return
	}
	log.Warn().Uint32("instance", m.id).Str("winner", winner.String()).Msg("battleground: match force ended")
	m.End(winner)
}

func (m *Match) buildFinalScore() *FinalScore {
	if m.finalScore != nil {
		return m.finalScore
	}
	board := &FinalScore{
		Instance: m.id,
		Type:     m.tpl.TypeID,
		Winner:   m.winner,
		Elapsed:  m.startTime,
	}
	for _, id := range m.rosterIDs() {
		row := ScoreRow{Participant: id, Team: m.roster[id].Team}
		if s, ok := m.scores[id]; ok {
			row.Score = *s
		}
		board.Rows = append(board.Rows, row)
	}
	m.finalScore = board
	return board
}

func (m *Match) reward(p Participant, team Team, won bool) {
	id := m.tpl.Rewards.For(team, won)
	if id == 0 {
		return
	}
	def, ok := m.deps.Rewards.Lookup(id)
	if !ok {
		log.Error().Err(ErrUnknownReward).Uint32("instance", m.id).Uint32("reward", id).Str("participant", p.ID()).Msg("battleground: reward does not exist")
		return
	}
	if def.BonusHonor > 0 {
		m.RecordAndAggregate(p, ScoreBonusHonor, uint32(float64(def.BonusHonor)*m.HonorModifier()))
	}
	m.deps.Grantor.Apply(p, def)
}

func (m *Match) logParticipant(id string, team Team) {
	rec := LogRecord{
		Instance:    m.id,
		Type:        m.tpl.TypeID,
		Duration:    time.Duration(m.startTime) * time.Millisecond,
		TeamCount:   m.PresentCount(team),
		Participant: id,
		Team:        team,
	}
	if s, ok := m.scores[id]; ok {
		rec.Deaths = s.Deaths
		rec.BonusHonor = s.BonusHonor
		rec.HonorableKills = s.HonorableKills
	}
	if err := m.deps.Log.Record(rec); err != nil {
		log.Error().Err(err).Uint32("instance", m.id).Str("participant", id).Msg("battleground: failed to record match log")
	}
}
