package battleground

import (
	"math"

	"github.com/rs/zerolog/log"
)

// RecordAndAggregate adds amount to one of the participant's counters. Bonus
// honor is only counted when the ledger accepts the grant.
func (m *Match) RecordAndAggregate(p Participant, kind ScoreKind, amount uint32) {
	score, ok := m.scores[p.ID()]
	if !ok {
		return
	}
	switch kind {
	case ScoreKillingBlows:
		score.KillingBlows += amount
	case ScoreDeaths:
		score.Deaths += amount
	case ScoreHonorableKills:
		score.HonorableKills += amount
	case ScoreBonusHonor:
		if m.deps.Ledger.Grant(p, amount) {
			score.BonusHonor += amount
		}
	default:
		log.Error().Uint32("instance", m.id).Str("participant", p.ID()).Uint8("kind", uint8(kind)).Msg("battleground: unknown score kind")
	}
}

// HandleKill credits a kill. The killer may be nil for environmental deaths.
func (m *Match) HandleKill(victim, killer Participant) {
	if killer != nil && killer.Team() != victim.Team() {
		m.RecordAndAggregate(killer, ScoreHonorableKills, 1)
		m.RecordAndAggregate(killer, ScoreKillingBlows, 1)

		m.forEachParticipant(func(id string, team Team, p Participant) {
			if id == killer.ID() || team != killer.Team() {
				return
			}
			if p.InRewardRange(victim) {
				m.RecordAndAggregate(p, ScoreHonorableKills, 1)
			}
		})
	}
	if !victim.InRedemption() {
		m.RecordAndAggregate(victim, ScoreDeaths, 1)
	}
}

// RewardHonorToTeam grants bonus honor to every reachable member of a team.
func (m *Match) RewardHonorToTeam(amount uint32, team Team) {
	m.forEachParticipant(func(_ string, t Team, p Participant) {
		if t == team {
			m.RecordAndAggregate(p, ScoreBonusHonor, amount)
		}
	})
}

// HonorModifier scales honor rewards for short matches: base^(elapsed/ramp - 1)
// until the ramp is reached, 1 afterwards.
func (m *Match) HonorModifier() float64 {
	ramp := m.settings.HonorRamp
	if ramp <= 0 || m.settings.HonorCurveBase <= 0 {
		return 1
	}
	elapsed := float64(m.startTime) / float64(ramp)
	if elapsed >= 1 {
		return 1
	}
	return math.Pow(m.settings.HonorCurveBase, elapsed-1)
}
