package allocator

import (
	"context"

	"agones-battleground/battleground"
	"agones-battleground/queues"
)

// Instances is the local match scheduler. Assign and Withdraw touch match
// state and must run inside Exec.
type Instances interface {
	Exec(ctx context.Context, fn func() error) error
	Assign(t battleground.TypeID, team battleground.Team, participant string) (uint32, error)
	Withdraw(participant string) bool
}

// result labels for metrics.TicketsTotal
const (
	resultSlot      = "slot"
	resultAllocated = "allocated"
	resultQueued    = "queued"
	resultCancelled = "cancelled"
	resultFailure   = "failure"
)

func newResult(t *queues.Ticket, status queues.TicketStatus) *queues.TicketResult {
	return &queues.TicketResult{
		EnvelopeVersion: queues.EnvelopeVersion,
		Type:            queues.TypeTicketResult,
		TicketID:        t.TicketID,
		PlayerID:        t.PlayerID,
		Status:          status,
	}
}

// outcomeFromScore converts a final scoreboard into the published envelope.
func outcomeFromScore(fs *battleground.FinalScore) *queues.MatchOutcome {
	out := &queues.MatchOutcome{
		EnvelopeVersion:  queues.EnvelopeVersion,
		Type:             queues.TypeMatchOutcome,
		Instance:         fs.Instance,
		BattlegroundType: uint32(fs.Type),
		Winner:           fs.Winner.String(),
		ElapsedMs:        fs.Elapsed,
		Rows:             make([]queues.OutcomeRow, 0, len(fs.Rows)),
	}
	for _, r := range fs.Rows {
		out.Rows = append(out.Rows, queues.OutcomeRow{
			Participant:    r.Participant,
			Team:           r.Team.String(),
			KillingBlows:   r.KillingBlows,
			Deaths:         r.Deaths,
			HonorableKills: r.HonorableKills,
			BonusHonor:     r.BonusHonor,
		})
	}
	return out
}
