package queues

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher writes results and outcomes to the log. It stands in for a
// broker when Pub/Sub is not configured.
type LogPublisher struct{}

func (LogPublisher) PublishResult(_ context.Context, res *TicketResult) error {
	log.Info().Interface("result", res).Msg("queues: ticket result")
	return nil
}

func (LogPublisher) PublishOutcome(_ context.Context, out *MatchOutcome) error {
	log.Info().Interface("outcome", out).Msg("queues: match outcome")
	return nil
}
