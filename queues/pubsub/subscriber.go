package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"agones-battleground/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Subscriber struct {
	projectID        string
	subscriptionName string
	credsFile        string
	client           *gpubsub.Client
	sub              *gpubsub.Subscription
}

func NewSubscriber(projectID, subscriptionName, credsFile string) *Subscriber {
	return &Subscriber{projectID: projectID, subscriptionName: subscriptionName, credsFile: credsFile}
}

// Start receives tickets until ctx is done. Malformed and invalid tickets are
// acked and dropped; handler errors nack the message for redelivery.
func (s *Subscriber) Start(ctx context.Context, handler func(context.Context, *queues.Ticket) error) error {
	if s.client == nil {
		var (
			client *gpubsub.Client
			err    error
		)
		if s.credsFile != "" {
			log.Debug().Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Str("credsFile", s.credsFile).Msg("pubsub: initializing subscriber with explicit credentials")
			client, err = gpubsub.NewClient(ctx, s.projectID, option.WithCredentialsFile(s.credsFile))
		} else {
			log.Debug().Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Msg("pubsub: initializing subscriber with default credentials")
			client, err = gpubsub.NewClient(ctx, s.projectID)
		}
		if err != nil {
			log.Error().Err(err).Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Msg("pubsub: failed to create client for subscriber")
			return err
		}
		s.client = client
		s.sub = client.Subscription(s.subscriptionName)
		log.Info().Str("subscription", s.subscriptionName).Msg("pubsub: subscriber initialized")
	}

	return s.sub.Receive(ctx, func(ctx context.Context, m *gpubsub.Message) {
		log.Debug().Str("messageID", m.ID).Int("size", len(m.Data)).Msg("pubsub: received message")
		recvAt := time.Now()
		var ticket queues.Ticket
		if err := json.Unmarshal(m.Data, &ticket); err != nil {
			log.Error().Err(err).Str("messageID", m.ID).Msg("pubsub: failed to unmarshal ticket")
			m.Ack()
			return
		}
		if err := ticket.Validate(); err != nil {
			log.Error().Err(err).Str("ticketId", ticket.TicketID).Msg("pubsub: invalid ticket payload")
			m.Ack()
			return
		}

		log.Info().Str("ticketId", ticket.TicketID).Str("playerId", ticket.PlayerID).Uint32("type", ticket.BattlegroundType).Str("action", ticket.Action).Msg("pubsub: handling ticket")
		if err := handler(ctx, &ticket); err != nil {
			log.Error().Err(err).Str("ticketId", ticket.TicketID).Msg("pubsub: handler failed; will retry")
			m.Nack()
			return
		}
		log.Debug().Str("ticketId", ticket.TicketID).Dur("latency", time.Since(recvAt)).Msg("pubsub: ticket handled")
		m.Ack()
	})
}
