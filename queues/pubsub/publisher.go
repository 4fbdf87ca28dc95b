package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"agones-battleground/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// Publisher writes ticket results and match outcomes to their topics. The
// client is created on first use.
type Publisher struct {
	projectID    string
	resultTopic  string
	outcomeTopic string
	credsFile    string

	mu      sync.Mutex
	client  *gpubsub.Client
	results *gpubsub.Topic
	outcome *gpubsub.Topic
}

func NewPublisher(projectID, resultTopic, outcomeTopic, credsFile string) *Publisher {
	return &Publisher{projectID: projectID, resultTopic: resultTopic, outcomeTopic: outcomeTopic, credsFile: credsFile}
}

func (p *Publisher) init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}
	var (
		client *gpubsub.Client
		err    error
	)
	if p.credsFile != "" {
		log.Debug().Str("projectID", p.projectID).Str("credsFile", p.credsFile).Msg("pubsub: initializing publisher with explicit credentials")
		client, err = gpubsub.NewClient(ctx, p.projectID, option.WithCredentialsFile(p.credsFile))
	} else {
		log.Debug().Str("projectID", p.projectID).Msg("pubsub: initializing publisher with default credentials")
		client, err = gpubsub.NewClient(ctx, p.projectID)
	}
	if err != nil {
		log.Error().Err(err).Str("projectID", p.projectID).Msg("pubsub: failed to create client for publisher")
		return err
	}
	p.client = client
	p.results = client.Topic(p.resultTopic)
	if p.outcomeTopic != "" {
		p.outcome = client.Topic(p.outcomeTopic)
	}
	log.Info().Str("results", p.resultTopic).Str("outcomes", p.outcomeTopic).Msg("pubsub: publisher initialized")
	return nil
}

func (p *Publisher) PublishResult(ctx context.Context, res *queues.TicketResult) error {
	if err := p.init(ctx); err != nil {
		return err
	}
	id, err := publish(ctx, p.results, res)
	if err != nil {
		log.Error().Err(err).Str("ticketId", res.TicketID).Msg("pubsub: failed to publish ticket result")
		return err
	}
	log.Debug().Str("messageID", id).Str("ticketId", res.TicketID).Str("status", string(res.Status)).Msg("pubsub: published ticket result")
	return nil
}

// PublishOutcome is a no-op when no outcome topic is configured.
func (p *Publisher) PublishOutcome(ctx context.Context, out *queues.MatchOutcome) error {
	if err := p.init(ctx); err != nil {
		return err
	}
	if p.outcome == nil {
		return nil
	}
	id, err := publish(ctx, p.outcome, out)
	if err != nil {
		log.Error().Err(err).Uint32("instance", out.Instance).Msg("pubsub: failed to publish match outcome")
		return err
	}
	log.Debug().Str("messageID", id).Uint32("instance", out.Instance).Str("winner", out.Winner).Msg("pubsub: published match outcome")
	return nil
}

func publish(ctx context.Context, topic *gpubsub.Topic, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	// Publish and wait for server ack
	return topic.Publish(ctx, &gpubsub.Message{Data: b}).Get(ctx)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	if p.results != nil {
		p.results.Stop()
	}
	if p.outcome != nil {
		p.outcome.Stop()
	}
	return p.client.Close()
}
