package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agones-battleground/queues"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	// Start in-memory Pub/Sub server
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial error: %#v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("client error: %#v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublisher_PublishResult(t *testing.T) {
	if testing.Short() {
		t.Skip("short")
	}
	client, srv := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func() *Publisher
		res     *queues.TicketResult
		wantErr bool
	}{
		{
			name: "success",
			setup: func() *Publisher {
				topic, err := client.CreateTopic(ctx, "results")
				if err != nil {
					t.Fatalf("create topic: %#v", err)
				}
				// Build publisher with injected client/topic
				return &Publisher{projectID: "test-project", resultTopic: "results", client: client, results: topic}
			},
			res: &queues.TicketResult{EnvelopeVersion: queues.EnvelopeVersion, Type: queues.TypeTicketResult, TicketID: "t1", Status: queues.StatusSuccess, Instance: 3},
		},
		{
			name: "missing topic error",
			setup: func() *Publisher {
				topic := client.Topic("missing-topic")
				return &Publisher{projectID: "test-project", resultTopic: "missing-topic", client: client, results: topic}
			},
			res:     &queues.TicketResult{EnvelopeVersion: queues.EnvelopeVersion, Type: queues.TypeTicketResult, TicketID: "t2", Status: queues.StatusFailure},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.setup()
			err := p.PublishResult(ctx, tt.res)
			gotErr := (err != nil)
			if gotErr != tt.wantErr {
				t.Errorf("PublishResult() error mismatch\ngotErr: %#v\nwantErr: %#v\nerr: %#v", gotErr, tt.wantErr, err)
			}
		})
	}

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got queues.TicketResult
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, uint32(3), got.Instance)
}

func TestPublisher_PublishOutcome(t *testing.T) {
	if testing.Short() {
		t.Skip("short")
	}
	client, srv := newTestClient(t)
	ctx := context.Background()

	out := &queues.MatchOutcome{EnvelopeVersion: queues.EnvelopeVersion, Type: queues.TypeMatchOutcome, Instance: 9, BattlegroundType: 2, Winner: "horde"}

	silent := &Publisher{client: client, results: client.Topic("results")}
	require.NoError(t, silent.PublishOutcome(ctx, out), "no outcome topic configured")
	assert.Len(t, srv.Messages(), 0)

	topic, err := client.CreateTopic(ctx, "outcomes")
	require.NoError(t, err)
	p := &Publisher{client: client, results: client.Topic("results"), outcomeTopic: "outcomes", outcome: topic}
	require.NoError(t, p.PublishOutcome(ctx, out))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got queues.MatchOutcome
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "horde", got.Winner)
	assert.Equal(t, uint32(9), got.Instance)
}

func TestSubscriber_Start(t *testing.T) {
	if testing.Short() {
		t.Skip("short")
	}
	client, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	topic, err := client.CreateTopic(ctx, "tickets")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "tickets-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("{not json"),
		[]byte(`{"ticketId":"bad","playerId":"p0"}`),
		[]byte(`{"ticketId":"t1","playerId":"p1","battlegroundType":2,"team":"horde"}`),
	}
	for _, data := range payloads {
		_, err := topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
		require.NoError(t, err)
	}

	s := &Subscriber{projectID: "test-project", subscriptionName: "tickets-sub", client: client, sub: sub}
	got := make(chan queues.Ticket, len(payloads))
	err = s.Start(ctx, func(_ context.Context, ticket *queues.Ticket) error {
		got <- *ticket
		cancel()
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 1, "only the valid ticket reaches the handler")
	ticket := <-got
	assert.Equal(t, "t1", ticket.TicketID)
	assert.Equal(t, uint32(2), ticket.BattlegroundType)
}
