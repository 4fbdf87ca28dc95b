package allocator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"agones-battleground/battleground"
	"agones-battleground/instance"
	"agones-battleground/metrics"
	"agones-battleground/queues"

	allocationv1 "agones.dev/agones/pkg/apis/allocation/v1"
	agonesclientset "agones.dev/agones/pkg/client/clientset/versioned"
	"github.com/rs/zerolog/log"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

var ErrNothingToCancel = errors.New("no pending join for player")

// Controller places matchmaking tickets: into a local match with a free slot,
// onto an overflow game server of the fleet, or into the wait queue.
type Controller struct {
	publisher       queues.Publisher
	instances       Instances
	queue           *QueueManager
	targetNamespace string
	fleet           string
	agones          agonesclientset.Interface
}

func NewController(p queues.Publisher, instances Instances, ns, fleet string) *Controller {
	return &Controller{
		publisher:       p,
		instances:       instances,
		queue:           NewQueueManager(),
		targetNamespace: ns,
		fleet:           fleet,
	}
}

// Queue exposes the wait queues for monitoring.
func (c *Controller) Queue() *QueueManager { return c.queue }

func (c *Controller) publish(ctx context.Context, res *queues.TicketResult, start time.Time, label string) error {
	duration := time.Since(start)
	metrics.TicketDuration.Observe(duration.Seconds())
	metrics.TicketsTotal.WithLabelValues(label).Inc()
	if err := c.publisher.PublishResult(ctx, res); err != nil {
		log.Error().Err(err).Str("ticketId", res.TicketID).Str("status", string(res.Status)).Msg("controller: failed to publish result")
		return err
	}
	log.Info().Str("ticketId", res.TicketID).Str("status", string(res.Status)).Dur("duration", duration).Msg("controller: ticket result published")
	return nil
}

// publishFailure builds and publishes a failure TicketResult with metrics.
func (c *Controller) publishFailure(ctx context.Context, t *queues.Ticket, start time.Time, message string) error {
	res := newResult(t, queues.StatusFailure)
	res.ErrorMessage = &message
	return c.publish(ctx, res, start, resultFailure)
}

// Handle places one ticket and publishes where it ended up. Returned errors
// mean the ticket should be redelivered.
func (c *Controller) Handle(ctx context.Context, t *queues.Ticket) error {
	start := time.Now()
	log.Info().Str("ticketId", t.TicketID).Str("playerId", t.PlayerID).Uint32("type", t.BattlegroundType).Str("action", t.Action).Msg("controller: handling ticket")

	if t.Cancel() {
		return c.cancel(ctx, t, start)
	}
	team, err := battleground.ParseTeam(t.Team)
	if err == nil && team == battleground.TeamNone {
		err = fmt.Errorf("team is required: %w", battleground.ErrInvalidTeam)
	}
	if err != nil {
		return c.publishFailure(ctx, t, start, err.Error())
	}

	id, err := c.assign(ctx, t, team)
	switch {
	case err == nil:
		return c.publishSlot(ctx, t, id, start)
	case isContextErr(err):
		return err
	case !errors.Is(err, instance.ErrNoSlot):
		return c.publishFailure(ctx, t, start, err.Error())
	}

	if c.fleet != "" {
		tok, err := c.allocate(ctx, t)
		if err == nil {
			res := newResult(t, queues.StatusAllocated)
			res.Token = &tok
			return c.publish(ctx, res, start, resultAllocated)
		}
		log.Warn().Err(err).Str("ticketId", t.TicketID).Str("fleet", c.fleet).Msg("controller: overflow allocation failed, queueing ticket")
	}

	pos := c.queue.Enqueue(battleground.TypeID(t.BattlegroundType), t)
	res := newResult(t, queues.StatusQueued)
	res.QueuePosition = &pos
	return c.publish(ctx, res, start, resultQueued)
}

func (c *Controller) assign(ctx context.Context, t *queues.Ticket, team battleground.Team) (uint32, error) {
	var id uint32
	err := c.instances.Exec(ctx, func() error {
		var err error
		id, err = c.instances.Assign(battleground.TypeID(t.BattlegroundType), team, t.PlayerID)
		return err
	})
	return id, err
}

func (c *Controller) publishSlot(ctx context.Context, t *queues.Ticket, id uint32, start time.Time) error {
	res := newResult(t, queues.StatusSuccess)
	res.Instance = id
	return c.publish(ctx, res, start, resultSlot)
}

// cancel withdraws a queued ticket or a pending invitation of the player.
func (c *Controller) cancel(ctx context.Context, t *queues.Ticket, start time.Time) error {
	removed := c.queue.RemovePlayer(battleground.TypeID(t.BattlegroundType), t.PlayerID)
	var withdrawn bool
	err := c.instances.Exec(ctx, func() error {
		withdrawn = c.instances.Withdraw(t.PlayerID)
		return nil
	})
	if err != nil {
		return err
	}
	if !removed && !withdrawn {
		return c.publishFailure(ctx, t, start, ErrNothingToCancel.Error())
	}
	return c.publish(ctx, newResult(t, queues.StatusCancelled), start, resultCancelled)
}

// Refill retries the queued tickets of a type in order and returns how many
// found a slot. Tickets that still do not fit keep their place.
func (c *Controller) Refill(ctx context.Context, typeID battleground.TypeID) (int, error) {
	placed := 0
	for _, entry := range c.queue.Entries(typeID) {
		start := time.Now()
		t := entry.Ticket
		team, _ := battleground.ParseTeam(t.Team)
		id, err := c.assign(ctx, t, team)
		switch {
		case isContextErr(err):
			return placed, err
		case errors.Is(err, instance.ErrNoSlot):
			continue
		}
		c.queue.RemoveFromQueue(typeID, t.TicketID)
		if err != nil {
			_ = c.publishFailure(ctx, t, start, err.Error())
			continue
		}
		log.Info().Str("ticketId", t.TicketID).Str("queueEntry", entry.ID).Dur("waited", time.Since(entry.Timestamp)).Msg("controller: queued ticket placed")
		if err := c.publishSlot(ctx, t, id, start); err != nil {
			return placed, err
		}
		placed++
	}
	return placed, nil
}

// RunRefill refills the queue of every type the scheduler reports until ctx
// is done.
func (c *Controller) RunRefill(ctx context.Context, updates <-chan battleground.TypeID) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-updates:
			if c.queue.GetQueueLength(t) == 0 {
				continue
			}
			n, err := c.Refill(ctx, t)
			if err != nil {
				log.Error().Err(err).Uint32("type", uint32(t)).Msg("controller: refill failed")
				continue
			}
			log.Debug().Uint32("type", uint32(t)).Int("placed", n).Int("waiting", c.queue.GetQueueLength(t)).Msg("controller: queue refilled")
		}
	}
}

// PublishOutcome publishes a finished match.
func (c *Controller) PublishOutcome(ctx context.Context, fs *battleground.FinalScore) error {
	if fs == nil {
		return nil
	}
	if err := c.publisher.PublishOutcome(ctx, outcomeFromScore(fs)); err != nil {
		log.Error().Err(err).Uint32("instance", fs.Instance).Msg("controller: failed to publish outcome")
		return err
	}
	return nil
}

// RunOutcomes publishes every outcome the scheduler emits until ctx is done.
func (c *Controller) RunOutcomes(ctx context.Context, outcomes <-chan *battleground.FinalScore) {
	for {
		select {
		case <-ctx.Done():
			return
		case fs := <-outcomes:
			_ = c.PublishOutcome(ctx, fs)
		}
	}
}

// allocate claims a game server of the overflow fleet and returns the base64
// "addr:port" routing token. The token is also written to the game server's
// annotations for the proxy.
func (c *Controller) allocate(ctx context.Context, t *queues.Ticket) (string, error) {
	if c.agones == nil {
		cli, err := newAgonesClient()
		if err != nil {
			return "", fmt.Errorf("agones client init failed: %w", err)
		}
		c.agones = cli
		log.Info().Msg("controller: Agones client initialized")
	}

	gsa := &allocationv1.GameServerAllocation{
		TypeMeta: metav1.TypeMeta{
			APIVersion: allocationv1.SchemeGroupVersion.String(),
			Kind:       "GameServerAllocation",
		},
		Spec: allocationv1.GameServerAllocationSpec{
			Selectors: []allocationv1.GameServerSelector{
				{
					LabelSelector: metav1.LabelSelector{
						MatchLabels: map[string]string{
							"agones.dev/fleet": c.fleet,
						},
					},
				},
			},
		},
	}

	ns := c.targetNamespace
	if ns == "" {
		ns = "default"
	}

	created, err := c.agones.AllocationV1().GameServerAllocations(ns).Create(ctx, gsa, metav1.CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("allocation create failed: %w", err)
	}
	if created.Status.State != allocationv1.GameServerAllocationAllocated {
		return "", fmt.Errorf("allocation not allocated (state=%s)", created.Status.State)
	}

	addr := created.Status.Address
	var port int32
	if len(created.Status.Ports) > 0 {
		port = created.Status.Ports[0].Port
	}
	if addr == "" || port == 0 {
		return "", errors.New("allocated GameServer missing address/port")
	}
	tok := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%d", addr, port)))

	name := created.Status.GameServerName
	if name == "" {
		return "", errors.New("allocated GameServer name is empty in allocation response")
	}
	gs, err := c.agones.AgonesV1().GameServers(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get GameServer '%s': %w", name, err)
	}
	if gs.ObjectMeta.Annotations == nil {
		gs.ObjectMeta.Annotations = make(map[string]string)
	}
	gs.ObjectMeta.Annotations["quilkin.dev/tokens"] = tok
	gs.ObjectMeta.Annotations["battleground.dev/ticket"] = t.TicketID
	if _, err := c.agones.AgonesV1().GameServers(ns).Update(ctx, gs, metav1.UpdateOptions{}); err != nil {
		return "", fmt.Errorf("failed to update GameServer with token: %w", err)
	}
	log.Info().Str("gameServerName", name).Str("addr", addr).Int32("port", port).Str("ticketId", t.TicketID).Msg("controller: overflow game server allocated")
	return tok, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// newAgonesClient returns an Agones typed clientset using in-cluster config or local kubeconfig.
func newAgonesClient() (agonesclientset.Interface, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return agonesclientset.NewForConfig(cfg)
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	cfg, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, err
	}
	return agonesclientset.NewForConfig(cfg)
}
