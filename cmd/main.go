package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agones-battleground/admin"
	"agones-battleground/allocator"
	"agones-battleground/battleground"
	"agones-battleground/config"
	"agones-battleground/gameserver"
	"agones-battleground/gateway"
	"agones-battleground/health"
	"agones-battleground/instance"
	"agones-battleground/locale"
	"agones-battleground/matchlog"
	"agones-battleground/metrics"
	"agones-battleground/queues"
	qpubsub "agones-battleground/queues/pubsub"
	"agones-battleground/spawn"
	"agones-battleground/world"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func loadLocales(dir string) (*locale.Catalog, error) {
	if dir == "" {
		return locale.LoadEmbedded()
	}
	return locale.LoadDir(dir)
}

func main() {
	cfg := config.Load()
	setLogger(cfg.LogLevel)
	log.Info().Msgf("Starting agones-battleground version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	bgs, err := config.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load battleground templates")
	}
	catalog, err := loadLocales(cfg.LocaleDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load locales")
	}
	log.Info().Int("templates", len(bgs.Templates)).Strs("locales", catalog.Locales()).Msg("content loaded")

	var store *matchlog.Store
	if cfg.LogMatches {
		store, err = matchlog.Open(cfg.MatchLogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.MatchLogPath).Msg("failed to open match log")
		}
		defer store.Close()
	}

	gs := gameserver.Disabled()
	if cfg.AgonesSDK {
		if gs, err = gameserver.Connect(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to the Agones sidecar; set AGONES_SDK=false to run standalone")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The hub and the manager point at each other: the hub routes sessions to
	// the loop, matches reach participants through the hub.
	hub := gateway.NewHub(nil, gateway.WithPresence(gs))
	deps := battleground.Deps{
		Directory: hub,
		Gateway:   hub,
		Grantor:   hub,
		Localizer: catalog,
		Rewards:   bgs.Rewards,
		Raids:     instance.Raids{},
	}
	if store != nil {
		deps.Log = store
	}
	mgr, err := instance.New(instance.Config{
		Templates:    bgs.Templates,
		Settings:     cfg.Settings(),
		MaxInstances: cfg.MaxInstances,
	}, deps, func(tpl battleground.Template) spawn.World {
		return world.FromTemplate(tpl)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build instance manager")
	}
	hub.SetRouter(mgr)

	var publisher queues.Publisher = queues.LogPublisher{}
	if cfg.PubSubEnabled() {
		if cfg.CredentialsFile != "" {
			log.Info().Str("credsFile", cfg.CredentialsFile).Msg("using explicit Google credentials file")
		} else {
			log.Info().Msg("using default Google credentials (in-cluster or ambient)")
		}
		p := qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.ResultTopic, cfg.OutcomeTopic, cfg.CredentialsFile)
		defer p.Close()
		publisher = p
	} else {
		log.Warn().Msg("Pub/Sub not configured; tickets are accepted on /admin/tickets and results are logged")
	}
	controller := allocator.NewController(publisher, mgr, cfg.TargetNamespace, cfg.OverflowFleet)

	mux := http.NewServeMux()
	metrics.Register(mux)
	health.Register(mux, mgr)
	hub.Register(mux)
	var logs admin.Logs
	if store != nil {
		logs = store
	}
	admin.Register(mux, mgr, controller.Queue(), logs)
	admin.RegisterTickets(mux, controller)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := mgr.Run(ctx, cfg.TickInterval); err != nil {
			log.Error().Err(err).Msg("instance loop exited")
		}
	}()
	go controller.RunRefill(ctx, mgr.Updates())
	go controller.RunOutcomes(ctx, mgr.Outcomes())
	go gs.RunHealth(ctx, cfg.HealthInterval)
	go reportInstances(ctx, mgr, gs, cfg.HealthInterval)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	if cfg.PubSubEnabled() {
		subscriber := qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.TicketSubscription, cfg.CredentialsFile)
		go func() {
			log.Info().Str("subscription", cfg.TicketSubscription).Msg("starting subscriber loop")
			if err := subscriber.Start(ctx, controller.Handle); err != nil {
				// Non-recoverable: if we can't receive from Pub/Sub, terminate the process
				log.Fatal().Err(err).Msg("subscriber exited with fatal error; shutting down")
			}
		}()
	}

	if err := gs.Ready(); err != nil {
		log.Fatal().Err(err).Msg("failed to mark game server ready")
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	select {
	case <-loopDone:
		drainOutcomes(shutdownCtx, mgr, controller)
	case <-shutdownCtx.Done():
		log.Warn().Msg("instance loop did not stop in time")
	}
	if err := gs.Shutdown(); err != nil {
		log.Error().Err(err).Msg("game server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

// drainOutcomes publishes the outcomes of the matches ended by the shutdown.
func drainOutcomes(ctx context.Context, mgr *instance.Manager, controller *allocator.Controller) {
	for {
		select {
		case fs := <-mgr.Outcomes():
			_ = controller.PublishOutcome(ctx, fs)
		default:
			return
		}
	}
}

// reportInstances mirrors the live match count into the game server labels.
func reportInstances(ctx context.Context, mgr *instance.Manager, gs *gameserver.Server, interval time.Duration) {
	if !gs.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var n int
			if err := mgr.Exec(ctx, func() error { n = mgr.Len(); return nil }); err != nil {
				continue
			}
			if err := gs.ReportInstances(n); err != nil {
				log.Warn().Err(err).Msg("failed to report instance count")
			}
		}
	}
}
