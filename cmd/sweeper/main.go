package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/vgarrido/rutasur/internal/adapters/nats"
	"github.com/vgarrido/rutasur/internal/adapters/postgres"
	"github.com/vgarrido/rutasur/internal/core/ports"
	"github.com/vgarrido/rutasur/internal/core/usecases"
	"github.com/vgarrido/rutasur/internal/pkg/config"
	"github.com/vgarrido/rutasur/internal/pkg/logging"
	"github.com/vgarrido/rutasur/internal/pkg/metrics"
)

// The sweeper keeps the opportunity board honest: it expires offers whose
// validity window has passed and re-derives offers for upcoming confirmed
// trips, so a missed confirmation event eventually self-heals.
func main() {
	cfg, err := config.Load("rutasur-sweeper")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// The publisher interface must stay nil when the connection failed, or
	// the service's nil guard would pass a dead client through.
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, sweeping without events", "error", err)
	} else {
		publisher = nc
		defer nc.Close()
	}

	tripRepo := postgres.NewTripRepo(db)
	destinationRepo := postgres.NewDestinationRepo(db)
	fareRuleRepo := postgres.NewFareRuleRepo(db)
	settingsRepo := postgres.NewSettingsRepo(db)
	opportunityRepo := postgres.NewOpportunityRepo(db)
	subscriptionRepo := postgres.NewSubscriptionRepo(db)

	fareSvc := usecases.NewFareService(fareRuleRepo, destinationRepo, tripRepo, settingsRepo, nil, nil)
	opportunitySvc := usecases.NewOpportunityService(
		opportunityRepo, subscriptionRepo, tripRepo, destinationRepo,
		fareSvc, publisher, nil, cfg.Engine.BaseLocation, cfg.Engine.CodeRetries, nil,
	)

	interval := time.Duration(cfg.Engine.SweepIntervalSeconds) * time.Second
	window := time.Duration(cfg.Engine.RegenerateWindowDays) * 24 * time.Hour

	slog.Info("sweeper starting", "interval", interval, "regenerate_window_days", cfg.Engine.RegenerateWindowDays)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately
	sweep(ctx, opportunitySvc, window)

	for {
		select {
		case <-ticker.C:
			sweep(ctx, opportunitySvc, window)
		case <-ctx.Done():
			return
		case sig := <-quit:
			slog.Info("shutting down sweeper", "signal", sig.String())
			cancel()
			return
		}
	}
}

func sweep(ctx context.Context, svc *usecases.OpportunityService, window time.Duration) {
	start := time.Now()
	now := time.Now()

	expired, err := svc.SweepExpired(ctx, now)
	if err != nil {
		slog.Error("expiry sweep failed", "error", err)
	} else if expired > 0 {
		metrics.OpportunitiesExpired.Add(float64(expired))
		slog.Info("expired stale opportunities", "count", expired)
	}

	created, err := svc.RegenerateUpcoming(ctx, now, now.Add(window))
	if err != nil {
		slog.Error("regeneration failed", "error", err)
	} else if created > 0 {
		slog.Info("regenerated opportunities", "count", created)
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}
