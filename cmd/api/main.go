package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/vgarrido/rutasur/internal/adapters/http"
	natsadapter "github.com/vgarrido/rutasur/internal/adapters/nats"
	"github.com/vgarrido/rutasur/internal/adapters/postgres"
	"github.com/vgarrido/rutasur/internal/adapters/valkey"
	"github.com/vgarrido/rutasur/internal/core/ports"
	"github.com/vgarrido/rutasur/internal/core/usecases"
	"github.com/vgarrido/rutasur/internal/pkg/config"
	"github.com/vgarrido/rutasur/internal/pkg/logging"
	"github.com/vgarrido/rutasur/internal/pkg/metrics"
	"github.com/vgarrido/rutasur/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("rutasur-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}()

	// Cache is optional; quotes fall through to the rules on a miss. The
	// services take the interface, which must stay nil when the concrete
	// client failed to connect.
	var quoteCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		quoteCache = cache
		defer cache.Close()
	}

	// NATS is optional the same way; events are skipped when it is down.
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		publisher = nc
		defer nc.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	tripRepo := postgres.NewTripRepo(db)
	fleetRepo := postgres.NewFleetRepo(db)
	destinationRepo := postgres.NewDestinationRepo(db)
	fareRuleRepo := postgres.NewFareRuleRepo(db)
	settingsRepo := postgres.NewSettingsRepo(db)
	opportunityRepo := postgres.NewOpportunityRepo(db)
	subscriptionRepo := postgres.NewSubscriptionRepo(db)

	// Use cases
	availabilitySvc := usecases.NewAvailabilityService(tripRepo, fleetRepo, destinationRepo, settingsRepo, fareRuleRepo, nil)
	fareSvc := usecases.NewFareService(fareRuleRepo, destinationRepo, tripRepo, settingsRepo, quoteCache, nil)
	opportunitySvc := usecases.NewOpportunityService(
		opportunityRepo, subscriptionRepo, tripRepo, destinationRepo,
		fareSvc, publisher, nil, cfg.Engine.BaseLocation, cfg.Engine.CodeRetries, nil,
	)
	bookingSvc := usecases.NewBookingService(tripRepo, availabilitySvc, fareSvc, opportunitySvc, publisher, nil)

	deps := &http.Dependencies{
		Availability:  availabilitySvc,
		Fares:         fareSvc,
		Bookings:      bookingSvc,
		Opportunities: opportunitySvc,
		Fleet:         fleetRepo,
		Destinations:  destinationRepo,
		FareRules:     fareRuleRepo,
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Rutasur API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.rutasur.cl",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
