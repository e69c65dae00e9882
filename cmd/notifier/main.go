package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/vgarrido/rutasur/internal/adapters/nats"
	"github.com/vgarrido/rutasur/internal/adapters/postgres"
	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/pkg/config"
	"github.com/vgarrido/rutasur/internal/pkg/logging"
	"github.com/vgarrido/rutasur/internal/workflows"
)

// The notifier bridges JetStream and Temporal: each opportunity.created
// event starts an alert workflow that fans out to matching subscribers.
func main() {
	cfg, err := config.Load("rutasur-notifier")
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

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.OpportunityAlertWorkflow)
	w.RegisterActivity(&workflows.AlertActivities{
		Opportunities: postgres.NewOpportunityRepo(db),
		Subscriptions: postgres.NewSubscriptionRepo(db),
		// Notifier left nil: activities log the alert instead of delivering.
		// Plug in an email or push implementation here.
	})

	// Start a workflow per published opportunity.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeOpportunityCreated(ctx, func(ctx context.Context, o *domain.Opportunity) error {
		opts := client.StartWorkflowOptions{
			ID:        "alert-" + o.Code,
			TaskQueue: cfg.Temporal.TaskQueue,
		}
		_, err := c.ExecuteWorkflow(ctx, opts, workflows.OpportunityAlertWorkflow, workflows.AlertInput{
			OpportunityCode: o.Code,
		})
		if err != nil {
			// Duplicate workflow IDs show up here on redelivery; either way
			// the alert is best-effort, so ack instead of retrying forever.
			slog.Error("start alert workflow", "code", o.Code, "error", err)
			return nil
		}
		slog.Info("alert workflow started", "code", o.Code)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("notifier worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
