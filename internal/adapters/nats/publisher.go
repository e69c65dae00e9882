package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vgarrido/rutasur/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the engine streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "TRANSFER_TRIPS",
			Subjects:  []string{"transfer.trip.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			// Opportunities are short-lived offers; the websocket relay and
			// the notifier worker both listen here.
			Name:      "TRANSFER_OPPORTUNITIES",
			Subjects:  []string{"transfer.opportunity.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    48 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// ready reports whether a live JetStream context is attached. Events are
// optional: a publisher without one drops them instead of failing the
// domain operation.
func (p *Publisher) ready() bool {
	return p != nil && p.js != nil
}

func (p *Publisher) PublishTripConfirmed(ctx context.Context, trip *domain.Trip) error {
	if !p.ready() {
		return nil
	}
	data, err := json.Marshal(trip)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(fmt.Sprintf("transfer.trip.confirmed.%d", trip.ID), data)
	return err
}

func (p *Publisher) PublishOpportunityCreated(ctx context.Context, o *domain.Opportunity) error {
	if !p.ready() {
		return nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("transfer.opportunity.created."+o.Code, data)
	return err
}

func (p *Publisher) PublishOpportunityExpired(ctx context.Context, codes []string) error {
	if !p.ready() {
		return nil
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("transfer.opportunity.expired", data)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
