package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vgarrido/rutasur/internal/core/domain"
)

// Subscriber consumes engine events from JetStream. The notifier worker uses
// it to pick up freshly created opportunities.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

func (s *Subscriber) SubscribeOpportunityCreated(ctx context.Context, handler func(ctx context.Context, o *domain.Opportunity) error) error {
	sub, err := s.js.Subscribe("transfer.opportunity.created.>", func(msg *nats.Msg) {
		var o domain.Opportunity
		if err := json.Unmarshal(msg.Data, &o); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &o); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("opportunity-notifier"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeTripConfirmed(ctx context.Context, handler func(ctx context.Context, trip *domain.Trip) error) error {
	sub, err := s.js.Subscribe("transfer.trip.confirmed.>", func(msg *nats.Msg) {
		var trip domain.Trip
		if err := json.Unmarshal(msg.Data, &trip); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &trip); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("trip-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
