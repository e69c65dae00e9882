package ports

import (
	"context"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// EventPublisher publishes engine events to a message broker.
type EventPublisher interface {
	PublishTripConfirmed(ctx context.Context, trip *domain.Trip) error
	PublishOpportunityCreated(ctx context.Context, o *domain.Opportunity) error
	PublishOpportunityExpired(ctx context.Context, codes []string) error
}

// CacheService provides read-through caching for quotes and listings.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService delivers opportunity alerts to subscribers. Delivery
// transport (email, push) is owned by an external collaborator.
type NotificationService interface {
	SendOpportunityAlert(ctx context.Context, email string, o *domain.Opportunity) error
}
