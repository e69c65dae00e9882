package workflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
)

// AlertActivities holds the activity implementations for the opportunity
// alert workflow.
type AlertActivities struct {
	Opportunities ports.OpportunityRepository
	Subscriptions ports.SubscriptionRepository
	Notifier      ports.NotificationService
	Clock         func() time.Time
}

func (a *AlertActivities) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

func (a *AlertActivities) load(ctx context.Context, code string) (*domain.Opportunity, error) {
	opp, err := a.Opportunities.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load opportunity %s: %w", code, err)
	}
	if opp == nil {
		return nil, fmt.Errorf("opportunity %s not found", code)
	}
	return opp, nil
}

// CheckOpportunityAvailable reports whether the opportunity can still be sold.
func (a *AlertActivities) CheckOpportunityAvailable(ctx context.Context, code string) (bool, error) {
	opp, err := a.load(ctx, code)
	if err != nil {
		return false, err
	}
	return opp.State == domain.OpportunityAvailable && !opp.ValidUntil.Before(a.now()), nil
}

// ResolveAlertRecipients returns the emails of active subscribers whose
// route and discount filters match the opportunity.
func (a *AlertActivities) ResolveAlertRecipients(ctx context.Context, code string) ([]string, error) {
	opp, err := a.load(ctx, code)
	if err != nil {
		return nil, err
	}

	subs, err := a.Subscriptions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	emails := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.WantsAlert(opp) {
			emails = append(emails, sub.Email)
		}
	}
	return emails, nil
}

// SendOpportunityAlert delivers a single alert to one subscriber.
func (a *AlertActivities) SendOpportunityAlert(ctx context.Context, email, code string) error {
	opp, err := a.load(ctx, code)
	if err != nil {
		return err
	}
	if a.Notifier == nil {
		log.Printf("ALERT (no notifier) → email=%s code=%s route=%s-%s discount=%.0f%%",
			email, opp.Code, opp.Route.Origin, opp.Route.Destination, opp.DiscountPct)
		return nil
	}
	return a.Notifier.SendOpportunityAlert(ctx, email, opp)
}
