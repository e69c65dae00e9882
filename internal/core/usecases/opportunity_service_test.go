package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
	"github.com/vgarrido/rutasur/internal/core/usecases"
)

func confirmedAirportTrip() *domain.Trip {
	return &domain.Trip{
		ID:              10,
		Route:           domain.Route{Origin: "Temuco", Destination: "Aeropuerto"},
		Date:            date(2025, time.December, 8),
		Start:           tod(8, 0),
		DurationMinutes: 45,
		PassengerCount:  2,
		VehicleClass:    "sedan",
		VehicleID:       int64Ptr(1),
		State:           domain.TripConfirmed,
	}
}

func opportunitySvc(repo *mockOpportunityRepo, subs *mockSubscriptionRepo, trips *mockTripRepo, pub *mockPublisher, notifier *mockNotifier, now time.Time) *usecases.OpportunityService {
	fares := usecases.NewFareService(
		&mockFareRuleRepo{}, airportDestinations(), trips, &mockSettingsRepo{}, nil,
		fixedClock(now),
	)
	var publisher ports.EventPublisher
	if pub != nil {
		publisher = pub
	}
	var notifications ports.NotificationService
	if notifier != nil {
		notifications = notifier
	}
	return usecases.NewOpportunityService(
		repo, subs, trips, airportDestinations(), fares,
		publisher, notifications,
		"Temuco", 5, fixedClock(now),
	)
}

func TestOpportunity_EmptyReturnGeneration(t *testing.T) {
	now := date(2025, time.December, 1)
	svc := opportunitySvc(&mockOpportunityRepo{}, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, now)

	got, err := svc.GenerateFromTrip(context.Background(), confirmedAirportTrip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single empty_return, got %d", len(got))
	}

	o := got[0]
	if o.Kind != domain.EmptyReturn {
		t.Errorf("expected empty_return, got %s", o.Kind)
	}
	if o.Route.Origin != "Aeropuerto" || o.Route.Destination != "Temuco" {
		t.Errorf("expected reversed route, got %+v", o.Route)
	}
	// Drop-off at 08:45, departure ~30 min later.
	if o.ApproxTime != tod(9, 15) {
		t.Errorf("expected approx departure 09:15, got %s", o.ApproxTime)
	}
	wantValid := time.Date(2025, time.December, 8, 7, 15, 0, 0, time.UTC)
	if !o.ValidUntil.Equal(wantValid) {
		t.Errorf("expected validity until %v, got %v", wantValid, o.ValidUntil)
	}
	if o.DiscountPct != 50 {
		t.Errorf("expected the fixed 50%% resale discount, got %v", o.DiscountPct)
	}
	if o.BasePrice != 25000 || o.FinalPrice != 12500 {
		t.Errorf("expected 25000 base, 12500 final, got %v / %v", o.BasePrice, o.FinalPrice)
	}
	if !strings.HasPrefix(o.Code, "OP-20251201-") {
		t.Errorf("expected code prefixed with generation date, got %s", o.Code)
	}
	if o.SourceTripID != 10 || o.State != domain.OpportunityAvailable {
		t.Errorf("unexpected opportunity fields: %+v", o)
	}
}

func TestOpportunity_EmptyOutboundGeneration(t *testing.T) {
	now := date(2025, time.December, 1)
	svc := opportunitySvc(&mockOpportunityRepo{}, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, now)

	// Pickup away from base: the vehicle must head out from Temuco first.
	trip := &domain.Trip{
		ID:              11,
		Route:           domain.Route{Origin: "Aeropuerto", Destination: "Temuco"},
		Date:            date(2025, time.December, 8),
		Start:           tod(14, 0),
		DurationMinutes: 45,
		VehicleClass:    "sedan",
		VehicleID:       int64Ptr(1),
		State:           domain.TripConfirmed,
	}
	got, err := svc.GenerateFromTrip(context.Background(), trip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single empty_outbound, got %d", len(got))
	}

	o := got[0]
	if o.Kind != domain.EmptyOutbound {
		t.Errorf("expected empty_outbound, got %s", o.Kind)
	}
	if o.Route.Origin != "Temuco" || o.Route.Destination != "Aeropuerto" {
		t.Errorf("expected base to pickup route, got %+v", o.Route)
	}
	// 45 min travel plus 30 min padding before the 14:00 pickup.
	if o.ApproxTime != tod(12, 45) {
		t.Errorf("expected approx departure 12:45, got %s", o.ApproxTime)
	}
	wantValid := time.Date(2025, time.December, 8, 11, 0, 0, 0, time.UTC)
	if !o.ValidUntil.Equal(wantValid) {
		t.Errorf("expected validity until %v, got %v", wantValid, o.ValidUntil)
	}
}

func TestOpportunity_GenerationIdempotent(t *testing.T) {
	repo := &mockOpportunityRepo{
		existsForTripFn: func(ctx context.Context, tripID int64, kind domain.OpportunityKind) (bool, error) {
			return true, nil
		},
	}
	svc := opportunitySvc(repo, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, date(2025, time.December, 1))

	got, err := svc.GenerateFromTrip(context.Background(), confirmedAirportTrip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("regeneration must not duplicate opportunities, got %d", len(got))
	}
}

func TestOpportunity_SkipsElapsedValidity(t *testing.T) {
	// Validity for the 08:45 drop-off closes at 07:15 the same day.
	now := time.Date(2025, time.December, 8, 7, 30, 0, 0, time.UTC)
	svc := opportunitySvc(&mockOpportunityRepo{}, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, now)

	got, err := svc.GenerateFromTrip(context.Background(), confirmedAirportTrip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no opportunity once the booking window closed, got %d", len(got))
	}
}

func TestOpportunity_PendingTripGeneratesNothing(t *testing.T) {
	svc := opportunitySvc(&mockOpportunityRepo{}, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, date(2025, time.December, 1))

	trip := confirmedAirportTrip()
	trip.State = domain.TripPending
	got, err := svc.GenerateFromTrip(context.Background(), trip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("pending trips must not produce opportunities, got %d", len(got))
	}
}

func TestOpportunity_CodeCollisionBudget(t *testing.T) {
	attempts := 0
	repo := &mockOpportunityRepo{
		codeExistsFn: func(ctx context.Context, code string) (bool, error) {
			attempts++
			return true, nil
		},
	}
	svc := opportunitySvc(repo, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, date(2025, time.December, 1))

	_, err := svc.GenerateFromTrip(context.Background(), confirmedAirportTrip())
	if !errors.Is(err, usecases.ErrCodeCollision) {
		t.Fatalf("expected ErrCodeCollision, got %v", err)
	}
	if attempts != 5 {
		t.Errorf("expected exactly 5 attempts before giving up, got %d", attempts)
	}
}

func TestOpportunity_OnTripConfirmedPublishesAndNotifies(t *testing.T) {
	var created []string
	repo := &mockOpportunityRepo{
		createFn: func(ctx context.Context, o *domain.Opportunity) error {
			created = append(created, o.Code)
			return nil
		},
	}
	subs := &mockSubscriptionRepo{
		listActiveFn: func(ctx context.Context) ([]domain.OpportunitySubscription, error) {
			return []domain.OpportunitySubscription{
				{
					Email:       "viajero@example.cl",
					Routes:      []domain.Route{{Origin: "Aeropuerto", Destination: "Temuco"}},
					MinDiscount: 40,
					Active:      true,
				},
				{
					Email:       "otra@example.cl",
					Routes:      []domain.Route{{Origin: "Temuco", Destination: "Pucon"}},
					MinDiscount: 40,
					Active:      true,
				},
			}, nil
		},
	}
	pub := &mockPublisher{}
	notifier := &mockNotifier{}
	svc := opportunitySvc(repo, subs, &mockTripRepo{}, pub, notifier, date(2025, time.December, 1))

	persisted, err := svc.OnTripConfirmed(context.Background(), confirmedAirportTrip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(persisted) != 1 || len(created) != 1 {
		t.Fatalf("expected one persisted opportunity, got %d persisted / %d created", len(persisted), len(created))
	}
	if len(pub.createdCodes) != 1 {
		t.Errorf("expected one creation event, got %d", len(pub.createdCodes))
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "viajero@example.cl" {
		t.Errorf("expected only the matching subscriber alerted, got %v", notifier.sent)
	}
}

func TestOpportunity_SweepExpired(t *testing.T) {
	now := date(2025, time.December, 8)
	stale := []domain.Opportunity{
		{Code: "OP-20251201-AAAA", State: domain.OpportunityAvailable, ValidUntil: now.Add(-time.Hour)},
		{Code: "OP-20251201-BBBB", State: domain.OpportunityAvailable, ValidUntil: now.Add(time.Hour)},
	}
	repo := &mockOpportunityRepo{
		listAvailableFn: func(ctx context.Context, filter domain.Route, date *time.Time) ([]domain.Opportunity, error) {
			return stale, nil
		},
		expireBeforeFn: func(ctx context.Context, cutoff time.Time) (int, error) {
			n := 0
			var kept []domain.Opportunity
			for _, o := range stale {
				if o.ValidUntil.Before(cutoff) {
					n++
					continue
				}
				kept = append(kept, o)
			}
			stale = kept
			return n, nil
		},
	}
	pub := &mockPublisher{}
	svc := opportunitySvc(repo, &mockSubscriptionRepo{}, &mockTripRepo{}, pub, nil, now)

	count, err := svc.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expiry, got %d", count)
	}
	if len(pub.expiredBroadcast) != 1 || len(pub.expiredBroadcast[0]) != 1 || pub.expiredBroadcast[0][0] != "OP-20251201-AAAA" {
		t.Errorf("expected the expired code broadcast, got %v", pub.expiredBroadcast)
	}

	// Second pass has nothing left to expire.
	count, err = svc.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("sweep must be idempotent, second run expired %d", count)
	}
}

func TestOpportunity_Reserve(t *testing.T) {
	now := date(2025, time.December, 8)
	transitions := map[string]domain.OpportunityState{}
	repo := &mockOpportunityRepo{
		getByCodeFn: func(ctx context.Context, code string) (*domain.Opportunity, error) {
			switch code {
			case "OP-OK":
				return &domain.Opportunity{Code: code, State: domain.OpportunityAvailable, ValidUntil: now.Add(time.Hour)}, nil
			case "OP-LATE":
				return &domain.Opportunity{Code: code, State: domain.OpportunityAvailable, ValidUntil: now.Add(-time.Hour)}, nil
			case "OP-TAKEN":
				return &domain.Opportunity{Code: code, State: domain.OpportunityReserved, ValidUntil: now.Add(time.Hour)}, nil
			}
			return nil, nil
		},
		setStateFn: func(ctx context.Context, code string, state domain.OpportunityState) error {
			transitions[code] = state
			return nil
		},
	}
	svc := opportunitySvc(repo, &mockSubscriptionRepo{}, &mockTripRepo{}, nil, nil, now)
	ctx := context.Background()

	o, err := svc.Reserve(ctx, "OP-OK")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.State != domain.OpportunityReserved || transitions["OP-OK"] != domain.OpportunityReserved {
		t.Errorf("expected OP-OK reserved, got %+v", o)
	}

	if _, err := svc.Reserve(ctx, "OP-LATE"); !errors.Is(err, usecases.ErrInvalidStateTransition) {
		t.Errorf("expected expired-window reservation rejected, got %v", err)
	}
	if _, err := svc.Reserve(ctx, "OP-TAKEN"); !errors.Is(err, usecases.ErrInvalidStateTransition) {
		t.Errorf("expected double reservation rejected, got %v", err)
	}
	if _, err := svc.Reserve(ctx, "OP-MISSING"); !errors.Is(err, usecases.ErrOpportunityNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestOpportunity_SubscribeDefaults(t *testing.T) {
	var saved *domain.OpportunitySubscription
	subs := &mockSubscriptionRepo{
		upsertFn: func(ctx context.Context, sub *domain.OpportunitySubscription) error {
			saved = sub
			return nil
		},
	}
	svc := opportunitySvc(&mockOpportunityRepo{}, subs, &mockTripRepo{}, nil, nil, date(2025, time.December, 1))

	err := svc.Subscribe(context.Background(), &domain.OpportunitySubscription{
		Email:  "viajero@example.cl",
		Routes: []domain.Route{{Origin: "Aeropuerto", Destination: "Temuco"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved == nil || saved.MinDiscount != 40 || !saved.Active {
		t.Errorf("expected the 40%% default and active flag, got %+v", saved)
	}

	if err := svc.Subscribe(context.Background(), &domain.OpportunitySubscription{Email: "x@y.cl"}); err == nil {
		t.Error("expected a subscription without routes rejected")
	}
}
