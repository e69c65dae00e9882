package usecases

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
	"github.com/vgarrido/rutasur/internal/pkg/metrics"
)

const (
	// opportunityDiscountPct is the fixed resale discount for empty legs.
	// Quote-time return discounts interpolate instead; see DiscountForBuffer.
	opportunityDiscountPct = 50.0

	// Approximate departure padding after a drop-off / before a pickup.
	legPaddingMinutes = 30

	// Notice a customer needs to book an empty-return / empty-outbound leg.
	returnNoticeHours   = 2
	outboundNoticeHours = 3

	defaultCodeRetries = 5
)

// OpportunityService derives resellable repositioning trips from confirmed
// bookings and manages their lifecycle. Generation is idempotent per
// (source trip, kind): re-invoking for a trip that already has a non-terminal
// opportunity of a kind is a no-op for that kind.
type OpportunityService struct {
	opportunities ports.OpportunityRepository
	subscriptions ports.SubscriptionRepository
	trips         ports.TripRepository
	destinations  ports.DestinationRepository
	fares         *FareService
	publisher     ports.EventPublisher
	notifier      ports.NotificationService
	base          string
	codeRetries   int
	now           func() time.Time
}

// NewOpportunityService creates an OpportunityService. base is the operating
// base location used to orient empty legs. publisher and notifier may be nil;
// codeRetries <= 0 uses the default budget; a nil clock defaults to time.Now.
func NewOpportunityService(
	opportunities ports.OpportunityRepository,
	subscriptions ports.SubscriptionRepository,
	trips ports.TripRepository,
	destinations ports.DestinationRepository,
	fares *FareService,
	publisher ports.EventPublisher,
	notifier ports.NotificationService,
	base string,
	codeRetries int,
	clock func() time.Time,
) *OpportunityService {
	if codeRetries <= 0 {
		codeRetries = defaultCodeRetries
	}
	if clock == nil {
		clock = time.Now
	}
	return &OpportunityService{
		opportunities: opportunities,
		subscriptions: subscriptions,
		trips:         trips,
		destinations:  destinations,
		fares:         fares,
		publisher:     publisher,
		notifier:      notifier,
		base:          base,
		codeRetries:   codeRetries,
		now:           clock,
	}
}

// GenerateFromTrip derives up to two repositioning opportunities from a
// confirmed or completed trip: the empty leg back to base after the drop-off
// and the empty leg out to a pickup away from base. Legs whose validity
// window already elapsed are skipped. The returned opportunities are not yet
// persisted; OnTripConfirmed does that.
func (s *OpportunityService) GenerateFromTrip(ctx context.Context, trip *domain.Trip) ([]domain.Opportunity, error) {
	if trip.State != domain.TripConfirmed && trip.State != domain.TripCompleted {
		return nil, nil
	}

	var out []domain.Opportunity

	if trip.Route.Destination != s.base {
		o, err := s.emptyReturn(ctx, trip)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, *o)
		}
	}

	if trip.Route.Origin != s.base {
		o, err := s.emptyOutbound(ctx, trip)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, *o)
		}
	}

	return out, nil
}

// emptyReturn builds the leg back toward the trip's origin: the vehicle is
// free at the drop-off at tripStart+duration, departs ~30 minutes later, and
// the offer must be booked at least two hours before that departure.
func (s *OpportunityService) emptyReturn(ctx context.Context, trip *domain.Trip) (*domain.Opportunity, error) {
	exists, err := s.opportunities.ExistsForTrip(ctx, trip.ID, domain.EmptyReturn)
	if err != nil {
		return nil, fmt.Errorf("check existing empty_return: %w", err)
	}
	if exists {
		return nil, nil
	}

	departure := trip.EndAt().Add(legPaddingMinutes * time.Minute)
	validUntil := departure.Add(-returnNoticeHours * time.Hour)
	if !validUntil.After(s.now()) {
		return nil, nil
	}

	route := trip.Route.Reversed()
	reason := fmt.Sprintf("return leg after drop-off in %s", trip.Route.Destination)
	return s.build(ctx, trip, domain.EmptyReturn, route, departure, validUntil, reason)
}

// emptyOutbound builds the leg from base out to a pickup away from base: the
// vehicle must leave base travelDuration+30min before the trip start, and the
// offer closes three hours before that start.
func (s *OpportunityService) emptyOutbound(ctx context.Context, trip *domain.Trip) (*domain.Opportunity, error) {
	exists, err := s.opportunities.ExistsForTrip(ctx, trip.ID, domain.EmptyOutbound)
	if err != nil {
		return nil, fmt.Errorf("check existing empty_outbound: %w", err)
	}
	if exists {
		return nil, nil
	}

	dest, err := s.destinations.Get(ctx, trip.Route.Origin)
	if err != nil || dest == nil {
		slog.Warn("no destination info for empty_outbound, skipping",
			"trip", trip.ID, "origin", trip.Route.Origin, "error", err)
		return nil, nil
	}

	departure := trip.StartAt().
		Add(-time.Duration(dest.TravelDurationMinutes) * time.Minute).
		Add(-legPaddingMinutes * time.Minute)
	validUntil := trip.StartAt().Add(-outboundNoticeHours * time.Hour)
	if !validUntil.After(s.now()) {
		return nil, nil
	}

	route := domain.Route{Origin: s.base, Destination: trip.Route.Origin}
	reason := fmt.Sprintf("vehicle heads out before pickup in %s", trip.Route.Origin)
	return s.build(ctx, trip, domain.EmptyOutbound, route, departure, validUntil, reason)
}

// build prices the leg at the opportunity's own date and time — not the
// source trip's — and stamps it with a fresh unique code. Direct-booking
// perks (round-trip, online discounts) never apply to resale legs, so the
// base comes straight from the rule-adjusted destination fare.
func (s *OpportunityService) build(ctx context.Context, trip *domain.Trip, kind domain.OpportunityKind, route domain.Route, departure, validUntil time.Time, reason string) (*domain.Opportunity, error) {
	// The fare catalogue is keyed by the away-from-base city, whichever end
	// of the leg that is.
	priced := route.Destination
	if priced == s.base {
		priced = route.Origin
	}
	dest, err := s.destinations.Get(ctx, priced)
	if err != nil || dest == nil {
		slog.Warn("no destination info for opportunity, skipping",
			"trip", trip.ID, "kind", kind, "destination", priced, "error", err)
		return nil, nil
	}

	approx := domain.MinutesOfDay(departure)
	pct, _, err := s.fares.ComputeAdjustment(ctx, route, domain.Midnight(departure), approx)
	if err != nil {
		return nil, fmt.Errorf("price opportunity: %w", err)
	}
	basePrice := ApplyAdjustment(dest.BasePrice, pct)

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Opportunity{
		Code:         code,
		Kind:         kind,
		Route:        route,
		Date:         domain.Midnight(departure),
		ApproxTime:   approx,
		DiscountPct:  opportunityDiscountPct,
		BasePrice:    basePrice,
		FinalPrice:   ApplyAdjustment(basePrice, -opportunityDiscountPct),
		VehicleClass: trip.VehicleClass,
		SourceTripID: trip.ID,
		Reason:       reason,
		State:        domain.OpportunityAvailable,
		ValidUntil:   validUntil,
		CreatedAt:    s.now(),
	}, nil
}

// uniqueCode generates an OP-<YYYYMMDD>-<token> code and verifies it against
// existing rows, retrying with a fresh random token up to the configured
// budget. An exhausted budget is a hard failure, never an unbounded retry.
func (s *OpportunityService) uniqueCode(ctx context.Context) (string, error) {
	day := s.now().Format("20060102")
	for attempt := 0; attempt < s.codeRetries; attempt++ {
		code := fmt.Sprintf("OP-%s-%s", day, randomToken())
		exists, err := s.opportunities.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code %s: %w", code, err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeCollision
}

// randomToken returns an uppercase base36 token from 8 random bytes.
func randomToken() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	v := binary.BigEndian.Uint64(buf[:]) >> 16 // 48 bits ≈ 10 base36 chars max
	return strings.ToUpper(strconv.FormatUint(v, 36))
}

// OnTripConfirmed is the booking collaborator's entry point after a trip
// reaches confirmed/completed: it generates and persists opportunities,
// publishes creation events, and alerts matching subscribers. Event and
// notification failures are logged but never fail the booking.
func (s *OpportunityService) OnTripConfirmed(ctx context.Context, trip *domain.Trip) ([]domain.Opportunity, error) {
	generated, err := s.GenerateFromTrip(ctx, trip)
	if err != nil {
		return nil, err
	}

	var persisted []domain.Opportunity
	for i := range generated {
		o := &generated[i]
		if err := s.opportunities.Create(ctx, o); err != nil {
			slog.Error("persist opportunity failed", "code", o.Code, "trip", trip.ID, "error", err)
			continue
		}
		persisted = append(persisted, *o)
		metrics.OpportunitiesGenerated.WithLabelValues(string(o.Kind)).Inc()

		if s.publisher != nil {
			if err := s.publisher.PublishOpportunityCreated(ctx, o); err != nil {
				slog.Warn("publish opportunity event failed", "code", o.Code, "error", err)
			}
		}
		s.alertSubscribers(ctx, o)
	}
	return persisted, nil
}

func (s *OpportunityService) alertSubscribers(ctx context.Context, o *domain.Opportunity) {
	if s.notifier == nil || s.subscriptions == nil {
		return
	}
	subs, err := s.subscriptions.ListActive(ctx)
	if err != nil {
		slog.Warn("list subscriptions failed", "error", err)
		return
	}
	for _, sub := range subs {
		if !sub.WantsAlert(o) {
			continue
		}
		if err := s.notifier.SendOpportunityAlert(ctx, sub.Email, o); err != nil {
			slog.Warn("opportunity alert failed", "code", o.Code, "email", sub.Email, "error", err)
		}
	}
}

// SweepExpired transitions every available opportunity whose validity window
// closed before now to expired and returns the number of transitions. The
// sweep is pure and idempotent: a second run with no new input reports zero.
func (s *OpportunityService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.staleCodes(ctx, now)
	if err != nil {
		slog.Warn("listing stale opportunities for events failed", "error", err)
	}

	count, err := s.opportunities.ExpireBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire opportunities: %w", err)
	}

	if count > 0 && s.publisher != nil && len(stale) > 0 {
		if err := s.publisher.PublishOpportunityExpired(ctx, stale); err != nil {
			slog.Warn("publish expiry event failed", "error", err)
		}
	}
	return count, nil
}

func (s *OpportunityService) staleCodes(ctx context.Context, now time.Time) ([]string, error) {
	available, err := s.opportunities.ListAvailable(ctx, domain.Route{}, nil)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, o := range available {
		if o.ValidUntil.Before(now) {
			codes = append(codes, o.Code)
		}
	}
	return codes, nil
}

// RegenerateUpcoming re-runs generation over confirmed trips in [from, to).
// Per-trip failures are logged and skipped so one bad trip cannot abort the
// batch. Returns the number of opportunities created.
func (s *OpportunityService) RegenerateUpcoming(ctx context.Context, from, to time.Time) (int, error) {
	trips, err := s.trips.ListConfirmedBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list confirmed trips: %w", err)
	}

	total := 0
	for i := range trips {
		created, err := s.OnTripConfirmed(ctx, &trips[i])
		if err != nil {
			slog.Error("regeneration failed for trip", "trip", trips[i].ID, "error", err)
			continue
		}
		total += len(created)
	}
	return total, nil
}

// List returns available opportunities, expiring stale ones first so callers
// never see an offer that can no longer be booked. Origin/destination/date
// filters are optional.
func (s *OpportunityService) List(ctx context.Context, filter domain.Route, date *time.Time) ([]domain.Opportunity, error) {
	if _, err := s.opportunities.ExpireBefore(ctx, s.now()); err != nil {
		slog.Warn("pre-list expiry sweep failed", "error", err)
	}
	return s.opportunities.ListAvailable(ctx, filter, date)
}

// ListAll returns every opportunity regardless of state, for reporting.
func (s *OpportunityService) ListAll(ctx context.Context) ([]domain.Opportunity, error) {
	return s.opportunities.ListAll(ctx)
}

// Get loads an opportunity by code.
func (s *OpportunityService) Get(ctx context.Context, code string) (*domain.Opportunity, error) {
	o, err := s.opportunities.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load opportunity %s: %w", code, err)
	}
	if o == nil {
		return nil, ErrOpportunityNotFound
	}
	return o, nil
}

// Reserve books an available, still-valid opportunity.
func (s *OpportunityService) Reserve(ctx context.Context, code string) (*domain.Opportunity, error) {
	o, err := s.opportunities.GetByCode(ctx, code)
	if err != nil || o == nil {
		return nil, ErrOpportunityNotFound
	}
	if o.State != domain.OpportunityAvailable || o.ValidUntil.Before(s.now()) {
		return nil, ErrInvalidStateTransition
	}
	if err := s.opportunities.SetState(ctx, code, domain.OpportunityReserved); err != nil {
		return nil, fmt.Errorf("reserve %s: %w", code, err)
	}
	o.State = domain.OpportunityReserved
	metrics.OpportunitiesReserved.Inc()
	return o, nil
}

// SetState is the admin override for lifecycle corrections.
func (s *OpportunityService) SetState(ctx context.Context, code string, state domain.OpportunityState) error {
	switch state {
	case domain.OpportunityAvailable, domain.OpportunityReserved, domain.OpportunityExpired:
	default:
		return ErrInvalidStateTransition
	}
	if o, err := s.opportunities.GetByCode(ctx, code); err != nil || o == nil {
		return ErrOpportunityNotFound
	}
	return s.opportunities.SetState(ctx, code, state)
}

// Stats aggregates opportunity outcomes since the start of the current month.
func (s *OpportunityService) Stats(ctx context.Context) (*domain.OpportunityStats, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return s.opportunities.Stats(ctx, monthStart)
}

// Subscribe registers or updates an alert subscription. The minimum discount
// defaults to 40% when unset.
func (s *OpportunityService) Subscribe(ctx context.Context, sub *domain.OpportunitySubscription) error {
	if sub.Email == "" || len(sub.Routes) == 0 {
		return fmt.Errorf("subscription requires an email and at least one route")
	}
	if sub.MinDiscount <= 0 {
		sub.MinDiscount = 40
	}
	sub.Active = true
	return s.subscriptions.Upsert(ctx, sub)
}
