package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
)

// BookingService commits trip requests: it re-checks feasibility at commit
// time, binds a vehicle under optimistic concurrency, and hands the confirmed
// trip to the opportunity pipeline. Quoting and availability previews stay on
// their own services; this one owns the write path.
type BookingService struct {
	trips         ports.TripRepository
	availability  *AvailabilityService
	fares         *FareService
	opportunities *OpportunityService
	publisher     ports.EventPublisher
	now           func() time.Time
}

// NewBookingService creates a BookingService. opportunities and publisher may
// be nil; a nil clock defaults to time.Now.
func NewBookingService(
	trips ports.TripRepository,
	availability *AvailabilityService,
	fares *FareService,
	opportunities *OpportunityService,
	publisher ports.EventPublisher,
	clock func() time.Time,
) *BookingService {
	if clock == nil {
		clock = time.Now
	}
	return &BookingService{
		trips:         trips,
		availability:  availability,
		fares:         fares,
		opportunities: opportunities,
		publisher:     publisher,
		now:           clock,
	}
}

// Request creates a pending trip after validating the calendar and quoting
// the fare. The quote is returned alongside the stored trip so the caller can
// present a firm price before committing.
func (s *BookingService) Request(ctx context.Context, trip *domain.Trip) (*domain.Trip, *domain.FareQuote, error) {
	if trip.PassengerCount <= 0 {
		return nil, nil, fmt.Errorf("passenger count must be positive")
	}

	block := s.availability.CheckDateBlocked(ctx, trip.Date, &trip.Start, trip.Route.Destination)
	if block.Blocked {
		return nil, nil, fmt.Errorf("%w: %s", ErrDateBlocked, block.Reason)
	}

	quote, err := s.fares.Quote(ctx, trip.Route, trip.Date, trip.Start)
	if err != nil {
		return nil, nil, err
	}
	if trip.DurationMinutes <= 0 {
		if info, derr := s.fares.destinations.Get(ctx, trip.Route.Destination); derr == nil && info != nil {
			trip.DurationMinutes = info.TravelDurationMinutes
		}
	}

	trip.State = domain.TripPending
	trip.CreatedAt = s.now()
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, nil, fmt.Errorf("create trip: %w", err)
	}
	return trip, quote, nil
}

// Commit confirms a pending trip. Feasibility is re-checked at commit time
// and a candidate vehicle is bound with a version check, so two concurrent
// commits can never double-book the same vehicle: the loser observes a
// version mismatch and retries against the remaining pool.
func (s *BookingService) Commit(ctx context.Context, tripID int64) (*domain.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil || trip == nil {
		return nil, fmt.Errorf("load trip %d: %w", tripID, err)
	}
	if trip.State != domain.TripPending {
		return nil, ErrInvalidStateTransition
	}

	result, err := s.availability.CheckAvailability(ctx, trip)
	if err != nil {
		return nil, err
	}
	if !result.Feasible {
		return nil, fmt.Errorf("%w: %s", ErrVehicleUnavailable, result.Reason)
	}

	assigned := false
	for _, vehicleID := range result.CandidateVehicles {
		err := s.trips.AssignVehicle(ctx, trip.ID, vehicleID, trip.Version)
		if err == nil {
			trip.VehicleID = &vehicleID
			trip.Version++
			assigned = true
			break
		}
		if errors.Is(err, ErrVehicleUnavailable) {
			slog.Debug("vehicle contended during commit, trying next candidate",
				"trip", trip.ID, "vehicle", vehicleID)
			continue
		}
		return nil, fmt.Errorf("assign vehicle %d: %w", vehicleID, err)
	}
	if !assigned {
		return nil, fmt.Errorf("%w: all candidates contended", ErrVehicleUnavailable)
	}

	trip.State = domain.TripConfirmed
	if s.publisher != nil {
		if err := s.publisher.PublishTripConfirmed(ctx, trip); err != nil {
			slog.Warn("publish trip confirmation failed", "trip", trip.ID, "error", err)
		}
	}
	if s.opportunities != nil {
		if _, err := s.opportunities.OnTripConfirmed(ctx, trip); err != nil {
			slog.Warn("opportunity generation failed after commit", "trip", trip.ID, "error", err)
		}
	}
	return trip, nil
}

// Get loads a trip by ID.
func (s *BookingService) Get(ctx context.Context, tripID int64) (*domain.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("load trip %d: %w", tripID, err)
	}
	return trip, nil
}

// Cancel moves a trip to cancelled. Completed trips cannot be cancelled.
func (s *BookingService) Cancel(ctx context.Context, tripID int64) error {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil || trip == nil {
		return fmt.Errorf("load trip %d: %w", tripID, err)
	}
	if trip.State == domain.TripCompleted || trip.State == domain.TripCancelled {
		return ErrInvalidStateTransition
	}
	return s.trips.SetState(ctx, tripID, domain.TripCancelled)
}
