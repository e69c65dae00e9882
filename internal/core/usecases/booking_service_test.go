package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
	"github.com/vgarrido/rutasur/internal/core/usecases"
)

func bookingSvc(trips *mockTripRepo, fleet *mockFleetRepo, rules *mockFareRuleRepo, pub *mockPublisher) *usecases.BookingService {
	clock := fixedClock(date(2025, time.December, 1))
	availability := usecases.NewAvailabilityService(
		trips, fleet, airportDestinations(), &mockSettingsRepo{}, rules, clock)
	fares := usecases.NewFareService(
		rules, airportDestinations(), trips, &mockSettingsRepo{}, nil, clock)
	var publisher ports.EventPublisher
	if pub != nil {
		publisher = pub
	}
	return usecases.NewBookingService(trips, availability, fares, nil, publisher, clock)
}

func TestBooking_RequestQuotesAndStoresPending(t *testing.T) {
	var stored *domain.Trip
	trips := &mockTripRepo{
		createFn: func(ctx context.Context, trip *domain.Trip) error {
			trip.ID = 42
			stored = trip
			return nil
		},
	}
	svc := bookingSvc(trips, sedanFleet(), &mockFareRuleRepo{}, nil)

	trip := &domain.Trip{
		Route:          domain.Route{Origin: "Temuco", Destination: "Aeropuerto"},
		Date:           date(2025, time.December, 8),
		Start:          tod(8, 0),
		PassengerCount: 2,
	}
	created, quote, err := svc.Request(context.Background(), trip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != 42 || stored == nil || stored.State != domain.TripPending {
		t.Errorf("expected a stored pending trip, got %+v", stored)
	}
	if quote == nil || quote.FinalPrice != 25000 {
		t.Errorf("expected a 25000 quote, got %+v", quote)
	}
	if created.DurationMinutes != 45 {
		t.Errorf("expected the duration filled from the destination, got %d", created.DurationMinutes)
	}
}

func TestBooking_RequestRejectsBlockedDate(t *testing.T) {
	rules := &mockFareRuleRepo{
		listHolidaysFn: func(ctx context.Context) ([]domain.HolidayEntry, error) {
			return []domain.HolidayEntry{{
				Date: date(2025, time.December, 25), Name: "Navidad",
				BlocksBooking: true, Active: true,
			}}, nil
		},
	}
	svc := bookingSvc(&mockTripRepo{}, sedanFleet(), rules, nil)

	_, _, err := svc.Request(context.Background(), &domain.Trip{
		Route:          domain.Route{Origin: "Temuco", Destination: "Aeropuerto"},
		Date:           date(2025, time.December, 25),
		Start:          tod(8, 0),
		PassengerCount: 2,
	})
	if !errors.Is(err, usecases.ErrDateBlocked) {
		t.Fatalf("expected ErrDateBlocked, got %v", err)
	}
}

func TestBooking_CommitAssignsAndConfirms(t *testing.T) {
	pending := &domain.Trip{
		ID:              7,
		Route:           domain.Route{Origin: "Temuco", Destination: "Aeropuerto"},
		Date:            date(2025, time.December, 8),
		Start:           tod(8, 0),
		DurationMinutes: 45,
		PassengerCount:  2,
		State:           domain.TripPending,
		Version:         3,
	}
	var assignedVehicle int64
	var assignedVersion int
	trips := &mockTripRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Trip, error) {
			cp := *pending
			return &cp, nil
		},
		assignFn: func(ctx context.Context, tripID, vehicleID int64, version int) error {
			assignedVehicle = vehicleID
			assignedVersion = version
			return nil
		},
	}
	pub := &mockPublisher{}
	confirmed := false
	pub.tripConfirmedFn = func(ctx context.Context, trip *domain.Trip) error {
		confirmed = true
		return nil
	}
	svc := bookingSvc(trips, sedanFleet(), &mockFareRuleRepo{}, pub)

	trip, err := svc.Commit(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.State != domain.TripConfirmed {
		t.Errorf("expected confirmed, got %s", trip.State)
	}
	if assignedVehicle != 1 || assignedVersion != 3 {
		t.Errorf("expected vehicle 1 bound at version 3, got vehicle %d version %d", assignedVehicle, assignedVersion)
	}
	if trip.VehicleID == nil || *trip.VehicleID != 1 {
		t.Errorf("expected the vehicle recorded on the trip, got %v", trip.VehicleID)
	}
	if !confirmed {
		t.Error("expected a confirmation event")
	}
}

func TestBooking_CommitVersionConflict(t *testing.T) {
	pending := &domain.Trip{
		ID:              7,
		Route:           domain.Route{Origin: "Temuco", Destination: "Aeropuerto"},
		Date:            date(2025, time.December, 8),
		Start:           tod(8, 0),
		DurationMinutes: 45,
		PassengerCount:  2,
		State:           domain.TripPending,
	}
	trips := &mockTripRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Trip, error) {
			cp := *pending
			return &cp, nil
		},
		assignFn: func(ctx context.Context, tripID, vehicleID int64, version int) error {
			// Another commit won the race on every candidate.
			return usecases.ErrVehicleUnavailable
		},
	}
	svc := bookingSvc(trips, sedanFleet(), &mockFareRuleRepo{}, nil)

	_, err := svc.Commit(context.Background(), 7)
	if !errors.Is(err, usecases.ErrVehicleUnavailable) {
		t.Fatalf("expected ErrVehicleUnavailable after losing the race, got %v", err)
	}
}

func TestBooking_CommitRequiresPending(t *testing.T) {
	trips := &mockTripRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Trip, error) {
			return &domain.Trip{ID: id, State: domain.TripConfirmed}, nil
		},
	}
	svc := bookingSvc(trips, sedanFleet(), &mockFareRuleRepo{}, nil)

	_, err := svc.Commit(context.Background(), 7)
	if !errors.Is(err, usecases.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestBooking_CancelCompletedRejected(t *testing.T) {
	trips := &mockTripRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Trip, error) {
			return &domain.Trip{ID: id, State: domain.TripCompleted}, nil
		},
	}
	svc := bookingSvc(trips, sedanFleet(), &mockFareRuleRepo{}, nil)

	if err := svc.Cancel(context.Background(), 7); !errors.Is(err, usecases.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}
