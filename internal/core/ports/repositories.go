package ports

import (
	"context"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// TripRepository persists customer trips.
type TripRepository interface {
	Create(ctx context.Context, trip *domain.Trip) error
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
	// ListOnDate returns every trip whose outbound leg or round-trip return
	// leg falls on the given calendar date.
	ListOnDate(ctx context.Context, date time.Time) ([]domain.Trip, error)
	// ListConfirmedBetween returns confirmed/completed trips in [from, to),
	// used by the periodic opportunity regeneration pass.
	ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Trip, error)
	// AssignVehicle binds a vehicle to a trip and marks it confirmed. The
	// update only succeeds when the stored row still carries the supplied
	// version; a stale version returns domain-level conflict so the caller
	// can retry or fail the booking.
	AssignVehicle(ctx context.Context, tripID, vehicleID int64, version int) error
	SetState(ctx context.Context, tripID int64, state domain.TripState) error
}

// FleetRepository reads the vehicle fleet. The fleet is owned by an external
// collaborator; this engine never writes to it.
type FleetRepository interface {
	List(ctx context.Context) ([]domain.Vehicle, error)
	GetByID(ctx context.Context, id int64) (*domain.Vehicle, error)
}

// FareRuleRepository reads the active fare rule set and the holiday calendar.
type FareRuleRepository interface {
	ListActive(ctx context.Context) ([]domain.FareRule, error)
	ListHolidays(ctx context.Context) ([]domain.HolidayEntry, error)
}

// SettingsRepository reads engine tunables. A missing policy row is reported
// as (nil, nil); callers fall back to domain.DefaultBufferPolicy.
type SettingsRepository interface {
	GetBufferPolicy(ctx context.Context) (*domain.BufferPolicy, error)
}

// DestinationRepository reads destination pricing and travel times.
type DestinationRepository interface {
	Get(ctx context.Context, name string) (*domain.DestinationInfo, error)
	List(ctx context.Context) ([]domain.DestinationInfo, error)
}

// OpportunityRepository persists repositioning opportunities. Rows are never
// deleted; lifecycle transitions go through SetState/ExpireBefore.
type OpportunityRepository interface {
	Create(ctx context.Context, o *domain.Opportunity) error
	GetByCode(ctx context.Context, code string) (*domain.Opportunity, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// ExistsForTrip reports whether a non-terminal opportunity of the given
	// kind already exists for the source trip (generation idempotency).
	ExistsForTrip(ctx context.Context, tripID int64, kind domain.OpportunityKind) (bool, error)
	ListAvailable(ctx context.Context, filter domain.Route, date *time.Time) ([]domain.Opportunity, error)
	ListAll(ctx context.Context) ([]domain.Opportunity, error)
	SetState(ctx context.Context, code string, state domain.OpportunityState) error
	// ExpireBefore flips every available opportunity whose validity window
	// closed before now to expired and returns how many rows changed.
	ExpireBefore(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context, since time.Time) (*domain.OpportunityStats, error)
}

// SubscriptionRepository persists opportunity alert subscriptions.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *domain.OpportunitySubscription) error
	ListActive(ctx context.Context) ([]domain.OpportunitySubscription, error)
}
