package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
)

// AvailabilityService decides whether a candidate trip can be committed
// without conflicting with the fleet's existing schedule. Every check is a
// pure function over a snapshot of the repositories, so concurrent calls for
// independent trips are safe; the result is advisory until commit time.
type AvailabilityService struct {
	trips        ports.TripRepository
	fleet        ports.FleetRepository
	destinations ports.DestinationRepository
	settings     ports.SettingsRepository
	fareRules    ports.FareRuleRepository
	now          func() time.Time
}

// NewAvailabilityService creates an AvailabilityService. A nil clock defaults
// to time.Now.
func NewAvailabilityService(
	trips ports.TripRepository,
	fleet ports.FleetRepository,
	destinations ports.DestinationRepository,
	settings ports.SettingsRepository,
	fareRules ports.FareRuleRepository,
	clock func() time.Time,
) *AvailabilityService {
	if clock == nil {
		clock = time.Now
	}
	return &AvailabilityService{
		trips:        trips,
		fleet:        fleet,
		destinations: destinations,
		settings:     settings,
		fareRules:    fareRules,
		now:          clock,
	}
}

// bufferPolicy loads the active policy, falling back to the documented
// defaults when the settings table is empty or unreachable. Availability must
// never fail because configuration is missing.
func (s *AvailabilityService) bufferPolicy(ctx context.Context) domain.BufferPolicy {
	policy, err := s.settings.GetBufferPolicy(ctx)
	if err != nil {
		slog.Warn("buffer policy unavailable, using defaults", "error", err)
		return domain.DefaultBufferPolicy()
	}
	if policy == nil || !policy.Valid() {
		return domain.DefaultBufferPolicy()
	}
	return *policy
}

// CheckAvailability reports whether any vehicle can serve the candidate trip.
//
// A vehicle is removed from the pool when an existing pending/confirmed trip
// bound to it occupies an interval that overlaps the candidate's. Existing
// intervals are padded at the end with the minimum buffer; overlap is tested
// half-open, so a candidate starting exactly at a buffered end is feasible.
// Trips without an assigned vehicle constrain nothing.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, candidate *domain.Trip) (*domain.AvailabilityResult, error) {
	policy := s.bufferPolicy(ctx)

	vehicles, err := s.fleet.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fleet: %w", err)
	}

	pool := make(map[int64]bool)
	for _, v := range vehicles {
		if !v.Schedulable() || v.Capacity < candidate.PassengerCount {
			continue
		}
		if candidate.VehicleClass != "" && v.Class != candidate.VehicleClass {
			continue
		}
		pool[v.ID] = true
	}
	if len(pool) == 0 {
		return &domain.AvailabilityResult{
			Feasible: false,
			Reason:   domain.ReasonCapacityShortfall,
		}, nil
	}

	existing, err := s.trips.ListOnDate(ctx, candidate.Date)
	if err != nil {
		return nil, fmt.Errorf("list trips on %s: %w", candidate.Date.Format("2006-01-02"), err)
	}

	durations, err := s.returnDurations(ctx)
	if err != nil {
		slog.Warn("destination durations unavailable, using trip durations only", "error", err)
	}

	candidateIv := domain.NewInterval(candidate.StartAt(), candidate.DurationMinutes)

	for i := range existing {
		trip := &existing[i]
		if trip.ID == candidate.ID || !trip.State.Active() || trip.VehicleID == nil {
			continue
		}

		for _, iv := range s.occupiedIntervals(trip, candidate.Date, durations) {
			if iv.Extend(policy.MinimumBufferMinutes).Overlaps(candidateIv) {
				delete(pool, *trip.VehicleID)
				break
			}
		}
	}

	if len(pool) == 0 {
		return &domain.AvailabilityResult{
			Feasible: false,
			Reason:   domain.ReasonSchedulingConflict,
		}, nil
	}

	ids := make([]int64, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	return &domain.AvailabilityResult{Feasible: true, CandidateVehicles: ids}, nil
}

// occupiedIntervals returns the trip's legs that fall on the given date: the
// outbound leg, and for round trips the return leg with the destination's
// return duration.
func (s *AvailabilityService) occupiedIntervals(trip *domain.Trip, date time.Time, returnDurations map[string]int) []domain.Interval {
	var out []domain.Interval

	if domain.SameDate(trip.Date, date) {
		out = append(out, domain.NewInterval(trip.StartAt(), trip.DurationMinutes))
	}

	if trip.RoundTrip && trip.ReturnDate != nil && trip.ReturnStart != nil && domain.SameDate(*trip.ReturnDate, date) {
		dur := trip.DurationMinutes
		if d, ok := returnDurations[trip.Route.Destination]; ok && d > 0 {
			dur = d
		}
		out = append(out, domain.NewInterval(trip.ReturnStart.On(*trip.ReturnDate), dur))
	}

	return out
}

func (s *AvailabilityService) returnDurations(ctx context.Context) (map[string]int, error) {
	dests, err := s.destinations.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]int, len(dests))
	for _, d := range dests {
		m[d.Name] = d.ReturnDurationMinutes
	}
	return m, nil
}

// ValidateVehicleSlot checks the minimum-gap rule for one specific vehicle:
// the candidate start must sit at least the minimum buffer away from the end
// of every trip already bound to that vehicle on the same date. Trips without
// a vehicle pass trivially; the slot is re-validated once one is assigned.
func (s *AvailabilityService) ValidateVehicleSlot(ctx context.Context, vehicleID int64, date time.Time, start domain.TimeOfDay, excludeTripID int64) (bool, string, error) {
	policy := s.bufferPolicy(ctx)

	existing, err := s.trips.ListOnDate(ctx, date)
	if err != nil {
		return false, "", fmt.Errorf("list trips: %w", err)
	}

	startAt := start.On(date)
	for i := range existing {
		trip := &existing[i]
		if trip.ID == excludeTripID || !trip.State.Active() {
			continue
		}
		if trip.VehicleID == nil || *trip.VehicleID != vehicleID {
			continue
		}

		gap := startAt.Sub(trip.EndAt())
		if gap < 0 {
			gap = -gap
		}
		if int(gap.Minutes()) < policy.MinimumBufferMinutes {
			msg := fmt.Sprintf("requires at least %d minutes between trips, got %d",
				policy.MinimumBufferMinutes, int(gap.Minutes()))
			return false, msg, nil
		}
	}
	return true, "", nil
}

// CheckDateBlocked reports whether a holiday entry blocks bookings for the
// given date, optionally narrowed to a time of day and destination. Holiday
// calendar failures never block a booking.
func (s *AvailabilityService) CheckDateBlocked(ctx context.Context, date time.Time, start *domain.TimeOfDay, destination string) domain.DateBlock {
	holidays, err := s.fareRules.ListHolidays(ctx)
	if err != nil {
		slog.Warn("holiday calendar unavailable, not blocking", "error", err)
		return domain.DateBlock{}
	}

	for _, h := range holidays {
		if !h.BlocksBooking || !h.Matches(date) || !h.AppliesTo(destination) {
			continue
		}

		// No window means the whole day is blocked.
		if h.BlockStart == nil || h.BlockEnd == nil {
			return domain.DateBlock{Blocked: true, Reason: h.Name}
		}

		// A window with no requested time still warns the caller; with a
		// requested time, only block inside the window.
		if start == nil || start.InWindow(*h.BlockStart, *h.BlockEnd) {
			return domain.DateBlock{
				Blocked: true,
				Reason:  h.Name,
				Start:   h.BlockStart,
				End:     h.BlockEnd,
			}
		}
	}
	return domain.DateBlock{}
}
