package domain

import (
	"time"
)

// TripState is the lifecycle state of a booked trip.
type TripState string

const (
	TripPending   TripState = "pending"
	TripConfirmed TripState = "confirmed"
	TripCompleted TripState = "completed"
	TripCancelled TripState = "cancelled"
)

// Active reports whether the trip still occupies its vehicle's schedule.
func (s TripState) Active() bool {
	return s == TripPending || s == TripConfirmed
}

// Route is an origin/destination pair. Both ends are destination names as
// stored in the destinations table (e.g. "Temuco", "Aeropuerto").
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Reversed returns the route in the opposite direction.
func (r Route) Reversed() Route {
	return Route{Origin: r.Destination, Destination: r.Origin}
}

// Trip is a customer booking. A round trip carries its own return leg
// (ReturnDate/ReturnStart); the return duration comes from the destination
// record. VehicleID is nil until a vehicle is committed to the trip.
type Trip struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code,omitempty"`
	Route           Route      `json:"route"`
	Date            time.Time  `json:"date"` // calendar date, midnight local
	Start           TimeOfDay  `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
	RoundTrip       bool       `json:"round_trip"`
	ReturnDate      *time.Time `json:"return_date,omitempty"`
	ReturnStart     *TimeOfDay `json:"return_start,omitempty"`
	PassengerCount  int        `json:"passenger_count"`
	VehicleClass    string     `json:"vehicle_class"`
	VehicleID       *int64     `json:"vehicle_id,omitempty"`
	State           TripState  `json:"state"`
	Version         int        `json:"version"` // bumped on every assignment write
	CreatedAt       time.Time  `json:"created_at"`
}

// StartAt combines the trip's date and start time.
func (t Trip) StartAt() time.Time {
	return t.Start.On(t.Date)
}

// EndAt is the scheduled end of the outbound leg.
func (t Trip) EndAt() time.Time {
	return t.StartAt().Add(time.Duration(t.DurationMinutes) * time.Minute)
}

// VehicleState is the fleet-side state of a vehicle.
type VehicleState string

const (
	VehicleAvailable   VehicleState = "available"
	VehicleInService   VehicleState = "in_service"
	VehicleMaintenance VehicleState = "maintenance"
)

// Vehicle is a fleet unit. The engine only reads capacity and state; the
// fleet collaborator owns the rest.
type Vehicle struct {
	ID       int64        `json:"id"`
	Plate    string       `json:"plate,omitempty"`
	Class    string       `json:"class"`
	Capacity int          `json:"capacity"`
	State    VehicleState `json:"state"`
}

// Schedulable reports whether the vehicle can take new trips at all.
func (v Vehicle) Schedulable() bool {
	return v.State == VehicleAvailable || v.State == VehicleInService
}

// FareRuleKind selects which match criteria of a FareRule are meaningful.
type FareRuleKind string

const (
	RuleAdvanceWindow FareRuleKind = "advance_window"
	RuleWeekday       FareRuleKind = "weekday"
	RuleTimeOfDay     FareRuleKind = "time_of_day"
)

// FareRule is one entry of the priority-ordered fare rule list. Adjustments
// are additive across all matching rules; priority only orders the applied
// list for explainability. Match criteria are typed fields, not an encoded
// description string.
type FareRule struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Kind           FareRuleKind `json:"kind"`
	MinDays        int          `json:"min_days,omitempty"`     // advance_window
	MaxDays        *int         `json:"max_days,omitempty"`     // advance_window, nil = unbounded
	Weekdays       []int        `json:"weekdays,omitempty"`     // weekday, 0=Sunday..6=Saturday
	WindowStart    TimeOfDay    `json:"window_start,omitempty"` // time_of_day
	WindowEnd      TimeOfDay    `json:"window_end,omitempty"`   // time_of_day; start > end wraps midnight
	AdjustmentPct  float64      `json:"adjustment_pct"`         // positive = surcharge, negative = discount
	Priority       int          `json:"priority"`
	ExcludedRoutes []string     `json:"excluded_routes,omitempty"` // destination names
	Active         bool         `json:"active"`
}

// Excludes reports whether the rule skips the given destination.
func (r FareRule) Excludes(destination string) bool {
	for _, d := range r.ExcludedRoutes {
		if d == destination {
			return true
		}
	}
	return false
}

// HolidayEntry marks a calendar date as a holiday. Recurring entries match on
// month and day ignoring the year. A holiday may carry its own surcharge and
// may independently block bookings, either all day or within a time window,
// optionally only for specific destinations.
type HolidayEntry struct {
	ID               int64      `json:"id"`
	Date             time.Time  `json:"date"`
	Name             string     `json:"name"`
	Recurring        bool       `json:"recurring"`
	SurchargePct     *float64   `json:"surcharge_pct,omitempty"`
	BlocksBooking    bool       `json:"blocks_booking"`
	BlockStart       *TimeOfDay `json:"block_start,omitempty"`
	BlockEnd         *TimeOfDay `json:"block_end,omitempty"`
	OnlyDestinations []string   `json:"only_destinations,omitempty"`
	Active           bool       `json:"active"`
}

// Matches reports whether the entry applies to the given calendar date.
func (h HolidayEntry) Matches(date time.Time) bool {
	if !h.Active {
		return false
	}
	if h.Recurring {
		return h.Date.Month() == date.Month() && h.Date.Day() == date.Day()
	}
	return h.Date.Year() == date.Year() && h.Date.YearDay() == date.YearDay()
}

// AppliesTo reports whether the entry is scoped to the destination. An empty
// OnlyDestinations list means the entry applies everywhere.
func (h HolidayEntry) AppliesTo(destination string) bool {
	if len(h.OnlyDestinations) == 0 {
		return true
	}
	for _, d := range h.OnlyDestinations {
		if d == destination {
			return true
		}
	}
	return false
}

// BufferPolicy holds the tunable scheduling and discount parameters.
// Invariants: MinimumBufferMinutes <= OptimalBufferMinutes <=
// MaxDiscountBufferMinutes and DiscountFloorPct <= DiscountCeilingPct.
type BufferPolicy struct {
	MinimumBufferMinutes     int       `json:"minimum_buffer_minutes"`
	OptimalBufferMinutes     int       `json:"optimal_buffer_minutes"`
	MaxDiscountBufferMinutes int       `json:"max_discount_buffer_minutes"`
	DiscountFloorPct         float64   `json:"discount_floor_pct"`
	DiscountCeilingPct       float64   `json:"discount_ceiling_pct"`
	RepositioningCutoff      TimeOfDay `json:"repositioning_cutoff"`
}

// DefaultBufferPolicy returns the documented fallback used when no policy row
// exists: availability and pricing stay up even with an empty settings table.
func DefaultBufferPolicy() BufferPolicy {
	return BufferPolicy{
		MinimumBufferMinutes:     30,
		OptimalBufferMinutes:     60,
		MaxDiscountBufferMinutes: 180,
		DiscountFloorPct:         1.0,
		DiscountCeilingPct:       40.0,
		RepositioningCutoff:      TimeOfDay(20 * 60), // 20:00
	}
}

// Valid checks the policy's ordering invariants.
func (p BufferPolicy) Valid() bool {
	return p.MinimumBufferMinutes <= p.OptimalBufferMinutes &&
		p.OptimalBufferMinutes <= p.MaxDiscountBufferMinutes &&
		p.DiscountFloorPct <= p.DiscountCeilingPct
}

// DestinationInfo is the pricing and travel-time record for a destination.
type DestinationInfo struct {
	Name                  string  `json:"name"`
	BasePrice             float64 `json:"base_price"`
	TravelDurationMinutes int     `json:"travel_duration_minutes"`
	ReturnDurationMinutes int     `json:"return_duration_minutes"`
}

// OpportunityKind distinguishes the two empty-leg cases.
type OpportunityKind string

const (
	EmptyReturn   OpportunityKind = "empty_return"   // leg back to base after a drop-off
	EmptyOutbound OpportunityKind = "empty_outbound" // leg out to a pickup away from base
)

// OpportunityState is the lifecycle state of a repositioning offer.
type OpportunityState string

const (
	OpportunityAvailable OpportunityState = "available"
	OpportunityReserved  OpportunityState = "reserved"
	OpportunityExpired   OpportunityState = "expired"
)

// Terminal reports whether the state ends the offer's sellable life.
func (s OpportunityState) Terminal() bool {
	return s == OpportunityReserved || s == OpportunityExpired
}

// Opportunity is a discounted resale offer for a vehicle's otherwise-empty
// leg adjacent to a confirmed trip. Records are never deleted; expired and
// reserved rows are kept for reporting.
type Opportunity struct {
	ID           int64            `json:"id"`
	Code         string           `json:"code"`
	Kind         OpportunityKind  `json:"kind"`
	Route        Route            `json:"route"`
	Date         time.Time        `json:"date"`
	ApproxTime   TimeOfDay        `json:"approx_time"`
	DiscountPct  float64          `json:"discount_pct"`
	BasePrice    float64          `json:"base_price"`
	FinalPrice   float64          `json:"final_price"`
	VehicleClass string           `json:"vehicle_class"`
	SourceTripID int64            `json:"source_trip_id"`
	Reason       string           `json:"reason,omitempty"`
	State        OpportunityState `json:"state"`
	ValidUntil   time.Time        `json:"valid_until"`
	CreatedAt    time.Time        `json:"created_at"`
}

// OpportunitySubscription registers a customer for alerts about new
// opportunities on the given routes at or above a minimum discount.
type OpportunitySubscription struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Routes      []Route   `json:"routes"`
	MinDiscount float64   `json:"min_discount"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// WantsAlert reports whether the subscription matches an opportunity.
func (s OpportunitySubscription) WantsAlert(o *Opportunity) bool {
	if !s.Active || o.DiscountPct < s.MinDiscount {
		return false
	}
	for _, r := range s.Routes {
		if r == o.Route {
			return true
		}
	}
	return false
}

// OpportunityStats aggregates opportunity outcomes for a reporting period.
type OpportunityStats struct {
	Generated        int     `json:"generated"`
	Reserved         int     `json:"reserved"`
	Available        int     `json:"available"`
	Expired          int     `json:"expired"`
	ConversionPct    float64 `json:"conversion_pct"`
	RecoveredRevenue float64 `json:"recovered_revenue"`
}

// AvailabilityResult is the outcome of a feasibility check. The reason is one
// of the ReasonX constants when Feasible is false.
type AvailabilityResult struct {
	Feasible          bool    `json:"feasible"`
	CandidateVehicles []int64 `json:"candidate_vehicles,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

const (
	ReasonCapacityShortfall  = "capacity_shortfall"
	ReasonSchedulingConflict = "scheduling_conflict"
	ReasonDateBlocked        = "date_blocked"
)

// AppliedAdjustment is one fare rule (or holiday surcharge) that matched a
// quote, kept for explainability in priority order.
type AppliedAdjustment struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Pct    float64 `json:"pct"`
	Detail string  `json:"detail,omitempty"`
}

// FareQuote is the priced result for a route/date/time.
type FareQuote struct {
	Route         Route               `json:"route"`
	Date          time.Time           `json:"date"`
	Start         TimeOfDay           `json:"start_time"`
	BasePrice     float64             `json:"base_price"`
	AdjustmentPct float64             `json:"adjustment_pct"`
	FinalPrice    float64             `json:"final_price"`
	AdvanceDays   int                 `json:"advance_days"`
	Applied       []AppliedAdjustment `json:"applied,omitempty"`
}

// ReturnDiscount is the quote-time discount offered when a requested trip can
// ride an opposite-direction leg of an already scheduled vehicle.
type ReturnDiscount struct {
	DiscountPct   float64   `json:"discount_pct"`
	SourceTripID  int64     `json:"source_trip_id"`
	VehicleID     int64     `json:"vehicle_id"`
	WaitMinutes   int       `json:"wait_minutes"`
	VehicleFreeAt TimeOfDay `json:"vehicle_free_at"`
}

// DateBlock describes why a date (or a window within it) rejects bookings.
type DateBlock struct {
	Blocked bool       `json:"blocked"`
	Reason  string     `json:"reason,omitempty"`
	Start   *TimeOfDay `json:"start,omitempty"`
	End     *TimeOfDay `json:"end,omitempty"`
}
