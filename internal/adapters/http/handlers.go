package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/usecases"
	"github.com/vgarrido/rutasur/internal/pkg/metrics"
)

// routeQuery parses the origin/destination/date/time query parameters shared
// by the quote and availability endpoints.
func routeQuery(c *fiber.Ctx) (domain.Route, time.Time, domain.TimeOfDay, error) {
	origin := c.Query("origin")
	destination := c.Query("destination")
	if origin == "" || destination == "" {
		return domain.Route{}, time.Time{}, 0, errors.New("origin and destination are required")
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		return domain.Route{}, time.Time{}, 0, errors.New("date must be YYYY-MM-DD")
	}

	start, err := domain.ParseTimeOfDay(c.Query("time", "12:00"))
	if err != nil {
		return domain.Route{}, time.Time{}, 0, errors.New("time must be HH:MM")
	}

	return domain.Route{Origin: origin, Destination: destination}, date, start, nil
}

// QuoteHandler prices a route for a date and start time, including any
// pairing discount with a vehicle already scheduled in the opposite
// direction.
func QuoteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, date, start, err := routeQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		quote, err := deps.Fares.Quote(c.Context(), route, date, start)
		if errors.Is(err, usecases.ErrUnknownDestination) {
			return errNotFound(c, "unknown destination: "+route.Destination)
		}
		if err != nil {
			return errInternal(c, err.Error())
		}

		discount, err := deps.Fares.ReturnDiscount(c.Context(), route, date, start)
		if err != nil {
			return errInternal(c, err.Error())
		}
		metrics.QuotesComputed.WithLabelValues(route.Destination).Inc()

		resp := fiber.Map{"quote": quote}
		if discount != nil {
			resp["return_discount"] = fiber.Map{
				"discount_pct":     discount.DiscountPct,
				"discounted_price": usecases.ApplyAdjustment(quote.FinalPrice, -discount.DiscountPct),
				"wait_minutes":     discount.WaitMinutes,
				"vehicle_free_at":  discount.VehicleFreeAt,
			}
		}
		return c.JSON(resp)
	}
}

// AvailabilityHandler reports whether any vehicle can serve the requested
// trip, with the shortfall reason when none can.
func AvailabilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, date, start, err := routeQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		passengers := c.QueryInt("passengers", 1)
		if passengers <= 0 {
			return errBadRequest(c, "passengers must be positive")
		}
		duration := c.QueryInt("duration", 0)
		if duration <= 0 {
			if info, derr := deps.Destinations.Get(c.Context(), route.Destination); derr == nil && info != nil {
				duration = info.TravelDurationMinutes
			} else {
				return errNotFound(c, "unknown destination: "+route.Destination)
			}
		}

		candidate := &domain.Trip{
			Route:           route,
			Date:            date,
			Start:           start,
			DurationMinutes: duration,
			PassengerCount:  passengers,
			VehicleClass:    c.Query("class"),
		}

		if block := deps.Availability.CheckDateBlocked(c.Context(), date, &start, route.Destination); block.Blocked {
			metrics.AvailabilityChecks.WithLabelValues(string(domain.ReasonDateBlocked)).Inc()
			return c.JSON(domain.AvailabilityResult{Feasible: false, Reason: domain.ReasonDateBlocked})
		}

		result, err := deps.Availability.CheckAvailability(c.Context(), candidate)
		if err != nil {
			return errInternal(c, err.Error())
		}
		outcome := "feasible"
		if !result.Feasible {
			outcome = string(result.Reason)
		}
		metrics.AvailabilityChecks.WithLabelValues(outcome).Inc()
		return c.JSON(result)
	}
}

// tripRequest is the POST /v1/trips payload.
type tripRequest struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Passengers      int     `json:"passengers"`
	VehicleClass    string  `json:"vehicle_class,omitempty"`
	RoundTrip       bool    `json:"round_trip,omitempty"`
	ReturnDate      *string `json:"return_date,omitempty"`
	ReturnTime      *string `json:"return_time,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
}

// CreateTripHandler stores a pending trip and returns it with its quote.
func CreateTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tripRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Origin == "" || req.Destination == "" {
			return errBadRequest(c, "origin and destination are required")
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return errBadRequest(c, "date must be YYYY-MM-DD")
		}
		start, err := domain.ParseTimeOfDay(req.Time)
		if err != nil {
			return errBadRequest(c, "time must be HH:MM")
		}

		trip := &domain.Trip{
			Route:           domain.Route{Origin: req.Origin, Destination: req.Destination},
			Date:            date,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
			PassengerCount:  req.Passengers,
			VehicleClass:    req.VehicleClass,
			RoundTrip:       req.RoundTrip,
		}
		if req.RoundTrip {
			if req.ReturnDate == nil || req.ReturnTime == nil {
				return errBadRequest(c, "round trips require return_date and return_time")
			}
			rd, err := time.Parse("2006-01-02", *req.ReturnDate)
			if err != nil {
				return errBadRequest(c, "return_date must be YYYY-MM-DD")
			}
			rs, err := domain.ParseTimeOfDay(*req.ReturnTime)
			if err != nil {
				return errBadRequest(c, "return_time must be HH:MM")
			}
			trip.ReturnDate = &rd
			trip.ReturnStart = &rs
		}

		created, quote, err := deps.Bookings.Request(c.Context(), trip)
		if errors.Is(err, usecases.ErrDateBlocked) {
			return newError(c, 422, "date_blocked", err.Error())
		}
		if errors.Is(err, usecases.ErrUnknownDestination) {
			return errNotFound(c, "unknown destination: "+req.Destination)
		}
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.Status(201).JSON(fiber.Map{"trip": created, "quote": quote})
	}
}

// GetTripHandler returns a single trip by ID.
func GetTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "trip id must be numeric")
		}
		trip, err := deps.Bookings.Get(c.Context(), id)
		if err != nil || trip == nil {
			return errNotFound(c, "trip not found")
		}
		return c.JSON(trip)
	}
}

// CommitTripHandler confirms a pending trip, binding a vehicle.
func CommitTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "trip id must be numeric")
		}

		trip, err := deps.Bookings.Commit(c.Context(), id)
		switch {
		case errors.Is(err, usecases.ErrVehicleUnavailable):
			return errConflict(c, err.Error())
		case errors.Is(err, usecases.ErrInvalidStateTransition):
			return errConflict(c, "trip is not pending")
		case err != nil:
			return errInternal(c, err.Error())
		}
		return c.JSON(trip)
	}
}

// CancelTripHandler cancels a pending or confirmed trip.
func CancelTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return errBadRequest(c, "trip id must be numeric")
		}
		if err := deps.Bookings.Cancel(c.Context(), id); err != nil {
			if errors.Is(err, usecases.ErrInvalidStateTransition) {
				return errConflict(c, "trip cannot be cancelled")
			}
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// ListOpportunitiesHandler returns bookable repositioning offers, optionally
// filtered by origin, destination, and date.
func ListOpportunitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := domain.Route{
			Origin:      c.Query("origin"),
			Destination: c.Query("destination"),
		}
		var date *time.Time
		if raw := c.Query("date"); raw != "" {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return errBadRequest(c, "date must be YYYY-MM-DD")
			}
			date = &d
		}

		opps, err := deps.Opportunities.List(c.Context(), filter, date)
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Offset/limit pagination over the filtered list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		total := len(opps)
		if offset >= total {
			opps = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			opps = opps[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: opps, Pagination: pg})
	}
}

// GetOpportunityHandler returns one opportunity by code.
func GetOpportunityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := deps.Opportunities.Get(c.Context(), c.Params("code"))
		if errors.Is(err, usecases.ErrOpportunityNotFound) {
			return errNotFound(c, "opportunity not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(o)
	}
}

// ReserveOpportunityHandler books an available offer.
func ReserveOpportunityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := deps.Opportunities.Reserve(c.Context(), c.Params("code"))
		switch {
		case errors.Is(err, usecases.ErrOpportunityNotFound):
			return errNotFound(c, "opportunity not found")
		case errors.Is(err, usecases.ErrInvalidStateTransition):
			return errConflict(c, "opportunity is no longer available")
		case err != nil:
			return errInternal(c, err.Error())
		}
		return c.JSON(o)
	}
}

// OpportunityStatsHandler returns this month's generation and conversion
// numbers.
func OpportunityStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Opportunities.Stats(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// SetOpportunityStateHandler is the admin lifecycle override.
func SetOpportunityStateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			State string `json:"state"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		err := deps.Opportunities.SetState(c.Context(), c.Params("code"), domain.OpportunityState(req.State))
		switch {
		case errors.Is(err, usecases.ErrOpportunityNotFound):
			return errNotFound(c, "opportunity not found")
		case errors.Is(err, usecases.ErrInvalidStateTransition):
			return errBadRequest(c, "unknown state: "+req.State)
		case err != nil:
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// RegenerateOpportunitiesHandler re-runs generation over upcoming confirmed
// trips. Admin tooling uses it after rule or calendar changes.
func RegenerateOpportunitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := c.QueryInt("days", 7)
		if days <= 0 || days > 60 {
			return errBadRequest(c, "days must be between 1 and 60")
		}

		from := time.Now()
		created, err := deps.Opportunities.RegenerateUpcoming(c.Context(), from, from.AddDate(0, 0, days))
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"created": created})
	}
}

// subscriptionRequest is the POST /v1/subscriptions payload.
type subscriptionRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	MinDiscount float64 `json:"min_discount,omitempty"`
	Routes      []struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
	} `json:"routes"`
}

// SubscribeHandler registers an opportunity alert subscription.
func SubscribeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req subscriptionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		sub := &domain.OpportunitySubscription{
			Email:       req.Email,
			Name:        req.Name,
			MinDiscount: req.MinDiscount,
		}
		for _, r := range req.Routes {
			sub.Routes = append(sub.Routes, domain.Route{Origin: r.Origin, Destination: r.Destination})
		}

		if err := deps.Opportunities.Subscribe(c.Context(), sub); err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.Status(201).JSON(sub)
	}
}

// ListDestinationsHandler returns the priced destination catalogue.
func ListDestinationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dests, err := deps.Destinations.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(dests)
	}
}

// ListFleetHandler returns the vehicle fleet with states.
func ListFleetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicles, err := deps.Fleet.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(vehicles)
	}
}

// ListFareRulesHandler returns the active rule set, for admin screens.
func ListFareRulesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rules, err := deps.FareRules.ListActive(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(rules)
	}
}

// ListHolidaysHandler returns the holiday calendar.
func ListHolidaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		holidays, err := deps.FareRules.ListHolidays(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(holidays)
	}
}

// EngineStats holds row counts across the engine tables.
type EngineStats struct {
	Trips         int `json:"trips"`
	Vehicles      int `json:"vehicles"`
	Destinations  int `json:"destinations"`
	FareRules     int `json:"fare_rules"`
	Opportunities int `json:"opportunities"`
	Subscriptions int `json:"subscriptions"`
}

// EngineStatsHandler returns row counts from the engine tables.
func EngineStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats EngineStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM trips),
				(SELECT count(*) FROM vehicles),
				(SELECT count(*) FROM destinations),
				(SELECT count(*) FROM fare_rules),
				(SELECT count(*) FROM opportunities),
				(SELECT count(*) FROM opportunity_subscriptions)
		`)
		if err := row.Scan(&stats.Trips, &stats.Vehicles, &stats.Destinations,
			&stats.FareRules, &stats.Opportunities, &stats.Subscriptions); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}
