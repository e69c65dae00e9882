package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/ports"
)

// quoteCacheTTLSeconds bounds how long a priced quote may be served from
// cache. Rules change rarely; the advance-days component changes at midnight.
const quoteCacheTTLSeconds = 300

// FareService computes the net percentage price adjustment for a trip from
// the holiday calendar and the priority-ordered fare rule list, and prices
// quotes against the destination's base fare. Adjustments are additive, so
// rule priority only orders the applied list for explainability; it never
// changes the numeric result.
type FareService struct {
	rules        ports.FareRuleRepository
	destinations ports.DestinationRepository
	trips        ports.TripRepository
	settings     ports.SettingsRepository
	cache        ports.CacheService
	now          func() time.Time
}

// NewFareService creates a FareService. Cache may be nil; a nil clock
// defaults to time.Now.
func NewFareService(
	rules ports.FareRuleRepository,
	destinations ports.DestinationRepository,
	trips ports.TripRepository,
	settings ports.SettingsRepository,
	cache ports.CacheService,
	clock func() time.Time,
) *FareService {
	if clock == nil {
		clock = time.Now
	}
	return &FareService{
		rules:        rules,
		destinations: destinations,
		trips:        trips,
		settings:     settings,
		cache:        cache,
		now:          clock,
	}
}

// ComputeAdjustment evaluates the holiday calendar and every active fare rule
// against the route/date/time and returns the summed signed percentage along
// with the applied entries in descending priority order.
func (s *FareService) ComputeAdjustment(ctx context.Context, route domain.Route, date time.Time, start domain.TimeOfDay) (float64, []domain.AppliedAdjustment, error) {
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list fare rules: %w", err)
	}
	holidays, err := s.rules.ListHolidays(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list holidays: %w", err)
	}

	var total float64
	var applied []domain.AppliedAdjustment

	// Holiday surcharge first; it stacks with the regular rules.
	for _, h := range holidays {
		if h.SurchargePct == nil || !h.Matches(date) || !h.AppliesTo(route.Destination) {
			continue
		}
		total += *h.SurchargePct
		applied = append(applied, domain.AppliedAdjustment{
			Name: "Holiday: " + h.Name,
			Kind: "holiday",
			Pct:  *h.SurchargePct,
		})
	}

	advanceDays := domain.DaysBetween(s.now(), date)
	weekday := int(date.Weekday())

	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	for _, rule := range rules {
		if !rule.Active || rule.Excludes(route.Destination) {
			continue
		}

		ok, detail := ruleApplies(rule, advanceDays, weekday, start)
		if !ok {
			continue
		}

		total += rule.AdjustmentPct
		applied = append(applied, domain.AppliedAdjustment{
			Name:   rule.Name,
			Kind:   string(rule.Kind),
			Pct:    rule.AdjustmentPct,
			Detail: detail,
		})
	}

	return total, applied, nil
}

func ruleApplies(rule domain.FareRule, advanceDays, weekday int, start domain.TimeOfDay) (bool, string) {
	switch rule.Kind {
	case domain.RuleAdvanceWindow:
		if advanceDays < rule.MinDays {
			return false, ""
		}
		if rule.MaxDays != nil && advanceDays > *rule.MaxDays {
			return false, ""
		}
		if rule.MaxDays != nil {
			return true, fmt.Sprintf("%d-%d days in advance", rule.MinDays, *rule.MaxDays)
		}
		return true, fmt.Sprintf("%d+ days in advance", rule.MinDays)

	case domain.RuleWeekday:
		for _, d := range rule.Weekdays {
			if d == weekday {
				return true, time.Weekday(weekday).String()
			}
		}
		return false, ""

	case domain.RuleTimeOfDay:
		if start.InWindow(rule.WindowStart, rule.WindowEnd) {
			return true, fmt.Sprintf("%s-%s", rule.WindowStart, rule.WindowEnd)
		}
		return false, ""
	}
	return false, ""
}

// Quote prices a route for a date and start time. The final price applies the
// summed adjustment to the catalogue base fare and never goes below zero.
// The catalogue is keyed by the away-from-base city, so a leg toward base
// (a return) is priced by its origin. Results are cached briefly; a route
// with neither end in the catalogue is ErrUnknownDestination.
func (s *FareService) Quote(ctx context.Context, route domain.Route, date time.Time, start domain.TimeOfDay) (*domain.FareQuote, error) {
	cacheKey := fmt.Sprintf("fare:%s:%s:%s:%s",
		route.Origin, route.Destination, date.Format("2006-01-02"), start)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var q domain.FareQuote
			if err := json.Unmarshal(data, &q); err == nil {
				return &q, nil
			}
		}
	}

	dest, err := s.destinations.Get(ctx, route.Destination)
	if err != nil || dest == nil {
		dest, err = s.destinations.Get(ctx, route.Origin)
	}
	if err != nil || dest == nil {
		slog.Warn("quote for unpriced route",
			"origin", route.Origin, "destination", route.Destination, "error", err)
		return nil, ErrUnknownDestination
	}

	pct, applied, err := s.ComputeAdjustment(ctx, route, date, start)
	if err != nil {
		return nil, err
	}

	quote := &domain.FareQuote{
		Route:         route,
		Date:          date,
		Start:         start,
		BasePrice:     dest.BasePrice,
		AdjustmentPct: pct,
		FinalPrice:    ApplyAdjustment(dest.BasePrice, pct),
		AdvanceDays:   domain.DaysBetween(s.now(), date),
		Applied:       applied,
	}

	if s.cache != nil {
		if data, err := json.Marshal(quote); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, quoteCacheTTLSeconds)
		}
	}
	return quote, nil
}

// ApplyAdjustment applies a signed percentage to a base price, rounding to
// whole currency units and clamping at zero.
func ApplyAdjustment(basePrice, pct float64) float64 {
	return math.Max(0, math.Round(basePrice*(1+pct/100)))
}

// ReturnDiscount looks for an already-scheduled, vehicle-assigned trip
// running opposite to the requested route on the same date whose vehicle
// would otherwise drive the requested leg empty. The discount grows linearly
// from the floor at the minimum buffer to the ceiling at the optimal buffer
// and stays flat up to the maximum discount buffer; past that the vehicle
// idles too long for the pairing to make sense. Requests after the
// repositioning cutoff get no discount.
func (s *FareService) ReturnDiscount(ctx context.Context, route domain.Route, date time.Time, start domain.TimeOfDay) (*domain.ReturnDiscount, error) {
	policy, err := s.settings.GetBufferPolicy(ctx)
	if err != nil || policy == nil || !policy.Valid() {
		def := domain.DefaultBufferPolicy()
		policy = &def
	}

	if start > policy.RepositioningCutoff {
		return nil, nil
	}

	trips, err := s.trips.ListOnDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}

	opposite := route.Reversed()
	requestedStart := start.On(date)

	var best *domain.ReturnDiscount
	for i := range trips {
		trip := &trips[i]
		if trip.Route != opposite || !trip.State.Active() || trip.VehicleID == nil {
			continue
		}

		freeAt := trip.EndAt()
		wait := int(requestedStart.Sub(freeAt).Minutes())

		pct := DiscountForBuffer(*policy, wait)
		if pct <= 0 {
			continue
		}

		if best == nil || pct > best.DiscountPct {
			best = &domain.ReturnDiscount{
				DiscountPct:   pct,
				SourceTripID:  trip.ID,
				VehicleID:     *trip.VehicleID,
				WaitMinutes:   wait,
				VehicleFreeAt: domain.MinutesOfDay(freeAt),
			}
		}
	}
	return best, nil
}

// DiscountForBuffer maps a repositioning wait (in minutes) to a discount
// percentage under the given policy. Zero outside
// [MinimumBufferMinutes, MaxDiscountBufferMinutes]; linear between floor and
// ceiling up to the optimal buffer, then flat. Monotonically non-decreasing
// over the valid range.
func DiscountForBuffer(policy domain.BufferPolicy, waitMinutes int) float64 {
	if waitMinutes < policy.MinimumBufferMinutes || waitMinutes > policy.MaxDiscountBufferMinutes {
		return 0
	}

	progress := 1.0
	if span := policy.OptimalBufferMinutes - policy.MinimumBufferMinutes; span > 0 && waitMinutes < policy.OptimalBufferMinutes {
		progress = float64(waitMinutes-policy.MinimumBufferMinutes) / float64(span)
	}

	pct := policy.DiscountFloorPct + (policy.DiscountCeilingPct-policy.DiscountFloorPct)*progress
	return math.Min(math.Round(pct*100)/100, policy.DiscountCeilingPct)
}
