package postgres

import (
	"context"
	"database/sql"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// FareRuleRepo implements ports.FareRuleRepository over the fare_rules and
// holidays tables.
type FareRuleRepo struct {
	db *DB
}

func NewFareRuleRepo(db *DB) *FareRuleRepo {
	return &FareRuleRepo{db: db}
}

func (r *FareRuleRepo) ListActive(ctx context.Context) ([]domain.FareRule, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, kind, min_days, max_days, weekdays,
		       window_start_minutes, window_end_minutes,
		       adjustment_pct, priority, excluded_destinations, active
		FROM fare_rules
		WHERE active
		ORDER BY priority DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.FareRule
	for rows.Next() {
		var rule domain.FareRule
		var kind string
		var weekdays []int32
		var windowStart, windowEnd sql.NullInt32
		var excluded []string

		if err := rows.Scan(&rule.ID, &rule.Name, &kind, &rule.MinDays,
			&rule.MaxDays, &weekdays, &windowStart, &windowEnd,
			&rule.AdjustmentPct, &rule.Priority, &excluded, &rule.Active); err != nil {
			return nil, err
		}

		rule.Kind = domain.FareRuleKind(kind)
		for _, d := range weekdays {
			rule.Weekdays = append(rule.Weekdays, int(d))
		}
		rule.WindowStart = domain.TimeOfDay(windowStart.Int32)
		rule.WindowEnd = domain.TimeOfDay(windowEnd.Int32)
		rule.ExcludedRoutes = excluded
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *FareRuleRepo) ListHolidays(ctx context.Context) ([]domain.HolidayEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT holiday_date, name, recurring, surcharge_pct, blocks_booking,
		       block_start_minutes, block_end_minutes, only_destinations, active
		FROM holidays
		WHERE active
		ORDER BY holiday_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []domain.HolidayEntry
	for rows.Next() {
		var h domain.HolidayEntry
		var blockStart, blockEnd sql.NullInt32
		var only []string

		if err := rows.Scan(&h.Date, &h.Name, &h.Recurring, &h.SurchargePct,
			&h.BlocksBooking, &blockStart, &blockEnd, &only, &h.Active); err != nil {
			return nil, err
		}

		if blockStart.Valid {
			t := domain.TimeOfDay(blockStart.Int32)
			h.BlockStart = &t
		}
		if blockEnd.Valid {
			t := domain.TimeOfDay(blockEnd.Int32)
			h.BlockEnd = &t
		}
		h.OnlyDestinations = only
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
