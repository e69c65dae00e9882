package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// OpportunityRepo implements ports.OpportunityRepository. Rows are append
// plus state updates only; the table is the audit trail for the stats view.
type OpportunityRepo struct {
	db *DB
}

func NewOpportunityRepo(db *DB) *OpportunityRepo {
	return &OpportunityRepo{db: db}
}

const opportunityColumns = `
	id, code, kind, origin, destination, op_date, approx_minutes, discount_pct,
	base_price, final_price, COALESCE(vehicle_class, ''), source_trip_id,
	COALESCE(reason, ''), state, valid_until, created_at`

func (r *OpportunityRepo) Create(ctx context.Context, o *domain.Opportunity) error {
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO opportunities (code, kind, origin, destination, op_date,
			approx_minutes, discount_pct, base_price, final_price, vehicle_class,
			source_trip_id, reason, state, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, o.Code, string(o.Kind), o.Route.Origin, o.Route.Destination, o.Date,
		int(o.ApproxTime), o.DiscountPct, o.BasePrice, o.FinalPrice,
		nilIfEmpty(o.VehicleClass), o.SourceTripID, nilIfEmpty(o.Reason),
		string(o.State), o.ValidUntil, o.CreatedAt,
	).Scan(&o.ID)
}

func (r *OpportunityRepo) GetByCode(ctx context.Context, code string) (*domain.Opportunity, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT`+opportunityColumns+`
		FROM opportunities WHERE code = $1
	`, code)
	o, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *OpportunityRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM opportunities WHERE code = $1)
	`, code).Scan(&exists)
	return exists, err
}

func (r *OpportunityRepo) ExistsForTrip(ctx context.Context, tripID int64, kind domain.OpportunityKind) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM opportunities
			WHERE source_trip_id = $1 AND kind = $2 AND state <> 'expired'
		)
	`, tripID, string(kind)).Scan(&exists)
	return exists, err
}

func (r *OpportunityRepo) ListAvailable(ctx context.Context, filter domain.Route, date *time.Time) ([]domain.Opportunity, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT`+opportunityColumns+`
		FROM opportunities
		WHERE state = 'available'
		  AND ($1 = '' OR origin = $1)
		  AND ($2 = '' OR destination = $2)
		  AND ($3::date IS NULL OR op_date = $3)
		ORDER BY op_date, approx_minutes
	`, filter.Origin, filter.Destination, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

func (r *OpportunityRepo) ListAll(ctx context.Context) ([]domain.Opportunity, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT` + opportunityColumns + `
		FROM opportunities
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

func (r *OpportunityRepo) SetState(ctx context.Context, code string, state domain.OpportunityState) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE opportunities SET state = $2 WHERE code = $1
	`, code, string(state))
	return err
}

func (r *OpportunityRepo) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE opportunities
		SET state = 'expired'
		WHERE state = 'available' AND valid_until < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *OpportunityRepo) Stats(ctx context.Context, since time.Time) (*domain.OpportunityStats, error) {
	s := &domain.OpportunityStats{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE state = 'reserved'),
		       count(*) FILTER (WHERE state = 'available'),
		       count(*) FILTER (WHERE state = 'expired'),
		       COALESCE(sum(final_price) FILTER (WHERE state = 'reserved'), 0)
		FROM opportunities
		WHERE created_at >= $1
	`, since).Scan(&s.Generated, &s.Reserved, &s.Available, &s.Expired, &s.RecoveredRevenue)
	if err != nil {
		return nil, err
	}
	if s.Generated > 0 {
		s.ConversionPct = float64(s.Reserved) / float64(s.Generated) * 100
	}
	return s, nil
}

func scanOpportunity(row rowScanner) (*domain.Opportunity, error) {
	o := &domain.Opportunity{}
	var kind, state string
	var approx int

	err := row.Scan(&o.ID, &o.Code, &kind, &o.Route.Origin, &o.Route.Destination,
		&o.Date, &approx, &o.DiscountPct, &o.BasePrice, &o.FinalPrice,
		&o.VehicleClass, &o.SourceTripID, &o.Reason, &state, &o.ValidUntil, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.Kind = domain.OpportunityKind(kind)
	o.State = domain.OpportunityState(state)
	o.ApproxTime = domain.TimeOfDay(approx)
	return o, nil
}

func collectOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
