package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// DestinationRepo implements ports.DestinationRepository. A missing
// destination reads as (nil, nil) so callers decide how to treat it.
type DestinationRepo struct {
	db *DB
}

func NewDestinationRepo(db *DB) *DestinationRepo {
	return &DestinationRepo{db: db}
}

func (r *DestinationRepo) Get(ctx context.Context, name string) (*domain.DestinationInfo, error) {
	d := &domain.DestinationInfo{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT name, base_price, travel_duration_minutes, return_duration_minutes
		FROM destinations WHERE name = $1
	`, name).Scan(&d.Name, &d.BasePrice, &d.TravelDurationMinutes, &d.ReturnDurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DestinationRepo) List(ctx context.Context) ([]domain.DestinationInfo, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, base_price, travel_duration_minutes, return_duration_minutes
		FROM destinations ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dests []domain.DestinationInfo
	for rows.Next() {
		var d domain.DestinationInfo
		if err := rows.Scan(&d.Name, &d.BasePrice, &d.TravelDurationMinutes, &d.ReturnDurationMinutes); err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, rows.Err()
}
