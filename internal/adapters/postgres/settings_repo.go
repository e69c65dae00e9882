package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// SettingsRepo implements ports.SettingsRepository. The engine_settings table
// holds a single row; a missing row reads as (nil, nil) and callers fall back
// to the built-in defaults.
type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) GetBufferPolicy(ctx context.Context) (*domain.BufferPolicy, error) {
	p := &domain.BufferPolicy{}
	var cutoff int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT min_buffer_minutes, optimal_buffer_minutes, max_discount_buffer_minutes,
		       discount_floor_pct, discount_ceiling_pct, repositioning_cutoff_minutes
		FROM engine_settings LIMIT 1
	`).Scan(&p.MinimumBufferMinutes, &p.OptimalBufferMinutes, &p.MaxDiscountBufferMinutes,
		&p.DiscountFloorPct, &p.DiscountCeilingPct, &cutoff)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.RepositioningCutoff = domain.TimeOfDay(cutoff)
	return p, nil
}
