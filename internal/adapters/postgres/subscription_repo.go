package postgres

import (
	"context"
	"encoding/json"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// SubscriptionRepo implements ports.SubscriptionRepository. Route lists are
// stored as jsonb; one row per email.
type SubscriptionRepo struct {
	db *DB
}

func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *domain.OpportunitySubscription) error {
	routes, err := json.Marshal(sub.Routes)
	if err != nil {
		return err
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO opportunity_subscriptions (email, name, routes, min_discount, active, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, routes = EXCLUDED.routes,
		    min_discount = EXCLUDED.min_discount, active = EXCLUDED.active
		RETURNING id
	`, sub.Email, nilIfEmpty(sub.Name), routes, sub.MinDiscount, sub.Active).Scan(&sub.ID)
}

func (r *SubscriptionRepo) ListActive(ctx context.Context) ([]domain.OpportunitySubscription, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, email, COALESCE(name, ''), routes, min_discount, active, created_at
		FROM opportunity_subscriptions
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.OpportunitySubscription
	for rows.Next() {
		var s domain.OpportunitySubscription
		var routes []byte
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &routes, &s.MinDiscount, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(routes, &s.Routes); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
