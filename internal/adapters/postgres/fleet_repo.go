package postgres

import (
	"context"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// FleetRepo implements ports.FleetRepository. The fleet table is maintained
// by the operations side; this engine only reads it.
type FleetRepo struct {
	db *DB
}

func NewFleetRepo(db *DB) *FleetRepo {
	return &FleetRepo{db: db}
}

func (r *FleetRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, plate, class, capacity, state
		FROM vehicles
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		var state string
		if err := rows.Scan(&v.ID, &v.Plate, &v.Class, &v.Capacity, &state); err != nil {
			return nil, err
		}
		v.State = domain.VehicleState(state)
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (r *FleetRepo) GetByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	v := &domain.Vehicle{}
	var state string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, plate, class, capacity, state
		FROM vehicles WHERE id = $1
	`, id).Scan(&v.ID, &v.Plate, &v.Class, &v.Capacity, &state)
	if err != nil {
		return nil, err
	}
	v.State = domain.VehicleState(state)
	return v, nil
}
