package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vgarrido/rutasur/internal/core/domain"
	"github.com/vgarrido/rutasur/internal/core/usecases"
)

// TripRepo implements ports.TripRepository.
type TripRepo struct {
	db *DB
}

func NewTripRepo(db *DB) *TripRepo {
	return &TripRepo{db: db}
}

const tripColumns = `
	id, COALESCE(code, ''), origin, destination, trip_date, start_minutes,
	duration_minutes, round_trip, return_date, return_start_minutes,
	passenger_count, COALESCE(vehicle_class, ''), vehicle_id, state, version, created_at`

func (r *TripRepo) Create(ctx context.Context, trip *domain.Trip) error {
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO trips (code, origin, destination, trip_date, start_minutes,
			duration_minutes, round_trip, return_date, return_start_minutes,
			passenger_count, vehicle_class, state, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13)
		RETURNING id
	`, nilIfEmpty(trip.Code), trip.Route.Origin, trip.Route.Destination,
		trip.Date, int(trip.Start), trip.DurationMinutes, trip.RoundTrip,
		trip.ReturnDate, minutesOrNil(trip.ReturnStart), trip.PassengerCount,
		nilIfEmpty(trip.VehicleClass), string(trip.State), trip.CreatedAt,
	).Scan(&trip.ID)
}

func (r *TripRepo) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT`+tripColumns+`
		FROM trips WHERE id = $1
	`, id)
	return scanTrip(row)
}

func (r *TripRepo) ListOnDate(ctx context.Context, date time.Time) ([]domain.Trip, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT`+tripColumns+`
		FROM trips
		WHERE trip_date = $1 OR (round_trip AND return_date = $1)
		ORDER BY start_minutes
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func (r *TripRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Trip, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT`+tripColumns+`
		FROM trips
		WHERE state IN ('confirmed', 'completed')
		  AND trip_date >= $1 AND trip_date < $2
		ORDER BY trip_date, start_minutes
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

// AssignVehicle binds a vehicle and confirms the trip in one statement. The
// version predicate makes the write conditional: zero rows means another
// writer got there first.
func (r *TripRepo) AssignVehicle(ctx context.Context, tripID, vehicleID int64, version int) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE trips
		SET vehicle_id = $2, state = 'confirmed', version = version + 1
		WHERE id = $1 AND version = $3 AND state = 'pending'
	`, tripID, vehicleID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return usecases.ErrVehicleUnavailable
	}
	return nil
}

func (r *TripRepo) SetState(ctx context.Context, tripID int64, state domain.TripState) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE trips SET state = $2, version = version + 1 WHERE id = $1
	`, tripID, string(state))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	t := &domain.Trip{}
	var start, returnStart sql.NullInt32
	var returnDate sql.NullTime
	var vehicleID sql.NullInt64
	var state string

	err := row.Scan(&t.ID, &t.Code, &t.Route.Origin, &t.Route.Destination,
		&t.Date, &start, &t.DurationMinutes, &t.RoundTrip, &returnDate,
		&returnStart, &t.PassengerCount, &t.VehicleClass, &vehicleID,
		&state, &t.Version, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Start = domain.TimeOfDay(start.Int32)
	t.State = domain.TripState(state)
	if returnDate.Valid {
		d := returnDate.Time
		t.ReturnDate = &d
	}
	if returnStart.Valid {
		s := domain.TimeOfDay(returnStart.Int32)
		t.ReturnStart = &s
	}
	if vehicleID.Valid {
		v := vehicleID.Int64
		t.VehicleID = &v
	}
	return t, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func minutesOrNil(t *domain.TimeOfDay) interface{} {
	if t == nil {
		return nil
	}
	return int(*t)
}
