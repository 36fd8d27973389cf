package repository

import (
	"context"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jmoiron/sqlx"
)

const flightColumns = `id, flight_number, from_airport, to_airport, departure_time, arrival_time, base_fare_cents, status, created_at, updated_at`

type PGFlightRepository struct {
	db *sqlx.DB
}

func NewFlightRepository(db *sqlx.DB) FlightRepository {
	return &PGFlightRepository{db: db}
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	flights := make([]domain.Flight, 0)
	if err := r.db.SelectContext(ctx, &flights, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`); err != nil {
		return nil, err
	}
	return flights, nil
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	var f domain.Flight
	if err := r.db.GetContext(ctx, &f, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id); err != nil {
		return nil, translateError(err)
	}
	return &f, nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
