package runstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore persists runs into a "runs" table via pgx's pool, the way
// KhalidEchchahid-transit-app and shivamshaw23-Hintro both reach for pgx
// over database/sql for their transit backends.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the runs table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres run store")
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id SERIAL PRIMARY KEY,
	run_at TIMESTAMPTZ NOT NULL,
	mode TEXT NOT NULL,
	route_rule TEXT NOT NULL,
	seed BIGINT NOT NULL,
	incomplete BOOLEAN NOT NULL,
	avg_in_vehicle_min DOUBLE PRECISION NOT NULL,
	avg_full_journey_min DOUBLE PRECISION NOT NULL,
	avg_bus_wait_min DOUBLE PRECISION NOT NULL,
	avg_station_wait_min DOUBLE PRECISION NOT NULL,
	power_condition_kwh DOUBLE PRECISION NOT NULL,
	carbon_emission_g DOUBLE PRECISION NOT NULL,
	max_occupancy_rate DOUBLE PRECISION NOT NULL,
	avg_occupancy_rate DOUBLE PRECISION NOT NULL
)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "creating runs table")
	}
	return &PostgresStore{pool: pool}, nil
}

// SaveRun implements Store.
func (s *PostgresStore) SaveRun(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO runs (
	run_at, mode, route_rule, seed, incomplete,
	avg_in_vehicle_min, avg_full_journey_min, avg_bus_wait_min, avg_station_wait_min,
	power_condition_kwh, carbon_emission_g, max_occupancy_rate, avg_occupancy_rate
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.pool.Exec(ctx, q,
		rec.RunAt, rec.Scenario.Mode, rec.Scenario.RouteRule, rec.Scenario.Seed, rec.Summary.Incomplete,
		rec.Summary.AvgInVehicleMin, rec.Summary.AvgFullJourneyMin, rec.Summary.AvgBusWaitMin, rec.Summary.AvgStationWaitMin,
		rec.Summary.PowerConsumpConditionKWh, rec.Summary.CarbonEmissionG, rec.Summary.MaxOccupancyRate, rec.Summary.AvgOccupancyRate,
	)
	return errors.Wrap(err, "inserting run record")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
