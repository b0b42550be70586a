package runstore

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore is the zero-infrastructure run store, the way tidbyt-gtfs
// keeps its static-feed cache in a local sqlite3 file via database/sql.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the sqlite file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite run store")
	}
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_at DATETIME NOT NULL,
	mode TEXT NOT NULL,
	route_rule TEXT NOT NULL,
	seed INTEGER NOT NULL,
	incomplete INTEGER NOT NULL,
	avg_in_vehicle_min REAL NOT NULL,
	avg_full_journey_min REAL NOT NULL,
	avg_bus_wait_min REAL NOT NULL,
	avg_station_wait_min REAL NOT NULL,
	power_condition_kwh REAL NOT NULL,
	carbon_emission_g REAL NOT NULL,
	max_occupancy_rate REAL NOT NULL,
	avg_occupancy_rate REAL NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating runs table")
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun implements Store.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO runs (
	run_at, mode, route_rule, seed, incomplete,
	avg_in_vehicle_min, avg_full_journey_min, avg_bus_wait_min, avg_station_wait_min,
	power_condition_kwh, carbon_emission_g, max_occupancy_rate, avg_occupancy_rate
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := s.db.ExecContext(ctx, q,
		rec.RunAt, rec.Scenario.Mode, rec.Scenario.RouteRule, rec.Scenario.Seed, rec.Summary.Incomplete,
		rec.Summary.AvgInVehicleMin, rec.Summary.AvgFullJourneyMin, rec.Summary.AvgBusWaitMin, rec.Summary.AvgStationWaitMin,
		rec.Summary.PowerConsumpConditionKWh, rec.Summary.CarbonEmissionG, rec.Summary.MaxOccupancyRate, rec.Summary.AvgOccupancyRate,
	)
	return errors.Wrap(err, "inserting run record")
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
