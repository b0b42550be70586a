// Package runstore persists completed-run statistics summaries, backed by
// either Postgres (github.com/jackc/pgx/v5, donor: KhalidEchchahid-transit-app
// and shivamshaw23-Hintro) or SQLite (github.com/mattn/go-sqlite3, donor:
// tidbyt-gtfs) depending on the CLI's -store flag.
package runstore

import (
	"context"
	"time"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/stats"
)

// Record is one persisted run: its scenario and the resulting summary.
type Record struct {
	RunAt    time.Time
	Scenario config.Scenario
	Summary  stats.Summary
}

// Store persists run Records.
type Store interface {
	SaveRun(ctx context.Context, rec Record) error
	Close() error
}
