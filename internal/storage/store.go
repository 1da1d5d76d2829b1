// Package storage defines the Store interface shared by the persistence backends.
// Two backends are provided: SQLite (default, zero-config) and PostgreSQL.
package storage

import (
	"context"

	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/workflow"
)

// Store gives access to every repository over one connection pool.
type Store interface {
	Events() calendar.Store
	Runs() workflow.RunStore

	// Ping checks the connection for readiness probes.
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	// Driver returns the storage driver name ("sqlite" or "postgres").
	Driver() string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultDriver is used when the config names none.
const DefaultDriver = DriverSQLite
