// Package store defines the aggregate persistence interface. Each
// subsystem (attempt, device, decisionlog) defines its own store
// interface. The composite Store composes them all.
// Backends: Postgres, SQLite, Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, sqlite, redis, memory) implements all of them.
type Store interface {
	attempt.Store
	device.Store
	decisionlog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
