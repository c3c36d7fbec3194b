// Package store defines the composite Store interface for all intake persistence.
//
// The composite store follows the ControlPlane pattern: each subsystem defines
// its own store interface, and the aggregate Store composes them all.
package store

import (
	"context"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface — same pattern as ControlPlane.
type Store interface {
	endpoint.Store
	schema.Store
	record.Store
	execution.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
