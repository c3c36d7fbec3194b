package intake

import "errors"

// Sentinel errors returned by intake operations.
var (
	// ErrNoStore is returned when an Engine is created without a store.
	ErrNoStore = errors.New("intake: store is required")

	// ErrEndpointNotFound is returned when an endpoint cannot be found.
	ErrEndpointNotFound = errors.New("intake: endpoint not found")

	// ErrSlugTaken is returned when creating or updating an endpoint with a
	// slug already used by a live endpoint.
	ErrSlugTaken = errors.New("intake: slug already in use")

	// ErrModelNotFound is returned when a target model is not registered in
	// the schema catalog.
	ErrModelNotFound = errors.New("intake: target model not found")

	// ErrExecutionNotFound is returned when an execution log entry cannot be
	// found.
	ErrExecutionNotFound = errors.New("intake: execution not found")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("intake: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("intake: migration failed")
)
