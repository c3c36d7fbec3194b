package record

import (
	"context"

	"github.com/xraph/intake/id"
)

// Store defines the persistence contract for target records.
//
// Implementations consult the model definition registered via the schema
// store to learn which fields are unique, and enforce a uniqueness
// constraint on (model, field, KeyString(value)) for each of them at the
// storage layer. CreateRecord and UpdateRecord return ErrUniqueViolation on
// collision; they never partially apply.
type Store interface {
	// CreateRecord persists a new record.
	CreateRecord(ctx context.Context, rec *Record) error

	// GetRecord returns a record by ID.
	GetRecord(ctx context.Context, recID id.ID) (*Record, error)

	// UpdateRecord overwrites only the given fields of an existing record.
	UpdateRecord(ctx context.Context, recID id.ID, fields map[string]any) error

	// FindByField returns all records of the model whose field equals value
	// (exact match on KeyString normalization).
	FindByField(ctx context.Context, model, field string, value any) ([]*Record, error)

	// ListRecords returns records of a model, newest first.
	ListRecords(ctx context.Context, model string, opts ListOpts) ([]*Record, error)

	// CountRecords returns the number of records of a model.
	CountRecords(ctx context.Context, model string) (int64, error)
}
