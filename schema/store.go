package schema

import (
	"context"

	"github.com/xraph/intake/id"
)

// Store defines the persistence contract for the target model catalog.
type Store interface {
	// RegisterModel creates or updates a model definition (upsert by name).
	RegisterModel(ctx context.Context, m *Model) error

	// GetModel returns a model by name (e.g. "candidate").
	GetModel(ctx context.Context, name string) (*Model, error)

	// GetModelByID returns a model by its TypeID.
	GetModelByID(ctx context.Context, mID id.ID) (*Model, error)

	// ListModels returns all registered models, optionally paginated.
	ListModels(ctx context.Context, opts ListOpts) ([]*Model, error)

	// DeleteModel removes a model definition.
	DeleteModel(ctx context.Context, name string) error
}
