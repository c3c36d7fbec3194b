package endpoint

import (
	"context"

	"github.com/xraph/intake/id"
)

// Store defines the persistence contract for webhook endpoint configuration.
type Store interface {
	// CreateEndpoint persists a new endpoint. Returns intake.ErrSlugTaken
	// when the slug is already in use by a live endpoint.
	CreateEndpoint(ctx context.Context, ep *Endpoint) error

	// GetEndpoint returns an endpoint by ID.
	GetEndpoint(ctx context.Context, epID id.ID) (*Endpoint, error)

	// GetEndpointBySlug returns an endpoint by its slug.
	// This is the hot path — called on every inbound request.
	GetEndpointBySlug(ctx context.Context, slug string) (*Endpoint, error)

	// UpdateEndpoint replaces an existing endpoint's configuration in one
	// atomic step. Credential rotation relies on this atomicity: no reader
	// may observe a state where both or neither credential validates.
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error

	// DeleteEndpoint removes an endpoint permanently, freeing its slug.
	DeleteEndpoint(ctx context.Context, epID id.ID) error

	// ListEndpoints returns endpoints, optionally filtered.
	ListEndpoints(ctx context.Context, opts ListOpts) ([]*Endpoint, error)

	// SetActive toggles an endpoint without touching the rest of its config.
	SetActive(ctx context.Context, epID id.ID, active bool) error
}
