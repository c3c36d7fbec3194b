package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/id"
)

// CreateEndpoint persists a new endpoint. The unique slug index closes the
// concurrent-create race.
func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return intake.ErrSlugTaken
		}

		return fmt.Errorf("intake/mongo: create endpoint: %w", err)
	}

	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": epID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, intake.ErrEndpointNotFound
		}

		return nil, fmt.Errorf("intake/mongo: get endpoint: %w", err)
	}

	return fromEndpointModel(&m)
}

// GetEndpointBySlug returns an endpoint by its slug.
func (s *Store) GetEndpointBySlug(ctx context.Context, slug string) (*endpoint.Endpoint, error) {
	var m endpointModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, intake.ErrEndpointNotFound
		}

		return nil, fmt.Errorf("intake/mongo: get endpoint by slug: %w", err)
	}

	return fromEndpointModel(&m)
}

// UpdateEndpoint replaces an existing endpoint's configuration.
func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return intake.ErrSlugTaken
		}

		return fmt.Errorf("intake/mongo: update endpoint: %w", err)
	}

	if res.MatchedCount() == 0 {
		return intake.ErrEndpointNotFound
	}

	return nil
}

// DeleteEndpoint removes an endpoint, freeing its slug.
func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.mdb.NewDelete((*endpointModel)(nil)).
		Filter(bson.M{"_id": epID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("intake/mongo: delete endpoint: %w", err)
	}

	if res.DeletedCount() == 0 {
		return intake.ErrEndpointNotFound
	}

	return nil
}

// ListEndpoints returns endpoints, optionally filtered.
func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel

	filter := bson.M{}
	if opts.Active != nil {
		filter["is_active"] = *opts.Active
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("intake/mongo: list endpoints: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(models))

	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, ep)
	}

	return result, nil
}

// SetActive toggles an endpoint without touching the rest of its config.
func (s *Store) SetActive(ctx context.Context, epID id.ID, active bool) error {
	res, err := s.mdb.NewUpdate((*endpointModel)(nil)).
		Filter(bson.M{"_id": epID.String()}).
		Set("is_active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("intake/mongo: set active: %w", err)
	}

	if res.MatchedCount() == 0 {
		return intake.ErrEndpointNotFound
	}

	return nil
}
