package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// endpointModel is the JSON representation stored in Redis. The credential is
// stored explicitly; the domain type hides it from serialization, the store
// must not.
type endpointModel struct {
	ID                 string            `json:"id"`
	Slug               string            `json:"slug"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	AuthType           string            `json:"auth_type"`
	Credential         string            `json:"credential"`
	TargetModel        string            `json:"target_model"`
	TargetAction       string            `json:"target_action"`
	Mapping            []endpoint.Rule   `json:"field_mapping"`
	Defaults           map[string]any    `json:"default_values,omitempty"`
	DedupeField        string            `json:"dedupe_field,omitempty"`
	Active             bool              `json:"is_active"`
	RateLimitPerMinute int               `json:"rate_limit_per_minute"`
	ScopeAppID         string            `json:"scope_app_id,omitempty"`
	ScopeOrgID         string            `json:"scope_org_id,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func toEndpointModel(ep *endpoint.Endpoint) *endpointModel {
	return &endpointModel{
		ID:                 ep.ID.String(),
		Slug:               ep.Slug,
		Name:               ep.Name,
		Description:        ep.Description,
		AuthType:           string(ep.AuthType),
		Credential:         ep.Credential,
		TargetModel:        ep.TargetModel,
		TargetAction:       string(ep.TargetAction),
		Mapping:            ep.Mapping,
		Defaults:           ep.Defaults,
		DedupeField:        ep.DedupeField,
		Active:             ep.Active,
		RateLimitPerMinute: ep.RateLimitPerMinute,
		ScopeAppID:         ep.ScopeAppID,
		ScopeOrgID:         ep.ScopeOrgID,
		Metadata:           ep.Metadata,
		CreatedAt:          ep.CreatedAt,
		UpdatedAt:          ep.UpdatedAt,
	}
}

func fromEndpointModel(m *endpointModel) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint ID %q: %w", m.ID, err)
	}
	return &endpoint.Endpoint{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 epID,
		Slug:               m.Slug,
		Name:               m.Name,
		Description:        m.Description,
		AuthType:           endpoint.AuthType(m.AuthType),
		Credential:         m.Credential,
		TargetModel:        m.TargetModel,
		TargetAction:       endpoint.Action(m.TargetAction),
		Mapping:            m.Mapping,
		Defaults:           m.Defaults,
		DedupeField:        m.DedupeField,
		Active:             m.Active,
		RateLimitPerMinute: m.RateLimitPerMinute,
		ScopeAppID:         m.ScopeAppID,
		ScopeOrgID:         m.ScopeOrgID,
		Metadata:           m.Metadata,
	}, nil
}

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)

	// Claim the slug first; losing the claim is the only conflict.
	claimed, err := s.rdb.SetNX(ctx, uniqueEndpointSlug+m.Slug, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("intake/redis: claim slug: %w", err)
	}
	if !claimed {
		return intake.ErrSlugTaken
	}

	if err := s.setEntity(ctx, entityKey(prefixEndpoint, m.ID), m); err != nil {
		s.rdb.Del(ctx, uniqueEndpointSlug+m.Slug)
		return fmt.Errorf("intake/redis: create endpoint: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zEndpointAll, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("intake/redis: create endpoint index: %w", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, intake.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("intake/redis: get endpoint: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) GetEndpointBySlug(ctx context.Context, slug string) (*endpoint.Endpoint, error) {
	epID, err := s.rdb.Get(ctx, uniqueEndpointSlug+slug).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, intake.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("intake/redis: resolve slug: %w", err)
	}

	var m endpointModel
	if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID), &m); err != nil {
		if isNotFound(err) {
			return nil, intake.ErrEndpointNotFound
		}
		return nil, fmt.Errorf("intake/redis: get endpoint by slug: %w", err)
	}
	return fromEndpointModel(&m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	key := entityKey(prefixEndpoint, ep.ID.String())

	var existing endpointModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return intake.ErrEndpointNotFound
		}
		return fmt.Errorf("intake/redis: update endpoint get: %w", err)
	}

	m := toEndpointModel(ep)
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now()

	if m.Slug != existing.Slug {
		claimed, err := s.rdb.SetNX(ctx, uniqueEndpointSlug+m.Slug, m.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("intake/redis: claim slug: %w", err)
		}
		if !claimed {
			return intake.ErrSlugTaken
		}
		s.rdb.Del(ctx, uniqueEndpointSlug+existing.Slug)
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("intake/redis: update endpoint: %w", err)
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return intake.ErrEndpointNotFound
		}
		return fmt.Errorf("intake/redis: delete endpoint get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, uniqueEndpointSlug+m.Slug)
	pipe.ZRem(ctx, zEndpointAll, m.ID)
	pipe.Del(ctx, rateLimitKey+m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("intake/redis: delete endpoint: %w", err)
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	ids, err := s.rdb.ZRange(ctx, zEndpointAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("intake/redis: list endpoints: %w", err)
	}

	result := make([]*endpoint.Endpoint, 0, len(ids))
	for _, epID := range ids {
		var m endpointModel
		if err := s.getEntity(ctx, entityKey(prefixEndpoint, epID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("intake/redis: list endpoints get: %w", err)
		}
		if opts.Active != nil && m.Active != *opts.Active {
			continue
		}
		ep, err := fromEndpointModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, ep)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetActive(ctx context.Context, epID id.ID, active bool) error {
	key := entityKey(prefixEndpoint, epID.String())

	var m endpointModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return intake.ErrEndpointNotFound
		}
		return fmt.Errorf("intake/redis: set active get: %w", err)
	}

	m.Active = active
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("intake/redis: set active: %w", err)
	}
	return nil
}
