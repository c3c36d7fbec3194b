package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/intake"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/schema"
)

// modelModel is the JSON representation of a target model stored in Redis.
type modelModel struct {
	ID         string            `json:"id"`
	Definition schema.Definition `json:"definition"`
	ScopeAppID string            `json:"scope_app_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toModelModel(m *schema.Model) *modelModel {
	return &modelModel{
		ID:         m.ID.String(),
		Definition: m.Definition,
		ScopeAppID: m.ScopeAppID,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromModelModel(m *modelModel) (*schema.Model, error) {
	mID, err := id.ParseModelID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse model ID %q: %w", m.ID, err)
	}
	return &schema.Model{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         mID,
		Definition: m.Definition,
		ScopeAppID: m.ScopeAppID,
		Metadata:   m.Metadata,
	}, nil
}

// RegisterModel creates or updates a model definition (upsert by name).
func (s *Store) RegisterModel(ctx context.Context, m *schema.Model) error {
	key := entityKey(prefixModel, m.Name())

	var existing modelModel
	err := s.getEntity(ctx, key, &existing)
	switch {
	case err == nil:
		// Re-registration keeps the original identity.
		if parsed, perr := id.ParseModelID(existing.ID); perr == nil {
			m.ID = parsed
		}
		stored := toModelModel(m)
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = now()
		return s.setEntity(ctx, key, stored)

	case isNotFound(err):
		stored := toModelModel(m)
		pipe := s.rdb.Pipeline()
		pipe.ZAdd(ctx, zModelAll, goredis.Z{Score: scoreFromTime(stored.CreatedAt), Member: m.Name()})
		pipe.Set(ctx, uniqueModelID+stored.ID, m.Name(), 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("intake/redis: register model indexes: %w", err)
		}
		return s.setEntity(ctx, key, stored)

	default:
		return fmt.Errorf("intake/redis: register model get: %w", err)
	}
}

// GetModel returns a model by name.
func (s *Store) GetModel(ctx context.Context, name string) (*schema.Model, error) {
	var m modelModel
	if err := s.getEntity(ctx, entityKey(prefixModel, name), &m); err != nil {
		if isNotFound(err) {
			return nil, intake.ErrModelNotFound
		}
		return nil, fmt.Errorf("intake/redis: get model: %w", err)
	}
	return fromModelModel(&m)
}

// GetModelByID returns a model by its TypeID.
func (s *Store) GetModelByID(ctx context.Context, mID id.ID) (*schema.Model, error) {
	name, err := s.rdb.Get(ctx, uniqueModelID+mID.String()).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, intake.ErrModelNotFound
		}
		return nil, fmt.Errorf("intake/redis: resolve model ID: %w", err)
	}
	return s.GetModel(ctx, name)
}

// ListModels returns all registered models ordered by registration time.
func (s *Store) ListModels(ctx context.Context, opts schema.ListOpts) ([]*schema.Model, error) {
	names, err := s.rdb.ZRange(ctx, zModelAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("intake/redis: list models: %w", err)
	}

	result := make([]*schema.Model, 0, len(names))
	for _, name := range names {
		var m modelModel
		if err := s.getEntity(ctx, entityKey(prefixModel, name), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("intake/redis: list models get: %w", err)
		}
		model, err := fromModelModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, model)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// DeleteModel removes a model definition.
func (s *Store) DeleteModel(ctx context.Context, name string) error {
	key := entityKey(prefixModel, name)

	var m modelModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return intake.ErrModelNotFound
		}
		return fmt.Errorf("intake/redis: delete model get: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, uniqueModelID+m.ID)
	pipe.ZRem(ctx, zModelAll, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("intake/redis: delete model: %w", err)
	}
	return nil
}
