package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/intake"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/schema"
)

// RegisterModel creates or updates a model definition (upsert by name). On
// re-registration the existing document keeps its _id and created_at.
func (s *Store) RegisterModel(ctx context.Context, m *schema.Model) error {
	row := toModelModel(m)

	_, err := s.mdb.NewUpdate(row).
		Filter(bson.M{"name": row.Name}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"definition":   row.Definition,
				"scope_app_id": row.ScopeAppID,
				"metadata":     row.Metadata,
				"updated_at":   row.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        row.ID,
				"name":       row.Name,
				"created_at": row.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("intake/mongo: register model: %w", err)
	}

	return nil
}

// GetModel returns a model by name.
func (s *Store) GetModel(ctx context.Context, name string) (*schema.Model, error) {
	var m modelModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, intake.ErrModelNotFound
		}

		return nil, fmt.Errorf("intake/mongo: get model: %w", err)
	}

	return fromModelModel(&m)
}

// GetModelByID returns a model by its TypeID.
func (s *Store) GetModelByID(ctx context.Context, mID id.ID) (*schema.Model, error) {
	var m modelModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": mID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, intake.ErrModelNotFound
		}

		return nil, fmt.Errorf("intake/mongo: get model by id: %w", err)
	}

	return fromModelModel(&m)
}

// ListModels returns all registered models, optionally paginated.
func (s *Store) ListModels(ctx context.Context, opts schema.ListOpts) ([]*schema.Model, error) {
	var models []modelModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("intake/mongo: list models: %w", err)
	}

	result := make([]*schema.Model, 0, len(models))

	for i := range models {
		m, err := fromModelModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, m)
	}

	return result, nil
}

// DeleteModel removes a model definition.
func (s *Store) DeleteModel(ctx context.Context, name string) error {
	res, err := s.mdb.NewDelete((*modelModel)(nil)).
		Filter(bson.M{"name": name}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("intake/mongo: delete model: %w", err)
	}

	if res.DeletedCount() == 0 {
		return intake.ErrModelNotFound
	}

	return nil
}
