package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/intake"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/record"
)

// uniqueSet returns the unique field names of a model as a lookup set, or an
// empty set when the model is no longer registered.
func (s *Store) uniqueSet(ctx context.Context, model string) (map[string]bool, error) {
	m, err := s.GetModel(ctx, model)
	if err != nil {
		if errors.Is(err, intake.ErrModelNotFound) {
			return nil, nil
		}

		return nil, err
	}

	set := make(map[string]bool)
	for _, name := range m.UniqueFields() {
		set[name] = true
	}

	return set, nil
}

// insertFieldDocs mirrors field values into the lookup/uniqueness collection.
// Unique documents go first: a duplicate-key error on the partial unique
// index means another record holds the value, and everything inserted so far
// is undone.
func (s *Store) insertFieldDocs(ctx context.Context, docs []recordFieldModel) error {
	var inserted []recordFieldModel

	undo := func() {
		// best-effort rollback
		for i := range inserted {
			_, _ = s.mdb.NewDelete((*recordFieldModel)(nil)). //nolint:errcheck
				Filter(bson.M{"_id": inserted[i].ID}).
				Exec(ctx)
		}
	}

	for i := range docs {
		if !docs[i].IsUnique {
			continue
		}

		if _, err := s.mdb.NewInsert(&docs[i]).Exec(ctx); err != nil {
			undo()

			if mongod.IsDuplicateKeyError(err) {
				return record.ErrUniqueViolation
			}

			return fmt.Errorf("intake/mongo: insert field doc: %w", err)
		}

		inserted = append(inserted, docs[i])
	}

	for i := range docs {
		if docs[i].IsUnique {
			continue
		}

		if _, err := s.mdb.NewInsert(&docs[i]).Exec(ctx); err != nil {
			undo()

			return fmt.Errorf("intake/mongo: insert field doc: %w", err)
		}

		inserted = append(inserted, docs[i])
	}

	return nil
}

// fieldDocs builds the index documents for a data set.
func fieldDocs(recID, model string, unique map[string]bool, data map[string]any) []recordFieldModel {
	var docs []recordFieldModel

	for field, v := range data {
		if v == nil {
			continue
		}

		key := record.KeyString(v)
		docs = append(docs, recordFieldModel{
			ID:       fieldDocID(recID, field, key),
			RecordID: recID,
			Field:    field,
			Key:      key,
			Model:    model,
			IsUnique: unique[field],
		})
	}

	return docs
}

// CreateRecord persists a new record, claiming its unique field values first.
func (s *Store) CreateRecord(ctx context.Context, rec *record.Record) error {
	unique, err := s.uniqueSet(ctx, rec.Model)
	if err != nil {
		return err
	}

	m := toRecordModel(rec)

	docs := fieldDocs(m.ID, rec.Model, unique, rec.Data)
	if err := s.insertFieldDocs(ctx, docs); err != nil {
		return err
	}

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		// best-effort rollback
		_, _ = s.mdb.NewDelete((*recordFieldModel)(nil)). //nolint:errcheck
			Filter(bson.M{"record_id": m.ID}).
			Exec(ctx)

		return fmt.Errorf("intake/mongo: create record: %w", err)
	}

	return nil
}

// GetRecord returns a record by ID.
func (s *Store) GetRecord(ctx context.Context, recID id.ID) (*record.Record, error) {
	var m recordModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": recID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, record.ErrNotFound
		}

		return nil, fmt.Errorf("intake/mongo: get record: %w", err)
	}

	return fromRecordModel(&m)
}

// UpdateRecord merges the given fields into an existing record.
func (s *Store) UpdateRecord(ctx context.Context, recID id.ID, fields map[string]any) error {
	existing, err := s.GetRecord(ctx, recID)
	if err != nil {
		return err
	}

	merged := make(map[string]any, len(existing.Data)+len(fields))
	for k, v := range existing.Data {
		merged[k] = v
	}

	for k, v := range fields {
		merged[k] = v
	}

	unique, err := s.uniqueSet(ctx, existing.Model)
	if err != nil {
		return err
	}

	// Index documents only for values the update actually moved.
	changed := make(map[string]any, len(fields))

	var stale []string

	for field, v := range fields {
		old, had := existing.Data[field]
		if had && old != nil && v != nil && record.KeyString(old) == record.KeyString(v) {
			continue
		}

		changed[field] = v

		if had && old != nil {
			stale = append(stale, fieldDocID(recID.String(), field, record.KeyString(old)))
		}
	}

	docs := fieldDocs(recID.String(), existing.Model, unique, changed)
	if err := s.insertFieldDocs(ctx, docs); err != nil {
		return err
	}

	for _, docID := range stale {
		if _, err := s.mdb.NewDelete((*recordFieldModel)(nil)).
			Filter(bson.M{"_id": docID}).
			Exec(ctx); err != nil {
			return fmt.Errorf("intake/mongo: delete stale field doc: %w", err)
		}
	}

	res, err := s.mdb.NewUpdate((*recordModel)(nil)).
		Filter(bson.M{"_id": recID.String()}).
		SetUpdate(bson.M{"$set": bson.M{
			"data":       merged,
			"updated_at": now(),
		}}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("intake/mongo: update record: %w", err)
	}

	if res.MatchedCount() == 0 {
		return record.ErrNotFound
	}

	return nil
}

// FindByField returns all records whose field matches the given value,
// oldest first. Matching runs through the field mirror collection so typed
// values compare in their canonical key form.
func (s *Store) FindByField(ctx context.Context, model, field string, value any) ([]*record.Record, error) {
	var fieldModels []recordFieldModel

	err := s.mdb.NewFind(&fieldModels).
		Filter(bson.M{
			"model": model,
			"field": field,
			"key":   record.KeyString(value),
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("intake/mongo: find field docs: %w", err)
	}

	if len(fieldModels) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fieldModels))
	seen := make(map[string]bool, len(fieldModels))

	for i := range fieldModels {
		if !seen[fieldModels[i].RecordID] {
			seen[fieldModels[i].RecordID] = true
			ids = append(ids, fieldModels[i].RecordID)
		}
	}

	var models []recordModel

	err = s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": ids}}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("intake/mongo: find records: %w", err)
	}

	result := make([]*record.Record, 0, len(models))

	for i := range models {
		rec, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, rec)
	}

	return result, nil
}

// ListRecords returns records for a model, newest first.
func (s *Store) ListRecords(ctx context.Context, model string, opts record.ListOpts) ([]*record.Record, error) {
	var models []recordModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"model": model}).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("intake/mongo: list records: %w", err)
	}

	result := make([]*record.Record, 0, len(models))

	for i := range models {
		rec, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, rec)
	}

	return result, nil
}

// CountRecords returns the number of records stored for a model.
func (s *Store) CountRecords(ctx context.Context, model string) (int64, error) {
	count, err := s.mdb.NewFind((*recordModel)(nil)).
		Filter(bson.M{"model": model}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("intake/mongo: count records: %w", err)
	}

	return count, nil
}
