package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/intake"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/record"
)

// recordModel is the JSON representation of a target record stored in Redis.
//
// Data survives a JSON round trip in decoded form: integers come back as
// float64 and dates as RFC3339 strings. All equality lookups go through
// record.KeyString, which maps those forms onto the same keys, so the index
// entries written at insert time stay reachable after a reload.
type recordModel struct {
	ID        string         `json:"id"`
	Model     string         `json:"model"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toRecordModel(rec *record.Record) *recordModel {
	return &recordModel{
		ID:        rec.ID.String(),
		Model:     rec.Model,
		Data:      rec.Data,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromRecordModel(m *recordModel) (*record.Record, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse record ID %q: %w", m.ID, err)
	}
	return &record.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    recID,
		Model: m.Model,
		Data:  m.Data,
	}, nil
}

// uniqueFieldNames returns the unique fields of the record's model, or none
// when the model is no longer registered.
func (s *Store) uniqueFieldNames(ctx context.Context, model string) ([]string, error) {
	m, err := s.GetModel(ctx, model)
	if err != nil {
		if errors.Is(err, intake.ErrModelNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.UniqueFields(), nil
}

// claimUnique takes SETNX claims for every given key. On the first lost
// claim it releases the ones already taken and reports a unique violation.
func (s *Store) claimUnique(ctx context.Context, keys []string, owner string) error {
	var taken []string
	for _, k := range keys {
		claimed, err := s.rdb.SetNX(ctx, k, owner, 0).Result()
		if err != nil {
			s.rdb.Del(ctx, taken...)
			return fmt.Errorf("intake/redis: claim unique: %w", err)
		}
		if !claimed {
			if len(taken) > 0 {
				s.rdb.Del(ctx, taken...)
			}
			return record.ErrUniqueViolation
		}
		taken = append(taken, k)
	}
	return nil
}

// uniqueClaimKeys builds the claim keys a data set occupies for the given
// unique fields.
func uniqueClaimKeys(model string, uniqueFields []string, data map[string]any) []string {
	var keys []string
	for _, name := range uniqueFields {
		v, ok := data[name]
		if !ok || v == nil {
			continue
		}
		keys = append(keys, recordUniqueKey(model, name, record.KeyString(v)))
	}
	return keys
}

func (s *Store) CreateRecord(ctx context.Context, rec *record.Record) error {
	unique, err := s.uniqueFieldNames(ctx, rec.Model)
	if err != nil {
		return err
	}

	m := toRecordModel(rec)
	claims := uniqueClaimKeys(rec.Model, unique, rec.Data)
	if err := s.claimUnique(ctx, claims, m.ID); err != nil {
		return err
	}

	if err := s.setEntity(ctx, entityKey(prefixRecord, m.ID), m); err != nil {
		if len(claims) > 0 {
			s.rdb.Del(ctx, claims...)
		}
		return fmt.Errorf("intake/redis: create record: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zRecordModel+rec.Model, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	for field, v := range rec.Data {
		if v == nil {
			continue
		}
		pipe.SAdd(ctx, recordFieldKey(rec.Model, field, record.KeyString(v)), m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("intake/redis: create record indexes: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, recID id.ID) (*record.Record, error) {
	var m recordModel
	if err := s.getEntity(ctx, entityKey(prefixRecord, recID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, record.ErrNotFound
		}
		return nil, fmt.Errorf("intake/redis: get record: %w", err)
	}
	return fromRecordModel(&m)
}

func (s *Store) UpdateRecord(ctx context.Context, recID id.ID, fields map[string]any) error {
	key := entityKey(prefixRecord, recID.String())

	var existing recordModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return record.ErrNotFound
		}
		return fmt.Errorf("intake/redis: update record get: %w", err)
	}

	merged := make(map[string]any, len(existing.Data)+len(fields))
	for k, v := range existing.Data {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	unique, err := s.uniqueFieldNames(ctx, existing.Model)
	if err != nil {
		return err
	}

	oldClaims := uniqueClaimKeys(existing.Model, unique, existing.Data)
	newClaims := uniqueClaimKeys(existing.Model, unique, merged)

	// Claim only values this record does not already hold.
	held := make(map[string]bool, len(oldClaims))
	for _, k := range oldClaims {
		held[k] = true
	}
	var fresh []string
	for _, k := range newClaims {
		if !held[k] {
			fresh = append(fresh, k)
		}
	}
	if err := s.claimUnique(ctx, fresh, existing.ID); err != nil {
		return err
	}

	// Release claims on values the update moved away from.
	kept := make(map[string]bool, len(newClaims))
	for _, k := range newClaims {
		kept[k] = true
	}
	var released []string
	for _, k := range oldClaims {
		if !kept[k] {
			released = append(released, k)
		}
	}

	updated := &recordModel{
		ID:        existing.ID,
		Model:     existing.Model,
		Data:      merged,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: now(),
	}
	if err := s.setEntity(ctx, key, updated); err != nil {
		if len(fresh) > 0 {
			s.rdb.Del(ctx, fresh...)
		}
		return fmt.Errorf("intake/redis: update record: %w", err)
	}

	pipe := s.rdb.Pipeline()
	if len(released) > 0 {
		pipe.Del(ctx, released...)
	}
	for field, v := range existing.Data {
		if v == nil {
			continue
		}
		if nv, ok := merged[field]; ok && nv != nil && record.KeyString(nv) == record.KeyString(v) {
			continue
		}
		pipe.SRem(ctx, recordFieldKey(existing.Model, field, record.KeyString(v)), existing.ID)
	}
	for field, v := range merged {
		if v == nil {
			continue
		}
		pipe.SAdd(ctx, recordFieldKey(existing.Model, field, record.KeyString(v)), existing.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("intake/redis: update record indexes: %w", err)
	}
	return nil
}

func (s *Store) FindByField(ctx context.Context, model, field string, value any) ([]*record.Record, error) {
	ids, err := s.rdb.SMembers(ctx, recordFieldKey(model, field, record.KeyString(value))).Result()
	if err != nil {
		return nil, fmt.Errorf("intake/redis: find by field: %w", err)
	}

	result := make([]*record.Record, 0, len(ids))
	for _, recID := range ids {
		var m recordModel
		if err := s.getEntity(ctx, entityKey(prefixRecord, recID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("intake/redis: find by field get: %w", err)
		}
		rec, err := fromRecordModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *Store) ListRecords(ctx context.Context, model string, opts record.ListOpts) ([]*record.Record, error) {
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = int64(opts.Offset + opts.Limit - 1)
	}
	ids, err := s.rdb.ZRevRange(ctx, zRecordModel+model, int64(opts.Offset), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("intake/redis: list records: %w", err)
	}

	result := make([]*record.Record, 0, len(ids))
	for _, recID := range ids {
		var m recordModel
		if err := s.getEntity(ctx, entityKey(prefixRecord, recID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("intake/redis: list records get: %w", err)
		}
		rec, err := fromRecordModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *Store) CountRecords(ctx context.Context, model string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, zRecordModel+model).Result()
	if err != nil {
		return 0, fmt.Errorf("intake/redis: count records: %w", err)
	}
	return n, nil
}
