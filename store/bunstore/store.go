// Package bunstore implements store.Store on any SQL database Bun speaks,
// Postgres and SQLite included. It is the portable SQL backend; the postgres
// package is the first-class one.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
	intakestore "github.com/xraph/intake/store"
)

// compile-time interface check
var _ intakestore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables using Bun's CreateTable.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*endpointModel)(nil),
		(*modelModel)(nil),
		(*recordModel)(nil),
		(*recordFieldModel)(nil),
		(*executionModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	// Partial indexes work on both Postgres and SQLite.
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_intake_records_model ON intake_records (model, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_intake_record_fields_lookup ON intake_record_fields (model, field, key)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_intake_record_fields_unique ON intake_record_fields (model, field, key) WHERE is_unique",
		"CREATE INDEX IF NOT EXISTS idx_intake_executions_endpoint ON intake_executions (endpoint_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_intake_executions_status ON intake_executions (endpoint_id, status)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Endpoint Store ====================

func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	m := toEndpointModel(ep)
	res, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (slug) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return intake.ErrSlugTaken
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", epID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, intake.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) GetEndpointBySlug(ctx context.Context, slug string) (*endpoint.Endpoint, error) {
	m := new(endpointModel)
	err := s.db.NewSelect().
		Model(m).
		Where("slug = ?", slug).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, intake.ErrEndpointNotFound
		}
		return nil, err
	}
	return fromEndpointModel(m)
}

func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	// Slug moves are checked up front so the caller gets the sentinel
	// instead of a constraint error. The unique index still backs the race.
	holder := new(endpointModel)
	err := s.db.NewSelect().
		Model(holder).
		Where("slug = ?", ep.Slug).
		Limit(1).
		Scan(ctx)
	if err == nil && holder.ID != ep.ID.String() {
		return intake.ErrSlugTaken
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	m := toEndpointModel(ep)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return intake.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*endpointModel)(nil)).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return intake.ErrEndpointNotFound
	}
	return nil
}

func (s *Store) ListEndpoints(ctx context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	var models []endpointModel
	q := s.db.NewSelect().Model(&models)
	if opts.Active != nil {
		q = q.Where("is_active = ?", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*endpoint.Endpoint, len(models))
	for i := range models {
		ep, err := fromEndpointModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = ep
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, epID id.ID, active bool) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*endpointModel)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", now).
		Where("id = ?", epID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return intake.ErrEndpointNotFound
	}
	return nil
}

// ==================== Schema Store ====================

func (s *Store) RegisterModel(ctx context.Context, m *schema.Model) error {
	row := toModelModel(m)
	// On re-registration the existing row keeps its ID and created_at.
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("definition = EXCLUDED.definition").
		Set("scope_app_id = EXCLUDED.scope_app_id").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetModel(ctx context.Context, name string) (*schema.Model, error) {
	m := new(modelModel)
	err := s.db.NewSelect().
		Model(m).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, intake.ErrModelNotFound
		}
		return nil, err
	}
	return fromModelModel(m)
}

func (s *Store) GetModelByID(ctx context.Context, mID id.ID) (*schema.Model, error) {
	m := new(modelModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", mID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, intake.ErrModelNotFound
		}
		return nil, err
	}
	return fromModelModel(m)
}

func (s *Store) ListModels(ctx context.Context, opts schema.ListOpts) ([]*schema.Model, error) {
	var models []modelModel
	q := s.db.NewSelect().Model(&models)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*schema.Model, len(models))
	for i := range models {
		m, err := fromModelModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = m
	}
	return result, nil
}

func (s *Store) DeleteModel(ctx context.Context, name string) error {
	res, err := s.db.NewDelete().
		Model((*modelModel)(nil)).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return intake.ErrModelNotFound
	}
	return nil
}

// ==================== Record Store ====================

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

func fieldRows(recID, model string, unique map[string]bool, data map[string]any) []recordFieldModel {
	var rows []recordFieldModel
	for field, v := range data {
		if v == nil {
			continue
		}
		rows = append(rows, recordFieldModel{
			RecordID: recID,
			Field:    field,
			Key:      record.KeyString(v),
			Model:    model,
			IsUnique: unique[field],
		})
	}
	return rows
}

// insertFieldRows mirrors field values into the lookup/uniqueness table.
// Unique rows go first: a lost insert on the partial unique index means
// another record holds the value, and everything inserted so far is undone.
func (s *Store) insertFieldRows(ctx context.Context, rows []recordFieldModel) error {
	var inserted []recordFieldModel
	undo := func() {
		// best-effort rollback
		for i := range inserted {
			_, _ = s.db.NewDelete(). //nolint:errcheck
				Model((*recordFieldModel)(nil)).
				Where("record_id = ?", inserted[i].RecordID).
				Where("field = ?", inserted[i].Field).
				Where("key = ?", inserted[i].Key).
				Exec(ctx)
		}
	}

	for i := range rows {
		if !rows[i].IsUnique {
			continue
		}
		res, err := s.db.NewInsert().
			Model(&rows[i]).
			On("CONFLICT (model, field, key) WHERE is_unique DO NOTHING").
			Exec(ctx)
		if err != nil {
			undo()
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			undo()
			return err
		}
		if n == 0 {
			undo()
			return record.ErrUniqueViolation
		}
		inserted = append(inserted, rows[i])
	}

	for i := range rows {
		if rows[i].IsUnique {
			continue
		}
		if _, err := s.db.NewInsert().Model(&rows[i]).Exec(ctx); err != nil {
			undo()
			return err
		}
		inserted = append(inserted, rows[i])
	}
	return nil
}

func (s *Store) CreateRecord(ctx context.Context, rec *record.Record) error {
	unique, err := s.uniqueSet(ctx, rec.Model)
	if err != nil {
		return err
	}

	m := toRecordModel(rec)
	rows := fieldRows(m.ID, rec.Model, unique, rec.Data)
	if err := s.insertFieldRows(ctx, rows); err != nil {
		return err
	}

	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		// best-effort rollback
		_, _ = s.db.NewDelete(). //nolint:errcheck
			Model((*recordFieldModel)(nil)).
			Where("record_id = ?", m.ID).
			Exec(ctx)
		return err
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, recID id.ID) (*record.Record, error) {
	m := new(recordModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", recID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		return nil, err
	}
	return fromRecordModel(m)
}

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

	// Index rows only for values the update actually moved.
	changed := make(map[string]any, len(fields))
	var stale []recordFieldModel
	for field, v := range fields {
		old, had := existing.Data[field]
		if had && old != nil && v != nil && record.KeyString(old) == record.KeyString(v) {
			continue
		}
		changed[field] = v
		if had && old != nil {
			stale = append(stale, recordFieldModel{
				RecordID: recID.String(),
				Field:    field,
				Key:      record.KeyString(old),
			})
		}
	}

	rows := fieldRows(recID.String(), existing.Model, unique, changed)
	if err := s.insertFieldRows(ctx, rows); err != nil {
		return err
	}
	for i := range stale {
		if _, err := s.db.NewDelete().
			Model((*recordFieldModel)(nil)).
			Where("record_id = ?", stale[i].RecordID).
			Where("field = ?", stale[i].Field).
			Where("key = ?", stale[i].Key).
			Exec(ctx); err != nil {
			return err
		}
	}

	m := toRecordModel(&record.Record{
		Entity: existing.Entity,
		ID:     recID,
		Model:  existing.Model,
		Data:   merged,
	})
	m.UpdatedAt = time.Now().UTC()
	_, err = s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	return err
}

func (s *Store) FindByField(ctx context.Context, model, field string, value any) ([]*record.Record, error) {
	var models []recordModel
	err := s.db.NewRaw(`
		SELECT DISTINCT r.*
		FROM intake_records r
		JOIN intake_record_fields f ON f.record_id = r.id
		WHERE f.model = ? AND f.field = ? AND f.key = ?
		ORDER BY r.created_at ASC
	`, model, field, record.KeyString(value)).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*record.Record, len(models))
	for i := range models {
		rec, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

func (s *Store) ListRecords(ctx context.Context, model string, opts record.ListOpts) ([]*record.Record, error) {
	var models []recordModel
	q := s.db.NewSelect().Model(&models).Where("model = ?", model)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*record.Record, len(models))
	for i := range models {
		rec, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

func (s *Store) CountRecords(ctx context.Context, model string) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*recordModel)(nil)).
		Where("model = ?", model).
		Count(ctx)
	return int64(count), err
}

// ==================== Execution Store ====================

func (s *Store) CreateExecution(ctx context.Context, exe *execution.Execution) error {
	m := toExecutionModel(exe)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetExecution(ctx context.Context, exeID id.ID) (*execution.Execution, error) {
	m := new(executionModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", exeID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, intake.ErrExecutionNotFound
		}
		return nil, err
	}
	return fromExecutionModel(m)
}

func (s *Store) ListExecutions(ctx context.Context, endpointID id.ID, opts execution.ListOpts) ([]*execution.Execution, error) {
	var models []executionModel
	q := s.db.NewSelect().Model(&models).Where("endpoint_id = ?", endpointID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.From != nil {
		q = q.Where("created_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("created_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*execution.Execution, len(models))
	for i := range models {
		exe, err := fromExecutionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = exe
	}
	return result, nil
}

func (s *Store) CountExecutions(ctx context.Context, endpointID id.ID, status string) (int64, error) {
	q := s.db.NewSelect().
		Model((*executionModel)(nil)).
		Where("endpoint_id = ?", endpointID.String())
	if status != "" {
		q = q.Where("status = ?", status)
	}
	count, err := q.Count(ctx)
	return int64(count), err
}
