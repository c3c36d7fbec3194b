// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
	intakestore "github.com/xraph/intake/store"
)

// compile-time interface check.
var _ intakestore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	endpoints       map[string]*endpoint.Endpoint // keyed by ID string
	endpointsBySlug map[string]*endpoint.Endpoint // keyed by slug
	models          map[string]*schema.Model      // keyed by name
	modelsByID      map[string]*schema.Model      // keyed by ID string
	records         map[string]*record.Record     // keyed by ID string
	uniqueIndex     map[string]string             // uniqueKey → record ID string
	executions      map[string]*execution.Execution

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		endpoints:       make(map[string]*endpoint.Endpoint),
		endpointsBySlug: make(map[string]*endpoint.Endpoint),
		models:          make(map[string]*schema.Model),
		modelsByID:      make(map[string]*schema.Model),
		records:         make(map[string]*record.Record),
		uniqueIndex:     make(map[string]string),
		executions:      make(map[string]*execution.Execution),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return intake.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint. Returns ErrSlugTaken on collision.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpointsBySlug[ep.Slug]; ok {
		return intake.ErrSlugTaken
	}
	s.endpoints[ep.ID.String()] = ep
	s.endpointsBySlug[ep.Slug] = ep
	return nil
}

// copyEndpoint returns a shallow copy so callers can mutate without holding
// a lock and a failed validation never leaks into stored state.
func copyEndpoint(ep *endpoint.Endpoint) *endpoint.Endpoint {
	cp := *ep
	return &cp
}

// GetEndpoint returns a copy of the endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, intake.ErrEndpointNotFound
	}
	return copyEndpoint(ep), nil
}

// GetEndpointBySlug returns a copy of the endpoint by slug.
func (s *Store) GetEndpointBySlug(_ context.Context, slug string) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpointsBySlug[slug]
	if !ok {
		return nil, intake.ErrEndpointNotFound
	}
	return copyEndpoint(ep), nil
}

// UpdateEndpoint replaces an endpoint's configuration atomically.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.endpoints[ep.ID.String()]
	if !ok {
		return intake.ErrEndpointNotFound
	}
	if ep.Slug != prev.Slug {
		if _, taken := s.endpointsBySlug[ep.Slug]; taken {
			return intake.ErrSlugTaken
		}
		delete(s.endpointsBySlug, prev.Slug)
	}
	ep.UpdatedAt = time.Now().UTC()
	s.endpoints[ep.ID.String()] = ep
	s.endpointsBySlug[ep.Slug] = ep
	return nil
}

// DeleteEndpoint removes an endpoint and frees its slug.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return intake.ErrEndpointNotFound
	}
	delete(s.endpoints, epID.String())
	delete(s.endpointsBySlug, ep.Slug)
	return nil
}

// ListEndpoints returns endpoints ordered by creation time.
func (s *Store) ListEndpoints(_ context.Context, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if opts.Active != nil && ep.Active != *opts.Active {
			continue
		}
		result = append(result, ep)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// SetActive toggles an endpoint without touching the rest of its config.
func (s *Store) SetActive(_ context.Context, epID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return intake.ErrEndpointNotFound
	}
	ep.Active = active
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// schema.Store
// ──────────────────────────────────────────────────

// RegisterModel creates or updates a model definition (upsert by name).
func (s *Store) RegisterModel(_ context.Context, m *schema.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.models[m.Name()]; ok {
		existing.Definition = m.Definition
		existing.Metadata = m.Metadata
		existing.UpdatedAt = time.Now().UTC()
		m.ID = existing.ID
		return nil
	}

	s.models[m.Name()] = m
	s.modelsByID[m.ID.String()] = m
	return nil
}

// GetModel returns a model by name.
func (s *Store) GetModel(_ context.Context, name string) (*schema.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[name]
	if !ok {
		return nil, intake.ErrModelNotFound
	}
	return m, nil
}

// GetModelByID returns a model by its TypeID.
func (s *Store) GetModelByID(_ context.Context, mID id.ID) (*schema.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.modelsByID[mID.String()]
	if !ok {
		return nil, intake.ErrModelNotFound
	}
	return m, nil
}

// ListModels returns all registered models ordered by name.
func (s *Store) ListModels(_ context.Context, opts schema.ListOpts) ([]*schema.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*schema.Model, 0, len(s.models))
	for _, m := range s.models {
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// DeleteModel removes a model definition.
func (s *Store) DeleteModel(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.models[name]
	if !ok {
		return intake.ErrModelNotFound
	}
	delete(s.models, name)
	delete(s.modelsByID, m.ID.String())
	return nil
}

// ──────────────────────────────────────────────────
// record.Store
// ──────────────────────────────────────────────────

// uniqueKey builds the index key for one (model, field, value) triple.
func uniqueKey(model, field string, value any) string {
	return model + "\x00" + field + "\x00" + record.KeyString(value)
}

// uniqueEntries returns the index keys a record occupies, per the unique
// fields of its model. Records whose model is unknown occupy none.
func (s *Store) uniqueEntries(rec *record.Record) []string {
	m, ok := s.models[rec.Model]
	if !ok {
		return nil
	}

	var keys []string
	for _, name := range m.UniqueFields() {
		v, present := rec.Data[name]
		if !present || v == nil {
			continue
		}
		keys = append(keys, uniqueKey(rec.Model, name, v))
	}
	return keys
}

// CreateRecord persists a new record, enforcing unique field constraints.
func (s *Store) CreateRecord(_ context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.uniqueEntries(rec)
	for _, k := range keys {
		if _, taken := s.uniqueIndex[k]; taken {
			return record.ErrUniqueViolation
		}
	}

	s.records[rec.ID.String()] = rec
	for _, k := range keys {
		s.uniqueIndex[k] = rec.ID.String()
	}
	return nil
}

// copyRecord returns a copy with its own data map.
func copyRecord(rec *record.Record) *record.Record {
	cp := *rec
	cp.Data = make(map[string]any, len(rec.Data))
	for k, v := range rec.Data {
		cp.Data[k] = v
	}
	return &cp
}

// GetRecord returns a copy of the record by ID.
func (s *Store) GetRecord(_ context.Context, recID id.ID) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recID.String()]
	if !ok {
		return nil, record.ErrNotFound
	}
	return copyRecord(rec), nil
}

// UpdateRecord overwrites only the given fields of an existing record,
// enforcing unique field constraints against all other records.
func (s *Store) UpdateRecord(_ context.Context, recID id.ID, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recID.String()]
	if !ok {
		return record.ErrNotFound
	}

	merged := make(map[string]any, len(rec.Data)+len(fields))
	for k, v := range rec.Data {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	next := &record.Record{Entity: rec.Entity, ID: rec.ID, Model: rec.Model, Data: merged}
	for _, k := range s.uniqueEntries(next) {
		if owner, taken := s.uniqueIndex[k]; taken && owner != rec.ID.String() {
			return record.ErrUniqueViolation
		}
	}

	for _, k := range s.uniqueEntries(rec) {
		delete(s.uniqueIndex, k)
	}
	rec.Data = merged
	rec.UpdatedAt = time.Now().UTC()
	for _, k := range s.uniqueEntries(rec) {
		s.uniqueIndex[k] = rec.ID.String()
	}
	return nil
}

// FindByField returns all records of the model whose field equals value.
func (s *Store) FindByField(_ context.Context, model, field string, value any) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := record.KeyString(value)
	var result []*record.Record
	for _, rec := range s.records {
		if rec.Model != model {
			continue
		}
		v, ok := rec.Data[field]
		if !ok || v == nil {
			continue
		}
		if record.KeyString(v) == want {
			result = append(result, copyRecord(rec))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListRecords returns records of a model, newest first.
func (s *Store) ListRecords(_ context.Context, model string, opts record.ListOpts) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*record.Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Model != model {
			continue
		}
		result = append(result, rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// CountRecords returns the number of records of a model.
func (s *Store) CountRecords(_ context.Context, model string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, rec := range s.records {
		if rec.Model == model {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// execution.Store
// ──────────────────────────────────────────────────

// CreateExecution appends an execution record.
func (s *Store) CreateExecution(_ context.Context, exe *execution.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions[exe.ID.String()] = exe
	return nil
}

// GetExecution returns an execution by ID.
func (s *Store) GetExecution(_ context.Context, exeID id.ID) (*execution.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exe, ok := s.executions[exeID.String()]
	if !ok {
		return nil, intake.ErrExecutionNotFound
	}
	return exe, nil
}

// ListExecutions returns executions for an endpoint, newest first.
func (s *Store) ListExecutions(_ context.Context, endpointID id.ID, opts execution.ListOpts) ([]*execution.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*execution.Execution, 0, len(s.executions))
	for _, exe := range s.executions {
		if exe.EndpointID.String() != endpointID.String() {
			continue
		}
		if !matchExecutionOpts(exe, opts) {
			continue
		}
		result = append(result, exe)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// CountExecutions returns the number of executions for an endpoint.
func (s *Store) CountExecutions(_ context.Context, endpointID id.ID, status string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, exe := range s.executions {
		if exe.EndpointID.String() != endpointID.String() {
			continue
		}
		if status != "" && exe.Status != status {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func matchExecutionOpts(exe *execution.Execution, opts execution.ListOpts) bool {
	if opts.Status != "" && exe.Status != opts.Status {
		return false
	}
	if opts.From != nil && exe.CreatedAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil && exe.CreatedAt.After(*opts.To) {
		return false
	}
	return true
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
