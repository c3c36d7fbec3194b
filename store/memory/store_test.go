package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
)

func ctx() context.Context { return context.Background() }

func contactModel() *schema.Model {
	return &schema.Model{
		Entity: entity.New(),
		ID:     id.NewModelID(),
		Definition: schema.Definition{
			Name: "contact",
			Fields: []schema.Field{
				{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
				{Name: "full_name", Type: schema.TypeString},
				{Name: "age", Type: schema.TypeInteger},
			},
		},
	}
}

func testEndpoint(slug string) *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:             entity.New(),
		ID:                 id.NewEndpointID(),
		Slug:               slug,
		Name:               "Test " + slug,
		AuthType:           endpoint.AuthAPIKey,
		Credential:         "whk_test",
		TargetModel:        "contact",
		TargetAction:       endpoint.ActionCreate,
		Mapping:            []endpoint.Rule{{External: "email", Internal: "email"}},
		Active:             true,
		RateLimitPerMinute: 60,
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, intake.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

func TestEndpointCRUD(t *testing.T) {
	s := New()
	ep := testEndpoint("crm-sync")

	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Slug != "crm-sync" {
		t.Fatalf("got slug %q", got.Slug)
	}

	got, err = s.GetEndpointBySlug(ctx(), "crm-sync")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != ep.ID.String() {
		t.Fatalf("slug lookup returned wrong endpoint")
	}

	_, err = s.GetEndpointBySlug(ctx(), "nope")
	if !errors.Is(err, intake.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}

	ep.Name = "Renamed"
	if err := s.UpdateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetEndpoint(ctx(), ep.ID)
	if got.Name != "Renamed" {
		t.Fatalf("got name %q", got.Name)
	}

	if err := s.DeleteEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEndpointBySlug(ctx(), "crm-sync"); !errors.Is(err, intake.ErrEndpointNotFound) {
		t.Fatalf("slug still resolvable after delete: %v", err)
	}
}

func TestEndpointSlugConflict(t *testing.T) {
	s := New()

	if err := s.CreateEndpoint(ctx(), testEndpoint("same")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateEndpoint(ctx(), testEndpoint("same")); !errors.Is(err, intake.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestEndpointSlugFreedByDelete(t *testing.T) {
	s := New()
	ep := testEndpoint("reuse-me")

	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEndpoint(ctx(), ep.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateEndpoint(ctx(), testEndpoint("reuse-me")); err != nil {
		t.Fatalf("slug not freed: %v", err)
	}
}

func TestEndpointSlugChange(t *testing.T) {
	s := New()
	ep := testEndpoint("old-slug")

	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}

	ep.Slug = "new-slug"
	if err := s.UpdateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetEndpointBySlug(ctx(), "old-slug"); !errors.Is(err, intake.ErrEndpointNotFound) {
		t.Fatalf("old slug still resolves: %v", err)
	}
	if _, err := s.GetEndpointBySlug(ctx(), "new-slug"); err != nil {
		t.Fatal(err)
	}
}

func TestListEndpointsActiveFilter(t *testing.T) {
	s := New()

	active := testEndpoint("on")
	inactive := testEndpoint("off")
	inactive.Active = false

	if err := s.CreateEndpoint(ctx(), active); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateEndpoint(ctx(), inactive); err != nil {
		t.Fatal(err)
	}

	yes := true
	list, err := s.ListEndpoints(ctx(), endpoint.ListOpts{Active: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Slug != "on" {
		t.Fatalf("active filter returned %d endpoints", len(list))
	}
}

func TestSetActive(t *testing.T) {
	s := New()
	ep := testEndpoint("toggle")

	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActive(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetEndpoint(ctx(), ep.ID)
	if got.Active {
		t.Fatal("endpoint still active")
	}
}

// ──────────────────────────────────────────────────
// schema.Store
// ──────────────────────────────────────────────────

func TestModelCRUD(t *testing.T) {
	s := New()
	m := contactModel()

	if err := s.RegisterModel(ctx(), m); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetModel(ctx(), "contact")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Definition.Fields) != 3 {
		t.Fatalf("got %d fields", len(got.Definition.Fields))
	}

	got, err = s.GetModelByID(ctx(), m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "contact" {
		t.Fatalf("got name %q", got.Name())
	}

	// Upsert keeps the original ID.
	m2 := contactModel()
	m2.Definition.Description = "updated"
	if err := s.RegisterModel(ctx(), m2); err != nil {
		t.Fatal(err)
	}
	if m2.ID.String() != m.ID.String() {
		t.Fatal("upsert changed the model ID")
	}

	list, err := s.ListModels(ctx(), schema.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 model, got %d", len(list))
	}

	if err := s.DeleteModel(ctx(), "contact"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetModel(ctx(), "contact"); !errors.Is(err, intake.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// record.Store
// ──────────────────────────────────────────────────

func newRecord(data map[string]any) *record.Record {
	return &record.Record{
		Entity: entity.New(),
		ID:     id.NewRecordID(),
		Model:  "contact",
		Data:   data,
	}
}

func TestRecordCRUD(t *testing.T) {
	s := New()
	if err := s.RegisterModel(ctx(), contactModel()); err != nil {
		t.Fatal(err)
	}

	rec := newRecord(map[string]any{"email": "a@b.co", "full_name": "Ada"})
	if err := s.CreateRecord(ctx(), rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRecord(ctx(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data["email"] != "a@b.co" {
		t.Fatalf("got email %v", got.Data["email"])
	}

	if err := s.UpdateRecord(ctx(), rec.ID, map[string]any{"full_name": "Ada L."}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRecord(ctx(), rec.ID)
	if got.Data["full_name"] != "Ada L." {
		t.Fatalf("partial update clobbered: %v", got.Data)
	}
	if got.Data["email"] != "a@b.co" {
		t.Fatalf("untouched field lost: %v", got.Data)
	}

	count, err := s.CountRecords(ctx(), "contact")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

func TestRecordUniqueViolationOnCreate(t *testing.T) {
	s := New()
	if err := s.RegisterModel(ctx(), contactModel()); err != nil {
		t.Fatal(err)
	}

	if err := s.CreateRecord(ctx(), newRecord(map[string]any{"email": "dup@x.io"})); err != nil {
		t.Fatal(err)
	}
	err := s.CreateRecord(ctx(), newRecord(map[string]any{"email": "dup@x.io"}))
	if !errors.Is(err, record.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestRecordUniqueViolationOnUpdate(t *testing.T) {
	s := New()
	if err := s.RegisterModel(ctx(), contactModel()); err != nil {
		t.Fatal(err)
	}

	a := newRecord(map[string]any{"email": "a@x.io"})
	b := newRecord(map[string]any{"email": "b@x.io"})
	if err := s.CreateRecord(ctx(), a); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRecord(ctx(), b); err != nil {
		t.Fatal(err)
	}

	err := s.UpdateRecord(ctx(), b.ID, map[string]any{"email": "a@x.io"})
	if !errors.Is(err, record.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}

	// Updating a record to its own unique value is fine.
	if err := s.UpdateRecord(ctx(), a.ID, map[string]any{"email": "a@x.io", "full_name": "A"}); err != nil {
		t.Fatal(err)
	}
}

func TestRecordUniqueIndexFollowsUpdate(t *testing.T) {
	s := New()
	if err := s.RegisterModel(ctx(), contactModel()); err != nil {
		t.Fatal(err)
	}

	a := newRecord(map[string]any{"email": "old@x.io"})
	if err := s.CreateRecord(ctx(), a); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateRecord(ctx(), a.ID, map[string]any{"email": "new@x.io"}); err != nil {
		t.Fatal(err)
	}

	// The old value is free again.
	if err := s.CreateRecord(ctx(), newRecord(map[string]any{"email": "old@x.io"})); err != nil {
		t.Fatalf("old unique value not released: %v", err)
	}
	// The new value is held.
	err := s.CreateRecord(ctx(), newRecord(map[string]any{"email": "new@x.io"}))
	if !errors.Is(err, record.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestFindByField(t *testing.T) {
	s := New()
	if err := s.RegisterModel(ctx(), contactModel()); err != nil {
		t.Fatal(err)
	}

	if err := s.CreateRecord(ctx(), newRecord(map[string]any{"email": "find@x.io", "age": int64(30)})); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRecord(ctx(), newRecord(map[string]any{"email": "other@x.io", "age": int64(30)})); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindByField(ctx(), "contact", "email", "find@x.io")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 match, got %d", len(found))
	}

	// Non-unique field can match several records.
	found, err = s.FindByField(ctx(), "contact", "age", int64(30))
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}

	// Numeric normalization: float64 30 matches int64 30.
	found, err = s.FindByField(ctx(), "contact", "age", float64(30))
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected normalized match, got %d", len(found))
	}
}

// ──────────────────────────────────────────────────
// execution.Store
// ──────────────────────────────────────────────────

func TestExecutionLog(t *testing.T) {
	s := New()
	epID := id.NewEndpointID()

	for i, status := range []string{"created", "created", "mapping_error"} {
		exe := &execution.Execution{
			Entity:     entity.New(),
			ID:         id.NewExecutionID(),
			EndpointID: epID,
			Status:     status,
		}
		exe.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		if err := s.CreateExecution(ctx(), exe); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListExecutions(ctx(), epID, execution.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(list))
	}
	// Newest first.
	if list[0].Status != "mapping_error" {
		t.Fatalf("expected newest first, got %q", list[0].Status)
	}

	list, err = s.ListExecutions(ctx(), epID, execution.ListOpts{Status: "created"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("status filter returned %d", len(list))
	}

	count, err := s.CountExecutions(ctx(), epID, "mapping_error")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	got, err := s.GetExecution(ctx(), list[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "created" {
		t.Fatalf("got status %q", got.Status)
	}
}
