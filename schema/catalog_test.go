package schema_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/store/memory"
)

func ctx() context.Context { return context.Background() }

func newCatalog(t *testing.T) (*schema.Catalog, *memory.Store) {
	t.Helper()
	s := memory.New()
	return schema.NewCatalog(s, schema.Config{CacheTTL: time.Minute}, nil), s
}

func contactDef() schema.Definition {
	return schema.Definition{
		Name: "contact",
		Fields: []schema.Field{
			{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
			{Name: "full_name", Type: schema.TypeString},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	c, _ := newCatalog(t)

	m, err := c.Register(ctx(), contactDef())
	if err != nil {
		t.Fatal(err)
	}
	if m.ID.IsNil() {
		t.Fatal("no ID assigned")
	}

	got, err := c.Get(ctx(), "contact")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "contact" {
		t.Fatalf("got %q", got.Name())
	}
}

func TestRegisterValidatesDefinition(t *testing.T) {
	c, _ := newCatalog(t)

	tests := []struct {
		name string
		def  schema.Definition
	}{
		{"missing name", schema.Definition{Fields: []schema.Field{{Name: "x", Type: schema.TypeString}}}},
		{"no fields", schema.Definition{Name: "empty"}},
		{"unnamed field", schema.Definition{Name: "m", Fields: []schema.Field{{Type: schema.TypeString}}}},
		{"duplicate field", schema.Definition{Name: "m", Fields: []schema.Field{
			{Name: "x", Type: schema.TypeString},
			{Name: "x", Type: schema.TypeInteger},
		}}},
		{"unknown type", schema.Definition{Name: "m", Fields: []schema.Field{{Name: "x", Type: "uuid"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Register(ctx(), tt.def)
			var derr *schema.DefinitionError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DefinitionError, got %v", err)
			}
		})
	}
}

func TestGetCachedAfterStoreDelete(t *testing.T) {
	c, s := newCatalog(t)

	if _, err := c.Register(ctx(), contactDef()); err != nil {
		t.Fatal(err)
	}

	// Deleting behind the catalog's back leaves the cache serving the model
	// until the TTL lapses or the cache is invalidated.
	if err := s.DeleteModel(ctx(), "contact"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx(), "contact"); err != nil {
		t.Fatalf("cache miss: %v", err)
	}

	c.InvalidateCache()
	if _, err := c.Get(ctx(), "contact"); !errors.Is(err, intake.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound after invalidation, got %v", err)
	}
}

func TestDeleteEvictsCache(t *testing.T) {
	c, _ := newCatalog(t)

	if _, err := c.Register(ctx(), contactDef()); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx(), "contact"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx(), "contact"); !errors.Is(err, intake.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestWarmCache(t *testing.T) {
	c, s := newCatalog(t)

	if _, err := c.Register(ctx(), contactDef()); err != nil {
		t.Fatal(err)
	}
	if err := c.WarmCache(ctx()); err != nil {
		t.Fatal(err)
	}

	// With a warm cache, the store can disappear entirely.
	if err := s.DeleteModel(ctx(), "contact"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx(), "contact"); err != nil {
		t.Fatalf("warm cache miss: %v", err)
	}
}

func TestRegisterUpsertsByName(t *testing.T) {
	c, _ := newCatalog(t)

	first, err := c.Register(ctx(), contactDef())
	if err != nil {
		t.Fatal(err)
	}

	def := contactDef()
	def.Fields = append(def.Fields, schema.Field{Name: "phone", Type: schema.TypeString})
	second, err := c.Register(ctx(), def)
	if err != nil {
		t.Fatal(err)
	}

	if second.ID.String() != first.ID.String() {
		t.Fatal("re-registering changed the model ID")
	}

	got, _ := c.Get(ctx(), "contact")
	if len(got.Definition.Fields) != 3 {
		t.Fatalf("got %d fields", len(got.Definition.Fields))
	}
}

func TestRegisterOptions(t *testing.T) {
	c, _ := newCatalog(t)

	m, err := c.Register(ctx(), contactDef(),
		schema.WithScopeAppID("app_1"),
		schema.WithMetadata(map[string]string{"team": "growth"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if m.ScopeAppID != "app_1" || m.Metadata["team"] != "growth" {
		t.Fatalf("options not applied: %+v", m)
	}
}
