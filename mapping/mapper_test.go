package mapping_test

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/intake/mapping"
	"github.com/xraph/intake/schema"
)

func testModel() *schema.Model {
	return &schema.Model{
		Definition: schema.Definition{
			Name: "candidate",
			Fields: []schema.Field{
				{Name: "email", Type: schema.TypeString, Required: true, Unique: true},
				{Name: "full_name", Type: schema.TypeString},
				{Name: "age", Type: schema.TypeInteger},
				{Name: "score", Type: schema.TypeDecimal},
				{Name: "remote", Type: schema.TypeBoolean},
				{Name: "applied_at", Type: schema.TypeDate},
				{Name: "source", Type: schema.TypeString},
			},
		},
	}
}

func compile(t *testing.T, pairs []mapping.Pair, defaults map[string]any) *mapping.Mapper {
	t.Helper()
	mp, err := mapping.Compile(pairs, defaults, testModel())
	if err != nil {
		t.Fatal(err)
	}
	return mp
}

// ──────────────────────────────────────────────────
// Compile
// ──────────────────────────────────────────────────

func TestCompileRejectsUnknownInternalField(t *testing.T) {
	_, err := mapping.Compile([]mapping.Pair{{External: "x", Internal: "nope"}}, nil, testModel())
	if err == nil || !strings.Contains(err.Error(), "unknown internal field") {
		t.Fatalf("got %v", err)
	}
}

func TestCompileRejectsDuplicateExternalKey(t *testing.T) {
	_, err := mapping.Compile([]mapping.Pair{
		{External: "e", Internal: "email"},
		{External: "e", Internal: "full_name"},
	}, nil, testModel())
	if err == nil || !strings.Contains(err.Error(), "duplicate external key") {
		t.Fatalf("got %v", err)
	}
}

func TestCompileRejectsEmptyKeys(t *testing.T) {
	_, err := mapping.Compile([]mapping.Pair{{External: "", Internal: "email"}}, nil, testModel())
	if err == nil {
		t.Fatal("empty external key accepted")
	}
	_, err = mapping.Compile([]mapping.Pair{{External: "e", Internal: ""}}, nil, testModel())
	if err == nil {
		t.Fatal("empty internal field accepted")
	}
}

func TestCompileRejectsBadDefaults(t *testing.T) {
	_, err := mapping.Compile(nil, map[string]any{"nope": "x"}, testModel())
	if err == nil || !strings.Contains(err.Error(), "unknown internal field") {
		t.Fatalf("unknown default field: got %v", err)
	}

	_, err = mapping.Compile(nil, map[string]any{"age": "not a number"}, testModel())
	if err == nil {
		t.Fatal("uncoercible default accepted")
	}
}

func TestCompileCoercesDefaults(t *testing.T) {
	mp := compile(t, []mapping.Pair{{External: "e", Internal: "email"}}, map[string]any{"age": "42"})

	mapped, errs := mp.Apply(map[string]any{"e": "a@b.co"})
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if mapped["age"] != int64(42) {
		t.Fatalf("default not coerced at compile time: %v (%T)", mapped["age"], mapped["age"])
	}
}

// ──────────────────────────────────────────────────
// Apply
// ──────────────────────────────────────────────────

func TestApplyMapsAndIgnoresUnmappedKeys(t *testing.T) {
	mp := compile(t, []mapping.Pair{
		{External: "email_address", Internal: "email"},
		{External: "name", Internal: "full_name"},
	}, nil)

	mapped, errs := mp.Apply(map[string]any{
		"email_address": "a@b.co",
		"name":          "Ada",
		"unrelated":     "ignored",
	})
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if mapped["email"] != "a@b.co" || mapped["full_name"] != "Ada" {
		t.Fatalf("mapped %v", mapped)
	}
	if _, ok := mapped["unrelated"]; ok {
		t.Fatal("unmapped payload key leaked through")
	}
}

func TestApplyCollectsAllErrors(t *testing.T) {
	mp := compile(t, []mapping.Pair{
		{External: "e", Internal: "email"},
		{External: "a", Internal: "age"},
		{External: "r", Internal: "remote"},
	}, nil)

	// Two bad values plus a missing required field: all three reported.
	_, errs := mp.Apply(map[string]any{"a": "NaN", "r": "perhaps"})
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestApplyDefaultsFillOnlyUnsetFields(t *testing.T) {
	mp := compile(t, []mapping.Pair{
		{External: "e", Internal: "email"},
		{External: "src", Internal: "source"},
	}, map[string]any{"source": "webhook"})

	// Key absent: default applies.
	mapped, _ := mp.Apply(map[string]any{"e": "a@b.co"})
	if mapped["source"] != "webhook" {
		t.Fatalf("got %v", mapped["source"])
	}

	// Mapped empty string beats the default.
	mapped, _ = mp.Apply(map[string]any{"e": "a@b.co", "src": ""})
	if mapped["source"] != "" {
		t.Fatalf("default overrode mapped empty string: %v", mapped["source"])
	}
}

func TestApplyRequiredSatisfiedByDefault(t *testing.T) {
	mp := compile(t, []mapping.Pair{{External: "n", Internal: "full_name"}},
		map[string]any{"email": "fallback@x.io"})

	mapped, errs := mp.Apply(map[string]any{"n": "Ada"})
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}
	if mapped["email"] != "fallback@x.io" {
		t.Fatalf("got %v", mapped["email"])
	}
}

func TestApplyRequiredMissing(t *testing.T) {
	mp := compile(t, []mapping.Pair{{External: "n", Internal: "full_name"}}, nil)

	_, errs := mp.Apply(map[string]any{"n": "Ada"})
	if len(errs) != 1 || errs[0].Field != "email" {
		t.Fatalf("got %v", errs)
	}
}

func TestApplyDeterministic(t *testing.T) {
	mp := compile(t, []mapping.Pair{
		{External: "e", Internal: "email"},
		{External: "a", Internal: "age"},
	}, map[string]any{"source": "api"})

	payload := map[string]any{"e": "d@x.io", "a": float64(7)}
	first, _ := mp.Apply(payload)
	for i := 0; i < 50; i++ {
		again, _ := mp.Apply(payload)
		if len(again) != len(first) {
			t.Fatal("non-deterministic result size")
		}
		for k, v := range first {
			if again[k] != v {
				t.Fatalf("non-deterministic value for %q: %v vs %v", k, v, again[k])
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Coerce
// ──────────────────────────────────────────────────

func TestCoerce(t *testing.T) {
	utc := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      any
		typ     schema.FieldType
		want    any
		wantErr bool
	}{
		{"string passthrough", "hi", schema.TypeString, "hi", false},
		{"number to string", float64(3.5), schema.TypeString, "3.5", false},
		{"bool to string", true, schema.TypeString, "true", false},

		{"whole float to integer", float64(42), schema.TypeInteger, int64(42), false},
		{"fractional float to integer", float64(42.5), schema.TypeInteger, nil, true},
		{"numeric string to integer", " 17 ", schema.TypeInteger, int64(17), false},
		{"junk string to integer", "abc", schema.TypeInteger, nil, true},

		{"float to decimal", float64(2.75), schema.TypeDecimal, float64(2.75), false},
		{"string to decimal", "2.75", schema.TypeDecimal, float64(2.75), false},

		{"bool passthrough", true, schema.TypeBoolean, true, false},
		{"one to boolean", float64(1), schema.TypeBoolean, true, false},
		{"zero to boolean", float64(0), schema.TypeBoolean, false, false},
		{"two to boolean", float64(2), schema.TypeBoolean, nil, true},
		{"yes to boolean", "YES", schema.TypeBoolean, true, false},
		{"no to boolean", "no", schema.TypeBoolean, false, false},
		{"maybe to boolean", "maybe", schema.TypeBoolean, nil, true},

		{"date only", "2024-03-10", schema.TypeDate, utc, false},
		{"rfc3339", "2024-03-10T00:00:00Z", schema.TypeDate, utc, false},
		{"bad date", "next tuesday", schema.TypeDate, nil, true},
		{"number to date", float64(5), schema.TypeDate, nil, true},

		{"null is never valid", nil, schema.TypeString, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapping.Coerce(tt.in, tt.typ)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ts, ok := tt.want.(time.Time); ok {
				if !got.(time.Time).Equal(ts) {
					t.Fatalf("got %v, want %v", got, ts)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}
