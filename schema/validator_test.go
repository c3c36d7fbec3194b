package schema_test

import (
	"testing"
	"time"

	"github.com/xraph/intake/schema"
)

func eventModel() *schema.Model {
	return &schema.Model{
		Definition: schema.Definition{
			Name: "signup_event",
			Fields: []schema.Field{
				{Name: "email", Type: schema.TypeString, Required: true},
				{Name: "attempts", Type: schema.TypeInteger},
				{Name: "score", Type: schema.TypeDecimal},
				{Name: "verified", Type: schema.TypeBoolean},
				{Name: "occurred_at", Type: schema.TypeDate},
			},
		},
	}
}

func TestValidateAcceptsTypedValues(t *testing.T) {
	v := schema.NewValidator()

	err := v.Validate(eventModel(), map[string]any{
		"email":       "a@b.co",
		"attempts":    int64(3),
		"score":       7.5,
		"verified":    true,
		"occurred_at": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	v := schema.NewValidator()

	if err := v.Validate(eventModel(), map[string]any{"attempts": int64(1)}); err == nil {
		t.Fatal("missing required field accepted")
	}
}

func TestValidateRejectsWrongTypes(t *testing.T) {
	v := schema.NewValidator()

	bad := []map[string]any{
		{"email": "a@b.co", "attempts": "three"},
		{"email": "a@b.co", "attempts": 2.5},
		{"email": "a@b.co", "verified": "yes"},
		{"email": 42},
	}
	for i, data := range bad {
		if err := v.Validate(eventModel(), data); err == nil {
			t.Fatalf("case %d: invalid data accepted: %v", i, data)
		}
	}
}

func TestValidateRejectsUnknownFields(t *testing.T) {
	v := schema.NewValidator()

	err := v.Validate(eventModel(), map[string]any{"email": "a@b.co", "stray": "x"})
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidateReusesCompiledSchema(t *testing.T) {
	v := schema.NewValidator()
	m := eventModel()

	// Same definition content hits the compiled cache; this mainly asserts
	// repeated validation stays correct, not the caching itself.
	for i := 0; i < 10; i++ {
		if err := v.Validate(m, map[string]any{"email": "a@b.co"}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestJSONSchemaShape(t *testing.T) {
	doc := schema.JSONSchema(eventModel())

	if doc["type"] != "object" {
		t.Fatalf("got type %v", doc["type"])
	}
	if doc["additionalProperties"] != false {
		t.Fatal("additionalProperties not false")
	}

	props := doc["properties"].(map[string]any)
	if len(props) != 5 {
		t.Fatalf("got %d properties", len(props))
	}
	if props["attempts"].(map[string]any)["type"] != "integer" {
		t.Fatalf("attempts schema %v", props["attempts"])
	}
	if props["occurred_at"].(map[string]any)["format"] != "date-time" {
		t.Fatalf("occurred_at schema %v", props["occurred_at"])
	}

	req := doc["required"].([]string)
	if len(req) != 1 || req[0] != "email" {
		t.Fatalf("required %v", req)
	}
}
