package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates mapped record data against a model's generated JSON
// Schema. The record writer runs it for both real writes and dry runs, so a
// dry run exercises exactly the validation a persisted write would.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema // keyed by schema JSON content
}

// NewValidator creates a new schema validator.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks mapped data against the model's field declarations.
func (v *Validator) Validate(m *Model, data map[string]any) error {
	compiled, err := v.compile(m)
	if err != nil {
		return fmt.Errorf("schema compilation error: %w", err)
	}

	// Round-trip through JSON so typed Go values (time.Time, int64) become
	// the decoded forms the schema compiler understands.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal record data: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal record data: %w", err)
	}

	return compiled.Validate(doc)
}

// JSONSchema generates the JSON Schema document for a model. Exposed so the
// admin API can serve it for documentation.
func JSONSchema(m *Model) map[string]any {
	props := make(map[string]any, len(m.Definition.Fields))
	for _, f := range m.Definition.Fields {
		props[f.Name] = fieldSchema(f)
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if req := m.RequiredFields(); len(req) > 0 {
		doc["required"] = req
	}
	return doc
}

func fieldSchema(f Field) map[string]any {
	s := map[string]any{}
	switch f.Type {
	case TypeString:
		s["type"] = "string"
	case TypeInteger:
		s["type"] = "integer"
	case TypeDecimal:
		s["type"] = "number"
	case TypeBoolean:
		s["type"] = "boolean"
	case TypeDate:
		s["type"] = "string"
		s["format"] = "date-time"
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}

// compile returns a compiled schema for the model, using the cache for
// previously-seen schema content.
func (v *Validator) compile(m *Model) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(JSONSchema(m))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(raw)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	var doc any
	if unmarshalErr := json.Unmarshal(raw, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", unmarshalErr)
	}

	// Use a unique URL as the schema resource identifier.
	url := "intake://schema/" + sanitizeKey(m.Name()+":"+key)

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.cache[key] = compiled
	v.mu.Unlock()

	return compiled, nil
}

// sanitizeKey creates a safe URL path segment from a schema key.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(
		`"`, "",
		`{`, "",
		`}`, "",
		` `, "_",
		`:`, "",
	)
	s := r.Replace(key)
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
