package schema

import (
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// FieldType is the declared type of an internal model field. Inbound payload
// values are coerced to this type by the field mapper.
type FieldType string

// Supported field types.
const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeDecimal FieldType = "decimal"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
)

// ValidFieldType reports whether t is one of the supported field types.
func ValidFieldType(t FieldType) bool {
	switch t {
	case TypeString, TypeInteger, TypeDecimal, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// Field describes one internal field of a target model.
type Field struct {
	// Name is the internal field name referenced by endpoint mappings.
	Name string `json:"name"`

	// Type is the declared value type.
	Type FieldType `json:"type"`

	// Required fields must carry a value after mapping and defaults.
	Required bool `json:"required,omitempty"`

	// Unique fields are enforced by the record store with a uniqueness
	// constraint on (model, field, value). An endpoint's dedupe field must
	// be unique; that constraint is what closes the concurrent-upsert race.
	Unique bool `json:"unique,omitempty"`

	// Description is optional documentation for the activity UI.
	Description string `json:"description,omitempty"`
}

// Definition is the caller-supplied description of a target model.
type Definition struct {
	// Name is the catalog key endpoints reference via target_model.
	Name string `json:"name"`

	// Description explains what records of this model represent.
	Description string `json:"description,omitempty"`

	// Fields is the ordered field list.
	Fields []Field `json:"fields"`
}

// Model is the stored entity for a registered target model.
type Model struct {
	entity.Entity

	// ID is the unique TypeID for this model.
	ID id.ID `json:"id"`

	// Definition contains the model descriptor.
	Definition Definition `json:"definition"`

	// ScopeAppID scopes the model to a specific app.
	ScopeAppID string `json:"scope_app_id,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Name returns the catalog key of this model.
func (m *Model) Name() string { return m.Definition.Name }

// Field returns the field with the given name, or false when absent.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Definition.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of all required fields, in declaration order.
func (m *Model) RequiredFields() []string {
	var names []string
	for _, f := range m.Definition.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// UniqueFields returns the names of all unique fields, in declaration order.
func (m *Model) UniqueFields() []string {
	var names []string
	for _, f := range m.Definition.Fields {
		if f.Unique {
			names = append(names, f.Name)
		}
	}
	return names
}

// ListOpts configures filtering and pagination for model listing.
type ListOpts struct {
	Offset int
	Limit  int
}
