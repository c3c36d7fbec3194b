// Package mapping translates arbitrary external JSON payloads into typed
// internal field values.
//
// An endpoint's string-keyed mapping and default tables are parsed once, at
// configuration load, into a compiled Mapper. Unknown internal fields are
// rejected at that parse boundary so they can never surface as request-time
// errors. Applying the mapper is exhaustive: every field problem in a payload
// is collected, none aborts the others, so the owner's test view can show all
// problems at once.
package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/intake/schema"
)

// Pair is one uncompiled mapping entry as configured on an endpoint.
type Pair struct {
	External string
	Internal string
}

// Rule is one compiled mapping entry: where a value comes from, where it
// goes, and what type it must coerce to.
type Rule struct {
	External string
	Internal string
	Type     schema.FieldType
	Required bool
}

// FieldError describes one per-field mapping problem.
type FieldError struct {
	// Field is the internal field name the problem applies to.
	Field string `json:"field"`

	// External is the payload key the value came from, when applicable.
	External string `json:"external_key,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Value is the offending payload value, when applicable.
	Value any `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	return "mapping: " + e.Field + ": " + e.Message
}

// Mapper is an endpoint's mapping configuration compiled against its target
// model. A Mapper is immutable and safe for concurrent use.
type Mapper struct {
	rules    []Rule
	defaults map[string]any
	required []string // required model fields, declaration order
}

// Compile parses mapping rules and defaults against the target model,
// rejecting references to unknown internal fields and duplicate external
// keys. Both are configuration errors that endpoint validation surfaces to
// the owner; a compiled Mapper can no longer produce them.
func Compile(rules []Pair, defaults map[string]any, m *schema.Model) (*Mapper, error) {
	compiled := make([]Rule, 0, len(rules))
	seenExternal := make(map[string]bool, len(rules))

	for _, r := range rules {
		if r.External == "" || r.Internal == "" {
			return nil, fmt.Errorf("mapping: empty key in rule %q -> %q", r.External, r.Internal)
		}
		if seenExternal[r.External] {
			return nil, fmt.Errorf("mapping: duplicate external key %q", r.External)
		}
		seenExternal[r.External] = true

		f, ok := m.Field(r.Internal)
		if !ok {
			return nil, fmt.Errorf("mapping: unknown internal field %q in model %q", r.Internal, m.Name())
		}
		compiled = append(compiled, Rule{
			External: r.External,
			Internal: r.Internal,
			Type:     f.Type,
			Required: f.Required,
		})
	}

	coercedDefaults := make(map[string]any, len(defaults))
	for name, val := range defaults {
		f, ok := m.Field(name)
		if !ok {
			return nil, fmt.Errorf("mapping: default for unknown internal field %q in model %q", name, m.Name())
		}
		coerced, err := Coerce(val, f.Type)
		if err != nil {
			return nil, fmt.Errorf("mapping: default for %q: %w", name, err)
		}
		coercedDefaults[name] = coerced
	}

	return &Mapper{
		rules:    compiled,
		defaults: coercedDefaults,
		required: m.RequiredFields(),
	}, nil
}

// Rules returns the compiled rules in configuration order.
func (mp *Mapper) Rules() []Rule { return mp.rules }

// Apply maps a parsed external payload onto internal field values.
//
// The result is deterministic for a fixed payload regardless of JSON key
// order: rules are walked in configuration order, and the payload is only
// read through exact key lookups. Keys present in the payload but absent
// from the mapping are ignored.
func (mp *Mapper) Apply(payload map[string]any) (map[string]any, []FieldError) {
	mapped := make(map[string]any, len(mp.rules)+len(mp.defaults))
	var errs []FieldError

	for _, r := range mp.rules {
		raw, ok := payload[r.External]
		if !ok {
			// Not provided. Required coverage is checked after defaults.
			continue
		}
		coerced, err := Coerce(raw, r.Type)
		if err != nil {
			errs = append(errs, FieldError{
				Field:    r.Internal,
				External: r.External,
				Message:  err.Error(),
				Value:    raw,
			})
			continue
		}
		mapped[r.Internal] = coerced
	}

	// Defaults fill only fields with no mapped value. A mapped empty string
	// still counts as a value and beats the default.
	for name, val := range mp.defaults {
		if _, ok := mapped[name]; !ok {
			mapped[name] = val
		}
	}

	for _, name := range mp.required {
		if _, ok := mapped[name]; !ok {
			errs = append(errs, FieldError{
				Field:   name,
				Message: "required field missing",
			})
		}
	}

	return mapped, errs
}

// Coerce converts a decoded JSON value to the declared field type.
func Coerce(v any, t schema.FieldType) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("null value for %s field", t)
	}

	switch t {
	case schema.TypeString:
		return coerceString(v)
	case schema.TypeInteger:
		return coerceInteger(v)
	case schema.TypeDecimal:
		return coerceDecimal(v)
	case schema.TypeBoolean:
		return coerceBoolean(v)
	case schema.TypeDate:
		return coerceDate(v)
	}
	return nil, fmt.Errorf("unsupported field type %q", t)
}

func coerceString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	}
	return nil, fmt.Errorf("cannot coerce %T to string", v)
}

func coerceInteger(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("non-integral number %v", x)
		}
		return int64(x), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as integer", x)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to integer", v)
}

func coerceDecimal(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as decimal", x)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to decimal", v)
}

func coerceBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		if x == 0 {
			return false, nil
		}
		if x == 1 {
			return true, nil
		}
		return nil, fmt.Errorf("cannot coerce number %v to boolean", x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("cannot parse %q as boolean", x)
	}
	return nil, fmt.Errorf("cannot coerce %T to boolean", v)
}

// dateLayouts are accepted date formats, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

func coerceDate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to date", v)
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return ts.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as date", s)
}
