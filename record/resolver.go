package record

import (
	"context"
	"fmt"
)

// Resolver determines whether mapped data corresponds to an existing record
// of the target model, keyed by the endpoint's dedupe field.
type Resolver struct {
	store Store
}

// NewResolver creates a dedupe resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up mapped[field] in the model. Returns nil when no record
// matches, the single match otherwise.
//
// A missing or empty dedupe value is ErrMissingDedupeValue: whenever dedupe
// is in play the value is mandatory, even if the schema did not otherwise
// mark the field required. More than one match is ErrAmbiguousMatch.
func (r *Resolver) Resolve(ctx context.Context, model, field string, mapped map[string]any) (*Record, error) {
	value, ok := mapped[field]
	if !ok || value == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDedupeValue, field)
	}
	if s, isStr := value.(string); isStr && s == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingDedupeValue, field)
	}

	matches, err := r.store.FindByField(ctx, model, field, value)
	if err != nil {
		return nil, fmt.Errorf("dedupe lookup %s=%v: %w", field, value, err)
	}

	switch len(matches) {
	case 0:
		return nil, nil //nolint:nilnil // no match is a valid, non-error outcome
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s=%v matched %d records", ErrAmbiguousMatch, field, value, len(matches))
	}
}
