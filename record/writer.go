package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/schema"
)

// Effect is what a write produced.
type Effect int

const (
	// Created means a new record was inserted.
	Created Effect = iota

	// Updated means an existing record was overwritten.
	Updated

	// Validated means a dry run passed every check without persisting.
	Validated
)

// Outcome is the result of one write (or dry run).
type Outcome struct {
	Effect   Effect
	ObjectID id.ID
}

// Writer performs the final create / update / upsert against the target
// model, or validates without persisting in dry-run mode.
type Writer struct {
	store     Store
	resolver  *Resolver
	validator *schema.Validator
	logger    *slog.Logger
}

// NewWriter creates a record writer over the given store.
func NewWriter(store Store, validator *schema.Validator, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		store:     store,
		resolver:  NewResolver(store),
		validator: validator,
		logger:    logger,
	}
}

// Write applies the endpoint's action to mapped data. match is the dedupe
// resolver's outcome (nil for no existing record; always nil for create).
//
// In dry-run mode every validation a real write performs still runs — schema
// conformance and uniqueness checks — but nothing persists and the outcome
// effect is Validated with no object ID.
func (w *Writer) Write(ctx context.Context, m *schema.Model, action endpoint.Action, mapped map[string]any, match *Record, dryRun bool) (*Outcome, error) {
	switch action {
	case endpoint.ActionCreate:
		return w.create(ctx, m, mapped, dryRun)

	case endpoint.ActionUpdate:
		if match == nil {
			return nil, ErrNoMatchForUpdate
		}
		return w.update(ctx, m, mapped, match, dryRun)

	case endpoint.ActionUpsert:
		if match != nil {
			return w.update(ctx, m, mapped, match, dryRun)
		}
		out, err := w.create(ctx, m, mapped, dryRun)
		if errors.Is(err, ErrUniqueViolation) {
			if dryRun {
				// The retry path persists. A dry run surfaces the
				// conflict instead of resolving it.
				return nil, err
			}
			// A concurrent request created the record between our dedupe
			// lookup and the insert. Retry exactly once as an update.
			return w.retryAsUpdate(ctx, m, mapped)
		}
		return out, err

	default:
		return nil, fmt.Errorf("intake/record: unknown action %q", action)
	}
}

// Resolver returns the dedupe resolver backing this writer.
func (w *Writer) Resolver() *Resolver { return w.resolver }

func (w *Writer) create(ctx context.Context, m *schema.Model, mapped map[string]any, dryRun bool) (*Outcome, error) {
	if err := w.validator.Validate(m, mapped); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if dryRun {
		if err := w.checkUnique(ctx, m, mapped, id.Nil); err != nil {
			return nil, err
		}
		return &Outcome{Effect: Validated}, nil
	}

	rec := &Record{
		Entity: entity.New(),
		ID:     id.NewRecordID(),
		Model:  m.Name(),
		Data:   mapped,
	}

	if err := w.withRetry(ctx, func() error { return w.store.CreateRecord(ctx, rec) }); err != nil {
		return nil, err
	}

	return &Outcome{Effect: Created, ObjectID: rec.ID}, nil
}

func (w *Writer) update(ctx context.Context, m *schema.Model, mapped map[string]any, match *Record, dryRun bool) (*Outcome, error) {
	// Validate the merged state: only fields present in mapped are
	// overwritten, the rest of the record survives.
	merged := make(map[string]any, len(match.Data)+len(mapped))
	for k, v := range match.Data {
		merged[k] = v
	}
	for k, v := range mapped {
		merged[k] = v
	}

	if err := w.validator.Validate(m, merged); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if dryRun {
		if err := w.checkUnique(ctx, m, mapped, match.ID); err != nil {
			return nil, err
		}
		return &Outcome{Effect: Validated}, nil
	}

	if err := w.withRetry(ctx, func() error { return w.store.UpdateRecord(ctx, match.ID, mapped) }); err != nil {
		return nil, err
	}

	return &Outcome{Effect: Updated, ObjectID: match.ID}, nil
}

// retryAsUpdate re-resolves after a create lost the insert race and applies
// the payload as an update. Bounded to this single attempt: if the record
// vanished again in between, the conflict is surfaced rather than looped on.
func (w *Writer) retryAsUpdate(ctx context.Context, m *schema.Model, mapped map[string]any) (*Outcome, error) {
	field, conflictVal := conflictField(m, mapped)
	w.logger.Debug("upsert insert conflicted, retrying as update",
		"model", m.Name(),
		"field", field,
	)

	matches, err := w.store.FindByField(ctx, m.Name(), field, conflictVal)
	if err != nil {
		return nil, fmt.Errorf("upsert retry lookup: %w", err)
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("%w: lost insert race but found %d matches", ErrUniqueViolation, len(matches))
	}

	return w.update(ctx, m, mapped, matches[0], false)
}

// conflictField picks the unique field most likely to have collided: the
// first unique model field that carries a mapped value.
func conflictField(m *schema.Model, mapped map[string]any) (string, any) {
	for _, name := range m.UniqueFields() {
		if v, ok := mapped[name]; ok {
			return name, v
		}
	}
	return "", nil
}

// checkUnique performs the uniqueness validation a real insert would get from
// the storage constraint, for dry runs. excludeID skips the record being
// updated.
func (w *Writer) checkUnique(ctx context.Context, m *schema.Model, mapped map[string]any, excludeID id.ID) error {
	for _, name := range m.UniqueFields() {
		v, ok := mapped[name]
		if !ok {
			continue
		}
		matches, err := w.store.FindByField(ctx, m.Name(), name, v)
		if err != nil {
			return fmt.Errorf("uniqueness check %s: %w", name, err)
		}
		for _, match := range matches {
			if match.ID.String() != excludeID.String() {
				return fmt.Errorf("%w: %s=%v", ErrUniqueViolation, name, v)
			}
		}
	}
	return nil
}

// withRetry runs a store operation with a single immediate retry on
// transient failure. Unique violations are deterministic and never retried.
func (w *Writer) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || errors.Is(err, ErrUniqueViolation) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}

	w.logger.Warn("record store operation failed, retrying once", "error", err)
	return op()
}
