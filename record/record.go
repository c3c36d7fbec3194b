// Package record defines the target record store capability the ingestion
// engine writes through: create/find/update by field, a dedupe resolver, and
// the record writer with dry-run support.
package record

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// Sentinel errors returned by record stores and the writer.
var (
	// ErrNotFound is returned when a record cannot be found by ID.
	ErrNotFound = errors.New("intake/record: record not found")

	// ErrUniqueViolation is returned by CreateRecord and UpdateRecord when a
	// unique field value collides with an existing record. This constraint is
	// what closes the concurrent-upsert race.
	ErrUniqueViolation = errors.New("intake/record: unique constraint violation")

	// ErrAmbiguousMatch is returned when more than one record matches a
	// dedupe lookup. Picking one silently would be unsafe.
	ErrAmbiguousMatch = errors.New("intake/record: multiple records match dedupe field")

	// ErrNoMatchForUpdate is returned by the writer when an update action
	// finds no existing record. Updates never silently create.
	ErrNoMatchForUpdate = errors.New("intake/record: record not found for update")

	// ErrMissingDedupeValue is returned when the mapped data carries no
	// value for the dedupe field. Surfaced to the caller as a mapping
	// problem, since the payload (not the store) is at fault.
	ErrMissingDedupeValue = errors.New("intake/record: dedupe field value missing")
)

// Record is one stored row of a target model.
type Record struct {
	entity.Entity

	// ID is the unique TypeID for this record.
	ID id.ID `json:"id"`

	// Model names the schema catalog model this record belongs to.
	Model string `json:"model"`

	// Data holds the typed internal field values.
	Data map[string]any `json:"data"`
}

// ListOpts configures filtering and pagination for record listing.
type ListOpts struct {
	Offset int
	Limit  int
}

// KeyString normalizes a typed field value into the canonical string form
// used for unique indexes and exact-match lookups. All store backends must
// key through this so that, e.g., the int64 7 and the float64 7 collide.
func KeyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", x)
	}
}
