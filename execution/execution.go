// Package execution records the outcome of every ingestion pipeline run for
// the endpoint owner's activity/log viewer.
package execution

import (
	"time"

	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/mapping"
)

// Execution is one pipeline run, real or dry-run.
type Execution struct {
	entity.Entity

	// ID is the unique TypeID for this execution.
	ID id.ID `json:"id"`

	// EndpointID is the endpoint the run belonged to.
	EndpointID id.ID `json:"endpoint_id"`

	// Status is the terminal pipeline status string.
	Status string `json:"status"`

	// Message is the human-readable summary. Full detail is owner-facing
	// only; external callers get a generic message instead.
	Message string `json:"message"`

	// ObjectID is the created/updated record, when the run wrote one.
	ObjectID id.ID `json:"object_id,omitempty"`

	// MappingErrors holds the ordered per-field problems, when mapping failed.
	MappingErrors []mapping.FieldError `json:"mapping_errors,omitempty"`

	// MappedData is the resolved internal field set that was (or would have
	// been) written.
	MappedData map[string]any `json:"mapped_data,omitempty"`

	// DryRun marks test-operation runs that persisted nothing.
	DryRun bool `json:"dry_run,omitempty"`

	// DurationMs is the pipeline wall time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// ScopeAppID scopes the execution to a specific app.
	ScopeAppID string `json:"scope_app_id,omitempty"`

	// ScopeOrgID scopes the execution to a specific organization.
	ScopeOrgID string `json:"scope_org_id,omitempty"`
}

// ListOpts configures filtering and pagination for execution listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status string
	From   *time.Time
	To     *time.Time
}
