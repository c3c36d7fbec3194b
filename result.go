package intake

import (
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/mapping"
)

// Status is the terminal outcome of one pipeline run.
type Status string

// Terminal statuses. Exactly one is produced per inbound request or test run.
const (
	// StatusValid means a dry run passed every validation without persisting.
	StatusValid Status = "valid"

	// StatusCreated means a new record was written.
	StatusCreated Status = "created"

	// StatusUpdated means an existing record was overwritten.
	StatusUpdated Status = "updated"

	// StatusRejectedAuth means the request's credentials were not accepted.
	StatusRejectedAuth Status = "rejected_auth"

	// StatusRejectedRateLimit means the endpoint's rolling window is full.
	StatusRejectedRateLimit Status = "rejected_rate_limit"

	// StatusRejectedInactive means the endpoint is disabled. Checked before
	// auth so a disabled endpoint leaks nothing about its credentials.
	StatusRejectedInactive Status = "rejected_inactive"

	// StatusMappingError means the payload could not be mapped onto the
	// target model. Terminal; no write is attempted.
	StatusMappingError Status = "mapping_error"

	// StatusWriteError means the mapped data could not be written.
	StatusWriteError Status = "write_error"
)

// Rejected reports whether the status is a runtime rejection rather than a
// processing failure.
func (s Status) Rejected() bool {
	switch s {
	case StatusRejectedAuth, StatusRejectedRateLimit, StatusRejectedInactive:
		return true
	}
	return false
}

// Wrote reports whether the status carries an object ID.
func (s Status) Wrote() bool {
	return s == StatusCreated || s == StatusUpdated
}

// Result is the uniform outcome of one pipeline run, real or dry-run.
type Result struct {
	// Status is the terminal outcome.
	Status Status `json:"status"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// ObjectID is the created/updated record. Present only on
	// created/updated.
	ObjectID id.ID `json:"object_id,omitempty"`

	// MappingErrors is the ordered list of per-field problems, populated on
	// mapping_error.
	MappingErrors []mapping.FieldError `json:"mapping_errors,omitempty"`

	// MappedData is the fully resolved internal field set that was (or
	// would have been) written.
	MappedData map[string]any `json:"mapped_data,omitempty"`
}
