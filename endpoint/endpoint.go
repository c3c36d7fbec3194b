package endpoint

import (
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// AuthType selects how inbound requests to an endpoint are authenticated.
type AuthType string

// Supported auth types.
const (
	// AuthNone accepts every request without credentials.
	AuthNone AuthType = "none"

	// AuthAPIKey requires a bearer token in the X-API-Key header.
	AuthAPIKey AuthType = "api_key"

	// AuthHMAC requires an HMAC-SHA256 signature of the raw body in the
	// X-Signature header.
	AuthHMAC AuthType = "hmac"
)

// Action selects what an endpoint does with a mapped payload.
type Action string

// Supported target actions.
const (
	// ActionCreate always inserts a new record.
	ActionCreate Action = "create"

	// ActionUpdate overwrites an existing record found via the dedupe field,
	// and fails when no such record exists.
	ActionUpdate Action = "update"

	// ActionUpsert updates when the dedupe field matches an existing record,
	// and creates otherwise.
	ActionUpsert Action = "upsert"
)

// Rule maps one external payload key onto an internal field of the target model.
type Rule struct {
	// External is the key looked up in the inbound JSON payload.
	External string `json:"external"`

	// Internal is the target model field the value is written to.
	Internal string `json:"internal"`
}

// Endpoint is the durable configuration for one inbound webhook URL.
type Endpoint struct {
	entity.Entity

	// ID is the unique TypeID for this endpoint.
	ID id.ID `json:"id"`

	// Slug is the URL-safe, globally unique path segment for the inbound
	// route. Derived from Name by default, independently editable.
	Slug string `json:"slug"`

	// Name is a human-readable endpoint name.
	Name string `json:"name"`

	// Description explains what this endpoint receives.
	Description string `json:"description"`

	// AuthType selects the credential check applied to inbound requests.
	AuthType AuthType `json:"auth_type"`

	// Credential is the API key or HMAC shared secret. Present iff
	// AuthType != none. Never serialized.
	Credential string `json:"-"`

	// TargetModel names the schema catalog model this endpoint writes to.
	TargetModel string `json:"target_model"`

	// TargetAction is what to do with a mapped payload.
	TargetAction Action `json:"target_action"`

	// Mapping is the ordered list of external-key → internal-field rules.
	// External keys are unique within one endpoint.
	Mapping []Rule `json:"field_mapping"`

	// Defaults are literal values applied to internal fields that received
	// no mapped value. A mapped value always wins over a default.
	Defaults map[string]any `json:"default_values,omitempty"`

	// DedupeField is the internal field used to find an existing record.
	// Required for update and upsert actions.
	DedupeField string `json:"dedupe_field,omitempty"`

	// Active gates the endpoint. Inactive endpoints reject every request
	// before any credential check.
	Active bool `json:"is_active"`

	// RateLimitPerMinute caps accepted requests per rolling 60s window.
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// ScopeAppID scopes the endpoint to a specific app.
	ScopeAppID string `json:"scope_app_id,omitempty"`

	// ScopeOrgID scopes the endpoint to a specific organization.
	ScopeOrgID string `json:"scope_org_id,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NeedsDedupe reports whether the endpoint's action requires a dedupe field.
func (ep *Endpoint) NeedsDedupe() bool {
	return ep.TargetAction == ActionUpdate || ep.TargetAction == ActionUpsert
}
