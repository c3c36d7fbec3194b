package api

import (
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/schema"
)

// ---------------------------------------------------------------------------
// Model requests
// ---------------------------------------------------------------------------

// RegisterModelForgeRequest binds the body for POST /models.
type RegisterModelForgeRequest struct {
	Name        string            `description:"Model name (e.g. contact)"          json:"name"`
	Description string            `description:"Human-readable description"         json:"description,omitempty"`
	Fields      []schema.Field    `description:"Ordered field declarations"         json:"fields"`
	ScopeAppID  string            `description:"Scope to specific app"              json:"scope_app_id,omitempty"`
	Metadata    map[string]string `description:"Arbitrary key-value metadata"       json:"metadata,omitempty"`
}

// ListModelsForgeRequest binds query parameters for GET /models.
type ListModelsForgeRequest struct {
	Offset int `description:"Pagination offset"      query:"offset"`
	Limit  int `description:"Page size (default 50)" query:"limit"`
}

// GetModelForgeRequest binds the path for GET /models/:name.
type GetModelForgeRequest struct {
	Name string `description:"Model name" path:"name"`
}

// DeleteModelForgeRequest binds the path for DELETE /models/:name.
type DeleteModelForgeRequest struct {
	Name string `description:"Model name" path:"name"`
}

// ---------------------------------------------------------------------------
// Endpoint requests
// ---------------------------------------------------------------------------

// CreateEndpointForgeRequest binds the body for POST /endpoints.
type CreateEndpointForgeRequest struct {
	Slug               string            `description:"URL slug (derived from name if empty)" json:"slug,omitempty"`
	Name               string            `description:"Endpoint name"                         json:"name"`
	Description        string            `description:"Endpoint description"                  json:"description,omitempty"`
	AuthType           string            `description:"Auth mode: none, api_key or hmac"      json:"auth_type,omitempty"`
	TargetModel        string            `description:"Target model name"                     json:"target_model"`
	TargetAction       string            `description:"Write action: create, update, upsert"  json:"target_action,omitempty"`
	Mapping            []endpoint.Rule   `description:"External-to-internal field rules"      json:"field_mapping,omitempty"`
	Defaults           map[string]any    `description:"Fallback values per internal field"    json:"default_values,omitempty"`
	DedupeField        *string           `description:"Match field for update/upsert"         json:"dedupe_field,omitempty"`
	Active             *bool             `description:"Whether the endpoint accepts traffic"  json:"is_active,omitempty"`
	RateLimitPerMinute *int              `description:"Rolling 60s request budget"            json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]string `description:"Arbitrary key-value metadata"          json:"metadata,omitempty"`
}

// ListEndpointsForgeRequest binds query parameters for GET /endpoints.
type ListEndpointsForgeRequest struct {
	Active string `description:"Filter by active flag"  query:"active"`
	Offset int    `description:"Pagination offset"      query:"offset"`
	Limit  int    `description:"Page size (default 50)" query:"limit"`
}

// GetEndpointForgeRequest binds the path for GET /endpoints/:endpointId.
type GetEndpointForgeRequest struct {
	EndpointID string `description:"Endpoint identifier" path:"endpointId"`
}

// UpdateEndpointForgeRequest binds path + body for PUT /endpoints/:endpointId.
type UpdateEndpointForgeRequest struct {
	EndpointID         string            `description:"Endpoint identifier"                   path:"endpointId"`
	Slug               string            `description:"URL slug"                              json:"slug,omitempty"`
	Name               string            `description:"Endpoint name"                         json:"name,omitempty"`
	Description        string            `description:"Endpoint description"                  json:"description,omitempty"`
	AuthType           string            `description:"Auth mode: none, api_key or hmac"      json:"auth_type,omitempty"`
	TargetModel        string            `description:"Target model name"                     json:"target_model,omitempty"`
	TargetAction       string            `description:"Write action: create, update, upsert"  json:"target_action,omitempty"`
	Mapping            []endpoint.Rule   `description:"External-to-internal field rules"      json:"field_mapping,omitempty"`
	Defaults           map[string]any    `description:"Fallback values per internal field"    json:"default_values,omitempty"`
	DedupeField        *string           `description:"Match field for update/upsert"         json:"dedupe_field,omitempty"`
	Active             *bool             `description:"Whether the endpoint accepts traffic"  json:"is_active,omitempty"`
	RateLimitPerMinute *int              `description:"Rolling 60s request budget"            json:"rate_limit_per_minute,omitempty"`
	Metadata           map[string]string `description:"Arbitrary key-value metadata"          json:"metadata,omitempty"`
}

// DeleteEndpointForgeRequest binds the path for DELETE /endpoints/:endpointId.
type DeleteEndpointForgeRequest struct {
	EndpointID string `description:"Endpoint identifier" path:"endpointId"`
}

// EndpointActionForgeRequest binds the path for activate/deactivate/rotate-credential.
type EndpointActionForgeRequest struct {
	EndpointID string `description:"Endpoint identifier" path:"endpointId"`
}

// TestEndpointForgeRequest binds path + body for POST /endpoints/:endpointId/test.
type TestEndpointForgeRequest struct {
	EndpointID string         `description:"Endpoint identifier"              path:"endpointId"`
	Payload    map[string]any `description:"Payload to run through the pipeline" json:"payload"`
	DryRun     bool           `description:"Validate without persisting"      json:"dry_run,omitempty"`
}

// ---------------------------------------------------------------------------
// Execution requests
// ---------------------------------------------------------------------------

// ListExecutionsForgeRequest binds path + query for GET /endpoints/:endpointId/executions.
type ListExecutionsForgeRequest struct {
	EndpointID string `description:"Endpoint identifier"       path:"endpointId"`
	Status     string `description:"Filter by terminal status" query:"status"`
	From       string `description:"Window start (RFC3339)"    query:"from"`
	To         string `description:"Window end (RFC3339)"      query:"to"`
	Offset     int    `description:"Pagination offset"         query:"offset"`
	Limit      int    `description:"Page size (default 50)"    query:"limit"`
}

// GetExecutionForgeRequest binds the path for GET /executions/:executionId.
type GetExecutionForgeRequest struct {
	ExecutionID string `description:"Execution identifier" path:"executionId"`
}

// StatsForgeRequest binds the path for GET /endpoints/:endpointId/stats.
type StatsForgeRequest struct {
	EndpointID string `description:"Endpoint identifier" path:"endpointId"`
}

// StatsForgeResponse is the response for GET /endpoints/:endpointId/stats.
type StatsForgeResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// CredentialForgeResponse is the response for POST /endpoints/:endpointId/rotate-credential.
type CredentialForgeResponse struct {
	Credential string `json:"credential"`
}

// ---------------------------------------------------------------------------
// Helper -- compile-time check that id.ID is used (keep import alive).
// ---------------------------------------------------------------------------

var _ = id.Nil
