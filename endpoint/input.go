package endpoint

// Input is the creation/update payload for endpoints.
//
// On update, zero-valued fields are left untouched; pointer fields distinguish
// "not provided" from an explicit zero value.
type Input struct {
	// Slug overrides the slug derived from Name. Optional on create.
	Slug string `json:"slug,omitempty"`

	// Name is the human-readable endpoint name. Required on create.
	Name string `json:"name"`

	// Description explains what this endpoint receives.
	Description string `json:"description,omitempty"`

	// AuthType selects the credential check. Defaults to api_key on create.
	AuthType AuthType `json:"auth_type,omitempty"`

	// TargetModel names the schema catalog model. Required on create.
	TargetModel string `json:"target_model,omitempty"`

	// TargetAction defaults to create.
	TargetAction Action `json:"target_action,omitempty"`

	// Mapping is the ordered external-key → internal-field rule list.
	Mapping []Rule `json:"field_mapping,omitempty"`

	// Defaults are literal fallback values per internal field.
	Defaults map[string]any `json:"default_values,omitempty"`

	// DedupeField is required when TargetAction is update or upsert.
	DedupeField *string `json:"dedupe_field,omitempty"`

	// Active gates the endpoint. Defaults to true on create.
	Active *bool `json:"is_active,omitempty"`

	// RateLimitPerMinute defaults to 60 on create.
	RateLimitPerMinute *int `json:"rate_limit_per_minute,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for endpoint listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}
