package endpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/mapping"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/signature"
)

// Creation defaults.
const (
	DefaultAuthType           = AuthAPIKey
	DefaultAction             = ActionCreate
	DefaultRateLimitPerMinute = 60
)

// Service provides endpoint configuration management.
//
// All configuration errors — unknown target model, mapping rules referencing
// fields the model does not have, a dedupe field invalid for the action —
// are rejected here, synchronously, so they can never surface at request time.
type Service struct {
	store  Store
	models *schema.Catalog
	logger *slog.Logger
}

// NewService creates a new endpoint service.
func NewService(store Store, models *schema.Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		models: models,
		logger: logger,
	}
}

// Create registers a new webhook endpoint. The issued credential is
// retrievable from the returned endpoint's Credential field; it is never
// serialized and cannot be read back later.
func (svc *Service) Create(ctx context.Context, in Input) (*Endpoint, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	ep := &Endpoint{
		Entity:             entity.New(),
		ID:                 id.NewEndpointID(),
		Slug:               in.Slug,
		Name:               in.Name,
		Description:        in.Description,
		AuthType:           DefaultAuthType,
		TargetModel:        in.TargetModel,
		TargetAction:       DefaultAction,
		Mapping:            in.Mapping,
		Defaults:           in.Defaults,
		Active:             true,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		Metadata:           in.Metadata,
	}

	if in.AuthType != "" {
		ep.AuthType = in.AuthType
	}
	if in.TargetAction != "" {
		ep.TargetAction = in.TargetAction
	}
	if in.DedupeField != nil {
		ep.DedupeField = *in.DedupeField
	}
	if in.Active != nil {
		ep.Active = *in.Active
	}
	if in.RateLimitPerMinute != nil {
		ep.RateLimitPerMinute = *in.RateLimitPerMinute
	}
	if ep.Slug == "" {
		ep.Slug = Slugify(in.Name)
	}

	if err := svc.validate(ctx, ep); err != nil {
		return nil, err
	}

	ep.Credential = issueCredential(ep.AuthType)

	if err := svc.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "endpoint created",
		"endpoint_id", ep.ID,
		"slug", ep.Slug,
		"target_model", ep.TargetModel,
		"target_action", ep.TargetAction,
	)

	return ep, nil
}

// Get returns an endpoint by ID.
func (svc *Service) Get(ctx context.Context, epID id.ID) (*Endpoint, error) {
	return svc.store.GetEndpoint(ctx, epID)
}

// GetBySlug returns an endpoint by slug.
func (svc *Service) GetBySlug(ctx context.Context, slug string) (*Endpoint, error) {
	return svc.store.GetEndpointBySlug(ctx, slug)
}

// Update applies a partial configuration change. Changing Name does not
// re-derive the slug; the slug only changes when set explicitly.
func (svc *Service) Update(ctx context.Context, epID id.ID, in Input) (*Endpoint, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}

	if in.Slug != "" {
		ep.Slug = in.Slug
	}
	if in.Name != "" {
		ep.Name = in.Name
	}
	if in.Description != "" {
		ep.Description = in.Description
	}
	if in.TargetModel != "" {
		ep.TargetModel = in.TargetModel
	}
	if in.TargetAction != "" {
		ep.TargetAction = in.TargetAction
	}
	if in.Mapping != nil {
		ep.Mapping = in.Mapping
	}
	if in.Defaults != nil {
		ep.Defaults = in.Defaults
	}
	if in.DedupeField != nil {
		ep.DedupeField = *in.DedupeField
	}
	if in.Active != nil {
		ep.Active = *in.Active
	}
	if in.RateLimitPerMinute != nil {
		ep.RateLimitPerMinute = *in.RateLimitPerMinute
	}
	if in.Metadata != nil {
		ep.Metadata = in.Metadata
	}
	if in.AuthType != "" && in.AuthType != ep.AuthType {
		// Switching auth modes invalidates the old credential and issues a
		// fresh one of the right kind in the same atomic update.
		ep.AuthType = in.AuthType
		ep.Credential = issueCredential(in.AuthType)
	}

	if err := svc.validate(ctx, ep); err != nil {
		return nil, err
	}

	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, err
	}

	return ep, nil
}

// Delete removes an endpoint permanently. Its slug becomes reusable and its
// credential stops validating immediately.
func (svc *Service) Delete(ctx context.Context, epID id.ID) error {
	if err := svc.store.DeleteEndpoint(ctx, epID); err != nil {
		return err
	}
	svc.logger.InfoContext(ctx, "endpoint deleted", "endpoint_id", epID)
	return nil
}

// List returns endpoints, optionally filtered.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Endpoint, error) {
	return svc.store.ListEndpoints(ctx, opts)
}

// SetActive activates or deactivates an endpoint.
func (svc *Service) SetActive(ctx context.Context, epID id.ID, active bool) error {
	return svc.store.SetActive(ctx, epID, active)
}

// RotateCredential atomically issues a fresh credential and invalidates the
// old one. The plaintext is returned exactly once; it is never retrievable
// again. Endpoints with auth disabled have nothing to rotate.
func (svc *Service) RotateCredential(ctx context.Context, epID id.ID) (string, error) {
	ep, err := svc.store.GetEndpoint(ctx, epID)
	if err != nil {
		return "", err
	}

	if ep.AuthType == AuthNone {
		return "", &ValidationError{Field: "auth_type", Message: "endpoint has no credential to rotate"}
	}

	ep.Credential = issueCredential(ep.AuthType)
	if err := svc.store.UpdateEndpoint(ctx, ep); err != nil {
		return "", err
	}

	svc.logger.InfoContext(ctx, "endpoint credential rotated", "endpoint_id", epID)

	return ep.Credential, nil
}

// validate enforces the full endpoint invariant set against the schema
// catalog. Runs on create and on every update.
func (svc *Service) validate(ctx context.Context, ep *Endpoint) error {
	if !ValidSlug(ep.Slug) {
		return &ValidationError{Field: "slug", Message: fmt.Sprintf("%q is not a valid slug", ep.Slug)}
	}

	switch ep.AuthType {
	case AuthNone, AuthAPIKey, AuthHMAC:
	default:
		return &ValidationError{Field: "auth_type", Message: fmt.Sprintf("unknown auth type %q", ep.AuthType)}
	}

	switch ep.TargetAction {
	case ActionCreate, ActionUpdate, ActionUpsert:
	default:
		return &ValidationError{Field: "target_action", Message: fmt.Sprintf("unknown action %q", ep.TargetAction)}
	}

	if ep.RateLimitPerMinute <= 0 {
		return &ValidationError{Field: "rate_limit_per_minute", Message: "must be positive"}
	}

	if ep.TargetModel == "" {
		return &ValidationError{Field: "target_model", Message: "required"}
	}
	model, err := svc.models.Get(ctx, ep.TargetModel)
	if err != nil {
		return &ValidationError{Field: "target_model", Message: fmt.Sprintf("unknown model %q", ep.TargetModel)}
	}

	// Compiling the mapping catches duplicate external keys, references to
	// unknown internal fields, and defaults that do not coerce.
	pairs := make([]mapping.Pair, len(ep.Mapping))
	for i, r := range ep.Mapping {
		pairs[i] = mapping.Pair{External: r.External, Internal: r.Internal}
	}
	if _, err := mapping.Compile(pairs, ep.Defaults, model); err != nil {
		return &ValidationError{Field: "field_mapping", Message: err.Error()}
	}

	// Every required model field must be reachable: mapped or defaulted.
	covered := make(map[string]bool, len(ep.Mapping)+len(ep.Defaults))
	for _, r := range ep.Mapping {
		covered[r.Internal] = true
	}
	for name := range ep.Defaults {
		covered[name] = true
	}
	for _, name := range model.RequiredFields() {
		if !covered[name] {
			return &ValidationError{Field: "field_mapping", Message: fmt.Sprintf("required field %q is neither mapped nor defaulted", name)}
		}
	}

	if ep.NeedsDedupe() {
		if ep.DedupeField == "" {
			return &ValidationError{Field: "dedupe_field", Message: fmt.Sprintf("required for action %q", ep.TargetAction)}
		}
		f, ok := model.Field(ep.DedupeField)
		if !ok {
			return &ValidationError{Field: "dedupe_field", Message: fmt.Sprintf("field %q not in model %q", ep.DedupeField, ep.TargetModel)}
		}
		if !f.Unique {
			return &ValidationError{Field: "dedupe_field", Message: fmt.Sprintf("field %q must be unique in model %q to dedupe on it", ep.DedupeField, ep.TargetModel)}
		}
	}

	return nil
}

// issueCredential generates the credential material an auth type requires.
func issueCredential(t AuthType) string {
	switch t {
	case AuthAPIKey:
		return signature.GenerateAPIKey()
	case AuthHMAC:
		return signature.GenerateSecret()
	default:
		return ""
	}
}

// ValidationError indicates invalid endpoint configuration.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "endpoint validation: " + e.Field + ": " + e.Message
}
