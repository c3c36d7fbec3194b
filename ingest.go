package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/intake/auth"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/mapping"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/scope"
	"go.opentelemetry.io/otel/trace"
)

// Request is the material extracted from one inbound HTTP request.
type Request struct {
	// Body is the raw request body, exactly as received.
	Body []byte

	// APIKey is the X-API-Key header value, if any.
	APIKey string

	// Signature is the X-Signature header value, if any.
	Signature string
}

// Ingest runs the full pipeline for one inbound request against the endpoint
// with the given slug.
//
// The critical path:
//  1. Resolve the endpoint by slug. An unknown slug or a failing store is
//     the only error return; every later outcome is a Result.
//  2. Reject inactive endpoints — before auth, so a disabled endpoint leaks
//     nothing about its credential requirements.
//  3. Verify credentials against the endpoint's auth mode.
//  4. Admit the request through the rolling rate-limit window.
//  5. Parse, map, dedupe-resolve, and write the payload.
//
// Each request is exactly one pipeline run; nothing is retried across
// requests and no intermediate state survives. Retries are the sender's
// responsibility, per webhook delivery convention.
func (e *Engine) Ingest(ctx context.Context, slug string, req Request) (*Result, error) {
	ep, err := e.store.GetEndpointBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrEndpointNotFound) {
			return nil, fmt.Errorf("%w: slug %q", ErrEndpointNotFound, slug)
		}
		// A failing store is not an unknown slug: the caller must be able
		// to tell the two apart.
		return nil, fmt.Errorf("intake: resolve endpoint %q: %w", slug, err)
	}

	start := time.Now()
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartIngestSpan(ctx, ep.ID.String(), ep.Slug, false)
	}

	res := e.ingest(ctx, ep, req)

	e.finish(ctx, ep, res, false, time.Since(start), span)
	return res, nil
}

// ingest runs the externally-facing stages, then hands off to process.
func (e *Engine) ingest(ctx context.Context, ep *endpoint.Endpoint, req Request) *Result {
	if !ep.Active {
		return &Result{
			Status:  StatusRejectedInactive,
			Message: "endpoint is inactive",
		}
	}

	validator, err := auth.For(ep)
	if err != nil {
		// Unknown auth type can only happen through config drift; treat it
		// as a rejection rather than leaking detail to the caller.
		e.logger.ErrorContext(ctx, "endpoint has invalid auth config", "endpoint_id", ep.ID, "error", err)
		return &Result{Status: StatusRejectedAuth, Message: "authentication failed"}
	}
	if !validator.Validate(auth.Request{Body: req.Body, APIKey: req.APIKey, Signature: req.Signature}) {
		return &Result{Status: StatusRejectedAuth, Message: "authentication failed"}
	}

	allowed, err := e.limiter.Allow(ctx, ep.ID.String(), ep.RateLimitPerMinute)
	if err != nil {
		// A broken limiter backend must not take ingestion down with it.
		// Fail open and keep serving; the window resumes when it recovers.
		e.logger.WarnContext(ctx, "rate limiter unavailable, admitting request", "endpoint_id", ep.ID, "error", err)
		allowed = true
	}
	if !allowed {
		return &Result{
			Status:  StatusRejectedRateLimit,
			Message: fmt.Sprintf("rate limit of %d requests per minute exceeded", ep.RateLimitPerMinute),
		}
	}

	if e.config.MaxBodyBytes > 0 && int64(len(req.Body)) > e.config.MaxBodyBytes {
		return &Result{
			Status:  StatusMappingError,
			Message: fmt.Sprintf("payload exceeds %d bytes", e.config.MaxBodyBytes),
		}
	}

	var payload map[string]any
	// A literal null unmarshals into a nil map without error; only an
	// actual object proceeds.
	if err := json.Unmarshal(req.Body, &payload); err != nil || payload == nil {
		return &Result{
			Status:  StatusMappingError,
			Message: "request body is not a JSON object",
		}
	}

	return e.process(ctx, ep, payload, false)
}

// Test runs the pipeline for the endpoint owner, bypassing the network-facing
// stages (active flag, credentials, rate limit): the caller is already
// authenticated as the owner and is exercising mapping and write semantics.
// With dryRun set, every validation still runs but nothing persists.
func (e *Engine) Test(ctx context.Context, epID id.ID, payload map[string]any, dryRun bool) (*Result, error) {
	ep, err := e.store.GetEndpoint(ctx, epID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartIngestSpan(ctx, ep.ID.String(), ep.Slug, dryRun)
	}

	res := e.process(ctx, ep, payload, dryRun)
	e.finish(ctx, ep, res, dryRun, time.Since(start), span)
	return res, nil
}

// process is the shared mapping → dedupe → write core.
func (e *Engine) process(ctx context.Context, ep *endpoint.Endpoint, payload map[string]any, dryRun bool) *Result {
	model, err := e.models.Get(ctx, ep.TargetModel)
	if err != nil {
		// The model existed when the endpoint was validated; it has since
		// been removed from the catalog.
		return &Result{
			Status:  StatusWriteError,
			Message: fmt.Sprintf("target model %q is no longer registered", ep.TargetModel),
		}
	}

	mapper, err := e.compileMapper(ep, model)
	if err != nil {
		return &Result{
			Status:  StatusWriteError,
			Message: fmt.Sprintf("endpoint mapping no longer matches model %q: %v", ep.TargetModel, err),
		}
	}

	mapped, fieldErrs := mapper.Apply(payload)

	if ep.NeedsDedupe() {
		// The dedupe value is mandatory whenever dedupe is in play, even if
		// the schema did not mark the field required.
		if missing := dedupeValueMissing(mapped, ep.DedupeField); missing != nil {
			fieldErrs = append(fieldErrs, *missing)
		}
	}

	if len(fieldErrs) > 0 {
		return &Result{
			Status:        StatusMappingError,
			Message:       fmt.Sprintf("%d field(s) failed to map", len(fieldErrs)),
			MappingErrors: fieldErrs,
			MappedData:    mapped,
		}
	}

	var match *record.Record
	if ep.NeedsDedupe() {
		match, err = e.writer.Resolver().Resolve(ctx, model.Name(), ep.DedupeField, mapped)
		if err != nil {
			return writeFailure(err, mapped)
		}
	}

	outcome, err := e.writer.Write(ctx, model, ep.TargetAction, mapped, match, dryRun)
	if err != nil {
		return writeFailure(err, mapped)
	}

	res := &Result{MappedData: mapped}
	switch outcome.Effect {
	case record.Created:
		res.Status = StatusCreated
		res.ObjectID = outcome.ObjectID
		res.Message = fmt.Sprintf("created %s record", model.Name())
	case record.Updated:
		res.Status = StatusUpdated
		res.ObjectID = outcome.ObjectID
		res.Message = fmt.Sprintf("updated %s record", model.Name())
	case record.Validated:
		res.Status = StatusValid
		res.Message = "payload is valid; nothing persisted"
	}
	return res
}

// compileMapper turns the endpoint's stored mapping config into a typed
// mapper. Endpoint validation guarantees this succeeds for any config that
// went through the service; failure means the model changed underneath it.
func (e *Engine) compileMapper(ep *endpoint.Endpoint, model *schema.Model) (*mapping.Mapper, error) {
	pairs := make([]mapping.Pair, len(ep.Mapping))
	for i, r := range ep.Mapping {
		pairs[i] = mapping.Pair{External: r.External, Internal: r.Internal}
	}
	return mapping.Compile(pairs, ep.Defaults, model)
}

func dedupeValueMissing(mapped map[string]any, field string) *mapping.FieldError {
	v, ok := mapped[field]
	if !ok || v == nil {
		return &mapping.FieldError{Field: field, Message: "dedupe field value required"}
	}
	if s, isStr := v.(string); isStr && s == "" {
		return &mapping.FieldError{Field: field, Message: "dedupe field value required"}
	}
	return nil
}

// writeFailure classifies a resolver/writer error into a Result.
func writeFailure(err error, mapped map[string]any) *Result {
	res := &Result{
		Status:     StatusWriteError,
		MappedData: mapped,
	}
	switch {
	case errors.Is(err, record.ErrNoMatchForUpdate):
		res.Message = "record not found for update"
	case errors.Is(err, record.ErrAmbiguousMatch):
		res.Message = "dedupe field matched more than one record"
	case errors.Is(err, record.ErrUniqueViolation):
		res.Message = "write conflicts with an existing record"
	case errors.Is(err, record.ErrMissingDedupeValue):
		// Defensive: normally caught during mapping.
		res.Status = StatusMappingError
		res.Message = "dedupe field value required"
	default:
		res.Message = "write failed: " + err.Error()
	}
	return res
}

// finish records the run in the execution log, metrics, and trace.
func (e *Engine) finish(ctx context.Context, ep *endpoint.Endpoint, res *Result, dryRun bool, elapsed time.Duration, span trace.Span) {
	if e.metrics != nil {
		e.metrics.RecordIngest(string(res.Status), elapsed.Seconds())
		if res.Status.Wrote() {
			e.metrics.RecordWrite(string(ep.TargetAction))
		}
		if res.Status.Rejected() {
			e.metrics.RecordRejection(string(res.Status))
		}
	}

	if span != nil {
		e.tracer.EndIngestSpan(span, string(res.Status), elapsed.Milliseconds())
	}

	if e.config.RecordExecutions {
		appID, orgID := scope.Capture(ctx)
		e.executions.Record(ctx, &execution.Execution{
			Entity:        entity.New(),
			ID:            id.NewExecutionID(),
			EndpointID:    ep.ID,
			Status:        string(res.Status),
			Message:       res.Message,
			ObjectID:      res.ObjectID,
			MappingErrors: res.MappingErrors,
			MappedData:    res.MappedData,
			DryRun:        dryRun,
			DurationMs:    elapsed.Milliseconds(),
			ScopeAppID:    appID,
			ScopeOrgID:    orgID,
		})
	}

	e.logger.DebugContext(ctx, "pipeline run finished",
		"endpoint_id", ep.ID,
		"slug", ep.Slug,
		"status", res.Status,
		"dry_run", dryRun,
		"duration_ms", elapsed.Milliseconds(),
	)
}
