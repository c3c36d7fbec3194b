package intake

import (
	"log/slog"
	"time"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/observability"
	"github.com/xraph/intake/ratelimit"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/store"
)

// Engine is the root inbound webhook ingestion engine.
type Engine struct {
	config      Config
	store       store.Store
	models      *schema.Catalog
	validator   *schema.Validator
	endpointSvc *endpoint.Service
	writer      *record.Writer
	executions  *execution.Service
	limiter     ratelimit.Limiter
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      *slog.Logger
}

// Option configures an Engine instance.
type Option func(*Engine) error

// New creates a new Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.store == nil {
		return nil, ErrNoStore
	}
	e.wireServices()
	return e, nil
}

// WithStore sets the persistence backend for the Engine instance.
func WithStore(s store.Store) Option {
	return func(e *Engine) error {
		e.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Engine instance.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithRateLimiter sets the rate limiter implementation. Defaults to the
// in-process sliding window limiter; use the Redis limiter when several
// replicas serve the same endpoints.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) error {
		e.limiter = l
		return nil
	}
}

// WithCacheTTL sets the TTL for the schema catalog's in-memory model cache.
func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) error {
		e.config.CacheTTL = d
		return nil
	}
}

// WithMaxBodyBytes caps the inbound request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(e *Engine) error {
		e.config.MaxBodyBytes = n
		return nil
	}
}

// WithExecutionLog toggles recording of pipeline runs to the execution log.
func WithExecutionLog(enabled bool) Option {
	return func(e *Engine) error {
		e.config.RecordExecutions = enabled
		return nil
	}
}

// WithMetrics sets the metric instruments recorded by the pipeline.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for pipeline spans.
func WithTracer(t *observability.Tracer) Option {
	return func(e *Engine) error {
		e.tracer = t
		return nil
	}
}
