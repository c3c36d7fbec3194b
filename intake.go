package intake

import (
	"context"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/ratelimit"
	"github.com/xraph/intake/record"
	"github.com/xraph/intake/schema"
	"github.com/xraph/intake/store"
)

// wireServices initializes the internal services after options have been applied.
func (e *Engine) wireServices() {
	e.models = schema.NewCatalog(e.store, schema.Config{
		CacheTTL: e.config.CacheTTL,
	}, e.logger)

	e.validator = schema.NewValidator()

	e.endpointSvc = endpoint.NewService(e.store, e.models, e.logger)

	e.writer = record.NewWriter(e.store, e.validator, e.logger)

	e.executions = execution.NewService(e.store, e.logger)

	if e.limiter == nil {
		e.limiter = ratelimit.NewMemory()
	}
}

// RegisterModel registers a target model definition in the schema catalog.
func (e *Engine) RegisterModel(ctx context.Context, def schema.Definition, opts ...schema.RegisterOption) (*schema.Model, error) {
	return e.models.Register(ctx, def, opts...)
}

// Endpoints returns the endpoint configuration service.
func (e *Engine) Endpoints() *endpoint.Service {
	return e.endpointSvc
}

// Models returns the target model catalog.
func (e *Engine) Models() *schema.Catalog {
	return e.models
}

// Executions returns the execution log service.
func (e *Engine) Executions() *execution.Service {
	return e.executions
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store {
	return e.store
}
