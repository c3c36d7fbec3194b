package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// Catalog is the in-memory cached service for managing target models.
// Endpoint configuration is validated against it at create/update time, and
// the mapper consults it when compiling an endpoint's field mapping.
type Catalog struct {
	store    Store
	cache    map[string]*Model
	cacheTTL time.Duration
	lastLoad time.Time
	mu       sync.RWMutex
	logger   *slog.Logger
}

// Config configures the catalog service.
type Config struct {
	CacheTTL time.Duration
}

// NewCatalog creates a new Catalog backed by the given store.
func NewCatalog(store Store, cfg Config, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:    store,
		cache:    make(map[string]*Model),
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// RegisterOption configures Register behavior.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	scopeAppID string
	metadata   map[string]string
}

// WithScopeAppID sets the app scope on a registered model.
func WithScopeAppID(appID string) RegisterOption {
	return func(o *registerOptions) { o.scopeAppID = appID }
}

// WithMetadata sets metadata on a registered model.
func WithMetadata(m map[string]string) RegisterOption {
	return func(o *registerOptions) { o.metadata = m }
}

// Register registers or updates a model definition.
func (c *Catalog) Register(ctx context.Context, def Definition, opts ...RegisterOption) (*Model, error) {
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	ro := registerOptions{}
	for _, o := range opts {
		o(&ro)
	}

	m := &Model{
		Entity:     entity.New(),
		ID:         id.NewModelID(),
		Definition: def,
		ScopeAppID: ro.scopeAppID,
		Metadata:   ro.metadata,
	}

	if err := c.store.RegisterModel(ctx, m); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[def.Name] = m
	c.lastLoad = time.Now()
	c.mu.Unlock()

	return m, nil
}

// Get returns a model by name, using the cache when available.
func (c *Catalog) Get(ctx context.Context, name string) (*Model, error) {
	c.mu.RLock()
	if m, ok := c.cache[name]; ok && !c.cacheExpired() {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	m, err := c.store.GetModel(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[name] = m
	c.lastLoad = time.Now()
	c.mu.Unlock()

	return m, nil
}

// List returns all registered models.
func (c *Catalog) List(ctx context.Context, opts ListOpts) ([]*Model, error) {
	return c.store.ListModels(ctx, opts)
}

// Delete removes a model definition and evicts it from the cache.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	if err := c.store.DeleteModel(ctx, name); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()

	return nil
}

// InvalidateCache clears the in-memory cache, forcing fresh reads from the store.
func (c *Catalog) InvalidateCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Model)
	c.lastLoad = time.Time{}
	c.mu.Unlock()
}

// WarmCache preloads the cache from the store.
func (c *Catalog) WarmCache(ctx context.Context) error {
	models, err := c.store.ListModels(ctx, ListOpts{})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*Model, len(models))
	for _, m := range models {
		c.cache[m.Name()] = m
	}
	c.lastLoad = time.Now()
	return nil
}

// cacheExpired returns true if the cache TTL has elapsed. Must be called with at least RLock held.
func (c *Catalog) cacheExpired() bool {
	if c.cacheTTL == 0 {
		return false
	}
	return time.Since(c.lastLoad) > c.cacheTTL
}

// validateDefinition rejects malformed model definitions before they reach
// the store: unnamed models, empty or duplicate fields, unknown field types.
func validateDefinition(def Definition) error {
	if def.Name == "" {
		return &DefinitionError{Field: "name", Message: "required"}
	}
	if len(def.Fields) == 0 {
		return &DefinitionError{Field: "fields", Message: "at least one field required"}
	}

	seen := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if f.Name == "" {
			return &DefinitionError{Field: "fields", Message: "field name required"}
		}
		if seen[f.Name] {
			return &DefinitionError{Field: f.Name, Message: "duplicate field"}
		}
		seen[f.Name] = true
		if !ValidFieldType(f.Type) {
			return &DefinitionError{Field: f.Name, Message: fmt.Sprintf("unknown field type %q", f.Type)}
		}
	}
	return nil
}

// DefinitionError indicates an invalid model definition.
type DefinitionError struct {
	Field   string
	Message string
}

func (e *DefinitionError) Error() string {
	return "schema definition: " + e.Field + ": " + e.Message
}
