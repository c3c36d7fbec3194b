package extension

import (
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/intake"
	"github.com/xraph/intake/api"
)

// Extension is the Forge extension for intake.
type Extension struct {
	config Config
	opts   []intake.Option
	logger *slog.Logger
}

// New creates a new intake Forge extension.
func New(opts ...ExtOption) *Extension {
	ext := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ext)
	}
	return ext
}

// Engine constructs the intake engine from the extension's configuration.
func (ext *Extension) Engine() (*intake.Engine, error) {
	engineOpts := ext.config.ToEngineOptions()
	engineOpts = append(engineOpts, intake.WithLogger(ext.logger))
	engineOpts = append(engineOpts, ext.opts...)
	return intake.New(engineOpts...)
}

// Handler creates the HTTP handler (receiver plus admin API) for an engine.
// This can be used standalone without full Forge integration.
func (ext *Extension) Handler(engine *intake.Engine) http.Handler {
	return api.NewHandler(engine, ext.logger)
}

// RegisterRoutes registers the Forge-native admin routes into the given
// router under the configured prefix. The receiver route needs the raw body
// for signature verification, so it is served by Handler; mount that on the
// host server alongside these routes.
func (ext *Extension) RegisterRoutes(router forge.Router, engine *intake.Engine, log forge.Logger) {
	if ext.config.DisableRoutes {
		return
	}

	g := router.Group(ext.config.BasePath)

	forgeAPI := api.NewForgeAPI(engine, log)
	forgeAPI.RegisterRoutes(g)
}

// Prefix returns the configured URL prefix.
func (ext *Extension) Prefix() string { return ext.config.BasePath }
