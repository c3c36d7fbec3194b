package extension

import (
	"log/slog"

	"github.com/xraph/intake"
	"github.com/xraph/intake/store"
)

// ExtOption configures the intake Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend via an intake option.
func WithStore(s store.Store) ExtOption {
	return func(ext *Extension) {
		ext.opts = append(ext.opts, intake.WithStore(s))
	}
}

// WithPrefix sets the URL prefix for all intake routes.
func WithPrefix(prefix string) ExtOption {
	return func(ext *Extension) {
		ext.config.BasePath = prefix
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(ext *Extension) {
		ext.config = cfg
	}
}

// WithEngineOption appends a raw intake.Option to the extension.
func WithEngineOption(opt intake.Option) ExtOption {
	return func(ext *Extension) {
		ext.opts = append(ext.opts, opt)
	}
}

// WithLogger sets the structured logger used by the extension and engine.
func WithLogger(logger *slog.Logger) ExtOption {
	return func(ext *Extension) {
		ext.logger = logger
	}
}

// WithDisableRoutes disables automatic route registration.
func WithDisableRoutes() ExtOption {
	return func(ext *Extension) {
		ext.config.DisableRoutes = true
	}
}

// WithDisableMigrations disables automatic database migration on Register.
func WithDisableMigrations() ExtOption {
	return func(ext *Extension) {
		ext.config.DisableMigrate = true
	}
}
