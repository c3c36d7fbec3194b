package extension

import (
	"github.com/xraph/intake"
)

// Config holds configuration for the intake Forge extension.
// Fields can be set programmatically via ExtOption functions or loaded from
// YAML configuration files (under "extensions.intake" or "intake" keys).
type Config struct {
	// Config embeds the core intake configuration.
	intake.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all intake routes (default: "/api/v1/webhooks").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrate disables automatic database migration on Register.
	DisableMigrate bool `json:"disable_migrate" yaml:"disable_migrate" mapstructure:"disable_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   intake.DefaultConfig(),
		BasePath: "/api/v1/webhooks",
	}
}

// ToEngineOptions converts the embedded Config into intake.Option values.
func (c Config) ToEngineOptions() []intake.Option {
	var opts []intake.Option

	if c.CacheTTL > 0 {
		opts = append(opts, intake.WithCacheTTL(c.CacheTTL))
	}
	if c.MaxBodyBytes > 0 {
		opts = append(opts, intake.WithMaxBodyBytes(c.MaxBodyBytes))
	}
	if !c.RecordExecutions {
		opts = append(opts, intake.WithExecutionLog(false))
	}

	return opts
}
