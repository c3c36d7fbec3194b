package intake

import "time"

// Config holds the configuration for an Engine instance.
type Config struct {
	// CacheTTL is the TTL for the schema catalog's in-memory model cache.
	// Set to 0 to disable expiry.
	CacheTTL time.Duration

	// MaxBodyBytes caps the size of an inbound request body. Oversized
	// payloads are rejected before parsing.
	MaxBodyBytes int64

	// RecordExecutions controls whether pipeline runs are appended to the
	// execution log. On by default; disable for high-volume endpoints whose
	// owners rely on metrics alone.
	RecordExecutions bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:         30 * time.Second,
		MaxBodyBytes:     1 << 20, // 1 MiB
		RecordExecutions: true,
	}
}
