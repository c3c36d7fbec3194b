package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the intake store (SQLite).
var Migrations = migrate.NewGroup("intake")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_intake_endpoints",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_endpoints (
    id                    TEXT PRIMARY KEY,
    slug                  TEXT NOT NULL UNIQUE,
    name                  TEXT NOT NULL DEFAULT '',
    description           TEXT NOT NULL DEFAULT '',
    auth_type             TEXT NOT NULL DEFAULT 'none',
    credential            TEXT NOT NULL DEFAULT '',
    target_model          TEXT NOT NULL DEFAULT '',
    target_action         TEXT NOT NULL DEFAULT 'create',
    field_mapping         TEXT NOT NULL DEFAULT '[]',
    default_values        TEXT NOT NULL DEFAULT '{}',
    dedupe_field          TEXT NOT NULL DEFAULT '',
    is_active             INTEGER NOT NULL DEFAULT 1,
    rate_limit_per_minute INTEGER NOT NULL DEFAULT 0,
    scope_app_id          TEXT NOT NULL DEFAULT '',
    scope_org_id          TEXT NOT NULL DEFAULT '',
    metadata              TEXT NOT NULL DEFAULT '{}',
    created_at            TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at            TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_endpoints`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_models",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_models (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    definition   TEXT NOT NULL DEFAULT '{}',
    scope_app_id TEXT NOT NULL DEFAULT '',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_models`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_records",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_records (
    id         TEXT PRIMARY KEY,
    model      TEXT NOT NULL DEFAULT '',
    data       TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_intake_records_model ON intake_records (model, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_records`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_record_fields",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_record_fields (
    record_id TEXT NOT NULL,
    field     TEXT NOT NULL,
    key       TEXT NOT NULL,
    model     TEXT NOT NULL,
    is_unique INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (record_id, field, key)
);

CREATE INDEX IF NOT EXISTS idx_intake_record_fields_lookup ON intake_record_fields (model, field, key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_intake_record_fields_unique ON intake_record_fields (model, field, key) WHERE is_unique;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_record_fields`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_intake_executions",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS intake_executions (
    id             TEXT PRIMARY KEY,
    endpoint_id    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL DEFAULT '',
    object_id      TEXT NOT NULL DEFAULT '',
    mapping_errors TEXT,
    mapped_data    TEXT,
    dry_run        INTEGER NOT NULL DEFAULT 0,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    scope_app_id   TEXT NOT NULL DEFAULT '',
    scope_org_id   TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_intake_executions_endpoint ON intake_executions (endpoint_id, created_at);
CREATE INDEX IF NOT EXISTS idx_intake_executions_status ON intake_executions (endpoint_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS intake_executions`)
				return err
			},
		},
	)
}
