package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Rampart store (SQLite).
var Migrations = migrate.NewGroup("rampart")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_attempts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rampart_attempts (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL DEFAULT '',
    identity        TEXT NOT NULL,
    outcome         TEXT NOT NULL,
    at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rampart_attempts_identity ON rampart_attempts (tenant_id, identity, at);
CREATE INDEX IF NOT EXISTS idx_rampart_attempts_at ON rampart_attempts (at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rampart_attempts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_devices",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rampart_devices (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL DEFAULT '',
    user_id         TEXT NOT NULL DEFAULT '',
    fingerprint     TEXT NOT NULL,
    trust_score     REAL NOT NULL DEFAULT 0,
    first_seen      TEXT NOT NULL,
    last_seen       TEXT NOT NULL,
    is_quarantined  INTEGER NOT NULL DEFAULT 0,
    is_compromised  INTEGER NOT NULL DEFAULT 0,
    risk_factors    TEXT NOT NULL DEFAULT '[]',
    history         TEXT NOT NULL DEFAULT '[]',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(tenant_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_rampart_devices_tenant ON rampart_devices (tenant_id);
CREATE INDEX IF NOT EXISTS idx_rampart_devices_user ON rampart_devices (tenant_id, user_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rampart_devices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_decision_logs",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rampart_decision_logs (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL DEFAULT '',
    kind            TEXT NOT NULL,
    identity        TEXT NOT NULL DEFAULT '',
    user_id         TEXT NOT NULL DEFAULT '',
    device_id       TEXT NOT NULL DEFAULT '',
    resource        TEXT NOT NULL DEFAULT '',
    action          TEXT NOT NULL DEFAULT '',
    allowed         INTEGER NOT NULL DEFAULT 0,
    level           TEXT NOT NULL,
    retry_after_seconds INTEGER NOT NULL DEFAULT 0,
    reason          TEXT NOT NULL DEFAULT '',
    eval_time_ns    INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_rampart_decision_logs_tenant ON rampart_decision_logs (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_rampart_decision_logs_kind ON rampart_decision_logs (tenant_id, kind);
CREATE INDEX IF NOT EXISTS idx_rampart_decision_logs_device ON rampart_decision_logs (device_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rampart_decision_logs`)
				return err
			},
		},
	)
}
