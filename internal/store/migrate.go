package store

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dc_visitors (
	id                   UUID PRIMARY KEY,
	name                 TEXT NOT NULL CHECK (name <> ''),
	nrc_no               TEXT NOT NULL CHECK (nrc_no <> ''),
	phone_number         TEXT NOT NULL CHECK (phone_number <> ''),
	company_name         TEXT NOT NULL DEFAULT '',
	visit_purpose        TEXT NOT NULL DEFAULT '',
	employee_card_number TEXT NOT NULL DEFAULT '',
	access_container_no  TEXT NOT NULL DEFAULT '',
	access_rack_no       TEXT NOT NULL DEFAULT '',
	inventory_list       TEXT NOT NULL DEFAULT '',
	photo_url            TEXT NOT NULL DEFAULT '',
	in_time              TIMESTAMPTZ NOT NULL,
	out_time             TIMESTAMPTZ CHECK (out_time IS NULL OR out_time >= in_time),
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dc_visitors_in_time    ON dc_visitors(in_time);
CREATE INDEX IF NOT EXISTS idx_dc_visitors_created_at ON dc_visitors(created_at);
CREATE INDEX IF NOT EXISTS idx_dc_visitors_active     ON dc_visitors(in_time) WHERE out_time IS NULL;

CREATE TABLE IF NOT EXISTS kiosk_devices (
	device_id    TEXT PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token_hash TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL REFERENCES kiosk_devices(device_id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dc_visitors (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL CHECK (name <> ''),
	nrc_no               TEXT NOT NULL CHECK (nrc_no <> ''),
	phone_number         TEXT NOT NULL CHECK (phone_number <> ''),
	company_name         TEXT NOT NULL DEFAULT '',
	visit_purpose        TEXT NOT NULL DEFAULT '',
	employee_card_number TEXT NOT NULL DEFAULT '',
	access_container_no  TEXT NOT NULL DEFAULT '',
	access_rack_no       TEXT NOT NULL DEFAULT '',
	inventory_list       TEXT NOT NULL DEFAULT '',
	photo_url            TEXT NOT NULL DEFAULT '',
	in_time              DATETIME NOT NULL,
	out_time             DATETIME,
	created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dc_visitors_in_time    ON dc_visitors(in_time);
CREATE INDEX IF NOT EXISTS idx_dc_visitors_created_at ON dc_visitors(created_at);

CREATE TABLE IF NOT EXISTS kiosk_devices (
	device_id    TEXT PRIMARY KEY,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token_hash TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL REFERENCES kiosk_devices(device_id) ON DELETE CASCADE,
	expires_at DATETIME NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Migrate creates the visitor and device schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if d.Flavor == sqlbuilder.SQLite {
		schema = sqliteSchema
	}
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
