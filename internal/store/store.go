// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store provides the Postgres-backed persistence layer: email
// records, extracted stop sales and reservations, hotel mappings, and sync
// run history.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides CRUD operations for all persisted records.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("store initialised")
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS emails (
			id          BIGSERIAL PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			message_id  TEXT DEFAULT '',
			subject     TEXT DEFAULT '',
			body        TEXT DEFAULT '',
			received_at TIMESTAMPTZ,
			email_type  TEXT DEFAULT 'unclassified',
			confidence  DOUBLE PRECISION DEFAULT 0,
			method      TEXT DEFAULT '',
			language    TEXT DEFAULT '',
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			updated_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_emails_tenant ON emails(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_emails_type ON emails(tenant_id, email_type);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_message
			ON emails(tenant_id, message_id) WHERE message_id <> '';

		CREATE TABLE IF NOT EXISTS stop_sales (
			id          BIGSERIAL PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			email_id    BIGINT NOT NULL,
			hotel_name  TEXT NOT NULL,
			date_from   DATE NOT NULL,
			date_to     DATE NOT NULL,
			room_types  TEXT[] DEFAULT '{}',
			board_types TEXT[] DEFAULT '{}',
			is_close    BOOLEAN DEFAULT TRUE,
			reason      TEXT DEFAULT '',
			hotel_id    BIGINT DEFAULT 0,
			external_id BIGINT DEFAULT 0,
			sync_state  TEXT DEFAULT 'unsynced',
			last_error  TEXT DEFAULT '',
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			updated_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_stopsales_tenant ON stop_sales(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_stopsales_email ON stop_sales(email_id);
		CREATE INDEX IF NOT EXISTS idx_stopsales_state ON stop_sales(tenant_id, sync_state);

		CREATE TABLE IF NOT EXISTS reservations (
			id          BIGSERIAL PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			email_id    BIGINT NOT NULL,
			voucher_no  TEXT NOT NULL,
			hotel_name  TEXT NOT NULL,
			check_in    DATE NOT NULL,
			check_out   DATE NOT NULL,
			room_type   TEXT DEFAULT '',
			board_type  TEXT DEFAULT '',
			adults      INT DEFAULT 0,
			children    INT DEFAULT 0,
			guests      JSONB DEFAULT '[]',
			amount      DOUBLE PRECISION,
			currency    TEXT DEFAULT '',
			hotel_id    BIGINT DEFAULT 0,
			external_id BIGINT DEFAULT 0,
			sync_state  TEXT DEFAULT 'unsynced',
			last_error  TEXT DEFAULT '',
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			updated_at  TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(tenant_id, voucher_no)
		);
		CREATE INDEX IF NOT EXISTS idx_reservations_tenant ON reservations(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_reservations_email ON reservations(email_id);
		CREATE INDEX IF NOT EXISTS idx_reservations_state ON reservations(tenant_id, sync_state);

		CREATE TABLE IF NOT EXISTS hotel_mappings (
			id              BIGSERIAL PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			hotel_name      TEXT NOT NULL,
			normalized_name TEXT NOT NULL,
			hotel_id        BIGINT NOT NULL,
			hotel_name_ext  TEXT DEFAULT '',
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(tenant_id, normalized_name)
		);

		CREATE TABLE IF NOT EXISTS sync_runs (
			id          TEXT PRIMARY KEY,
			tenant_id   TEXT NOT NULL,
			status      TEXT DEFAULT 'running',
			total       INT DEFAULT 0,
			processed   INT DEFAULT 0,
			succeeded   INT DEFAULT 0,
			failed      INT DEFAULT 0,
			started_at  TIMESTAMPTZ DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_syncruns_tenant ON sync_runs(tenant_id, started_at);

		CREATE TABLE IF NOT EXISTS sync_items (
			id            BIGSERIAL PRIMARY KEY,
			run_id        TEXT NOT NULL,
			email_id      BIGINT NOT NULL,
			record_kind   TEXT DEFAULT '',
			record_id     BIGINT DEFAULT 0,
			status        TEXT NOT NULL,
			error_kind    TEXT DEFAULT '',
			error_message TEXT DEFAULT '',
			finished_at   TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_syncitems_run ON sync_items(run_id);
	`)
	return err
}
