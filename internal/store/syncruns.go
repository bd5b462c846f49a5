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

package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/mindops/hotelsync/internal/models"
)

const runColumns = `id, tenant_id, status, total, processed, succeeded,
	failed, started_at, finished_at`

// CreateSyncRun records the start of a bulk sync batch.
func (s *Store) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (id, tenant_id, status, total)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.TenantID, run.Status, run.Total)
	return err
}

// UpdateSyncRunProgress updates the running counters.
func (s *Store) UpdateSyncRunProgress(ctx context.Context, runID string, processed, succeeded, failed int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET processed = $1, succeeded = $2, failed = $3
		WHERE id = $4
	`, processed, succeeded, failed, runID)
	return err
}

// FinishSyncRun marks a run completed or cancelled.
func (s *Store) FinishSyncRun(ctx context.Context, runID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET status = $1, finished_at = NOW()
		WHERE id = $2
	`, status, runID)
	return err
}

// GetSyncRun retrieves one run, or nil.
func (s *Store) GetSyncRun(ctx context.Context, runID string) (*models.SyncRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		WHERE id = $1
	`, runID)
	var r models.SyncRun
	err := row.Scan(&r.ID, &r.TenantID, &r.Status, &r.Total, &r.Processed,
		&r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListSyncRuns returns the tenant's run history, newest first.
func (s *Store) ListSyncRuns(ctx context.Context, tenantID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM sync_runs
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Status, &r.Total, &r.Processed,
			&r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertSyncItem records the outcome of one email within a run.
func (s *Store) InsertSyncItem(ctx context.Context, item *models.SyncItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_items
			(run_id, email_id, record_kind, record_id, status, error_kind, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.RunID, item.EmailID, item.RecordKind, item.RecordID, item.Status,
		item.ErrorKind, item.ErrorMessage)
	return err
}

// ListSyncItems returns the per-email outcomes of a run.
func (s *Store) ListSyncItems(ctx context.Context, runID string) ([]models.SyncItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, email_id, record_kind, record_id, status,
		       error_kind, error_message, finished_at
		FROM sync_items
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SyncItem
	for rows.Next() {
		var it models.SyncItem
		if err := rows.Scan(&it.ID, &it.RunID, &it.EmailID, &it.RecordKind,
			&it.RecordID, &it.Status, &it.ErrorKind, &it.ErrorMessage,
			&it.FinishedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
