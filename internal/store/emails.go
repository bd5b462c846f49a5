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

const emailColumns = `id, tenant_id, message_id, subject, body, received_at,
	email_type, confidence, method, language, created_at, updated_at`

// InsertEmail persists a new email record and returns its id. A re-ingested
// message id updates the existing row instead of duplicating it.
func (s *Store) InsertEmail(ctx context.Context, e *models.EmailRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO emails
			(tenant_id, message_id, subject, body, received_at, email_type,
			 confidence, method, language)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, message_id) WHERE message_id <> ''
		DO UPDATE SET
			subject = EXCLUDED.subject, body = EXCLUDED.body,
			received_at = EXCLUDED.received_at, email_type = EXCLUDED.email_type,
			confidence = EXCLUDED.confidence, method = EXCLUDED.method,
			language = EXCLUDED.language, updated_at = NOW()
		RETURNING id
	`, e.TenantID, e.MessageID, e.Subject, e.Body, e.ReceivedAt, e.EmailType,
		e.Confidence, e.Method, e.Language).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateEmailClassification overwrites the classification fields after a
// parse or re-parse.
func (s *Store) UpdateEmailClassification(ctx context.Context, id int64, emailType string, confidence float64, method, language string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE emails
		SET email_type = $1, confidence = $2, method = $3, language = $4,
		    updated_at = NOW()
		WHERE id = $5
	`, emailType, confidence, method, language, id)
	return err
}

// GetEmail retrieves one email record, or nil when it does not exist.
func (s *Store) GetEmail(ctx context.Context, id int64) (*models.EmailRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE id = $1
	`, id)
	return scanEmail(row)
}

// GetEmailByMessageID retrieves an email by its transport message id.
func (s *Store) GetEmailByMessageID(ctx context.Context, tenantID, messageID string) (*models.EmailRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE tenant_id = $1 AND message_id = $2
	`, tenantID, messageID)
	return scanEmail(row)
}

// ListEmails returns the tenant's emails, newest first, optionally filtered
// by type.
func (s *Store) ListEmails(ctx context.Context, tenantID, emailType string, limit int) ([]models.EmailRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE tenant_id = $1 AND ($2 = '' OR email_type = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, emailType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEmails(rows)
}

func scanEmail(row pgx.Row) (*models.EmailRecord, error) {
	var e models.EmailRecord
	err := row.Scan(
		&e.ID, &e.TenantID, &e.MessageID, &e.Subject, &e.Body, &e.ReceivedAt,
		&e.EmailType, &e.Confidence, &e.Method, &e.Language, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEmails(rows pgx.Rows) ([]models.EmailRecord, error) {
	var emails []models.EmailRecord
	for rows.Next() {
		var e models.EmailRecord
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.MessageID, &e.Subject, &e.Body, &e.ReceivedAt,
			&e.EmailType, &e.Confidence, &e.Method, &e.Language, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
