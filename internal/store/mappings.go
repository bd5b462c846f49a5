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

const mappingColumns = `id, tenant_id, hotel_name, normalized_name, hotel_id,
	hotel_name_ext, created_at`

// SaveMapping inserts or updates a hotel mapping keyed on
// (tenant_id, normalized_name). A manual re-confirmation overwrites the
// previous target.
func (s *Store) SaveMapping(ctx context.Context, m *models.HotelMapping) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hotel_mappings
			(tenant_id, hotel_name, normalized_name, hotel_id, hotel_name_ext)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, normalized_name) DO UPDATE SET
			hotel_name     = EXCLUDED.hotel_name,
			hotel_id       = EXCLUDED.hotel_id,
			hotel_name_ext = EXCLUDED.hotel_name_ext
	`, m.TenantID, m.HotelName, m.NormalizedName, m.HotelID, m.HotelNameExt)
	return err
}

// GetMapping retrieves the mapping for a normalized name, or nil.
func (s *Store) GetMapping(ctx context.Context, tenantID, normalized string) (*models.HotelMapping, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+mappingColumns+`
		FROM hotel_mappings
		WHERE tenant_id = $1 AND normalized_name = $2
	`, tenantID, normalized)
	return scanMapping(row)
}

// ListMappings returns all of the tenant's mappings.
func (s *Store) ListMappings(ctx context.Context, tenantID string) ([]models.HotelMapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+mappingColumns+`
		FROM hotel_mappings
		WHERE tenant_id = $1
		ORDER BY normalized_name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []models.HotelMapping
	for rows.Next() {
		var m models.HotelMapping
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.HotelName, &m.NormalizedName, &m.HotelID,
			&m.HotelNameExt, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// DeleteMapping removes one mapping, scoped to the tenant.
func (s *Store) DeleteMapping(ctx context.Context, tenantID string, id int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM hotel_mappings WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return err
}

func scanMapping(row pgx.Row) (*models.HotelMapping, error) {
	var m models.HotelMapping
	err := row.Scan(
		&m.ID, &m.TenantID, &m.HotelName, &m.NormalizedName, &m.HotelID,
		&m.HotelNameExt, &m.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
