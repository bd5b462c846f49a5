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

const stopSaleColumns = `id, tenant_id, email_id, hotel_name, date_from, date_to,
	room_types, board_types, is_close, reason, hotel_id, external_id,
	sync_state, last_error, created_at, updated_at`

// InsertStopSale persists an extracted stop-sale record and returns its id.
func (s *Store) InsertStopSale(ctx context.Context, r *models.StopSaleRecord) (int64, error) {
	state := r.SyncState
	if state == "" {
		state = models.StateUnsynced
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO stop_sales
			(tenant_id, email_id, hotel_name, date_from, date_to, room_types,
			 board_types, is_close, reason, hotel_id, sync_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, r.TenantID, r.EmailID, r.HotelName, r.DateFrom, r.DateTo, r.RoomTypes,
		r.BoardTypes, r.IsClose, r.Reason, r.HotelID, state).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetStopSale retrieves one stop-sale record, or nil.
func (s *Store) GetStopSale(ctx context.Context, id int64) (*models.StopSaleRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+stopSaleColumns+`
		FROM stop_sales
		WHERE id = $1
	`, id)
	return scanStopSale(row)
}

// StopSalesByEmail returns the stop-sale records extracted from one email.
func (s *Store) StopSalesByEmail(ctx context.Context, emailID int64) ([]models.StopSaleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+stopSaleColumns+`
		FROM stop_sales
		WHERE email_id = $1
		ORDER BY id
	`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStopSales(rows)
}

// ListPendingStopSales returns the tenant's records not yet synced.
func (s *Store) ListPendingStopSales(ctx context.Context, tenantID string) ([]models.StopSaleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+stopSaleColumns+`
		FROM stop_sales
		WHERE tenant_id = $1 AND sync_state <> 'synced'
		ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStopSales(rows)
}

// UpdateStopSaleHotel stores the resolved external hotel id.
func (s *Store) UpdateStopSaleHotel(ctx context.Context, id, hotelID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE stop_sales
		SET hotel_id = $1, updated_at = NOW()
		WHERE id = $2
	`, hotelID, id)
	return err
}

// UpdateStopSaleSync persists a sync-state transition.
func (s *Store) UpdateStopSaleSync(ctx context.Context, id int64, state models.SyncState, externalID int64, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE stop_sales
		SET sync_state = $1, external_id = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4
	`, state, externalID, lastError, id)
	return err
}

// DeleteStopSalesByEmail removes unsynced records before a re-parse.
// Records that already reached the external system are kept.
func (s *Store) DeleteStopSalesByEmail(ctx context.Context, emailID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM stop_sales
		WHERE email_id = $1 AND sync_state = 'unsynced'
	`, emailID)
	return err
}

func scanStopSale(row pgx.Row) (*models.StopSaleRecord, error) {
	var r models.StopSaleRecord
	err := row.Scan(
		&r.ID, &r.TenantID, &r.EmailID, &r.HotelName, &r.DateFrom, &r.DateTo,
		&r.RoomTypes, &r.BoardTypes, &r.IsClose, &r.Reason, &r.HotelID,
		&r.ExternalID, &r.SyncState, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectStopSales(rows pgx.Rows) ([]models.StopSaleRecord, error) {
	var records []models.StopSaleRecord
	for rows.Next() {
		var r models.StopSaleRecord
		if err := rows.Scan(
			&r.ID, &r.TenantID, &r.EmailID, &r.HotelName, &r.DateFrom, &r.DateTo,
			&r.RoomTypes, &r.BoardTypes, &r.IsClose, &r.Reason, &r.HotelID,
			&r.ExternalID, &r.SyncState, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
