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
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mindops/hotelsync/internal/models"
)

const reservationColumns = `id, tenant_id, email_id, voucher_no, hotel_name,
	check_in, check_out, room_type, board_type, adults, children, guests,
	amount, currency, hotel_id, external_id, sync_state, last_error,
	created_at, updated_at`

// InsertReservation persists an extracted reservation and returns its id.
// The voucher number is unique per tenant; a duplicate updates the existing
// row's extracted fields but never its sync state.
func (s *Store) InsertReservation(ctx context.Context, r *models.ReservationRecord) (int64, error) {
	state := r.SyncState
	if state == "" {
		state = models.StateUnsynced
	}
	guests, err := json.Marshal(r.Guests)
	if err != nil {
		return 0, fmt.Errorf("marshal guests: %w", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO reservations
			(tenant_id, email_id, voucher_no, hotel_name, check_in, check_out,
			 room_type, board_type, adults, children, guests, amount, currency,
			 hotel_id, sync_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (tenant_id, voucher_no) DO UPDATE SET
			email_id   = EXCLUDED.email_id,
			hotel_name = EXCLUDED.hotel_name,
			check_in   = EXCLUDED.check_in,
			check_out  = EXCLUDED.check_out,
			room_type  = EXCLUDED.room_type,
			board_type = EXCLUDED.board_type,
			adults     = EXCLUDED.adults,
			children   = EXCLUDED.children,
			guests     = EXCLUDED.guests,
			amount     = EXCLUDED.amount,
			currency   = EXCLUDED.currency,
			updated_at = NOW()
		RETURNING id
	`, r.TenantID, r.EmailID, r.VoucherNo, r.HotelName, r.CheckIn, r.CheckOut,
		r.RoomType, r.BoardType, r.Adults, r.Children, guests, r.Amount,
		r.Currency, r.HotelID, state).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetReservation retrieves one reservation, or nil.
func (s *Store) GetReservation(ctx context.Context, id int64) (*models.ReservationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

// ReservationsByEmail returns the reservations extracted from one email.
func (s *Store) ReservationsByEmail(ctx context.Context, emailID int64) ([]models.ReservationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE email_id = $1
		ORDER BY id
	`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListPendingReservations returns the tenant's reservations not yet synced.
func (s *Store) ListPendingReservations(ctx context.Context, tenantID string) ([]models.ReservationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE tenant_id = $1 AND sync_state <> 'synced'
		ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// UpdateReservationHotel stores the resolved external hotel id.
func (s *Store) UpdateReservationHotel(ctx context.Context, id, hotelID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reservations
		SET hotel_id = $1, updated_at = NOW()
		WHERE id = $2
	`, hotelID, id)
	return err
}

// UpdateReservationSync persists a sync-state transition.
func (s *Store) UpdateReservationSync(ctx context.Context, id int64, state models.SyncState, externalID int64, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reservations
		SET sync_state = $1, external_id = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4
	`, state, externalID, lastError, id)
	return err
}

// DeleteReservationsByEmail removes unsynced reservations before a re-parse.
func (s *Store) DeleteReservationsByEmail(ctx context.Context, emailID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM reservations
		WHERE email_id = $1 AND sync_state = 'unsynced'
	`, emailID)
	return err
}

func scanReservation(row pgx.Row) (*models.ReservationRecord, error) {
	var r models.ReservationRecord
	var guests []byte
	err := row.Scan(
		&r.ID, &r.TenantID, &r.EmailID, &r.VoucherNo, &r.HotelName,
		&r.CheckIn, &r.CheckOut, &r.RoomType, &r.BoardType, &r.Adults,
		&r.Children, &guests, &r.Amount, &r.Currency, &r.HotelID,
		&r.ExternalID, &r.SyncState, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(guests, &r.Guests); err != nil {
		return nil, fmt.Errorf("unmarshal guests: %w", err)
	}
	return &r, nil
}

func collectReservations(rows pgx.Rows) ([]models.ReservationRecord, error) {
	var records []models.ReservationRecord
	for rows.Next() {
		var r models.ReservationRecord
		var guests []byte
		if err := rows.Scan(
			&r.ID, &r.TenantID, &r.EmailID, &r.VoucherNo, &r.HotelName,
			&r.CheckIn, &r.CheckOut, &r.RoomType, &r.BoardType, &r.Adults,
			&r.Children, &guests, &r.Amount, &r.Currency, &r.HotelID,
			&r.ExternalID, &r.SyncState, &r.LastError, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(guests, &r.Guests); err != nil {
			return nil, fmt.Errorf("unmarshal guests: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
