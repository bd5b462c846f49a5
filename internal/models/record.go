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

package models

import "time"

// SyncState tracks a record's position in the two-phase save protocol.
// Transitions only move forward, except that a failed record re-enters at
// phase 1 on retry, and a phase-2 failure holds the record at parent_created
// so a retry resumes at phase 2 instead of creating a duplicate parent.
type SyncState string

const (
	StateUnsynced      SyncState = "unsynced"
	StatePendingParent SyncState = "pending_parent"
	StateParentCreated SyncState = "parent_created"
	StateSynced        SyncState = "synced"
	StateFailed        SyncState = "failed"
)

// PastPhase1 reports whether a parent record already exists in the external
// system. Phase 1 must never be re-issued for such a record.
func (s SyncState) PastPhase1() bool {
	return s == StateParentCreated || s == StateSynced
}

// StopSaleRecord is a stop-sale notice extracted from an email.
// Empty RoomTypes means the closure applies to all room types; empty
// BoardTypes means all boards.
type StopSaleRecord struct {
	ID       int64  `json:"id"`
	TenantID string `json:"tenant_id"`
	EmailID  int64  `json:"email_id"`

	HotelName  string    `json:"hotel_name"`
	DateFrom   time.Time `json:"date_from"`
	DateTo     time.Time `json:"date_to"`
	RoomTypes  []string  `json:"room_types"`
	BoardTypes []string  `json:"board_types"`
	IsClose    bool      `json:"is_close"`
	Reason     string    `json:"reason,omitempty"`

	// HotelID is the resolved external hotel identifier; zero until resolved.
	HotelID int64 `json:"hotel_id,omitempty"`
	// ExternalID is the server-assigned parent record id; zero until phase 1
	// completes.
	ExternalID int64     `json:"external_id,omitempty"`
	SyncState  SyncState `json:"sync_state"`
	LastError  string    `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Guest is one occupant on a reservation.
type Guest struct {
	Title     string `json:"title"` // Mr, Mrs, Ms, Chd, Inf
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ReservationRecord is a booking extracted from an email or voucher.
// VoucherNo is unique per tenant.
type ReservationRecord struct {
	ID       int64  `json:"id"`
	TenantID string `json:"tenant_id"`
	EmailID  int64  `json:"email_id"`

	VoucherNo string    `json:"voucher_no"`
	HotelName string    `json:"hotel_name"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	RoomType  string    `json:"room_type"`
	BoardType string    `json:"board_type"`
	Adults    int       `json:"adults"`
	Children  int       `json:"children"`
	Guests    []Guest   `json:"guests"`
	Amount    *float64  `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`

	HotelID    int64     `json:"hotel_id,omitempty"`
	ExternalID int64     `json:"external_id,omitempty"`
	SyncState  SyncState `json:"sync_state"`
	LastError  string    `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HotelMapping is a persisted, tenant-scoped translation from a normalized
// hotel name to the external hotel identifier. Unique per
// (tenant, normalized name).
type HotelMapping struct {
	ID             int64     `json:"id"`
	TenantID       string    `json:"tenant_id"`
	HotelName      string    `json:"hotel_name"`
	NormalizedName string    `json:"normalized_name"`
	HotelID        int64     `json:"hotel_id"`
	HotelNameExt   string    `json:"hotel_name_external,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
