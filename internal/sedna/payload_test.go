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

package sedna

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mindops/hotelsync/internal/models"
)

func TestOperatorRemark(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{name: "single code keeps trailing separator", codes: []string{"TUI"}, want: "TUI;"},
		{name: "multiple codes", codes: []string{"TUI", "ANEX"}, want: "TUI;ANEX;"},
		{name: "empty", codes: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OperatorRemark(tt.codes); got != tt.want {
				t.Errorf("OperatorRemark(%v) = %q, want %q", tt.codes, got, tt.want)
			}
		})
	}
}

func testStopSale() *models.StopSaleRecord {
	return &models.StopSaleRecord{
		ID:        7,
		TenantID:  "acme",
		HotelID:   18,
		DateFrom:  time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC),
		DateTo:    time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		IsClose:   true,
		Reason:    "renovation",
		SyncState: models.StateUnsynced,
	}
}

func TestBuildStopSalePhase1(t *testing.T) {
	refs := StopSaleRefs{OperatorID: 44, OperatorCode: "TUI", RoomTypeIDs: []int64{101}, BoardIDs: []int64{5}}

	req := BuildStopSalePhase1(testStopSale(), refs)

	if req.RecID != 0 {
		t.Errorf("RecId = %d, want 0 for parent creation", req.RecID)
	}
	if req.HotelID != 18 {
		t.Errorf("HotelId = %d, want 18", req.HotelID)
	}
	if req.StartDate != "2025-04-13" || req.EndDate != "2025-04-20" {
		t.Errorf("dates = %s..%s", req.StartDate, req.EndDate)
	}
	if req.OperatorCodes != "TUI;" {
		t.Errorf("OperatorCodes = %q, want %q", req.OperatorCodes, "TUI;")
	}
	if len(req.StopSaleOperators) != 0 || len(req.StopSaleRoomTypes) != 0 || len(req.StopSaleBoards) != 0 {
		t.Error("phase 1 must carry empty child collections")
	}

	// Children must serialize as [], not null.
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("phase-1 JSON contains null: %s", data)
	}
}

func TestBuildStopSalePhase2(t *testing.T) {
	refs := StopSaleRefs{OperatorID: 44, OperatorCode: "TUI", RoomTypeIDs: []int64{101, 102}, BoardIDs: []int64{5}}

	req := BuildStopSalePhase2(testStopSale(), 823259, refs)

	if req.RecID != 823259 {
		t.Errorf("RecId = %d, want parent id 823259", req.RecID)
	}
	if len(req.StopSaleOperators) != 1 {
		t.Fatalf("operators = %d, want 1", len(req.StopSaleOperators))
	}
	if req.StopSaleOperators[0].StopSaleID != 823259 {
		t.Errorf("operator back-reference = %d, want 823259", req.StopSaleOperators[0].StopSaleID)
	}
	if req.StopSaleOperators[0].OperatorID != 44 {
		t.Errorf("OperatorId = %d, want 44", req.StopSaleOperators[0].OperatorID)
	}
	if len(req.StopSaleRoomTypes) != 2 {
		t.Fatalf("room types = %d, want 2", len(req.StopSaleRoomTypes))
	}
	for _, rt := range req.StopSaleRoomTypes {
		if rt.StopSaleID != 823259 {
			t.Errorf("room-type back-reference = %d, want 823259", rt.StopSaleID)
		}
	}
	if len(req.StopSaleBoards) != 1 || req.StopSaleBoards[0].BoardID != 5 {
		t.Errorf("boards = %+v", req.StopSaleBoards)
	}
}

func TestBuildStopSalePhase2AllRooms(t *testing.T) {
	// No room/board references: the closure applies to everything, so the
	// child collections stay empty apart from the operator row.
	refs := StopSaleRefs{OperatorID: 44, OperatorCode: "TUI"}

	req := BuildStopSalePhase2(testStopSale(), 823259, refs)

	if len(req.StopSaleRoomTypes) != 0 || len(req.StopSaleBoards) != 0 {
		t.Errorf("all-rooms closure should have no room/board rows, got %d/%d",
			len(req.StopSaleRoomTypes), len(req.StopSaleBoards))
	}
	if len(req.StopSaleOperators) != 1 {
		t.Errorf("operators = %d, want 1", len(req.StopSaleOperators))
	}
}

func TestBuildReservationPhases(t *testing.T) {
	amount := 1250.50
	rec := &models.ReservationRecord{
		ID:        9,
		TenantID:  "acme",
		VoucherNo: "VC-1",
		HotelID:   18,
		CheckIn:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		Adults:    2,
		Children:  1,
		Amount:    &amount,
		Currency:  "EUR",
		Guests: []models.Guest{
			{Title: "Mr", FirstName: "John", LastName: "Smith"},
			{Title: "Chd", FirstName: "Tim", LastName: "Smith"},
		},
		SyncState: models.StateUnsynced,
	}
	refs := ReservationRefs{OperatorID: 44, RoomTypeID: 101, BoardID: 5}

	p1 := BuildReservationPhase1(rec, refs)
	if p1.RecID != 0 || len(p1.Customers) != 0 {
		t.Errorf("phase 1 = RecId %d, %d customers; want 0, 0", p1.RecID, len(p1.Customers))
	}
	if p1.CheckIn != "2025-06-01" || p1.CheckOut != "2025-06-08" {
		t.Errorf("dates = %s..%s", p1.CheckIn, p1.CheckOut)
	}
	if p1.Amount != 1250.50 || p1.Currency != "EUR" {
		t.Errorf("amount = %v %s", p1.Amount, p1.Currency)
	}

	p2 := BuildReservationPhase2(rec, 900100, refs)
	if p2.RecID != 900100 {
		t.Errorf("phase-2 RecId = %d, want 900100", p2.RecID)
	}
	if len(p2.Customers) != 2 {
		t.Fatalf("customers = %d, want 2", len(p2.Customers))
	}
	for _, cu := range p2.Customers {
		if cu.ReservationID != 900100 {
			t.Errorf("customer back-reference = %d, want 900100", cu.ReservationID)
		}
	}
	if p2.Customers[0].Name != "John" || p2.Customers[0].Surname != "Smith" {
		t.Errorf("customer[0] = %+v", p2.Customers[0])
	}
}
