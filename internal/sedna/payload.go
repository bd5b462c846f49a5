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
	"strings"

	"github.com/mindops/hotelsync/internal/models"
)

// StopSaleOperator is one operator row of a stop-sale save. StopSaleId
// back-references the parent record and is zero in phase 1.
type StopSaleOperator struct {
	StopSaleID int64 `json:"StopSaleId"`
	OperatorID int64 `json:"OperatorId"`
}

// StopSaleRoomType is one room-type row of a stop-sale save.
type StopSaleRoomType struct {
	StopSaleID int64 `json:"StopSaleId"`
	RoomTypeID int64 `json:"RoomTypeId"`
}

// StopSaleBoard is one board row of a stop-sale save.
type StopSaleBoard struct {
	StopSaleID int64 `json:"StopSaleId"`
	BoardID    int64 `json:"BoardId"`
}

// StopSaleRequest is the body of Integratiion/SaveStopSale. RecId zero
// creates the parent; a phase-2 call repeats the scalars with RecId set and
// the child collections populated. Empty child collections mean the closure
// applies to all room types / boards.
type StopSaleRequest struct {
	RecID             int64              `json:"RecId"`
	HotelID           int64              `json:"HotelId"`
	StartDate         string             `json:"StartDate"`
	EndDate           string             `json:"EndDate"`
	IsClose           bool               `json:"IsClose"`
	Description       string             `json:"Description,omitempty"`
	OperatorCodes     string             `json:"OperatorCodes"`
	StopSaleOperators []StopSaleOperator `json:"StopSaleOperators"`
	StopSaleRoomTypes []StopSaleRoomType `json:"StopSaleRoomTypes"`
	StopSaleBoards    []StopSaleBoard    `json:"StopSaleBoards"`
}

// Customer is one guest row of a reservation save.
type Customer struct {
	ReservationID int64  `json:"ReservationId"`
	Title         string `json:"Title"`
	Name          string `json:"Name"`
	Surname       string `json:"Surname"`
}

// ReservationRequest is the body of Integratiion/SaveReservation.
type ReservationRequest struct {
	RecID      int64      `json:"RecId"`
	HotelID    int64      `json:"HotelId"`
	VoucherNo  string     `json:"VoucherNo"`
	CheckIn    string     `json:"CheckIn"`
	CheckOut   string     `json:"CheckOut"`
	RoomTypeID int64      `json:"RoomTypeId"`
	BoardID    int64      `json:"BoardId"`
	OperatorID int64      `json:"OperatorId"`
	AdultCount int        `json:"AdultCount"`
	ChildCount int        `json:"ChildCount"`
	Amount     float64    `json:"Amount,omitempty"`
	Currency   string     `json:"Currency,omitempty"`
	Customers  []Customer `json:"Customers"`
}

// OperatorRemark joins operator codes with semicolons. The server requires
// a trailing separator even for a single code.
func OperatorRemark(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	return strings.Join(codes, ";") + ";"
}

// StopSaleRefs carries the resolved external ids a stop-sale save needs.
type StopSaleRefs struct {
	OperatorID   int64
	OperatorCode string
	RoomTypeIDs  []int64
	BoardIDs     []int64
}

// BuildStopSalePhase1 builds the parent-creation request: scalars only,
// RecId zero, child collections present but empty.
func BuildStopSalePhase1(rec *models.StopSaleRecord, refs StopSaleRefs) *StopSaleRequest {
	return &StopSaleRequest{
		RecID:             0,
		HotelID:           rec.HotelID,
		StartDate:         rec.DateFrom.Format(models.DateFormat),
		EndDate:           rec.DateTo.Format(models.DateFormat),
		IsClose:           rec.IsClose,
		Description:       rec.Reason,
		OperatorCodes:     OperatorRemark([]string{refs.OperatorCode}),
		StopSaleOperators: []StopSaleOperator{},
		StopSaleRoomTypes: []StopSaleRoomType{},
		StopSaleBoards:    []StopSaleBoard{},
	}
}

// BuildStopSalePhase2 repeats the phase-1 scalars with RecId set to the
// parent id and the child collections populated, each row back-referencing
// the parent.
func BuildStopSalePhase2(rec *models.StopSaleRecord, parentID int64, refs StopSaleRefs) *StopSaleRequest {
	req := BuildStopSalePhase1(rec, refs)
	req.RecID = parentID

	req.StopSaleOperators = []StopSaleOperator{{StopSaleID: parentID, OperatorID: refs.OperatorID}}
	for _, id := range refs.RoomTypeIDs {
		req.StopSaleRoomTypes = append(req.StopSaleRoomTypes, StopSaleRoomType{StopSaleID: parentID, RoomTypeID: id})
	}
	for _, id := range refs.BoardIDs {
		req.StopSaleBoards = append(req.StopSaleBoards, StopSaleBoard{StopSaleID: parentID, BoardID: id})
	}
	return req
}

// ReservationRefs carries the resolved external ids a reservation save needs.
type ReservationRefs struct {
	OperatorID int64
	RoomTypeID int64
	BoardID    int64
}

// BuildReservationPhase1 builds the parent-creation request with an empty
// guest collection.
func BuildReservationPhase1(rec *models.ReservationRecord, refs ReservationRefs) *ReservationRequest {
	req := &ReservationRequest{
		RecID:      0,
		HotelID:    rec.HotelID,
		VoucherNo:  rec.VoucherNo,
		CheckIn:    rec.CheckIn.Format(models.DateFormat),
		CheckOut:   rec.CheckOut.Format(models.DateFormat),
		RoomTypeID: refs.RoomTypeID,
		BoardID:    refs.BoardID,
		OperatorID: refs.OperatorID,
		AdultCount: rec.Adults,
		ChildCount: rec.Children,
		Currency:   rec.Currency,
		Customers:  []Customer{},
	}
	if rec.Amount != nil {
		req.Amount = *rec.Amount
	}
	return req
}

// BuildReservationPhase2 repeats the scalars with RecId set and the guest
// rows populated.
func BuildReservationPhase2(rec *models.ReservationRecord, parentID int64, refs ReservationRefs) *ReservationRequest {
	req := BuildReservationPhase1(rec, refs)
	req.RecID = parentID
	for _, g := range rec.Guests {
		req.Customers = append(req.Customers, Customer{
			ReservationID: parentID,
			Title:         g.Title,
			Name:          g.FirstName,
			Surname:       g.LastName,
		})
	}
	return req
}
