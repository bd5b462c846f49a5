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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mindops/hotelsync/internal/config"
	"github.com/mindops/hotelsync/internal/models"
)

type transition struct {
	id         int64
	state      models.SyncState
	externalID int64
	lastError  string
}

type fakeStates struct {
	transitions []transition
}

func (f *fakeStates) UpdateStopSaleSync(_ context.Context, id int64, state models.SyncState, externalID int64, lastError string) error {
	f.transitions = append(f.transitions, transition{id, state, externalID, lastError})
	return nil
}

func (f *fakeStates) UpdateReservationSync(_ context.Context, id int64, state models.SyncState, externalID int64, lastError string) error {
	f.transitions = append(f.transitions, transition{id, state, externalID, lastError})
	return nil
}

func (f *fakeStates) states() []models.SyncState {
	out := make([]models.SyncState, len(f.transitions))
	for i, tr := range f.transitions {
		out[i] = tr.state
	}
	return out
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		Tenant: config.TenantConfig{
			Alias:         "acme",
			SednaBaseURL:  srv.URL,
			SednaUsername: "agent",
			SednaPassword: "secret",
			OperatorID:    44,
		},
		Timeout: 5 * time.Second,
		Spacing: time.Millisecond,
	})
}

func testProtocol(states StateStore) *Protocol {
	p := NewProtocol(ProtocolConfig{States: states, Retries: 3})
	p.retry.minInterval = time.Millisecond
	return p
}

func statesEqual(got, want []models.SyncState) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSyncStopSaleHappyPath(t *testing.T) {
	var calls []StopSaleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathSaveStopSale {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("username") != "agent" || r.URL.Query().Get("password") != "secret" {
			t.Error("credentials missing from query")
		}
		var req StopSaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		calls = append(calls, req)
		json.NewEncoder(w).Encode(SaveResponse{RecID: 823259})
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()
	refs := StopSaleRefs{OperatorID: 44, OperatorCode: "TUI", RoomTypeIDs: []int64{101}}

	if err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, refs); err != nil {
		t.Fatal(err)
	}

	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2 phases", len(calls))
	}
	if calls[0].RecID != 0 || len(calls[0].StopSaleOperators) != 0 {
		t.Errorf("phase 1 = RecId %d with %d operators", calls[0].RecID, len(calls[0].StopSaleOperators))
	}
	if calls[1].RecID != 823259 {
		t.Errorf("phase-2 RecId = %d, want 823259", calls[1].RecID)
	}
	if calls[1].StopSaleOperators[0].StopSaleID != 823259 {
		t.Errorf("back-reference = %d, want 823259", calls[1].StopSaleOperators[0].StopSaleID)
	}

	want := []models.SyncState{models.StatePendingParent, models.StateParentCreated, models.StateSynced}
	if !statesEqual(states.states(), want) {
		t.Errorf("transitions = %v, want %v", states.states(), want)
	}
	if rec.SyncState != models.StateSynced || rec.ExternalID != 823259 {
		t.Errorf("record = %s/%d", rec.SyncState, rec.ExternalID)
	}
}

func TestSyncStopSalePhase1FailureReverts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SaveResponse{ErrorType: 2, Message: "date overlaps existing closure"})
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()

	err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, StopSaleRefs{OperatorCode: "TUI"})
	if err == nil {
		t.Fatal("want error")
	}
	if kind := models.KindOf(err); kind != models.KindProtocol {
		t.Errorf("kind = %s, want %s", kind, models.KindProtocol)
	}

	want := []models.SyncState{models.StatePendingParent, models.StateUnsynced}
	if !statesEqual(states.states(), want) {
		t.Errorf("transitions = %v, want %v", states.states(), want)
	}
	last := states.transitions[len(states.transitions)-1]
	if last.lastError == "" {
		t.Error("revert should record the failure message")
	}
	if rec.ExternalID != 0 {
		t.Errorf("external id = %d, want 0 after phase-1 failure", rec.ExternalID)
	}
}

func TestSyncStopSalePhase2FailureStaysParentCreated(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req StopSaleRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.RecID == 0 {
			json.NewEncoder(w).Encode(SaveResponse{RecID: 823259})
			return
		}
		json.NewEncoder(w).Encode(SaveResponse{ErrorType: 5, Message: "unknown room type"})
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()

	err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, StopSaleRefs{OperatorID: 44, OperatorCode: "TUI", RoomTypeIDs: []int64{999}})
	if err == nil {
		t.Fatal("want error")
	}

	want := []models.SyncState{models.StatePendingParent, models.StateParentCreated, models.StateParentCreated}
	if !statesEqual(states.states(), want) {
		t.Errorf("transitions = %v, want %v", states.states(), want)
	}
	if rec.SyncState != models.StateParentCreated || rec.ExternalID != 823259 {
		t.Errorf("record = %s/%d, want parent_created/823259", rec.SyncState, rec.ExternalID)
	}
}

func TestSyncStopSaleResumesAtPhase2(t *testing.T) {
	var phase1Calls, phase2Calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req StopSaleRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.RecID == 0 {
			phase1Calls++
		} else {
			phase2Calls++
		}
		json.NewEncoder(w).Encode(SaveResponse{RecID: req.RecID})
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()
	rec.SyncState = models.StateParentCreated
	rec.ExternalID = 823259

	if err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, StopSaleRefs{OperatorID: 44, OperatorCode: "TUI"}); err != nil {
		t.Fatal(err)
	}

	if phase1Calls != 0 {
		t.Errorf("phase-1 calls = %d, want 0 (parent already exists)", phase1Calls)
	}
	if phase2Calls != 1 {
		t.Errorf("phase-2 calls = %d, want 1", phase2Calls)
	}

	want := []models.SyncState{models.StateSynced}
	if !statesEqual(states.states(), want) {
		t.Errorf("transitions = %v, want %v", states.states(), want)
	}
}

func TestSyncStopSaleAlreadySynced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no call expected for an already-synced record")
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()
	rec.SyncState = models.StateSynced
	rec.ExternalID = 823259

	if err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, StopSaleRefs{}); err != nil {
		t.Fatal(err)
	}
	if len(states.transitions) != 0 {
		t.Errorf("transitions = %v, want none", states.states())
	}
}

func TestSyncStopSaleRetriesTransient(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req StopSaleRequest
		json.NewDecoder(r.Body).Decode(&req)
		rid := req.RecID
		if rid == 0 {
			rid = 823259
		}
		json.NewEncoder(w).Encode(SaveResponse{RecID: rid})
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()

	if err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, StopSaleRefs{OperatorID: 44, OperatorCode: "TUI"}); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (one retry plus phase 2)", calls)
	}
	if rec.SyncState != models.StateSynced {
		t.Errorf("state = %s, want synced", rec.SyncState)
	}
}

func TestSyncStopSaleAuthNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := testStopSale()

	err := p.SyncStopSale(context.Background(), testClient(t, srv), rec, StopSaleRefs{OperatorCode: "TUI"})
	if err == nil {
		t.Fatal("want error")
	}
	if kind := models.KindOf(err); kind != models.KindAuth {
		t.Errorf("kind = %s, want %s", kind, models.KindAuth)
	}
	if calls != 1 {
		t.Errorf("calls = %d, auth failures must not be retried", calls)
	}
}

func TestSyncReservationHappyPath(t *testing.T) {
	var calls []ReservationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathSaveResv {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ReservationRequest
		json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, req)
		json.NewEncoder(w).Encode(SaveResponse{RecID: 900100})
	}))
	defer srv.Close()

	states := &fakeStates{}
	p := testProtocol(states)
	rec := &models.ReservationRecord{
		ID: 9, VoucherNo: "VC-1", HotelID: 18,
		CheckIn:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		Adults:   2,
		Guests:   []models.Guest{{Title: "Mr", FirstName: "John", LastName: "Smith"}},
	}

	if err := p.SyncReservation(context.Background(), testClient(t, srv), rec, ReservationRefs{OperatorID: 44, RoomTypeID: 101, BoardID: 5}); err != nil {
		t.Fatal(err)
	}

	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2 phases", len(calls))
	}
	if len(calls[0].Customers) != 0 {
		t.Error("phase 1 must have no customers")
	}
	if calls[1].Customers[0].ReservationID != 900100 {
		t.Errorf("customer back-reference = %d, want 900100", calls[1].Customers[0].ReservationID)
	}
	if rec.SyncState != models.StateSynced || rec.ExternalID != 900100 {
		t.Errorf("record = %s/%d", rec.SyncState, rec.ExternalID)
	}
}

func TestClientReferenceLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathHotelList:
			json.NewEncoder(w).Encode([]Hotel{{ID: 18, Name: "Grand Mandarin Resort"}})
		case pathRoomTypeList:
			if r.URL.Query().Get("operatorId") != "44" {
				t.Errorf("operatorId = %q, want 44", r.URL.Query().Get("operatorId"))
			}
			json.NewEncoder(w).Encode([]RoomType{{ID: 101, Code: "DBL", Name: "Double"}})
		case pathBoardList:
			json.NewEncoder(w).Encode([]Board{{ID: 5, Code: "AI", Name: "All Inclusive"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv)
	ctx := context.Background()

	hotels, err := c.HotelList(ctx)
	if err != nil || len(hotels) != 1 || hotels[0].ID != 18 {
		t.Errorf("hotels = %v, %v", hotels, err)
	}
	rooms, err := c.RoomTypeList(ctx)
	if err != nil || len(rooms) != 1 || rooms[0].Code != "DBL" {
		t.Errorf("rooms = %v, %v", rooms, err)
	}
	boards, err := c.BoardList(ctx)
	if err != nil || len(boards) != 1 || boards[0].Code != "AI" {
		t.Errorf("boards = %v, %v", boards, err)
	}
}
