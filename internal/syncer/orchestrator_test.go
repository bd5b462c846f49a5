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

package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mindops/hotelsync/internal/config"
	"github.com/mindops/hotelsync/internal/models"
	"github.com/mindops/hotelsync/internal/resolve"
	"github.com/mindops/hotelsync/internal/sedna"
)

type fakeRunStore struct {
	mu        sync.Mutex
	emails    map[int64]*models.EmailRecord
	stopSales map[int64][]models.StopSaleRecord
	runs      map[string]*models.SyncRun
	items     []models.SyncItem
	finished  map[string]string

	// gate blocks every item until closed, so tests subscribe before any
	// event fires.
	gate chan struct{}

	// entered, when set, receives one signal per item reaching the store,
	// so tests can cancel while items are in flight.
	entered chan struct{}
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		emails:    make(map[int64]*models.EmailRecord),
		stopSales: make(map[int64][]models.StopSaleRecord),
		runs:      make(map[string]*models.SyncRun),
		finished:  make(map[string]string),
		gate:      make(chan struct{}),
	}
}

func (f *fakeRunStore) addStopSaleEmail(emailID int64, hotelName string) {
	f.emails[emailID] = &models.EmailRecord{ID: emailID, TenantID: "acme", EmailType: models.TypeStopSale}
	f.stopSales[emailID] = []models.StopSaleRecord{{
		ID: emailID * 10, TenantID: "acme", EmailID: emailID,
		HotelName: hotelName,
		DateFrom:  time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC),
		DateTo:    time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		RoomTypes: []string{"DBL"},
		IsClose:   true,
		SyncState: models.StateUnsynced,
	}}
}

func (f *fakeRunStore) GetEmail(_ context.Context, id int64) (*models.EmailRecord, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	<-f.gate
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emails[id], nil
}

func (f *fakeRunStore) StopSalesByEmail(_ context.Context, emailID int64) ([]models.StopSaleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.StopSaleRecord, len(f.stopSales[emailID]))
	copy(out, f.stopSales[emailID])
	return out, nil
}

func (f *fakeRunStore) ReservationsByEmail(_ context.Context, _ int64) ([]models.ReservationRecord, error) {
	return nil, nil
}

func (f *fakeRunStore) UpdateStopSaleHotel(_ context.Context, _, _ int64) error   { return nil }
func (f *fakeRunStore) UpdateReservationHotel(_ context.Context, _, _ int64) error { return nil }

func (f *fakeRunStore) UpdateStopSaleSync(_ context.Context, id int64, state models.SyncState, externalID int64, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, recs := range f.stopSales {
		for i := range recs {
			if recs[i].ID == id {
				recs[i].SyncState = state
				recs[i].ExternalID = externalID
				recs[i].LastError = lastError
			}
		}
	}
	return nil
}

func (f *fakeRunStore) UpdateReservationSync(_ context.Context, _ int64, _ models.SyncState, _ int64, _ string) error {
	return nil
}

func (f *fakeRunStore) CreateSyncRun(_ context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunStore) UpdateSyncRunProgress(ctx context.Context, runID string, processed, succeeded, failed int) error {
	// Behaves like a real pool: a cancelled context fails the write.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.runs[runID]; ok {
		r.Processed, r.Succeeded, r.Failed = processed, succeeded, failed
	}
	return nil
}

func (f *fakeRunStore) FinishSyncRun(_ context.Context, runID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[runID] = status
	return nil
}

func (f *fakeRunStore) InsertSyncItem(ctx context.Context, item *models.SyncItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *item)
	return nil
}

type fakeResolver struct {
	byName map[string]*resolve.Resolution
}

func (f *fakeResolver) Resolve(_ context.Context, _, name string) (*resolve.Resolution, error) {
	if r, ok := f.byName[name]; ok {
		return r, nil
	}
	return &resolve.Resolution{Hotel: &resolve.Hotel{ID: 18, Name: name}}, nil
}

type fakeRefs struct{}

func (fakeRefs) RoomTypeIDs(_ context.Context, _ string, codes []string) ([]int64, string, error) {
	ids := make([]int64, len(codes))
	for i := range codes {
		ids[i] = 101
	}
	return ids, "", nil
}
func (fakeRefs) BoardTypeIDs(_ context.Context, _ string, codes []string) ([]int64, string, error) {
	return make([]int64, len(codes)), "", nil
}
func (fakeRefs) RoomTypeID(_ context.Context, _, _ string) (int64, bool, error) {
	return 101, true, nil
}
func (fakeRefs) BoardTypeID(_ context.Context, _, _ string) (int64, bool, error) {
	return 5, true, nil
}

type fakeDriver struct {
	mu      sync.Mutex
	calls   []int64
	failFor map[int64]error
}

func (f *fakeDriver) SyncStopSale(_ context.Context, _ string, rec *models.StopSaleRecord, _ sedna.StopSaleRefs) error {
	f.mu.Lock()
	f.calls = append(f.calls, rec.ID)
	err := f.failFor[rec.ID]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	rec.SyncState = models.StateSynced
	return nil
}

func (f *fakeDriver) SyncReservation(_ context.Context, _ string, rec *models.ReservationRecord, _ sedna.ReservationRefs) error {
	rec.SyncState = models.StateSynced
	return nil
}

func testOrchestrator(store *fakeRunStore, resolver Resolver, driver Driver) *Orchestrator {
	return New(OrchestratorConfig{
		Store:    store,
		Resolver: resolver,
		Refs:     fakeRefs{},
		Driver:   driver,
		Tenants:  []config.TenantConfig{{Alias: "acme", OperatorID: 44, OperatorCode: "TUI"}},
		Workers:  2,
	})
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("timed out waiting for run events")
		}
	}
}

func TestRunBatchIsolation(t *testing.T) {
	store := newFakeRunStore()
	for i := int64(1); i <= 5; i++ {
		store.addStopSaleEmail(i, "Grand Mandarin")
	}
	driver := &fakeDriver{failFor: map[int64]error{
		30: models.NewSyncError(models.KindProtocol, "server rejected save"),
	}}
	o := testOrchestrator(store, &fakeResolver{}, driver)

	runID, err := o.StartRun(context.Background(), "acme", []int64{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatal(err)
	}
	ch, release := o.Subscribe(runID)
	defer release()
	close(store.gate)
	events := collectEvents(t, ch)

	final := events[len(events)-1]
	if final.Type != EventComplete {
		t.Fatalf("last event = %s, want %s", final.Type, EventComplete)
	}
	if final.Processed != 5 || final.Succeeded != 4 || final.Failed != 1 {
		t.Errorf("summary = %d/%d/%d, want 5 processed, 4 succeeded, 1 failed",
			final.Processed, final.Succeeded, final.Failed)
	}
	if final.RunStatus != models.RunCompleted {
		t.Errorf("run status = %s, want %s", final.RunStatus, models.RunCompleted)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.finished[runID] != models.RunCompleted {
		t.Errorf("persisted status = %s", store.finished[runID])
	}
	var failedItems int
	for _, item := range store.items {
		if item.Status == models.ItemFailed {
			failedItems++
			if item.ErrorKind != models.KindProtocol {
				t.Errorf("error kind = %s, want %s", item.ErrorKind, models.KindProtocol)
			}
			if item.EmailID != 3 {
				t.Errorf("failed email = %d, want 3", item.EmailID)
			}
		}
	}
	if failedItems != 1 {
		t.Errorf("failed items = %d, want 1", failedItems)
	}
}

func TestRunEventsOrderedAndCumulative(t *testing.T) {
	store := newFakeRunStore()
	for i := int64(1); i <= 4; i++ {
		store.addStopSaleEmail(i, "Grand Mandarin")
	}
	o := testOrchestrator(store, &fakeResolver{}, &fakeDriver{})

	runID, err := o.StartRun(context.Background(), "acme", []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	ch, release := o.Subscribe(runID)
	defer release()
	close(store.gate)
	events := collectEvents(t, ch)

	if len(events) != 5 {
		t.Fatalf("events = %d, want 4 progress + 1 complete", len(events))
	}
	for i, e := range events {
		if e.Seq != i+1 {
			t.Errorf("event %d has seq %d", i, e.Seq)
		}
		if e.Processed != i+1 && e.Type == EventProgress {
			t.Errorf("event %d processed = %d, want %d", i, e.Processed, i+1)
		}
	}
	if events[4].Type != EventComplete {
		t.Errorf("final event type = %s", events[4].Type)
	}
}

func TestRunAmbiguousHotelFails(t *testing.T) {
	store := newFakeRunStore()
	store.addStopSaleEmail(1, "Mandarin")
	resolver := &fakeResolver{byName: map[string]*resolve.Resolution{
		"Mandarin": {Candidates: []resolve.Candidate{
			{Hotel: resolve.Hotel{ID: 1, Name: "Mandarin Palace"}, Score: 0.85},
			{Hotel: resolve.Hotel{ID: 2, Name: "Mandarin Oriental"}, Score: 0.68},
		}},
	}}
	driver := &fakeDriver{}
	o := testOrchestrator(store, resolver, driver)

	runID, err := o.StartRun(context.Background(), "acme", []int64{1})
	if err != nil {
		t.Fatal(err)
	}
	ch, release := o.Subscribe(runID)
	defer release()
	close(store.gate)
	events := collectEvents(t, ch)

	progress := events[0]
	if progress.ItemStatus != models.ItemFailed {
		t.Fatalf("item status = %s, want failed", progress.ItemStatus)
	}
	if progress.ErrorKind != models.KindAmbiguous {
		t.Errorf("error kind = %s, want %s", progress.ErrorKind, models.KindAmbiguous)
	}
	if len(driver.calls) != 0 {
		t.Error("save must not be attempted for an ambiguous hotel")
	}

	// The record itself is parked as failed with the cause, so operators can
	// list it and confirm a mapping.
	store.mu.Lock()
	rec := store.stopSales[1][0]
	store.mu.Unlock()
	if rec.SyncState != models.StateFailed {
		t.Errorf("record state = %s, want %s", rec.SyncState, models.StateFailed)
	}
	if rec.LastError == "" {
		t.Error("record last error not recorded")
	}
}

func TestRunUnknownTenant(t *testing.T) {
	o := testOrchestrator(newFakeRunStore(), &fakeResolver{}, &fakeDriver{})
	if _, err := o.StartRun(context.Background(), "nobody", []int64{1}); err == nil {
		t.Fatal("want error for unknown tenant")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	o := testOrchestrator(newFakeRunStore(), &fakeResolver{}, &fakeDriver{})
	if _, err := o.StartRun(context.Background(), "acme", nil); err == nil {
		t.Fatal("want error for empty batch")
	}
}

func TestRunNoRecordsFailsExtraction(t *testing.T) {
	store := newFakeRunStore()
	store.emails[1] = &models.EmailRecord{ID: 1, TenantID: "acme", EmailType: models.TypeOther}
	o := testOrchestrator(store, &fakeResolver{}, &fakeDriver{})

	runID, err := o.StartRun(context.Background(), "acme", []int64{1})
	if err != nil {
		t.Fatal(err)
	}
	ch, release := o.Subscribe(runID)
	defer release()
	close(store.gate)
	events := collectEvents(t, ch)

	if events[0].ErrorKind != models.KindExtraction {
		t.Errorf("error kind = %s, want %s", events[0].ErrorKind, models.KindExtraction)
	}
}

func TestRunCancellation(t *testing.T) {
	store := newFakeRunStore()
	for i := int64(1); i <= 6; i++ {
		store.addStopSaleEmail(i, "Grand Mandarin")
	}
	o := testOrchestrator(store, &fakeResolver{}, &fakeDriver{})

	runID, err := o.StartRun(context.Background(), "acme", []int64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	ch, release := o.Subscribe(runID)
	defer release()

	// Items are gated, so nothing has finished yet; cancelling now leaves
	// most of the batch unstarted.
	if !o.Cancel(runID) {
		t.Fatal("cancel returned false for a running batch")
	}
	close(store.gate)

	events := collectEvents(t, ch)
	final := events[len(events)-1]
	if final.RunStatus != models.RunCancelled {
		t.Errorf("run status = %s, want %s", final.RunStatus, models.RunCancelled)
	}
	if final.Processed >= 6 {
		t.Errorf("processed = %d, want fewer than 6 after cancellation", final.Processed)
	}
}

func TestCancelledRunStillPersistsFinishedItems(t *testing.T) {
	store := newFakeRunStore()
	for i := int64(1); i <= 4; i++ {
		store.addStopSaleEmail(i, "Grand Mandarin")
	}
	store.entered = make(chan struct{}, 4)
	o := testOrchestrator(store, &fakeResolver{}, &fakeDriver{})

	runID, err := o.StartRun(context.Background(), "acme", []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	ch, release := o.Subscribe(runID)
	defer release()

	// Wait for a worker to start an item, then cancel while it is in flight.
	// The item runs to completion and its audit row must still be written.
	<-store.entered
	if !o.Cancel(runID) {
		t.Fatal("cancel returned false for a running batch")
	}
	close(store.gate)

	events := collectEvents(t, ch)
	final := events[len(events)-1]
	if final.RunStatus != models.RunCancelled {
		t.Fatalf("run status = %s, want %s", final.RunStatus, models.RunCancelled)
	}
	if final.Processed == 0 {
		t.Fatal("want at least one item to finish after cancel")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.items) != final.Processed {
		t.Errorf("persisted items = %d, want %d (finished items lost after cancel)",
			len(store.items), final.Processed)
	}
	run := store.runs[runID]
	if run == nil || run.Processed != final.Processed {
		t.Errorf("persisted progress = %+v, want processed %d", run, final.Processed)
	}
}

func TestSubscribeFinishedRun(t *testing.T) {
	o := testOrchestrator(newFakeRunStore(), &fakeResolver{}, &fakeDriver{})
	ch, release := o.Subscribe("no-such-run")
	defer release()
	if _, ok := <-ch; ok {
		t.Fatal("channel for an unknown run should be closed")
	}
}
