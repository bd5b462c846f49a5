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

// Package syncer orchestrates bulk synchronization runs: a bounded worker
// pool pushes each email's extracted records through hotel resolution,
// reference lookup and the two-phase save, with per-item failure isolation
// and ordered progress events.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindops/hotelsync/internal/config"
	"github.com/mindops/hotelsync/internal/models"
	"github.com/mindops/hotelsync/internal/resolve"
	"github.com/mindops/hotelsync/internal/sedna"
)

// RunStore is the persistence surface the orchestrator needs.
type RunStore interface {
	GetEmail(ctx context.Context, id int64) (*models.EmailRecord, error)
	StopSalesByEmail(ctx context.Context, emailID int64) ([]models.StopSaleRecord, error)
	ReservationsByEmail(ctx context.Context, emailID int64) ([]models.ReservationRecord, error)
	UpdateStopSaleHotel(ctx context.Context, id, hotelID int64) error
	UpdateReservationHotel(ctx context.Context, id, hotelID int64) error
	UpdateStopSaleSync(ctx context.Context, id int64, state models.SyncState, externalID int64, lastError string) error
	UpdateReservationSync(ctx context.Context, id int64, state models.SyncState, externalID int64, lastError string) error
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	UpdateSyncRunProgress(ctx context.Context, runID string, processed, succeeded, failed int) error
	FinishSyncRun(ctx context.Context, runID, status string) error
	InsertSyncItem(ctx context.Context, item *models.SyncItem) error
}

// Resolver maps hotel names to external ids.
type Resolver interface {
	Resolve(ctx context.Context, tenant, name string) (*resolve.Resolution, error)
}

// References resolves room and board codes to external ids.
type References interface {
	RoomTypeIDs(ctx context.Context, tenant string, codes []string) ([]int64, string, error)
	BoardTypeIDs(ctx context.Context, tenant string, codes []string) ([]int64, string, error)
	RoomTypeID(ctx context.Context, tenant, code string) (int64, bool, error)
	BoardTypeID(ctx context.Context, tenant, code string) (int64, bool, error)
}

// Driver performs the two-phase save for one record.
type Driver interface {
	SyncStopSale(ctx context.Context, tenant string, rec *models.StopSaleRecord, refs sedna.StopSaleRefs) error
	SyncReservation(ctx context.Context, tenant string, rec *models.ReservationRecord, refs sedna.ReservationRefs) error
}

// Publisher mirrors run events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// SednaDriver adapts the two-phase protocol and the per-tenant client set
// to the Driver interface.
type SednaDriver struct {
	Protocol *sedna.Protocol
	Clients  *sedna.ClientSet
}

func (d *SednaDriver) SyncStopSale(ctx context.Context, tenant string, rec *models.StopSaleRecord, refs sedna.StopSaleRefs) error {
	client, err := d.Clients.ForTenant(tenant)
	if err != nil {
		return err
	}
	return d.Protocol.SyncStopSale(ctx, client, rec, refs)
}

func (d *SednaDriver) SyncReservation(ctx context.Context, tenant string, rec *models.ReservationRecord, refs sedna.ReservationRefs) error {
	client, err := d.Clients.ForTenant(tenant)
	if err != nil {
		return err
	}
	return d.Protocol.SyncReservation(ctx, client, rec, refs)
}

// Orchestrator runs bulk sync batches.
type Orchestrator struct {
	store     RunStore
	resolver  Resolver
	refs      References
	driver    Driver
	publisher Publisher
	tenants   map[string]config.TenantConfig
	workers   int
	logger    *slog.Logger

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	streams map[string][]chan Event
}

// OrchestratorConfig holds the dependencies for New.
type OrchestratorConfig struct {
	Store     RunStore
	Resolver  Resolver
	Refs      References
	Driver    Driver
	Publisher Publisher // optional
	Tenants   []config.TenantConfig
	Workers   int
	Logger    *slog.Logger
}

// New builds a sync orchestrator.
func New(cfg OrchestratorConfig) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tenants := make(map[string]config.TenantConfig, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		tenants[t.Alias] = t
	}
	return &Orchestrator{
		store:     cfg.Store,
		resolver:  cfg.Resolver,
		refs:      cfg.Refs,
		driver:    cfg.Driver,
		publisher: cfg.Publisher,
		tenants:   tenants,
		workers:   workers,
		logger:    logger,
		active:    make(map[string]context.CancelFunc),
		streams:   make(map[string][]chan Event),
	}
}

// StartRun begins a bulk sync batch for the given emails and returns the run
// id immediately. Processing happens in the background; progress is
// observable via Subscribe and the run store.
func (o *Orchestrator) StartRun(ctx context.Context, tenant string, emailIDs []int64) (string, error) {
	if _, ok := o.tenants[tenant]; !ok {
		return "", fmt.Errorf("unknown tenant %q", tenant)
	}
	if len(emailIDs) == 0 {
		return "", fmt.Errorf("no emails to sync")
	}

	runID := uuid.New().String()
	run := &models.SyncRun{
		ID:       runID,
		TenantID: tenant,
		Status:   models.RunRunning,
		Total:    len(emailIDs),
	}
	if err := o.store.CreateSyncRun(ctx, run); err != nil {
		return "", fmt.Errorf("create sync run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.active[runID] = cancel
	o.mu.Unlock()

	go o.run(runCtx, runID, tenant, emailIDs)

	o.logger.Info("sync run started", "run_id", runID, "tenant", tenant, "total", len(emailIDs))
	return runID, nil
}

// Cancel stops a running batch. In-flight items finish; remaining items are
// not started.
func (o *Orchestrator) Cancel(runID string) bool {
	o.mu.Lock()
	cancel, ok := o.active[runID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Subscribe returns a channel of the run's events and a release function.
// The channel closes when the run completes.
func (o *Orchestrator) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	o.mu.Lock()
	if _, running := o.active[runID]; !running {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	o.streams[runID] = append(o.streams[runID], ch)
	o.mu.Unlock()

	release := func() {
		o.mu.Lock()
		subs := o.streams[runID]
		for i, c := range subs {
			if c == ch {
				o.streams[runID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		o.mu.Unlock()
	}
	return ch, release
}

// itemResult is the outcome of one email, reported by a worker.
type itemResult struct {
	emailID    int64
	recordKind string
	recordID   int64
	status     string
	errKind    models.ErrorKind
	errMsg     string
}

func (o *Orchestrator) run(ctx context.Context, runID, tenant string, emailIDs []int64) {
	results := make(chan itemResult)
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	go func() {
		for _, emailID := range emailIDs {
			sem <- struct{}{}
			if ctx.Err() != nil {
				<-sem
				break
			}
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				defer func() { <-sem }()
				// Cancellation takes effect between items; an item already
				// started runs to completion so the save protocol is never
				// abandoned between phases.
				results <- o.processEmail(context.WithoutCancel(ctx), tenant, id)
			}(emailID)
		}
		wg.Wait()
		close(results)
	}()

	// The collector is the only event emitter, so sequence numbers and
	// event order are consistent even with concurrent workers.
	var seq, processed, succeeded, failed int
	for res := range results {
		processed++
		if res.status == models.ItemSuccess {
			succeeded++
		} else {
			failed++
		}
		seq++

		// Items that ran to completion after a cancel still get their audit
		// row and progress persisted.
		if err := o.store.InsertSyncItem(context.WithoutCancel(ctx), &models.SyncItem{
			RunID:        runID,
			EmailID:      res.emailID,
			RecordKind:   res.recordKind,
			RecordID:     res.recordID,
			Status:       res.status,
			ErrorKind:    res.errKind,
			ErrorMessage: res.errMsg,
		}); err != nil {
			o.logger.Error("persist sync item", "run_id", runID, "error", err)
		}
		if err := o.store.UpdateSyncRunProgress(context.WithoutCancel(ctx), runID, processed, succeeded, failed); err != nil {
			o.logger.Error("persist run progress", "run_id", runID, "error", err)
		}

		o.emit(ctx, runID, Event{
			Type:         EventProgress,
			RunID:        runID,
			TenantID:     tenant,
			Seq:          seq,
			Total:        len(emailIDs),
			Processed:    processed,
			Succeeded:    succeeded,
			Failed:       failed,
			Timestamp:    time.Now().UTC(),
			EmailID:      res.emailID,
			ItemStatus:   res.status,
			ErrorKind:    res.errKind,
			ErrorMessage: res.errMsg,
		})
	}

	status := models.RunCompleted
	if ctx.Err() != nil {
		status = models.RunCancelled
	}
	if err := o.store.FinishSyncRun(context.WithoutCancel(ctx), runID, status); err != nil {
		o.logger.Error("finish sync run", "run_id", runID, "error", err)
	}

	seq++
	o.emit(ctx, runID, Event{
		Type:      EventComplete,
		RunID:     runID,
		TenantID:  tenant,
		Seq:       seq,
		Total:     len(emailIDs),
		Processed: processed,
		Succeeded: succeeded,
		Failed:    failed,
		Timestamp: time.Now().UTC(),
		RunStatus: status,
	})

	o.mu.Lock()
	delete(o.active, runID)
	for _, ch := range o.streams[runID] {
		close(ch)
	}
	delete(o.streams, runID)
	o.mu.Unlock()

	o.logger.Info("sync run finished", "run_id", runID, "status", status,
		"processed", processed, "succeeded", succeeded, "failed", failed)
}

func (o *Orchestrator) emit(ctx context.Context, runID string, event Event) {
	o.mu.Lock()
	subs := make([]chan Event, len(o.streams[runID]))
	copy(subs, o.streams[runID])
	o.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// A slow subscriber drops events rather than stalling the run;
			// counters are cumulative so the next event catches it up.
		}
	}

	if o.publisher != nil {
		if err := o.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
			o.logger.Warn("publish run event", "run_id", runID, "error", err)
		}
	}
}

// processEmail pushes every record extracted from one email through
// resolution, reference lookup and the save protocol. A failure in one
// email never affects the others in the batch.
func (o *Orchestrator) processEmail(ctx context.Context, tenant string, emailID int64) (res itemResult) {
	res = itemResult{emailID: emailID, status: models.ItemFailed}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while syncing email", "email_id", emailID, "panic", r)
			res.status = models.ItemFailed
			res.errKind = models.KindTransient
			res.errMsg = fmt.Sprintf("internal error: %v", r)
		}
	}()

	email, err := o.store.GetEmail(ctx, emailID)
	if err != nil {
		return o.fail(res, models.WrapSyncError(models.KindTransient, err, "load email"))
	}
	if email == nil {
		return o.fail(res, models.NewSyncError(models.KindExtraction, "email %d not found", emailID))
	}
	if email.TenantID != tenant {
		return o.fail(res, models.NewSyncError(models.KindExtraction, "email %d belongs to another tenant", emailID))
	}

	stopSales, err := o.store.StopSalesByEmail(ctx, emailID)
	if err != nil {
		return o.fail(res, models.WrapSyncError(models.KindTransient, err, "load stop sales"))
	}
	reservations, err := o.store.ReservationsByEmail(ctx, emailID)
	if err != nil {
		return o.fail(res, models.WrapSyncError(models.KindTransient, err, "load reservations"))
	}
	if len(stopSales) == 0 && len(reservations) == 0 {
		return o.fail(res, models.NewSyncError(models.KindExtraction,
			"email %d has no extractable records (type %s)", emailID, email.EmailType))
	}

	for i := range stopSales {
		rec := &stopSales[i]
		res.recordKind = models.TypeStopSale
		res.recordID = rec.ID
		if err := o.syncStopSale(ctx, tenant, rec); err != nil {
			o.markStopSaleFailed(ctx, rec, err)
			return o.fail(res, err)
		}
	}
	for i := range reservations {
		rec := &reservations[i]
		res.recordKind = models.TypeReservation
		res.recordID = rec.ID
		if err := o.syncReservation(ctx, tenant, rec); err != nil {
			o.markReservationFailed(ctx, rec, err)
			return o.fail(res, err)
		}
	}

	res.status = models.ItemSuccess
	return res
}

// markStopSaleFailed parks a record in the failed state with its last error
// so operators can find it. Transient errors keep the current state for a
// clean retry, and a record past phase 1 must hold parent_created so the
// retry resumes at phase 2.
func (o *Orchestrator) markStopSaleFailed(ctx context.Context, rec *models.StopSaleRecord, cause error) {
	if models.KindOf(cause) == models.KindTransient || rec.SyncState.PastPhase1() {
		return
	}
	rec.SyncState = models.StateFailed
	rec.LastError = cause.Error()
	if err := o.store.UpdateStopSaleSync(ctx, rec.ID, models.StateFailed, rec.ExternalID, rec.LastError); err != nil {
		o.logger.Error("persist failed state", "stop_sale", rec.ID, "error", err)
	}
}

func (o *Orchestrator) markReservationFailed(ctx context.Context, rec *models.ReservationRecord, cause error) {
	if models.KindOf(cause) == models.KindTransient || rec.SyncState.PastPhase1() {
		return
	}
	rec.SyncState = models.StateFailed
	rec.LastError = cause.Error()
	if err := o.store.UpdateReservationSync(ctx, rec.ID, models.StateFailed, rec.ExternalID, rec.LastError); err != nil {
		o.logger.Error("persist failed state", "reservation", rec.ID, "error", err)
	}
}

func (o *Orchestrator) fail(res itemResult, err error) itemResult {
	res.status = models.ItemFailed
	res.errKind = models.KindOf(err)
	res.errMsg = err.Error()
	return res
}

func (o *Orchestrator) syncStopSale(ctx context.Context, tenant string, rec *models.StopSaleRecord) error {
	if rec.SyncState == models.StateSynced {
		return nil
	}

	if rec.HotelID == 0 {
		hotelID, err := o.resolveHotel(ctx, tenant, rec.HotelName)
		if err != nil {
			return err
		}
		rec.HotelID = hotelID
		if err := o.store.UpdateStopSaleHotel(ctx, rec.ID, hotelID); err != nil {
			return models.WrapSyncError(models.KindTransient, err, "persist resolved hotel")
		}
	}

	tc := o.tenants[tenant]
	refs := sedna.StopSaleRefs{OperatorID: tc.OperatorID, OperatorCode: tc.OperatorCode}

	roomIDs, missing, err := o.refs.RoomTypeIDs(ctx, tenant, rec.RoomTypes)
	if err != nil {
		return models.WrapSyncError(models.KindTransient, err, "room type lookup")
	}
	if missing != "" {
		// An unknown room code widens the closure to all room types rather
		// than blocking the stop sale.
		o.logger.Warn("room code unknown, closing all room types",
			"tenant", tenant, "stop_sale", rec.ID, "code", missing)
	} else {
		refs.RoomTypeIDs = roomIDs
	}

	boardIDs, missing, err := o.refs.BoardTypeIDs(ctx, tenant, rec.BoardTypes)
	if err != nil {
		return models.WrapSyncError(models.KindTransient, err, "board lookup")
	}
	if missing != "" {
		o.logger.Warn("board code unknown, closing all boards",
			"tenant", tenant, "stop_sale", rec.ID, "code", missing)
	} else {
		refs.BoardIDs = boardIDs
	}

	return o.driver.SyncStopSale(ctx, tenant, rec, refs)
}

func (o *Orchestrator) syncReservation(ctx context.Context, tenant string, rec *models.ReservationRecord) error {
	if rec.SyncState == models.StateSynced {
		return nil
	}

	if rec.HotelID == 0 {
		hotelID, err := o.resolveHotel(ctx, tenant, rec.HotelName)
		if err != nil {
			return err
		}
		rec.HotelID = hotelID
		if err := o.store.UpdateReservationHotel(ctx, rec.ID, hotelID); err != nil {
			return models.WrapSyncError(models.KindTransient, err, "persist resolved hotel")
		}
	}

	// A reservation books a concrete room and board; unknown codes block it.
	roomID, ok, err := o.refs.RoomTypeID(ctx, tenant, rec.RoomType)
	if err != nil {
		return models.WrapSyncError(models.KindTransient, err, "room type lookup")
	}
	if !ok {
		return models.NewSyncError(models.KindReferenceMiss,
			"room type %q unknown to the reservation system", rec.RoomType)
	}
	boardID, ok, err := o.refs.BoardTypeID(ctx, tenant, rec.BoardType)
	if err != nil {
		return models.WrapSyncError(models.KindTransient, err, "board lookup")
	}
	if !ok {
		return models.NewSyncError(models.KindReferenceMiss,
			"board %q unknown to the reservation system", rec.BoardType)
	}

	tc := o.tenants[tenant]
	return o.driver.SyncReservation(ctx, tenant, rec, sedna.ReservationRefs{
		OperatorID: tc.OperatorID,
		RoomTypeID: roomID,
		BoardID:    boardID,
	})
}

func (o *Orchestrator) resolveHotel(ctx context.Context, tenant, name string) (int64, error) {
	resolution, err := o.resolver.Resolve(ctx, tenant, name)
	if err != nil {
		return 0, models.WrapSyncError(models.KindTransient, err, "resolve hotel %q", name)
	}
	if resolution.Hotel != nil {
		return resolution.Hotel.ID, nil
	}
	if len(resolution.Candidates) > 0 {
		return 0, models.NewSyncError(models.KindAmbiguous,
			"hotel %q matched %d candidates, manual selection required", name, len(resolution.Candidates))
	}
	return 0, models.NewSyncError(models.KindHotelNotFound, "hotel %q not found", name)
}
