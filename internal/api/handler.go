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

// Package api exposes the HTTP surface: email ingestion, bulk sync runs
// with SSE progress, hotel search and mapping management.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mindops/hotelsync/internal/extract"
	"github.com/mindops/hotelsync/internal/models"
	"github.com/mindops/hotelsync/internal/resolve"
	"github.com/mindops/hotelsync/internal/syncer"
)

// Store is the persistence surface the handlers need.
type Store interface {
	InsertEmail(ctx context.Context, e *models.EmailRecord) (int64, error)
	UpdateEmailClassification(ctx context.Context, id int64, emailType string, confidence float64, method, language string) error
	GetEmail(ctx context.Context, id int64) (*models.EmailRecord, error)
	ListEmails(ctx context.Context, tenantID, emailType string, limit int) ([]models.EmailRecord, error)
	InsertStopSale(ctx context.Context, r *models.StopSaleRecord) (int64, error)
	InsertReservation(ctx context.Context, r *models.ReservationRecord) (int64, error)
	StopSalesByEmail(ctx context.Context, emailID int64) ([]models.StopSaleRecord, error)
	ReservationsByEmail(ctx context.Context, emailID int64) ([]models.ReservationRecord, error)
	DeleteStopSalesByEmail(ctx context.Context, emailID int64) error
	DeleteReservationsByEmail(ctx context.Context, emailID int64) error
	GetSyncRun(ctx context.Context, runID string) (*models.SyncRun, error)
	ListSyncRuns(ctx context.Context, tenantID string, limit int) ([]models.SyncRun, error)
	ListSyncItems(ctx context.Context, runID string) ([]models.SyncItem, error)
	ListMappings(ctx context.Context, tenantID string) ([]models.HotelMapping, error)
	DeleteMapping(ctx context.Context, tenantID string, id int64) error
}

// Extractor classifies and extracts one email.
type Extractor interface {
	ClassifyAndExtract(ctx context.Context, subject, body string) *extract.Result
}

// Deduper filters repeated message deliveries. May be nil.
type Deduper interface {
	IsNew(ctx context.Context, tenantID, messageID string) (bool, error)
}

// HotelResolver serves hotel search and manual mapping confirmation.
type HotelResolver interface {
	Search(ctx context.Context, tenant, name string) (*resolve.Resolution, error)
	Confirm(ctx context.Context, tenant, name string, hotel resolve.Hotel) error
}

// Runner starts and observes bulk sync runs.
type Runner interface {
	StartRun(ctx context.Context, tenant string, emailIDs []int64) (string, error)
	Cancel(runID string) bool
	Subscribe(runID string) (<-chan syncer.Event, func())
}

// Handler serves the HTTP API.
type Handler struct {
	store     Store
	extractor Extractor
	deduper   Deduper
	resolver  HotelResolver
	runner    Runner
	logger    *slog.Logger
}

// HandlerConfig holds the dependencies for NewHandler.
type HandlerConfig struct {
	Store     Store
	Extractor Extractor
	Deduper   Deduper
	Resolver  HotelResolver
	Runner    Runner
	Logger    *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:     cfg.Store,
		extractor: cfg.Extractor,
		deduper:   cfg.Deduper,
		resolver:  cfg.Resolver,
		runner:    cfg.Runner,
		logger:    logger,
	}
}

// Routes builds the HTTP mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /emails", h.ingestEmail)
	mux.HandleFunc("GET /emails", h.listEmails)
	mux.HandleFunc("GET /emails/{id}", h.getEmail)
	mux.HandleFunc("POST /emails/{id}/reparse", h.reparseEmail)

	mux.HandleFunc("POST /sync/runs", h.startRun)
	mux.HandleFunc("GET /sync/runs", h.listRuns)
	mux.HandleFunc("GET /sync/runs/{id}", h.getRun)
	mux.HandleFunc("POST /sync/runs/{id}/cancel", h.cancelRun)
	mux.HandleFunc("GET /sync/runs/{id}/events", h.runEvents)

	mux.HandleFunc("GET /hotels/search", h.searchHotels)
	mux.HandleFunc("GET /hotels/mappings", h.listMappings)
	mux.HandleFunc("POST /hotels/mappings", h.createMapping)
	mux.HandleFunc("DELETE /hotels/mappings/{id}", h.deleteMapping)

	return mux
}

// ingestRequest is the inbound email payload. The excluded mail transport
// POSTs one of these per delivered message.
type ingestRequest struct {
	TenantID   string     `json:"tenant_id"`
	MessageID  string     `json:"message_id"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	ReceivedAt *time.Time `json:"received_at"`
}

func (h *Handler) ingestEmail(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if req.Subject == "" && req.Body == "" {
		writeError(w, http.StatusBadRequest, "subject or body is required")
		return
	}

	ctx := r.Context()

	if h.deduper != nil && req.MessageID != "" {
		isNew, err := h.deduper.IsNew(ctx, req.TenantID, req.MessageID)
		if err != nil {
			h.logger.Warn("dedup check failed, ingesting anyway", "error", err)
		} else if !isNew {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	result := h.extractor.ClassifyAndExtract(ctx, req.Subject, req.Body)

	email := &models.EmailRecord{
		TenantID:   req.TenantID,
		MessageID:  req.MessageID,
		Subject:    req.Subject,
		Body:       req.Body,
		ReceivedAt: req.ReceivedAt,
		EmailType:  result.Type,
		Confidence: result.Confidence,
		Method:     result.Method,
		Language:   result.Language,
	}
	emailID, err := h.store.InsertEmail(ctx, email)
	if err != nil {
		h.logger.Error("insert email", "error", err)
		writeError(w, http.StatusInternalServerError, "store email failed")
		return
	}
	email.ID = emailID

	records, err := h.persistExtracted(ctx, req.TenantID, emailID, result)
	if err != nil {
		h.logger.Error("persist extracted records", "email_id", emailID, "error", err)
		writeError(w, http.StatusInternalServerError, "store extracted records failed")
		return
	}

	h.logger.Info("email ingested",
		"tenant", req.TenantID, "email_id", emailID,
		"type", result.Type, "method", result.Method, "confidence", result.Confidence)

	writeJSON(w, http.StatusCreated, map[string]any{
		"email":   email,
		"records": records,
	})
}

// persistExtracted stores the records extraction produced for an email.
func (h *Handler) persistExtracted(ctx context.Context, tenant string, emailID int64, result *extract.Result) (map[string]any, error) {
	records := map[string]any{}

	if f := result.StopSale; f != nil {
		rec := &models.StopSaleRecord{
			TenantID:   tenant,
			EmailID:    emailID,
			HotelName:  f.HotelName,
			DateFrom:   f.DateFrom,
			DateTo:     f.DateTo,
			RoomTypes:  f.RoomTypes,
			BoardTypes: f.BoardTypes,
			IsClose:    f.IsClose,
			Reason:     f.Reason,
			SyncState:  models.StateUnsynced,
		}
		id, err := h.store.InsertStopSale(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("insert stop sale: %w", err)
		}
		rec.ID = id
		records["stop_sale"] = rec
	}

	if f := result.Reservation; f != nil {
		rec := &models.ReservationRecord{
			TenantID:  tenant,
			EmailID:   emailID,
			VoucherNo: f.VoucherNo,
			HotelName: f.HotelName,
			CheckIn:   f.CheckIn,
			CheckOut:  f.CheckOut,
			RoomType:  f.RoomType,
			BoardType: f.BoardType,
			Adults:    f.Adults,
			Children:  f.Children,
			Guests:    f.Guests,
			Amount:    f.Amount,
			Currency:  f.Currency,
			SyncState: models.StateUnsynced,
		}
		id, err := h.store.InsertReservation(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("insert reservation: %w", err)
		}
		rec.ID = id
		records["reservation"] = rec
	}

	return records, nil
}

func (h *Handler) listEmails(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	emails, err := h.store.ListEmails(r.Context(), tenant, r.URL.Query().Get("type"), limit)
	if err != nil {
		h.logger.Error("list emails", "error", err)
		writeError(w, http.StatusInternalServerError, "list emails failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

func (h *Handler) getEmail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}
	ctx := r.Context()
	email, err := h.store.GetEmail(ctx, id)
	if err != nil {
		h.logger.Error("get email", "email_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get email failed")
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	stopSales, err := h.store.StopSalesByEmail(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load records failed")
		return
	}
	reservations, err := h.store.ReservationsByEmail(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load records failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":        email,
		"stop_sales":   stopSales,
		"reservations": reservations,
	})
}

// reparseEmail re-runs extraction over a stored email. Unsynced records are
// superseded; records that already reached the external system stay.
func (h *Handler) reparseEmail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}
	ctx := r.Context()
	email, err := h.store.GetEmail(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get email failed")
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	if err := h.store.DeleteStopSalesByEmail(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "clear records failed")
		return
	}
	if err := h.store.DeleteReservationsByEmail(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "clear records failed")
		return
	}

	result := h.extractor.ClassifyAndExtract(ctx, email.Subject, email.Body)
	if err := h.store.UpdateEmailClassification(ctx, id, result.Type, result.Confidence, result.Method, result.Language); err != nil {
		writeError(w, http.StatusInternalServerError, "update classification failed")
		return
	}

	records, err := h.persistExtracted(ctx, email.TenantID, id, result)
	if err != nil {
		h.logger.Error("persist extracted records", "email_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "store extracted records failed")
		return
	}

	email.EmailType = result.Type
	email.Confidence = result.Confidence
	email.Method = result.Method
	email.Language = result.Language

	writeJSON(w, http.StatusOK, map[string]any{
		"email":   email,
		"records": records,
	})
}

type startRunRequest struct {
	TenantID string  `json:"tenant_id"`
	EmailIDs []int64 `json:"email_ids"`
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TenantID == "" || len(req.EmailIDs) == 0 {
		writeError(w, http.StatusBadRequest, "tenant_id and email_ids are required")
		return
	}

	runID, err := h.runner.StartRun(r.Context(), req.TenantID, req.EmailIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"total":  len(req.EmailIDs),
	})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.store.ListSyncRuns(r.Context(), tenant, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	run, err := h.store.GetSyncRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	items, err := h.store.ListSyncItems(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list run items failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "items": items})
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if !h.runner.Cancel(runID) {
		writeError(w, http.StatusNotFound, "run not running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *Handler) searchHotels(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	query := r.URL.Query().Get("q")
	if tenant == "" || query == "" {
		writeError(w, http.StatusBadRequest, "tenant_id and q are required")
		return
	}
	res, err := h.resolver.Search(r.Context(), tenant, query)
	if err != nil {
		h.logger.Error("hotel search", "tenant", tenant, "error", err)
		writeError(w, http.StatusBadGateway, "hotel search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listMappings(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	mappings, err := h.store.ListMappings(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list mappings failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

type createMappingRequest struct {
	TenantID     string `json:"tenant_id"`
	HotelName    string `json:"hotel_name"`
	HotelID      int64  `json:"hotel_id"`
	HotelNameExt string `json:"hotel_name_external"`
}

func (h *Handler) createMapping(w http.ResponseWriter, r *http.Request) {
	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TenantID == "" || req.HotelName == "" || req.HotelID == 0 {
		writeError(w, http.StatusBadRequest, "tenant_id, hotel_name and hotel_id are required")
		return
	}
	err := h.resolver.Confirm(r.Context(), req.TenantID, req.HotelName,
		resolve.Hotel{ID: req.HotelID, Name: req.HotelNameExt})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handler) deleteMapping(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mapping id")
		return
	}
	if err := h.store.DeleteMapping(r.Context(), tenant, id); err != nil {
		writeError(w, http.StatusInternalServerError, "delete mapping failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
