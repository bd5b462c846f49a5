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
	"fmt"
	"log/slog"

	"github.com/mindops/hotelsync/internal/models"
)

// StateStore persists sync-state transitions. Every transition is written
// before the next outbound call so a crash never loses a created parent.
type StateStore interface {
	UpdateStopSaleSync(ctx context.Context, id int64, state models.SyncState, externalID int64, lastError string) error
	UpdateReservationSync(ctx context.Context, id int64, state models.SyncState, externalID int64, lastError string) error
}

// Protocol drives the two-phase save: create the parent with empty child
// collections, then repeat the call with the children attached. Records that
// already hold a parent id resume at phase 2.
type Protocol struct {
	states StateStore
	retry  retryPolicy
	logger *slog.Logger
}

// ProtocolConfig holds the dependencies for NewProtocol.
type ProtocolConfig struct {
	States  StateStore
	Retries int
	Logger  *slog.Logger
}

// NewProtocol builds a two-phase save driver.
func NewProtocol(cfg ProtocolConfig) *Protocol {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{
		states: cfg.States,
		retry:  newRetryPolicy(cfg.Retries),
		logger: logger,
	}
}

// SyncStopSale saves one stop-sale record through both phases, persisting
// every state transition. A record already synced is a no-op success; a
// record at parent_created skips phase 1.
func (p *Protocol) SyncStopSale(ctx context.Context, client *Client, rec *models.StopSaleRecord, refs StopSaleRefs) error {
	if rec.SyncState == models.StateSynced {
		return nil
	}
	if rec.HotelID == 0 {
		return models.NewSyncError(models.KindHotelNotFound, "stop sale %d has no resolved hotel", rec.ID)
	}

	if !rec.SyncState.PastPhase1() {
		if err := p.setStopSaleState(ctx, rec, models.StatePendingParent, ""); err != nil {
			return err
		}

		var resp *SaveResponse
		err := p.retry.do(ctx, func() error {
			r, err := client.SaveStopSale(ctx, BuildStopSalePhase1(rec, refs))
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			// No parent exists; the record goes back to unsynced so a retry
			// starts the protocol over.
			if serr := p.setStopSaleState(ctx, rec, models.StateUnsynced, err.Error()); serr != nil {
				p.logger.Error("persist state after phase-1 failure", "stop_sale", rec.ID, "error", serr)
			}
			return err
		}

		rec.ExternalID = resp.RecID
		if err := p.setStopSaleState(ctx, rec, models.StateParentCreated, ""); err != nil {
			return err
		}
		p.logger.Info("stop sale parent created", "stop_sale", rec.ID, "external_id", rec.ExternalID)
	}

	if rec.ExternalID == 0 {
		return models.NewSyncError(models.KindProtocol, "stop sale %d at %s without a parent id", rec.ID, rec.SyncState)
	}

	err := p.retry.do(ctx, func() error {
		_, err := client.SaveStopSale(ctx, BuildStopSalePhase2(rec, rec.ExternalID, refs))
		return err
	})
	if err != nil {
		// The parent exists, so the record stays at parent_created and the
		// next attempt resumes here.
		if serr := p.setStopSaleState(ctx, rec, models.StateParentCreated, err.Error()); serr != nil {
			p.logger.Error("persist state after phase-2 failure", "stop_sale", rec.ID, "error", serr)
		}
		return err
	}

	if err := p.setStopSaleState(ctx, rec, models.StateSynced, ""); err != nil {
		return err
	}
	p.logger.Info("stop sale synced", "stop_sale", rec.ID, "external_id", rec.ExternalID)
	return nil
}

// SyncReservation saves one reservation through both phases, persisting
// every state transition.
func (p *Protocol) SyncReservation(ctx context.Context, client *Client, rec *models.ReservationRecord, refs ReservationRefs) error {
	if rec.SyncState == models.StateSynced {
		return nil
	}
	if rec.HotelID == 0 {
		return models.NewSyncError(models.KindHotelNotFound, "reservation %d has no resolved hotel", rec.ID)
	}

	if !rec.SyncState.PastPhase1() {
		if err := p.setReservationState(ctx, rec, models.StatePendingParent, ""); err != nil {
			return err
		}

		var resp *SaveResponse
		err := p.retry.do(ctx, func() error {
			r, err := client.SaveReservation(ctx, BuildReservationPhase1(rec, refs))
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			if serr := p.setReservationState(ctx, rec, models.StateUnsynced, err.Error()); serr != nil {
				p.logger.Error("persist state after phase-1 failure", "reservation", rec.ID, "error", serr)
			}
			return err
		}

		rec.ExternalID = resp.RecID
		if err := p.setReservationState(ctx, rec, models.StateParentCreated, ""); err != nil {
			return err
		}
		p.logger.Info("reservation parent created", "reservation", rec.ID, "external_id", rec.ExternalID)
	}

	if rec.ExternalID == 0 {
		return models.NewSyncError(models.KindProtocol, "reservation %d at %s without a parent id", rec.ID, rec.SyncState)
	}

	err := p.retry.do(ctx, func() error {
		_, err := client.SaveReservation(ctx, BuildReservationPhase2(rec, rec.ExternalID, refs))
		return err
	})
	if err != nil {
		if serr := p.setReservationState(ctx, rec, models.StateParentCreated, err.Error()); serr != nil {
			p.logger.Error("persist state after phase-2 failure", "reservation", rec.ID, "error", serr)
		}
		return err
	}

	if err := p.setReservationState(ctx, rec, models.StateSynced, ""); err != nil {
		return err
	}
	p.logger.Info("reservation synced", "reservation", rec.ID, "external_id", rec.ExternalID)
	return nil
}

func (p *Protocol) setStopSaleState(ctx context.Context, rec *models.StopSaleRecord, state models.SyncState, lastError string) error {
	if err := p.states.UpdateStopSaleSync(ctx, rec.ID, state, rec.ExternalID, lastError); err != nil {
		return fmt.Errorf("persist stop sale %d state %s: %w", rec.ID, state, err)
	}
	rec.SyncState = state
	rec.LastError = lastError
	return nil
}

func (p *Protocol) setReservationState(ctx context.Context, rec *models.ReservationRecord, state models.SyncState, lastError string) error {
	if err := p.states.UpdateReservationSync(ctx, rec.ID, state, rec.ExternalID, lastError); err != nil {
		return fmt.Errorf("persist reservation %d state %s: %w", rec.ID, state, err)
	}
	rec.SyncState = state
	rec.LastError = lastError
	return nil
}
