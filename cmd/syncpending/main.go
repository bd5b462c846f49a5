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

// HotelSync — Pending Records Sync Command
//
// Standalone CLI tool that pushes every record not yet synchronized to
// Sedna through the normal sync pipeline. Intended for draining a backlog
// after an outage or on new deployments.
//
// Usage:
//
//	go run ./cmd/syncpending/ --tenant <alias> [--limit 200]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/mindops/hotelsync/internal/config"
	"github.com/mindops/hotelsync/internal/models"
	"github.com/mindops/hotelsync/internal/refdata"
	"github.com/mindops/hotelsync/internal/resolve"
	"github.com/mindops/hotelsync/internal/sedna"
	"github.com/mindops/hotelsync/internal/store"
	"github.com/mindops/hotelsync/internal/syncer"
)

// hotelSource adapts the Sedna client set to the resolver's hotel listing.
type hotelSource struct {
	clients *sedna.ClientSet
}

func (s *hotelSource) Hotels(ctx context.Context, tenant string) ([]resolve.Hotel, error) {
	hotels, err := s.clients.Hotels(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]resolve.Hotel, 0, len(hotels))
	for _, h := range hotels {
		out = append(out, resolve.Hotel{ID: h.ID, Name: h.Name})
	}
	return out, nil
}

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	tenantFlag := flag.String("tenant", "", "Tenant alias to drain (required)")
	limitFlag := flag.Int("limit", 0, "Maximum number of emails to sync (0 = no limit)")
	flag.Parse()

	if *tenantFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --tenant is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Tenant(*tenantFlag) == nil {
		slog.Error("tenant not found in configuration", "alias", *tenantFlag)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	db, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// --- Collect pending records ---
	stopSales, err := db.ListPendingStopSales(ctx, *tenantFlag)
	if err != nil {
		slog.Error("failed to list pending stop sales", "error", err)
		os.Exit(1)
	}
	reservations, err := db.ListPendingReservations(ctx, *tenantFlag)
	if err != nil {
		slog.Error("failed to list pending reservations", "error", err)
		os.Exit(1)
	}

	seen := map[int64]bool{}
	var emailIDs []int64
	for _, r := range stopSales {
		if !seen[r.EmailID] {
			seen[r.EmailID] = true
			emailIDs = append(emailIDs, r.EmailID)
		}
	}
	for _, r := range reservations {
		if !seen[r.EmailID] {
			seen[r.EmailID] = true
			emailIDs = append(emailIDs, r.EmailID)
		}
	}
	sort.Slice(emailIDs, func(i, j int) bool { return emailIDs[i] < emailIDs[j] })
	if *limitFlag > 0 && len(emailIDs) > *limitFlag {
		emailIDs = emailIDs[:*limitFlag]
	}

	if len(emailIDs) == 0 {
		slog.Info("nothing to sync", "tenant", *tenantFlag)
		return
	}
	slog.Info("draining pending records",
		"tenant", *tenantFlag,
		"emails", len(emailIDs),
		"stop_sales", len(stopSales),
		"reservations", len(reservations),
	)

	// --- Wire the sync pipeline ---
	clients := sedna.NewClientSet(cfg, logger)
	refs := refdata.NewCache(refdata.CacheConfig{
		Source: clients,
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})
	resolver := resolve.NewResolver(resolve.ResolverConfig{
		Mappings: db,
		Source:   &hotelSource{clients: clients},
		TTL:      cfg.CacheTTL,
		MinScore: cfg.FuzzyMinScore,
		Limit:    cfg.FuzzyLimit,
		Logger:   logger,
	})
	protocol := sedna.NewProtocol(sedna.ProtocolConfig{
		States:  db,
		Retries: cfg.SednaRetries,
		Logger:  logger,
	})
	orchestrator := syncer.New(syncer.OrchestratorConfig{
		Store:    db,
		Resolver: resolver,
		Refs:     refs,
		Driver:   &syncer.SednaDriver{Protocol: protocol, Clients: clients},
		Tenants:  cfg.Tenants,
		Workers:  cfg.SyncWorkers,
		Logger:   logger,
	})

	// --- Run and wait for completion ---
	runID, err := orchestrator.StartRun(ctx, *tenantFlag, emailIDs)
	if err != nil {
		slog.Error("failed to start run", "error", err)
		os.Exit(1)
	}
	events, release := orchestrator.Subscribe(runID)
	defer release()

	for event := range events {
		switch event.Type {
		case syncer.EventProgress:
			if event.ItemStatus == models.ItemFailed {
				slog.Warn("item failed",
					"email_id", event.EmailID,
					"kind", event.ErrorKind,
					"error", event.ErrorMessage,
				)
			}
			slog.Info("progress",
				"processed", event.Processed,
				"total", event.Total,
				"succeeded", event.Succeeded,
				"failed", event.Failed,
			)
		case syncer.EventComplete:
			slog.Info("run finished",
				"run_id", runID,
				"status", event.RunStatus,
				"succeeded", event.Succeeded,
				"failed", event.Failed,
			)
			if event.Failed > 0 {
				os.Exit(1)
			}
		}
	}
}
