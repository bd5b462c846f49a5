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

// HotelSync — Email-to-Sedna Synchronization Service
//
// Entry point for the sync service. It:
//  1. Loads multi-tenant configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds per-tenant Sedna API clients with rate limiting
//  4. Wires the extraction engine (OpenAI primary, rule fallback)
//  5. Serves the HTTP API: email ingestion, bulk sync runs with SSE
//     progress, hotel search and mapping management
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindops/hotelsync/internal/api"
	"github.com/mindops/hotelsync/internal/config"
	"github.com/mindops/hotelsync/internal/dedup"
	"github.com/mindops/hotelsync/internal/extract"
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

	slog.Info("starting hotelsync service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tenants", len(cfg.Tenants),
		"confidence_threshold", cfg.ConfidenceThreshold,
		"sync_workers", cfg.SyncWorkers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	db, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	publisher := syncer.NewRedisPublisher(rdb)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Dedup Filter ---
	filter := dedup.NewFilter(rdb)

	// --- Extraction Engine ---
	var ai *extract.OpenAIClient
	if cfg.OpenAIKey != "" {
		ai = extract.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel)
		slog.Info("AI extraction enabled", "model", cfg.OpenAIModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, rule-based extraction only")
	}
	engine := extract.NewEngine(extract.EngineConfig{
		AI:        ai,
		Threshold: cfg.ConfidenceThreshold,
		Logger:    logger,
	})

	// --- Per-tenant Sedna Clients ---
	clients := sedna.NewClientSet(cfg, logger)

	// --- Reference Data Cache ---
	refs := refdata.NewCache(refdata.CacheConfig{
		Source: clients,
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})

	// --- Hotel Resolver ---
	resolver := resolve.NewResolver(resolve.ResolverConfig{
		Mappings: db,
		Source:   &hotelSource{clients: clients},
		TTL:      cfg.CacheTTL,
		MinScore: cfg.FuzzyMinScore,
		Limit:    cfg.FuzzyLimit,
		Logger:   logger,
	})

	// --- Two-Phase Save Protocol ---
	protocol := sedna.NewProtocol(sedna.ProtocolConfig{
		States:  db,
		Retries: cfg.SednaRetries,
		Logger:  logger,
	})

	// --- Sync Orchestrator ---
	orchestrator := syncer.New(syncer.OrchestratorConfig{
		Store:     db,
		Resolver:  resolver,
		Refs:      refs,
		Driver:    &syncer.SednaDriver{Protocol: protocol, Clients: clients},
		Publisher: publisher,
		Tenants:   cfg.Tenants,
		Workers:   cfg.SyncWorkers,
		Logger:    logger,
	})

	// --- HTTP API ---
	handler := api.NewHandler(api.HandlerConfig{
		Store:     db,
		Extractor: engine,
		Deduper:   filter,
		Resolver:  resolver,
		Runner:    orchestrator,
		Logger:    logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler.Routes(),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the SSE progress stream stays open for the
		// whole run.
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		db.Close()
	}()

	slog.Info("hotelsync service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("hotelsync service stopped")
}
