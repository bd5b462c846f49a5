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

// Package refdata caches the external system's room-type and board-type
// code tables per tenant, refreshing them after a TTL.
package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Source fetches reference tables from the external system. Keys are
// upper-case codes, values the external ids.
type Source interface {
	RoomTypes(ctx context.Context, tenant string) (map[string]int64, error)
	BoardTypes(ctx context.Context, tenant string) (map[string]int64, error)
}

// Cache is a per-tenant TTL cache over a Source. A lookup on a fresh table
// never touches the network; an expired or missing table is fetched once and
// swapped in whole.
type Cache struct {
	source Source
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	tenants map[string]*tenantTables
}

type tenantTables struct {
	mu        sync.Mutex
	rooms     map[string]int64
	boards    map[string]int64
	refreshed time.Time
}

// tables is a point-in-time snapshot of one tenant's reference maps. The
// maps are replaced whole on refresh and never mutated afterwards, so a
// snapshot stays valid for lock-free reads while a refresh swaps in new ones.
type tables struct {
	rooms  map[string]int64
	boards map[string]int64
}

// CacheConfig holds the dependencies for NewCache.
type CacheConfig struct {
	Source Source
	TTL    time.Duration
	Logger *slog.Logger
}

// NewCache builds a reference-data cache.
func NewCache(cfg CacheConfig) *Cache {
	c := &Cache{
		source:  cfg.Source,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		now:     time.Now,
		tenants: make(map[string]*tenantTables),
	}
	if c.ttl == 0 {
		c.ttl = 24 * time.Hour
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// RoomTypeID resolves a room-type code to its external id. The bool reports
// whether the code exists; an error means the table could not be fetched.
func (c *Cache) RoomTypeID(ctx context.Context, tenant, code string) (int64, bool, error) {
	t, err := c.fresh(ctx, tenant)
	if err != nil {
		return 0, false, err
	}
	id, ok := t.rooms[strings.ToUpper(strings.TrimSpace(code))]
	return id, ok, nil
}

// BoardTypeID resolves a board-type code to its external id.
func (c *Cache) BoardTypeID(ctx context.Context, tenant, code string) (int64, bool, error) {
	t, err := c.fresh(ctx, tenant)
	if err != nil {
		return 0, false, err
	}
	id, ok := t.boards[strings.ToUpper(strings.TrimSpace(code))]
	return id, ok, nil
}

// RoomTypeIDs resolves a list of codes, reporting the first unknown code.
func (c *Cache) RoomTypeIDs(ctx context.Context, tenant string, codes []string) ([]int64, string, error) {
	t, err := c.fresh(ctx, tenant)
	if err != nil {
		return nil, "", err
	}
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		id, ok := t.rooms[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			return nil, code, nil
		}
		ids = append(ids, id)
	}
	return ids, "", nil
}

// BoardTypeIDs resolves a list of codes, reporting the first unknown code.
func (c *Cache) BoardTypeIDs(ctx context.Context, tenant string, codes []string) ([]int64, string, error) {
	t, err := c.fresh(ctx, tenant)
	if err != nil {
		return nil, "", err
	}
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		id, ok := t.boards[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			return nil, code, nil
		}
		ids = append(ids, id)
	}
	return ids, "", nil
}

// Invalidate drops the tenant's tables so the next lookup refetches.
func (c *Cache) Invalidate(tenant string) {
	c.mu.Lock()
	delete(c.tenants, tenant)
	c.mu.Unlock()
}

// fresh returns a snapshot of the tenant's tables, refreshing them when
// stale. The per-tenant lock serializes refreshes so concurrent lookups
// trigger a single fetch; the snapshot is taken under that lock so callers
// never read fields a concurrent refresh is swapping.
func (c *Cache) fresh(ctx context.Context, tenant string) (tables, error) {
	c.mu.Lock()
	t, ok := c.tenants[tenant]
	if !ok {
		t = &tenantTables{}
		c.tenants[tenant] = t
	}
	c.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rooms != nil && c.now().Sub(t.refreshed) < c.ttl {
		return tables{rooms: t.rooms, boards: t.boards}, nil
	}

	rooms, err := c.source.RoomTypes(ctx, tenant)
	if err != nil {
		if t.rooms != nil {
			// Serve the stale table rather than fail the lookup.
			c.logger.Warn("reference refresh failed, serving stale tables",
				"tenant", tenant, "error", err)
			return tables{rooms: t.rooms, boards: t.boards}, nil
		}
		return tables{}, fmt.Errorf("fetch room types: %w", err)
	}
	boards, err := c.source.BoardTypes(ctx, tenant)
	if err != nil {
		if t.rooms != nil {
			c.logger.Warn("reference refresh failed, serving stale tables",
				"tenant", tenant, "error", err)
			return tables{rooms: t.rooms, boards: t.boards}, nil
		}
		return tables{}, fmt.Errorf("fetch board types: %w", err)
	}

	t.rooms = upperKeys(rooms)
	t.boards = upperKeys(boards)
	t.refreshed = c.now()
	c.logger.Info("reference tables refreshed",
		"tenant", tenant, "rooms", len(t.rooms), "boards", len(t.boards))
	return tables{rooms: t.rooms, boards: t.boards}, nil
}

func upperKeys(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}
