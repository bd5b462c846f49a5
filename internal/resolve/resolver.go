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

// Package resolve maps free-text hotel names from emails to external hotel
// ids. Persisted mappings are consulted first, then an exact match on the
// normalized name, then fuzzy candidates for a human to pick from.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/mindops/hotelsync/internal/models"
)

// Hotel is one entry of the external system's hotel list.
type Hotel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Candidate is a fuzzy match with its similarity score in [0, 1].
type Candidate struct {
	Hotel Hotel   `json:"hotel"`
	Score float64 `json:"score"`
}

// Resolution is the outcome of resolving one hotel name. Hotel is set on
// success; otherwise Candidates carries the scored suggestions (empty when
// nothing cleared the minimum score).
type Resolution struct {
	Hotel      *Hotel      `json:"hotel,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// MappingStore persists confirmed name-to-id mappings.
type MappingStore interface {
	GetMapping(ctx context.Context, tenant, normalized string) (*models.HotelMapping, error)
	SaveMapping(ctx context.Context, m *models.HotelMapping) error
}

// HotelSource fetches the tenant's hotel list from the external system.
type HotelSource interface {
	Hotels(ctx context.Context, tenant string) ([]Hotel, error)
}

// Resolver resolves hotel names for all tenants, caching each tenant's
// hotel list for the TTL.
type Resolver struct {
	mappings MappingStore
	source   HotelSource
	ttl      time.Duration
	minScore float64
	limit    int
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	lists map[string]*hotelList
}

type hotelList struct {
	mu        sync.Mutex
	hotels    []Hotel
	byNorm    map[string][]Hotel
	refreshed time.Time
}

// listSnapshot is a point-in-time view of one tenant's hotel list. The slice
// and map are rebuilt whole on refresh and never mutated afterwards, so a
// snapshot stays valid for lock-free reads while a refresh swaps in new ones.
type listSnapshot struct {
	hotels []Hotel
	byNorm map[string][]Hotel
}

// ResolverConfig holds the dependencies for NewResolver.
type ResolverConfig struct {
	Mappings MappingStore
	Source   HotelSource
	TTL      time.Duration
	MinScore float64
	Limit    int
	Logger   *slog.Logger
}

// NewResolver builds a hotel name resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		mappings: cfg.Mappings,
		source:   cfg.Source,
		ttl:      cfg.TTL,
		minScore: cfg.MinScore,
		limit:    cfg.Limit,
		logger:   cfg.Logger,
		now:      time.Now,
		lists:    make(map[string]*hotelList),
	}
	if r.ttl == 0 {
		r.ttl = 24 * time.Hour
	}
	if r.minScore == 0 {
		r.minScore = 0.5
	}
	if r.limit == 0 {
		r.limit = 10
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Noise tokens stripped during normalization. Generic hospitality words and
// punctuation carry no identity.
var noiseTokens = map[string]bool{
	"hotel": true, "resort": true, "spa": true, "suites": true,
	"inn": true, "palace": true, "beach": true, "club": true,
	"otel": true, "the": true, "and": true, "&": true,
}

const noisePunct = `-'"(),.!+`

// Normalize reduces a hotel name to its identity tokens: lower case, no
// punctuation, no generic hospitality words, single spaces.
func Normalize(name string) string {
	lower := strings.ToLower(name)

	var b strings.Builder
	for _, r := range lower {
		if strings.ContainsRune(noisePunct, r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}

	var kept []string
	for _, tok := range strings.Fields(b.String()) {
		if noiseTokens[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Similarity scores two normalized names in [0, 1] using token-sort
// Levenshtein distance, so word order does not matter.
func Similarity(a, b string) float64 {
	a, b = tokenSort(a), tokenSort(b)
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return 1 - float64(dist)/float64(longest)
}

func tokenSort(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// Resolve maps a hotel name to an external hotel. The persisted mapping is
// authoritative; a single exact normalized match is auto-confirmed and
// persisted; anything else returns scored candidates for manual selection.
func (r *Resolver) Resolve(ctx context.Context, tenant, name string) (*Resolution, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return &Resolution{}, nil
	}

	if m, err := r.mappings.GetMapping(ctx, tenant, normalized); err != nil {
		return nil, fmt.Errorf("mapping lookup: %w", err)
	} else if m != nil {
		h := &Hotel{ID: m.HotelID, Name: m.HotelNameExt}
		if h.Name == "" {
			h.Name = name
		}
		return &Resolution{Hotel: h}, nil
	}

	list, err := r.freshList(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if exact := list.byNorm[normalized]; len(exact) == 1 {
		h := exact[0]
		if err := r.persistMapping(ctx, tenant, name, normalized, h); err != nil {
			// The resolution itself succeeded; a mapping write failure only
			// costs a re-match next time.
			r.logger.Warn("persist hotel mapping failed", "tenant", tenant, "error", err)
		}
		return &Resolution{Hotel: &h}, nil
	} else if len(exact) > 1 {
		cands := make([]Candidate, len(exact))
		for i, h := range exact {
			cands[i] = Candidate{Hotel: h, Score: 1}
		}
		return &Resolution{Candidates: cands}, nil
	}

	var cands []Candidate
	for _, h := range list.hotels {
		score := Similarity(normalized, Normalize(h.Name))
		if score >= r.minScore {
			cands = append(cands, Candidate{Hotel: h, Score: score})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })
	if len(cands) > r.limit {
		cands = cands[:r.limit]
	}

	return &Resolution{Candidates: cands}, nil
}

// Confirm persists a manual hotel selection so future occurrences of the
// name resolve without intervention.
func (r *Resolver) Confirm(ctx context.Context, tenant, name string, hotel Hotel) error {
	normalized := Normalize(name)
	if normalized == "" {
		return fmt.Errorf("hotel name %q normalizes to nothing", name)
	}
	return r.persistMapping(ctx, tenant, name, normalized, hotel)
}

// Search returns the resolution for a name without persisting anything,
// for the manual-selection UI.
func (r *Resolver) Search(ctx context.Context, tenant, name string) (*Resolution, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return &Resolution{}, nil
	}

	list, err := r.freshList(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if exact := list.byNorm[normalized]; len(exact) == 1 {
		h := exact[0]
		return &Resolution{Hotel: &h}, nil
	}

	var cands []Candidate
	for _, h := range list.hotels {
		score := Similarity(normalized, Normalize(h.Name))
		if score >= r.minScore {
			cands = append(cands, Candidate{Hotel: h, Score: score})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })
	if len(cands) > r.limit {
		cands = cands[:r.limit]
	}
	return &Resolution{Candidates: cands}, nil
}

// Invalidate drops the tenant's cached hotel list.
func (r *Resolver) Invalidate(tenant string) {
	r.mu.Lock()
	delete(r.lists, tenant)
	r.mu.Unlock()
}

func (r *Resolver) persistMapping(ctx context.Context, tenant, name, normalized string, hotel Hotel) error {
	return r.mappings.SaveMapping(ctx, &models.HotelMapping{
		TenantID:       tenant,
		HotelName:      name,
		NormalizedName: normalized,
		HotelID:        hotel.ID,
		HotelNameExt:   hotel.Name,
	})
}

// freshList returns a snapshot of the tenant's hotel list, refreshing it
// when stale. The per-tenant lock serializes refreshes; the snapshot is
// taken under that lock so callers never read fields a concurrent refresh
// is swapping.
func (r *Resolver) freshList(ctx context.Context, tenant string) (listSnapshot, error) {
	r.mu.Lock()
	l, ok := r.lists[tenant]
	if !ok {
		l = &hotelList{}
		r.lists[tenant] = l
	}
	r.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hotels != nil && r.now().Sub(l.refreshed) < r.ttl {
		return listSnapshot{hotels: l.hotels, byNorm: l.byNorm}, nil
	}

	hotels, err := r.source.Hotels(ctx, tenant)
	if err != nil {
		if l.hotels != nil {
			r.logger.Warn("hotel list refresh failed, serving stale list",
				"tenant", tenant, "error", err)
			return listSnapshot{hotels: l.hotels, byNorm: l.byNorm}, nil
		}
		return listSnapshot{}, fmt.Errorf("fetch hotel list: %w", err)
	}

	byNorm := make(map[string][]Hotel, len(hotels))
	for _, h := range hotels {
		n := Normalize(h.Name)
		byNorm[n] = append(byNorm[n], h)
	}
	l.hotels = hotels
	l.byNorm = byNorm
	l.refreshed = r.now()
	r.logger.Info("hotel list refreshed", "tenant", tenant, "hotels", len(hotels))
	return listSnapshot{hotels: l.hotels, byNorm: l.byNorm}, nil
}
