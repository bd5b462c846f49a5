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

// Package sedna talks to the Sedna reservation system: reference list
// fetches and the two-phase save protocol for stop sales and reservations.
package sedna

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mindops/hotelsync/internal/config"
	"github.com/mindops/hotelsync/internal/models"
)

// API paths. "Integratiion" is spelled exactly as the server expects it.
const (
	pathLogin        = "/AgencyLogin"
	pathHotelList    = "/GetHotelList"
	pathRoomTypeList = "/GetRoomTypeList"
	pathBoardList    = "/Service2/GetBoardList"
	pathSaveStopSale = "/Integratiion/SaveStopSale"
	pathSaveResv     = "/Integratiion/SaveReservation"
)

// Hotel is one entry of the hotel list.
type Hotel struct {
	ID   int64  `json:"Id"`
	Name string `json:"Name"`
}

// RoomType is one entry of the room-type list.
type RoomType struct {
	ID   int64  `json:"Id"`
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// Board is one entry of the board list.
type Board struct {
	ID   int64  `json:"Id"`
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// SaveResponse is the envelope every save call returns. ErrorType zero
// means success and RecId carries the server-assigned record id.
type SaveResponse struct {
	ErrorType int    `json:"ErrorType"`
	Message   string `json:"Message"`
	RecID     int64  `json:"RecId"`
}

// Client is a single-tenant Sedna API client. Credentials travel as query
// parameters on every call; the limiter enforces the minimum spacing
// between outbound calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	operatorID int64
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientConfig holds the settings for NewClient.
type ClientConfig struct {
	Tenant  config.TenantConfig
	Timeout time.Duration
	Spacing time.Duration
	Logger  *slog.Logger
}

// NewClient builds a Sedna client for one tenant.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	spacing := cfg.Spacing
	if spacing == 0 {
		spacing = 200 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.Tenant.SednaBaseURL,
		username:   cfg.Tenant.SednaUsername,
		password:   cfg.Tenant.SednaPassword,
		operatorID: cfg.Tenant.OperatorID,
		limiter:    rate.NewLimiter(rate.Every(spacing), 1),
		logger:     logger.With("tenant", cfg.Tenant.Alias),
	}
}

// OperatorID returns the tour-operator id this client books under.
func (c *Client) OperatorID() int64 { return c.operatorID }

// Login validates the tenant credentials.
func (c *Client) Login(ctx context.Context) error {
	var resp SaveResponse
	if err := c.get(ctx, pathLogin, nil, &resp); err != nil {
		return err
	}
	if resp.ErrorType != 0 {
		return models.NewSyncError(models.KindAuth, "login rejected: %s", resp.Message)
	}
	return nil
}

// HotelList fetches the tenant's full hotel list.
func (c *Client) HotelList(ctx context.Context) ([]Hotel, error) {
	var hotels []Hotel
	if err := c.get(ctx, pathHotelList, nil, &hotels); err != nil {
		return nil, err
	}
	return hotels, nil
}

// RoomTypeList fetches the room-type reference table for the operator.
func (c *Client) RoomTypeList(ctx context.Context) ([]RoomType, error) {
	q := url.Values{"operatorId": {strconv.FormatInt(c.operatorID, 10)}}
	var rooms []RoomType
	if err := c.get(ctx, pathRoomTypeList, q, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// BoardList fetches the board reference table.
func (c *Client) BoardList(ctx context.Context) ([]Board, error) {
	var boards []Board
	if err := c.get(ctx, pathBoardList, nil, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

// SaveStopSale posts one phase of a stop-sale save. A non-zero ErrorType in
// the envelope is returned as a protocol failure carrying the server message
// verbatim.
func (c *Client) SaveStopSale(ctx context.Context, req *StopSaleRequest) (*SaveResponse, error) {
	return c.save(ctx, pathSaveStopSale, req)
}

// SaveReservation posts one phase of a reservation save.
func (c *Client) SaveReservation(ctx context.Context, req *ReservationRequest) (*SaveResponse, error) {
	return c.save(ctx, pathSaveResv, req)
}

func (c *Client) save(ctx context.Context, path string, payload any) (*SaveResponse, error) {
	var resp SaveResponse
	if err := c.post(ctx, path, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorType != 0 {
		return nil, models.NewSyncError(models.KindProtocol,
			"server rejected save (error %d): %s", resp.ErrorType, resp.Message)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.WrapSyncError(models.KindTransient, err, "rate limiter")
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("username", c.username)
	query.Set("password", c.password)

	u := c.baseURL + path + "?" + query.Encode()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.WrapSyncError(models.KindTransient, err, "call %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WrapSyncError(models.KindTransient, err, "read response from %s", path)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.NewSyncError(models.KindAuth, "credentials rejected by %s (status %d)", path, resp.StatusCode)
	case resp.StatusCode >= 500:
		return models.NewSyncError(models.KindTransient, "%s returned status %d", path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.NewSyncError(models.KindProtocol, "%s returned status %d: %s", path, resp.StatusCode, truncate(data, 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return models.WrapSyncError(models.KindProtocol, err, "decode response from %s", path)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ClientSet holds one client per tenant and implements the reference-data
// source interface over them.
type ClientSet struct {
	clients map[string]*Client
}

// NewClientSet builds clients for every configured tenant.
func NewClientSet(cfg *config.Config, logger *slog.Logger) *ClientSet {
	set := &ClientSet{clients: make(map[string]*Client, len(cfg.Tenants))}
	for _, t := range cfg.Tenants {
		set.clients[t.Alias] = NewClient(ClientConfig{
			Tenant:  t,
			Timeout: cfg.SednaTimeout,
			Spacing: cfg.CallSpacing,
			Logger:  logger,
		})
	}
	return set
}

// ForTenant returns the tenant's client, or an error for unknown tenants.
func (s *ClientSet) ForTenant(alias string) (*Client, error) {
	c, ok := s.clients[alias]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q", alias)
	}
	return c, nil
}

// RoomTypes fetches the tenant's room-type table as a code-to-id map.
func (s *ClientSet) RoomTypes(ctx context.Context, tenant string) (map[string]int64, error) {
	c, err := s.ForTenant(tenant)
	if err != nil {
		return nil, err
	}
	rooms, err := c.RoomTypeList(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rooms))
	for _, r := range rooms {
		out[r.Code] = r.ID
	}
	return out, nil
}

// BoardTypes fetches the tenant's board table as a code-to-id map.
func (s *ClientSet) BoardTypes(ctx context.Context, tenant string) (map[string]int64, error) {
	c, err := s.ForTenant(tenant)
	if err != nil {
		return nil, err
	}
	boards, err := c.BoardList(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(boards))
	for _, b := range boards {
		out[b.Code] = b.ID
	}
	return out, nil
}

// Hotels fetches the tenant's hotel list.
func (s *ClientSet) Hotels(ctx context.Context, tenant string) ([]Hotel, error) {
	c, err := s.ForTenant(tenant)
	if err != nil {
		return nil, err
	}
	return c.HotelList(ctx)
}
