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

// Package models defines the data structures shared across the sync service.
package models

import "time"

// DateFormat is the ISO calendar-date layout used everywhere a date crosses
// a boundary: extraction output, Postgres columns, and the external API wire
// payloads.
const DateFormat = "2006-01-02"

// Email classification types.
const (
	TypeReservation  = "reservation"
	TypeStopSale     = "stop_sale"
	TypeOther        = "other"
	TypeUnclassified = "unclassified"
)

// Extraction methods. A record is tagged with the strategy that actually
// produced its fields, so confidence gating is auditable after the fact.
const (
	MethodAI       = "ai"
	MethodFallback = "fallback"
	MethodManual   = "manual"
)

// EmailRecord represents one ingested message. Records are created on
// ingestion, re-classified in place on re-parse, and never deleted.
type EmailRecord struct {
	ID         int64      `json:"id"`
	TenantID   string     `json:"tenant_id"`
	MessageID  string     `json:"message_id,omitempty"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`

	// Set by the extraction engine.
	EmailType  string  `json:"email_type"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method,omitempty"`
	Language   string  `json:"language,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
