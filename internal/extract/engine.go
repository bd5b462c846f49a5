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

// Package extract classifies hotel emails and pulls structured fields out of
// them. The AI extractor is primary; a keyword/regex fallback takes over when
// the AI is unavailable or not confident enough.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/mindops/hotelsync/internal/models"
)

// StopSaleFields is the structured output of stop-sale extraction.
type StopSaleFields struct {
	HotelName  string
	DateFrom   time.Time
	DateTo     time.Time
	RoomTypes  []string
	BoardTypes []string
	IsClose    bool
	Reason     string
}

// ReservationFields is the structured output of reservation extraction.
type ReservationFields struct {
	VoucherNo string
	HotelName string
	CheckIn   time.Time
	CheckOut  time.Time
	RoomType  string
	BoardType string
	Adults    int
	Children  int
	Guests    []models.Guest
	Amount    *float64
	Currency  string
}

// Result is the outcome of classification plus extraction for one email.
// Exactly one of StopSale/Reservation is set when Type is the matching kind
// and the required fields were found.
type Result struct {
	Type        string
	Confidence  float64
	Method      string
	Language    string
	StopSale    *StopSaleFields
	Reservation *ReservationFields
}

// analyzer is the AI surface the engine depends on.
type analyzer interface {
	Analyze(ctx context.Context, subject, body string) (*aiPayload, error)
}

// Engine runs AI-primary, fallback-secondary classification and extraction.
type Engine struct {
	ai        analyzer
	threshold float64
	logger    *slog.Logger
}

// EngineConfig holds the dependencies for NewEngine.
type EngineConfig struct {
	// AI may be nil, in which case only the fallback path runs.
	AI        *OpenAIClient
	Threshold float64
	Logger    *slog.Logger
}

// NewEngine builds an extraction engine.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}
	if e.threshold == 0 {
		e.threshold = 0.85
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if cfg.AI != nil {
		e.ai = cfg.AI
	}
	return e
}

// ClassifyAndExtract analyzes one email. The AI verdict wins only when its
// confidence clears the threshold AND its fields pass validation; every
// other path is handled by the keyword/regex fallback. The result always
// records which method actually produced the fields.
func (e *Engine) ClassifyAndExtract(ctx context.Context, subject, body string) *Result {
	if e.ai != nil {
		payload, err := e.ai.Analyze(ctx, subject, body)
		if err != nil {
			e.logger.Warn("ai extraction failed, using fallback", "error", err)
		} else if res := e.fromAI(payload); res != nil {
			return res
		}
	}
	return e.fromFallback(subject, body)
}

// fromAI converts the model payload into a Result, or returns nil when the
// verdict must be discarded (below threshold or invalid fields).
func (e *Engine) fromAI(p *aiPayload) *Result {
	if p.Confidence < e.threshold {
		e.logger.Info("ai confidence below threshold, using fallback",
			"confidence", p.Confidence, "threshold", e.threshold)
		return nil
	}

	res := &Result{
		Type:       p.EmailType,
		Confidence: p.Confidence,
		Method:     models.MethodAI,
		Language:   p.Language,
	}

	switch p.EmailType {
	case models.TypeStopSale:
		if p.StopSale == nil {
			return nil
		}
		from, err1 := NormalizeDate(p.StopSale.DateFrom)
		to, err2 := NormalizeDate(p.StopSale.DateTo)
		if err1 != nil || err2 != nil || p.StopSale.HotelName == "" {
			e.logger.Info("ai stop-sale fields incomplete, using fallback")
			return nil
		}
		if to.Before(from) {
			from, to = to, from
		}
		isClose := true
		if p.StopSale.IsClose != nil {
			isClose = *p.StopSale.IsClose
		}
		rooms := make([]string, 0, len(p.StopSale.RoomTypes))
		for _, r := range p.StopSale.RoomTypes {
			rooms = appendUnique(rooms, CanonicalRoomCode(r))
		}
		res.StopSale = &StopSaleFields{
			HotelName:  p.StopSale.HotelName,
			DateFrom:   from,
			DateTo:     to,
			RoomTypes:  rooms,
			BoardTypes: p.StopSale.BoardTypes,
			IsClose:    isClose,
			Reason:     p.StopSale.Reason,
		}

	case models.TypeReservation:
		if p.Reservation == nil {
			return nil
		}
		in, err1 := NormalizeDate(p.Reservation.CheckIn)
		out, err2 := NormalizeDate(p.Reservation.CheckOut)
		if err1 != nil || err2 != nil || p.Reservation.HotelName == "" {
			e.logger.Info("ai reservation fields incomplete, using fallback")
			return nil
		}
		if out.Before(in) {
			in, out = out, in
		}
		guests := make([]models.Guest, 0, len(p.Reservation.Guests))
		for _, g := range p.Reservation.Guests {
			guests = append(guests, models.Guest{Title: g.Title, FirstName: g.FirstName, LastName: g.LastName})
		}
		res.Reservation = &ReservationFields{
			VoucherNo: p.Reservation.VoucherNo,
			HotelName: p.Reservation.HotelName,
			CheckIn:   in,
			CheckOut:  out,
			RoomType:  CanonicalRoomCode(p.Reservation.RoomType),
			BoardType: p.Reservation.BoardType,
			Adults:    p.Reservation.Adults,
			Children:  p.Reservation.Children,
			Guests:    guests,
			Amount:    p.Reservation.Amount,
			Currency:  p.Reservation.Currency,
		}

	case models.TypeOther:
		// nothing to extract

	default:
		return nil
	}

	return res
}

// fromFallback runs the keyword classifier and regex extractors.
func (e *Engine) fromFallback(subject, body string) *Result {
	emailType, confidence := classifyFallback(subject, body)

	res := &Result{
		Type:       emailType,
		Confidence: confidence,
		Method:     models.MethodFallback,
		Language:   DetectLanguage(subject + "\n" + body),
	}

	switch emailType {
	case models.TypeStopSale:
		f := fallbackStopSale(subject, body)
		if f.HotelName == "" || f.DateFrom.IsZero() || f.DateTo.IsZero() {
			// Required fields absent. Leave the record unclassified rather
			// than synthesize a hotel name or dates.
			res.Type = models.TypeUnclassified
			return res
		}
		res.StopSale = f
	case models.TypeReservation:
		f := fallbackReservation(subject, body)
		if f.HotelName == "" || f.CheckIn.IsZero() || f.CheckOut.IsZero() {
			res.Type = models.TypeUnclassified
			return res
		}
		res.Reservation = f
	}

	return res
}
