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

package extract

import (
	"testing"

	"github.com/mindops/hotelsync/internal/models"
)

func TestClassifyFallback(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		body     string
		wantType string
	}{
		{
			name:     "english stop sale",
			subject:  "STOP SALE notification",
			body:     "Please close out all rooms from 01.06.2025 to 10.06.2025",
			wantType: models.TypeStopSale,
		},
		{
			name:     "turkish stop sale",
			subject:  "Satış durdurma bildirimi",
			body:     "Oda kapatma 01.06.2025 - 10.06.2025",
			wantType: models.TypeStopSale,
		},
		{
			name:     "russian stop sale",
			subject:  "Стоп продаж",
			body:     "Остановка продаж с 01.06.2025",
			wantType: models.TypeStopSale,
		},
		{
			name:     "english reservation",
			subject:  "Booking confirmation ABC-123",
			body:     "Voucher: ABC-123\nCheck-in: 01.06.2025\nCheck-out: 08.06.2025",
			wantType: models.TypeReservation,
		},
		{
			name:     "german reservation",
			subject:  "Buchung",
			body:     "Anreise 01.06.2025, Abreise 08.06.2025, Gast Herr Mueller",
			wantType: models.TypeReservation,
		},
		{
			name:     "unrelated email",
			subject:  "Weekly newsletter",
			body:     "Here is what happened this week.",
			wantType: models.TypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, confidence := classifyFallback(tt.subject, tt.body)
			if gotType != tt.wantType {
				t.Errorf("type = %s, want %s", gotType, tt.wantType)
			}
			if confidence < 0.4 || confidence > 0.7 {
				t.Errorf("confidence = %v, want within [0.4, 0.7]", confidence)
			}
		})
	}
}

func TestFallbackStopSale(t *testing.T) {
	subject := "STOP SALE - Grand Mandarin Resort"
	body := `Hotel: Grand Mandarin Resort & Spa
Stop sale from 13.04.2025 to 20.04.2025
Room types: DOUBLE, SGL
Board: AI, HB
Reason: hotel fully booked`

	f := fallbackStopSale(subject, body)

	if f.HotelName != "Grand Mandarin Resort & Spa" {
		t.Errorf("hotel = %q", f.HotelName)
	}
	if FormatDate(f.DateFrom) != "2025-04-13" || FormatDate(f.DateTo) != "2025-04-20" {
		t.Errorf("dates = %s..%s", FormatDate(f.DateFrom), FormatDate(f.DateTo))
	}
	wantRooms := []string{"DBL", "SGL"}
	if len(f.RoomTypes) != len(wantRooms) {
		t.Fatalf("room types = %v, want %v", f.RoomTypes, wantRooms)
	}
	for i, w := range wantRooms {
		if f.RoomTypes[i] != w {
			t.Errorf("room[%d] = %s, want %s", i, f.RoomTypes[i], w)
		}
	}
	if len(f.BoardTypes) != 2 || f.BoardTypes[0] != "AI" || f.BoardTypes[1] != "HB" {
		t.Errorf("board types = %v", f.BoardTypes)
	}
	if !f.IsClose {
		t.Error("IsClose = false, want true")
	}
	if f.Reason != "fully booked" {
		t.Errorf("reason = %q, want %q", f.Reason, "fully booked")
	}
}

func TestFallbackStopSaleOpen(t *testing.T) {
	body := "Hotel: Sunrise Inn\nOpen sale from 01.07.2025 to 31.07.2025"

	f := fallbackStopSale("Open sale", body)
	if f.IsClose {
		t.Error("IsClose = true, want false for open sale")
	}
}

func TestFallbackStopSaleSingleDate(t *testing.T) {
	body := "Hotel: Sunrise Inn\nClose out on 15.08.2025"

	f := fallbackStopSale("Stop sale", body)
	if FormatDate(f.DateFrom) != "2025-08-15" || FormatDate(f.DateTo) != "2025-08-15" {
		t.Errorf("single date should close one day, got %s..%s",
			FormatDate(f.DateFrom), FormatDate(f.DateTo))
	}
}

func TestFallbackReservation(t *testing.T) {
	body := `Hotel: Blue Lagoon Palace
Voucher: VC-20250601-77
Check-in: 01.06.2025
Check-out: 08.06.2025
Room: DOUBLE
Board: AI
2 adults, 1 child
Mr John Smith
Mrs Jane Smith
Chd Tim Smith
Total: EUR 1250.50`

	f := fallbackReservation("Booking confirmation", body)

	if f.HotelName != "Blue Lagoon Palace" {
		t.Errorf("hotel = %q", f.HotelName)
	}
	if f.VoucherNo != "VC-20250601-77" {
		t.Errorf("voucher = %q", f.VoucherNo)
	}
	if FormatDate(f.CheckIn) != "2025-06-01" || FormatDate(f.CheckOut) != "2025-06-08" {
		t.Errorf("dates = %s..%s", FormatDate(f.CheckIn), FormatDate(f.CheckOut))
	}
	if f.RoomType != "DBL" {
		t.Errorf("room = %q, want DBL", f.RoomType)
	}
	if f.BoardType != "AI" {
		t.Errorf("board = %q, want AI", f.BoardType)
	}
	if f.Adults != 2 || f.Children != 1 {
		t.Errorf("pax = %d adults %d children, want 2/1", f.Adults, f.Children)
	}
	if len(f.Guests) != 3 {
		t.Fatalf("guests = %d, want 3", len(f.Guests))
	}
	if f.Guests[0].Title != "Mr" || f.Guests[0].LastName != "Smith" {
		t.Errorf("guest[0] = %+v", f.Guests[0])
	}
	if f.Amount == nil || *f.Amount != 1250.50 {
		t.Errorf("amount = %v, want 1250.50", f.Amount)
	}
	if f.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", f.Currency)
	}
}

func TestCanonicalRoomCode(t *testing.T) {
	tests := []struct{ in, want string }{
		{"DOUBLE", "DBL"},
		{"double", "DBL"},
		{"TWIN", "DBL"},
		{"SINGLE", "SGL"},
		{"TRIPLE", "TRP"},
		{"dbl", "DBL"},
		{"JUNIOR", "JUNIOR"}, // unknown codes pass through uppercased
	}
	for _, tt := range tests {
		if got := CanonicalRoomCode(tt.in); got != tt.want {
			t.Errorf("CanonicalRoomCode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct{ text, want string }{
		{"Stop sale notification for next week", "en"},
		{"Satış durdurma bildirimi", "tr"},
		{"Остановка продаж в отеле", "ru"},
		{"Повідомлення про зупинку продажів", "uk"},
		{"Zimmer geschlossen wegen Renovierung, schöne Grüße", "de"},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
