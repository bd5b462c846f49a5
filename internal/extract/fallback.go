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
	"regexp"
	"strconv"
	"strings"

	"github.com/mindops/hotelsync/internal/models"
)

// Room-type code synonyms canonicalised during post-processing.
var roomCodeAliases = map[string]string{
	"DOUBLE": "DBL", "TWIN": "DBL", "DBL": "DBL",
	"SINGLE": "SGL", "SGL": "SGL",
	"TRIPLE": "TRP", "TRP": "TRP", "TRPL": "TRP",
	"QUAD": "QDR", "QDR": "QDR",
	"SUITE": "SUIT", "SUIT": "SUIT",
	"FAMILY": "FAM", "FAM": "FAM",
	"STANDARD": "STD", "STD": "STD",
	"DELUXE": "DLX", "DLX": "DLX",
}

var (
	hotelLineRe = regexp.MustCompile(`(?im)^\s*(?:hotel|otel|отель|property)\s*[:\-]\s*(.+?)\s*$`)
	roomLineRe  = regexp.MustCompile(`(?im)\b(?:room(?:\s*types?)?|oda(?:\s*tipi)?|zimmer|номер)\s*[:\-]\s*([A-Za-z0-9 ,;/+]+)`)
	boardLineRe = regexp.MustCompile(`(?im)\b(?:board|meal\s*plan|pansiyon|verpflegung|питание)\s*[:\-]\s*([A-Za-z ,;/+]+)`)

	voucherRe  = regexp.MustCompile(`(?i)\b(?:voucher|booking\s*(?:ref(?:erence)?|no)|reference|rezervasyon\s*no|ваучер)\s*[:#\-]?\s*([A-Z0-9][A-Z0-9\-]{2,})`)
	adultsRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:adult|adl|yetişkin|yetiskin|erwachsene|взросл)`)
	childrenRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:child(?:ren)?|chd|çocuk|cocuk|kind(?:er)?|реб[её]н|дет)`)
	amountRe   = regexp.MustCompile(`(?i)\b(?:total|amount|price|tutar|toplam|betrag|сумма)\s*[:\-]?\s*([A-Z]{3})?\s*([0-9][0-9.,]*)\s*([A-Z]{3}|€|\$|£)?`)
	guestRe    = regexp.MustCompile(`(?im)\b(Mr|Mrs|Ms|Miss|Chd|Inf)\.?\s+([A-ZÇĞİÖŞÜ][\p{L}\-']+)\s+([A-ZÇĞİÖŞÜ][\p{L}\-']+)`)

	boardCodeRe = regexp.MustCompile(`\b(AI|UAI|FB|HB|BB|RO|SC|AIP|HBP|FBP)\b`)
	roomCodeRe  = regexp.MustCompile(`(?i)\b(double|twin|single|triple|quad|suite|family|standard|deluxe|dbl|sgl|trp|trpl|qdr|suit|fam|std|dlx)\b`)
)

// CanonicalRoomCode maps a room-type word to its canonical code. Unknown
// values are uppercased and passed through.
func CanonicalRoomCode(s string) string {
	u := strings.ToUpper(strings.TrimSpace(s))
	if c, ok := roomCodeAliases[u]; ok {
		return c
	}
	return u
}

// classifyFallback scores the text against the keyword lists. The confidence
// grows with the number of distinct keyword hits and is capped at 0.7 so a
// keyword-only classification can never pass for an AI one.
func classifyFallback(subject, body string) (string, float64) {
	text := strings.ToLower(subject + "\n" + body)

	stop := countMatches(text, stopSaleKeywords)
	res := countMatches(text, reservationKeywords)

	confidence := func(matches int) float64 {
		c := 0.4 + float64(matches)*0.1
		if c > 0.7 {
			c = 0.7
		}
		return c
	}

	switch {
	case stop > 0 && stop >= res:
		return models.TypeStopSale, confidence(stop)
	case res > 0:
		return models.TypeReservation, confidence(res)
	}
	return models.TypeOther, 0.5
}

// fallbackStopSale extracts stop-sale fields with regexes and keyword scans.
func fallbackStopSale(subject, body string) *StopSaleFields {
	text := subject + "\n" + body
	lower := strings.ToLower(text)

	f := &StopSaleFields{IsClose: true}

	if m := hotelLineRe.FindStringSubmatch(text); m != nil {
		f.HotelName = strings.TrimSpace(m[1])
	}

	dates := ExtractDates(text)
	if len(dates) >= 2 {
		f.DateFrom, f.DateTo = dates[0], dates[1]
		if f.DateTo.Before(f.DateFrom) {
			f.DateFrom, f.DateTo = f.DateTo, f.DateFrom
		}
	} else if len(dates) == 1 {
		// A single date closes that one day.
		f.DateFrom, f.DateTo = dates[0], dates[0]
	}

	if m := roomLineRe.FindStringSubmatch(text); m != nil {
		f.RoomTypes = splitCodes(m[1], CanonicalRoomCode)
	} else {
		for _, m := range roomCodeRe.FindAllString(text, -1) {
			f.RoomTypes = appendUnique(f.RoomTypes, CanonicalRoomCode(m))
		}
	}

	if m := boardLineRe.FindStringSubmatch(text); m != nil {
		f.BoardTypes = splitCodes(m[1], strings.ToUpper)
	} else {
		for _, m := range boardCodeRe.FindAllString(text, -1) {
			f.BoardTypes = appendUnique(f.BoardTypes, strings.ToUpper(m))
		}
	}

	if countMatches(lower, openKeywords) > 0 {
		f.IsClose = false
	}

	for reason, kws := range reasonKeywords {
		if countMatches(lower, kws) > 0 {
			f.Reason = reason
			break
		}
	}

	return f
}

// fallbackReservation extracts reservation fields with regexes.
func fallbackReservation(subject, body string) *ReservationFields {
	text := subject + "\n" + body

	f := &ReservationFields{}

	if m := hotelLineRe.FindStringSubmatch(text); m != nil {
		f.HotelName = strings.TrimSpace(m[1])
	}
	if m := voucherRe.FindStringSubmatch(text); m != nil {
		f.VoucherNo = m[1]
	}

	dates := ExtractDates(text)
	if len(dates) >= 2 {
		f.CheckIn, f.CheckOut = dates[0], dates[1]
		if f.CheckOut.Before(f.CheckIn) {
			f.CheckIn, f.CheckOut = f.CheckOut, f.CheckIn
		}
	}

	if m := roomCodeRe.FindString(text); m != "" {
		f.RoomType = CanonicalRoomCode(m)
	}
	if m := boardCodeRe.FindString(text); m != "" {
		f.BoardType = strings.ToUpper(m)
	}

	if m := adultsRe.FindStringSubmatch(text); m != nil {
		f.Adults, _ = strconv.Atoi(m[1])
	}
	if m := childrenRe.FindStringSubmatch(text); m != nil {
		f.Children, _ = strconv.Atoi(m[1])
	}

	for _, m := range guestRe.FindAllStringSubmatch(text, -1) {
		f.Guests = append(f.Guests, models.Guest{
			Title:     strings.TrimSuffix(m[1], "."),
			FirstName: m[2],
			LastName:  m[3],
		})
	}
	if f.Adults == 0 && len(f.Guests) > 0 {
		for _, g := range f.Guests {
			if g.Title == "Chd" || g.Title == "Inf" {
				f.Children++
			} else {
				f.Adults++
			}
		}
	}

	if m := amountRe.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[2], ",", "")
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			f.Amount = &v
		}
		f.Currency = normalizeCurrency(firstOf(m[1], m[3]))
	}

	return f
}

func splitCodes(s string, canon func(string) string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '+'
	}) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = appendUnique(out, canon(part))
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func normalizeCurrency(s string) string {
	switch s {
	case "€":
		return "EUR"
	case "$":
		return "USD"
	case "£":
		return "GBP"
	}
	return strings.ToUpper(s)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
