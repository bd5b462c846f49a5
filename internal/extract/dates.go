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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mindops/hotelsync/internal/models"
)

// Date patterns accepted in email bodies. Day-first for the dotted and
// slashed forms, as written in the source markets.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{2,4})\b`), // 13.04.25, 13.04.2025
	regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`),   // 13/04/2025
	regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`),     // 2025-04-13
	regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`),     // 13-04-2025
}

// monthAlt matches an English month name or its three-letter abbreviation.
const monthAlt = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// Written-out forms: "13 April 2025", "13th Apr 2025", "April 13, 2025".
var (
	dayMonthNameRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthAlt + `)\.?,?\s+(\d{2,4})\b`)
	monthNameDayRe = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{2,4})\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthByName(name string) time.Month {
	return monthsByPrefix[strings.ToLower(name)[:3]]
}

// NormalizeDate parses a date written in any of the accepted formats and
// returns it in ISO form. Two-digit years are assumed to be 2000-based.
func NormalizeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for i, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil || m[0] != s {
			continue
		}
		var day, month, year int
		if i == 2 { // YYYY-MM-DD
			year, _ = strconv.Atoi(m[1])
			month, _ = strconv.Atoi(m[2])
			day, _ = strconv.Atoi(m[3])
		} else {
			day, _ = strconv.Atoi(m[1])
			month, _ = strconv.Atoi(m[2])
			year, _ = strconv.Atoi(m[3])
		}
		return calendarDate(year, month, day, s)
	}

	if m := dayMonthNameRe.FindStringSubmatch(s); m != nil && m[0] == s {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		return calendarDate(year, int(monthByName(m[2])), day, s)
	}
	if m := monthNameDayRe.FindStringSubmatch(s); m != nil && m[0] == s {
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return calendarDate(year, int(monthByName(m[1])), day, s)
	}

	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

func calendarDate(year, month, day int, s string) (time.Time, error) {
	if year < 100 {
		year += 2000
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components; reject those.
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid calendar date %q", s)
	}
	return t, nil
}

// ExtractDates finds every date mention in the text, in order of appearance.
func ExtractDates(text string) []time.Time {
	type hit struct {
		pos int
		t   time.Time
	}
	var hits []hit
	seen := make(map[int]bool)

	patterns := append(append([]*regexp.Regexp{}, datePatterns...), dayMonthNameRe, monthNameDayRe)
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if seen[loc[0]] {
				continue
			}
			t, err := NormalizeDate(text[loc[0]:loc[1]])
			if err != nil {
				continue
			}
			seen[loc[0]] = true
			hits = append(hits, hit{pos: loc[0], t: t})
		}
	}

	// Restore document order; patterns were scanned independently.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	dates := make([]time.Time, len(hits))
	for i, h := range hits {
		dates[i] = h.t
	}
	return dates
}

// FormatDate renders a date in the ISO layout used on every boundary.
func FormatDate(t time.Time) string {
	return t.Format(models.DateFormat)
}
