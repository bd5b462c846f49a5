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

import "testing"

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "dotted two-digit year", input: "13.04.25", want: "2025-04-13"},
		{name: "dotted four-digit year", input: "13.04.2025", want: "2025-04-13"},
		{name: "slashed", input: "13/04/2025", want: "2025-04-13"},
		{name: "slashed two-digit year", input: "13/04/25", want: "2025-04-13"},
		{name: "iso", input: "2025-04-13", want: "2025-04-13"},
		{name: "dashed day-first", input: "13-04-2025", want: "2025-04-13"},
		{name: "single-digit day and month", input: "5.6.2025", want: "2025-06-05"},
		{name: "whitespace trimmed", input: "  13.04.2025  ", want: "2025-04-13"},
		{name: "day month-name year", input: "13 April 2025", want: "2025-04-13"},
		{name: "day abbreviated month", input: "13 Apr 2025", want: "2025-04-13"},
		{name: "ordinal day month-name", input: "13th April 2025", want: "2025-04-13"},
		{name: "month-name day year", input: "April 13, 2025", want: "2025-04-13"},
		{name: "abbreviated month day year", input: "Apr 13 2025", want: "2025-04-13"},
		{name: "month-name invalid day", input: "32 April 2025", wantErr: true},
		{name: "invalid month", input: "13.13.2025", wantErr: true},
		{name: "invalid day", input: "32.01.2025", wantErr: true},
		{name: "not a date", input: "next tuesday", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeDate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeDate(%q) error: %v", tt.input, err)
			}
			if s := FormatDate(got); s != tt.want {
				t.Errorf("NormalizeDate(%q) = %s, want %s", tt.input, s, tt.want)
			}
		})
	}
}

func TestExtractDates(t *testing.T) {
	text := "Stop sale from 13.04.2025 to 20/04/2025, reopening 2025-05-01."

	dates := ExtractDates(text)
	if len(dates) != 3 {
		t.Fatalf("got %d dates, want 3", len(dates))
	}

	want := []string{"2025-04-13", "2025-04-20", "2025-05-01"}
	for i, w := range want {
		if got := FormatDate(dates[i]); got != w {
			t.Errorf("dates[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestExtractDatesMonthNames(t *testing.T) {
	text := "Closed from 13 April 2025 until April 20, 2025."

	dates := ExtractDates(text)
	if len(dates) != 2 {
		t.Fatalf("got %d dates, want 2", len(dates))
	}
	want := []string{"2025-04-13", "2025-04-20"}
	for i, w := range want {
		if got := FormatDate(dates[i]); got != w {
			t.Errorf("dates[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestExtractDatesNone(t *testing.T) {
	if dates := ExtractDates("no dates in here"); len(dates) != 0 {
		t.Errorf("got %d dates, want 0", len(dates))
	}
}
