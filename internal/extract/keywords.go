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

import "strings"

// Keyword lists for classification without the AI extractor. The source
// markets write in English, Turkish, Russian and German.
var stopSaleKeywords = []string{
	// en
	"stop sale", "stop sales", "stopsale", "close out", "closeout",
	"close-out", "room closure", "rooms closed", "availability closed",
	"open sale", "open sales", "reopen",
	// tr
	"satış durdurma", "satis durdurma", "satışa kapalı", "satisa kapali",
	"oda kapatma", "kontenjan kapatma", "satışa açık", "satisa acik",
	// ru
	"стоп продаж", "стоп-продаж", "остановка продаж", "закрытие продаж",
	"открытие продаж",
	// de
	"verkaufsstopp", "zimmer geschlossen", "verkauf geschlossen",
	"verkauf geöffnet",
}

var reservationKeywords = []string{
	// en
	"reservation", "booking", "voucher", "confirmation", "check-in",
	"check in", "checkout", "check-out", "guest name", "booking reference",
	// tr
	"rezervasyon", "konaklama", "giriş tarihi", "giris tarihi",
	"çıkış tarihi", "cikis tarihi", "misafir",
	// ru
	"бронирование", "бронь", "ваучер", "заезд", "выезд", "гость",
	// de
	"buchung", "reservierung", "anreise", "abreise", "gast",
}

var openKeywords = []string{
	"open sale", "open sales", "reopen", "satışa açık", "satisa acik",
	"открытие продаж", "verkauf geöffnet",
}

// Stop-sale reasons recognised by the fallback extractor.
var reasonKeywords = map[string][]string{
	"renovation":    {"renovation", "renovasyon", "renovierung", "реновация", "ремонт"},
	"fully booked":  {"fully booked", "full occupancy", "sold out", "dolu", "ausgebucht", "нет мест"},
	"special event": {"special event", "event", "etkinlik", "veranstaltung", "мероприятие"},
}

// countMatches returns how many keywords from the list occur in the text.
// The text must already be lowercased.
func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// DetectLanguage guesses the language of the text from character patterns.
// Only characters unambiguous for their language count, so the shared
// umlauts ö and ü decide nothing. Returns an ISO 639-1 code, defaulting
// to "en".
func DetectLanguage(text string) string {
	var cyrillic, ukrainian, turkish, german int
	for _, r := range text {
		switch {
		case r >= 0x0400 && r <= 0x04FF:
			cyrillic++
			switch r {
			case 'і', 'ї', 'є', 'ґ', 'І', 'Ї', 'Є', 'Ґ':
				ukrainian++
			}
		case strings.ContainsRune("şğıçŞĞİÇ", r):
			turkish++
		case strings.ContainsRune("äßÄ", r):
			german++
		}
	}
	switch {
	case ukrainian > 0:
		return "uk"
	case cyrillic > 0:
		return "ru"
	case turkish > 0:
		return "tr"
	case german > 0:
		return "de"
	}
	return "en"
}
