package outcome

import (
	"fmt"
	"testing"
	"time"

	"ai-voice-bridge-service/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func turns(pairs ...string) []models.TranscriptTurn {
	var out []models.TranscriptTurn
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.TranscriptTurn{Role: models.Role(pairs[i]), Text: pairs[i+1]})
	}
	return out
}

func strOrNil(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestExtract_DateInCurrentYear(t *testing.T) {
	now := time.Now()
	ex := NewExtractor(time.Now)

	got := ex.Extract(turns("agent", "आप कब तक भुगतान करेंगे", "user", "15 दिसंबर को"))

	year := now.Year()
	if time.Date(year, time.December, 15, 0, 0, 0, 0, now.Location()).Before(now.Add(-24 * time.Hour)) {
		year++
	}
	want := fmt.Sprintf("%d-12-15", year)

	if strOrNil(got.DateISO) != want {
		t.Errorf("dateISO = %s, want %s", strOrNil(got.DateISO), want)
	}
	if got.TimeHHmm != nil {
		t.Errorf("expected nil time, got %s", *got.TimeHHmm)
	}
	if strOrNil(got.AnswerText) != "15 दिसंबर को" {
		t.Errorf("unexpected answer %s", strOrNil(got.AnswerText))
	}
}

func TestExtract_RollsOverToNextYear(t *testing.T) {
	ex := NewExtractor(fixedClock(time.Date(2026, time.December, 20, 10, 0, 0, 0, time.UTC)))

	got := ex.Extract(turns("agent", "पेमेंट कब करेंगे?", "user", "2 जनवरी"))

	if strOrNil(got.DateISO) != "2027-01-02" {
		t.Errorf("dateISO = %s, want 2027-01-02", strOrNil(got.DateISO))
	}
	if strOrNil(got.DateEN) != "02 January 2027" {
		t.Errorf("dateEN = %s", strOrNil(got.DateEN))
	}
}

func TestExtract_SameDayStaysInCurrentYear(t *testing.T) {
	ex := NewExtractor(fixedClock(time.Date(2026, time.March, 15, 20, 0, 0, 0, time.UTC)))

	got := ex.Extract(turns("agent", "कब तक?", "user", "15 मार्च"))
	if strOrNil(got.DateISO) != "2026-03-15" {
		t.Errorf("dateISO = %s, want 2026-03-15", strOrNil(got.DateISO))
	}

	got = ex.Extract(turns("agent", "कब तक?", "user", "14 मार्च"))
	if strOrNil(got.DateISO) != "2027-03-14" {
		t.Errorf("dateISO = %s, want 2027-03-14", strOrNil(got.DateISO))
	}
}

func TestExtract_SkipsFillerAndUsesLastAsk(t *testing.T) {
	ex := NewExtractor(fixedClock(time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)))

	got := ex.Extract(turns(
		"agent", "आप कब भुगतान करेंगे?",
		"user", "20 अक्टूबर",
		"agent", "ठीक है, पक्का किस तारीख को, कब?",
		"user", "...",
		"user", "ओके।",
		"user", "ट्वेंटी वन नवंबर 10:30 बजे",
	))

	if strOrNil(got.AnswerText) != "ट्वेंटी वन नवंबर 10:30 बजे" {
		t.Errorf("unexpected answer %s", strOrNil(got.AnswerText))
	}
	if strOrNil(got.DateISO) != "2026-11-21" {
		t.Errorf("dateISO = %s, want 2026-11-21", strOrNil(got.DateISO))
	}
	if strOrNil(got.TimeHHmm) != "10:30" {
		t.Errorf("timeHHmm = %s, want 10:30", strOrNil(got.TimeHHmm))
	}
}

func TestExtract_NoAsk(t *testing.T) {
	ex := NewExtractor(nil)
	got := ex.Extract(turns("agent", "नमस्ते", "user", "15 दिसंबर"))
	if got.AnswerText != nil || got.DateISO != nil {
		t.Error("expected empty extraction without an agent ask")
	}
}

func TestExtract_NoAnswer(t *testing.T) {
	ex := NewExtractor(nil)
	got := ex.Extract(turns("user", "हेलो", "agent", "कब करेंगे?", "user", "ok"))
	if got.AnswerText != nil {
		t.Errorf("expected nil answer, got %s", *got.AnswerText)
	}
}

func TestParseDateTime(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		text string
		date string
		time string
	}{
		{"digits and month", "15 दिसंबर को", "2026-12-15", "<nil>"},
		{"phonetic december", "पाँच दिस एम्बर", "2026-12-05", "<nil>"},
		{"split september", "10 सेप टेम्बर।", "2026-09-10", "<nil>"},
		{"english month", "25th? no, 25 December", "2026-12-25", "<nil>"},
		{"hindi number word", "पंद्रह अगस्त", "2026-08-15", "<nil>"},
		{"spoken sum", "twenty one july", "2026-07-21", "<nil>"},
		{"devanagari digits", "१२ जुलाई", "2026-07-12", "<nil>"},
		{"time only", "शाम 5:45 तक", "<nil>", "05:45"},
		{"dotted time", "कल 11.15 पर", "<nil>", "11:15"},
		{"invalid day of month", "31 फरवरी", "<nil>", "<nil>"},
		{"day out of range", "45 मार्च", "<nil>", "<nil>"},
		{"month without day", "अगले महीने मार्च में", "<nil>", "<nil>"},
		{"empty", "", "<nil>", "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDateTime(tt.text, now)
			if strOrNil(got.DateISO) != tt.date {
				t.Errorf("dateISO = %s, want %s", strOrNil(got.DateISO), tt.date)
			}
			if strOrNil(got.TimeHHmm) != tt.time {
				t.Errorf("timeHHmm = %s, want %s", strOrNil(got.TimeHHmm), tt.time)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"पंद्रह, डिसेम्बर!", "पंद्रह दिसंबर"},
		{"ट्वेंटी  टू नव म्बर", "twenty two नवंबर"},
		{"वनडे", "वनडे"},
		{"Dec 5", "दिसंबर 5"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
