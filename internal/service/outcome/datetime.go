package outcome

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timePattern  = regexp.MustCompile(`(\d{1,2})\s*[:.]\s*(\d{2})`)
	digitRun     = regexp.MustCompile(`[0-9]+`)
	punctuation  = regexp.MustCompile(`[।.,!?]`)
	whitespace   = regexp.MustCompile(`\s+`)
	devanagariNo = strings.NewReplacer(
		"०", "0", "१", "1", "२", "2", "३", "3", "४", "4",
		"५", "5", "६", "6", "७", "7", "८", "8", "९", "9",
	)

	monthVariants = []struct {
		re    *regexp.Regexp
		canon string
	}{
		{regexp.MustCompile(`दिस\s*एम्बर|डिस\s*एम्बर|दिसेम्बर|डिसेम्बर|डिसम्बर`), "दिसंबर"},
		{regexp.MustCompile(`सेप\s*टेम्बर|सितेम्बर`), "सितंबर"},
		{regexp.MustCompile(`अक्टो\s*बर`), "अक्टूबर"},
		{regexp.MustCompile(`नव\s*म्बर`), "नवंबर"},
	}
)

// tokenReplacements maps whole tokens: English number words transliterated by
// Hindi STT, and English month names, to canonical forms.
var tokenReplacements = map[string]string{
	"ट्वेंटी": "twenty",
	"थर्टी":   "thirty",
	"वन":      "one",
	"टू":      "two",
	"थ्री":    "three",
	"फोर":     "four",
	"फाइव":    "five",
	"सिक्स":   "six",
	"सेवन":    "seven",
	"एट":      "eight",
	"नाइन":    "nine",
	"टेन":     "ten",
	"इलेवन":   "eleven",
	"ट्वेल्व": "twelve",

	"january": "जनवरी", "jan": "जनवरी",
	"february": "फरवरी", "feb": "फरवरी",
	"march": "मार्च", "mar": "मार्च",
	"april": "अप्रैल", "apr": "अप्रैल",
	"may": "मई",
	"june": "जून", "jun": "जून",
	"july": "जुलाई", "jul": "जुलाई",
	"august": "अगस्त", "aug": "अगस्त",
	"september": "सितंबर", "sep": "सितंबर", "sept": "सितंबर",
	"october": "अक्टूबर", "oct": "अक्टूबर",
	"november": "नवंबर", "nov": "नवंबर",
	"december": "दिसंबर", "dec": "दिसंबर",
}

var spokenNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30,

	"एक": 1, "दो": 2, "तीन": 3, "चार": 4, "पांच": 5, "पाँच": 5, "छह": 6, "सात": 7,
	"आठ": 8, "नौ": 9, "दस": 10, "ग्यारह": 11, "बारह": 12, "तेरह": 13, "चौदह": 14,
	"पंद्रह": 15, "पन्द्रह": 15, "सोलह": 16, "सत्रह": 17, "अठारह": 18, "उन्नीस": 19,
	"बीस": 20, "इक्कीस": 21, "बाईस": 22, "तेईस": 23, "चौबीस": 24, "पच्चीस": 25,
	"छब्बीस": 26, "सत्ताईस": 27, "अट्ठाईस": 28, "उनतीस": 29, "तीस": 30, "इकतीस": 31,
}

// months is ordered; the first contained name wins.
var months = []struct {
	name  string
	month time.Month
}{
	{"जनवरी", time.January},
	{"फरवरी", time.February},
	{"फ़रवरी", time.February},
	{"मार्च", time.March},
	{"अप्रैल", time.April},
	{"मई", time.May},
	{"जून", time.June},
	{"जुलाई", time.July},
	{"अगस्त", time.August},
	{"सितंबर", time.September},
	{"सितम्बर", time.September},
	{"अक्टूबर", time.October},
	{"नवंबर", time.November},
	{"नवम्बर", time.November},
	{"दिसंबर", time.December},
	{"दिसम्बर", time.December},
}

// Normalize lowercases text, strips punctuation and rewrites known phonetic
// spellings of months and numbers to canonical tokens.
func Normalize(text string) string {
	t := devanagariNo.Replace(strings.ToLower(text))
	t = punctuation.ReplaceAllString(t, " ")
	t = strings.TrimSpace(whitespace.ReplaceAllString(t, " "))

	for _, v := range monthVariants {
		t = v.re.ReplaceAllString(t, v.canon)
	}

	tokens := strings.Fields(t)
	for i, tok := range tokens {
		if r, ok := tokenReplacements[tok]; ok {
			tokens[i] = r
		}
	}
	return strings.Join(tokens, " ")
}

// DateTime is the parsed promise. Nil fields were not found.
type DateTime struct {
	DateISO  *string
	TimeHHmm *string
	DateEN   *string
}

// ParseDateTime extracts a promised date and time from free-form speech.
// Dates without a year resolve to the next occurrence relative to now, with a
// 24 hour tolerance for dates just passed.
func ParseDateTime(text string, now time.Time) DateTime {
	var out DateTime

	t := devanagariNo.Replace(strings.ToLower(text))
	if m := timePattern.FindStringSubmatchIndex(t); m != nil {
		h, _ := strconv.Atoi(t[m[2]:m[3]])
		minute, _ := strconv.Atoi(t[m[4]:m[5]])
		if h < 24 && minute < 60 {
			hhmm := fmt.Sprintf("%02d:%02d", h, minute)
			out.TimeHHmm = &hhmm
			t = t[:m[0]] + " " + t[m[1]:]
		}
	}
	t = Normalize(t)

	day := parseDay(t)
	month, ok := parseMonth(t)
	if day == 0 || !ok {
		return out
	}

	loc := now.Location()
	dt, valid := calendarDate(now.Year(), month, day, loc)
	if valid && dt.Before(now.Add(-24*time.Hour)) {
		dt, valid = calendarDate(now.Year()+1, month, day, loc)
	}
	if !valid {
		return out
	}

	iso := dt.Format("2006-01-02")
	en := dt.Format("02 January 2006")
	out.DateISO = &iso
	out.DateEN = &en
	return out
}

func parseDay(t string) int {
	for _, run := range digitRun.FindAllString(t, -1) {
		if len(run) > 2 {
			continue
		}
		if n, _ := strconv.Atoi(run); n >= 1 && n <= 31 {
			return n
		}
	}

	total := 0
	for _, tok := range strings.Fields(t) {
		total += spokenNumbers[tok]
	}
	if total >= 1 && total <= 31 {
		return total
	}
	return 0
}

func parseMonth(t string) (time.Month, bool) {
	for _, m := range months {
		if strings.Contains(t, m.name) {
			return m.month, true
		}
	}
	return 0, false
}

// calendarDate rejects days that overflow the month, such as 31 फरवरी.
func calendarDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	dt := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return dt, dt.Day() == day && dt.Month() == month
}
