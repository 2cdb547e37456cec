package normalize

import (
	"regexp"
	"strings"
	"time"
)

// ISODate is the canonical booking date layout.
const ISODate = "2006-01-02"

// foreignMonths maps month names in the languages callers actually speak to
// their English equivalents so time.Parse can handle them.
var foreignMonths = map[string]string{
	// German
	"januar": "january", "februar": "february", "märz": "march", "maerz": "march",
	"mai": "may", "juni": "june", "juli": "july", "oktober": "october", "dezember": "december",
	// French
	"janvier": "january", "février": "february", "fevrier": "february", "mars": "march",
	"avril": "april", "juin": "june", "juillet": "july", "août": "august", "aout": "august",
	"septembre": "september", "octobre": "october", "novembre": "november",
	"décembre": "december", "decembre": "december",
	// Spanish
	"enero": "january", "febrero": "february", "marzo": "march", "abril": "april",
	"mayo": "may", "junio": "june", "julio": "july", "agosto": "august",
	"septiembre": "september", "setiembre": "september", "octubre": "october",
	"noviembre": "november", "diciembre": "december",
	// Italian
	"gennaio": "january", "febbraio": "february", "aprile": "april", "maggio": "may",
	"giugno": "june", "luglio": "july", "settembre": "september", "ottobre": "october",
	"dicembre": "december",
	// Dutch
	"januari": "january", "februari": "february", "maart": "march", "mei": "may",
	"augustus": "august",
	// common abbreviation time.Parse does not know
	"sept": "september",
}

var englishMonths = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// textLayouts are tried in order against the cleaned token string.
var textLayouts = []struct {
	layout  string
	hasYear bool
}{
	{"2 January 2006", true},
	{"January 2 2006", true},
	{"2 Jan 2006", true},
	{"Jan 2 2006", true},
	{"2 January", false},
	{"January 2", false},
	{"2 Jan", false},
	{"Jan 2", false},
}

// numericLayouts: MM/DD/YYYY, DD/MM/YYYY, DD.MM.YYYY.
var numericLayouts = []string{"1/2/2006", "2/1/2006", "2.1.2006"}

var (
	ordinalRe = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)
	digitsRe  = regexp.MustCompile(`^\d{1,4}$`)
)

// Date normalizes a free-text date expression to YYYY-MM-DD relative to now.
// It reports false when the expression cannot be understood; it never falls
// back to today.
func Date(text string, now time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" || s == "null" || s == "none" {
		return "", false
	}
	today := midnight(now)

	switch {
	case strings.Contains(s, "today"):
		return today.Format(ISODate), true
	case strings.Contains(s, "day after tomorrow"):
		return today.AddDate(0, 0, 2).Format(ISODate), true
	case strings.Contains(s, "tomorrow"):
		return today.AddDate(0, 0, 1).Format(ISODate), true
	}

	if _, err := time.Parse(ISODate, s); err == nil {
		return s, true
	}

	tokens := dateTokens(s)
	if d, ok := parseText(tokens, today); ok {
		return d, true
	}
	if d, ok := bareMonth(tokens, today); ok {
		return d, true
	}
	if d, ok := nextWeekday(s, today); ok {
		return d, true
	}
	for _, layout := range numericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), true
		}
	}
	return "", false
}

// dateTokens keeps month names (translated to English) and short numbers,
// dropping ordinals, punctuation and filler words.
func dateTokens(s string) []string {
	s = ordinalRe.ReplaceAllString(s, "$1")
	s = strings.NewReplacer(",", " ", ";", " ", "-", " ").Replace(s)
	var out []string
	for _, tok := range strings.Fields(s) {
		if strings.HasSuffix(tok, ".") && digitsRe.MatchString(strings.TrimSuffix(tok, ".")) {
			tok = strings.TrimSuffix(tok, ".")
		}
		if en, ok := foreignMonths[tok]; ok {
			tok = en
		}
		if _, ok := englishMonths[tok]; ok || digitsRe.MatchString(tok) {
			out = append(out, tok)
		}
	}
	return out
}

func parseText(tokens []string, today time.Time) (string, bool) {
	if len(tokens) < 2 {
		return "", false
	}
	joined := strings.Join(tokens, " ")
	for _, l := range textLayouts {
		t, err := time.Parse(l.layout, joined)
		if err != nil {
			continue
		}
		if l.hasYear {
			return t.Format(ISODate), true
		}
		d := time.Date(rolloverYear(t.Month(), today), t.Month(), t.Day(), 0, 0, 0, 0, today.Location())
		if d.Day() != t.Day() {
			// e.g. 29 February in a non-leap year
			return "", false
		}
		return d.Format(ISODate), true
	}
	return "", false
}

func bareMonth(tokens []string, today time.Time) (string, bool) {
	if len(tokens) != 1 {
		return "", false
	}
	m, ok := englishMonths[tokens[0]]
	if !ok {
		return "", false
	}
	return time.Date(rolloverYear(m, today), m, 1, 0, 0, 0, 0, today.Location()).Format(ISODate), true
}

func nextWeekday(s string, today time.Time) (string, bool) {
	for _, tok := range strings.Fields(s) {
		wd, ok := weekdays[strings.Trim(tok, ".,!?")]
		if !ok {
			continue
		}
		ahead := (int(wd) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return today.AddDate(0, 0, ahead).Format(ISODate), true
	}
	return "", false
}

// rolloverYear picks next year when the month has already passed this year.
func rolloverYear(m time.Month, today time.Time) int {
	if m < today.Month() {
		return today.Year() + 1
	}
	return today.Year()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsPast reports whether the canonical date lies before now's calendar day.
func IsPast(date string, now time.Time) bool {
	t, err := time.ParseInLocation(ISODate, date, now.Location())
	if err != nil {
		return false
	}
	return t.Before(midnight(now))
}
