package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockRe = regexp.MustCompile(`(\d{1,2})(?:\s*[:.h]\s*(\d{2}))?\s*(a\.?\s?m\.?|p\.?\s?m\.?)?`)

var eveningWords = []string{"evening", "tonight", "night", "afternoon"}

// Time normalizes a spoken or written time of day to 24-hour HH:MM.
func Time(text string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "", "null", "none":
		return "", false
	case "noon", "midday":
		return "12:00", true
	case "midnight":
		return "00:00", true
	}

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	min := 0
	if m[2] != "" {
		if min, err = strconv.Atoi(m[2]); err != nil {
			return "", false
		}
	}
	suffix := strings.NewReplacer(".", "", " ", "").Replace(m[3])
	if suffix == "" && h < 12 {
		for _, w := range eveningWords {
			if strings.Contains(s, w) {
				suffix = "pm"
				break
			}
		}
		// Service runs 11:00-22:00, so "7" or "7:30" means the evening. A
		// leading zero ("07:30") is read as a 24-hour clock.
		if suffix == "" && h >= 1 && h <= 10 && m[1][0] != '0' {
			suffix = "pm"
		}
	}
	switch suffix {
	case "pm":
		if h < 1 || h > 12 {
			return "", false
		}
		if h != 12 {
			h += 12
		}
	case "am":
		if h < 1 || h > 12 {
			return "", false
		}
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || min > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, min), true
}
