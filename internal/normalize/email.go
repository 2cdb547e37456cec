package normalize

import (
	"regexp"
	"strings"
)

const emailPattern = `[a-zA-Z0-9._%+-]+@(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}`

var (
	emailRe     = regexp.MustCompile(`^` + emailPattern + `$`)
	emailScanRe = regexp.MustCompile(emailPattern)
	spokenAtRe  = regexp.MustCompile(`\s+at\s+`)
	spokenDotRe = regexp.MustCompile(`\s+dot\s+`)
)

// ValidEmail reports whether s is a plausible address.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && emailRe.MatchString(s)
}

// Email returns the first valid address found in text, lower-cased.
// Spoken addresses ("jane dot doe at example dot com") are rewritten first.
func Email(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	if !strings.Contains(text, "@") {
		lower := strings.ToLower(text)
		if strings.Contains(lower, " at ") && strings.Contains(lower, " dot ") {
			text = spokenDotRe.ReplaceAllString(spokenAtRe.ReplaceAllString(lower, "@"), ".")
		}
	}
	for _, m := range emailScanRe.FindAllString(text, -1) {
		if ValidEmail(m) {
			return strings.ToLower(strings.TrimSpace(m)), true
		}
	}
	return "", false
}
