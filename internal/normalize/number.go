package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`\d+`)

// numberWords is indexed by value.
var numberWords = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen",
	"eighteen", "nineteen", "twenty",
}

// Number pulls an integer out of free text: digits first, then a number word.
// Words are matched as substrings from the largest value down so "seventeen"
// wins over "seven".
func Number(text string) (int, bool) {
	if m := numberRe.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n, true
		}
	}
	lower := strings.ToLower(text)
	for v := len(numberWords) - 1; v >= 0; v-- {
		if strings.Contains(lower, numberWords[v]) {
			return v, true
		}
	}
	return 0, false
}
