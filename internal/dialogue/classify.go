package dialogue

import (
	"strings"
	"unicode"

	"tablecall/agent/internal/booking"
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var (
	confirmWords = set("yes", "yeah", "yep", "yup", "confirm", "confirmed", "ok", "okay", "correct", "sure", "right", "absolutely", "definitely")
	cancelWords  = set("no", "nope", "nah", "cancel", "wrong", "incorrect", "change")

	// ackWords carry no booking information on their own.
	ackWords = set("ok", "okay", "sure", "great", "thanks", "thank", "you", "alright", "cool", "fine",
		"yes", "yeah", "yep", "yup", "got", "it", "perfect", "sounds", "good", "awesome", "nice",
		"right", "uh", "um", "hmm", "mm", "oh", "so", "well", "lovely", "wonderful", "excellent")

	// fillers may accompany a confirmation without turning it into a correction.
	fillers = set("that", "that's", "thats", "is", "looks", "all", "please", "go", "ahead", "it", "do",
		"book", "the", "this", "everything", "fine", "good", "great", "perfect", "thanks", "thank", "you", "so", "very", "much")

	// fieldWords name a collection state the user wants to revisit.
	fieldWords = map[string]booking.State{
		"guest": booking.CollectingGuests, "guests": booking.CollectingGuests, "people": booking.CollectingGuests,
		"party": booking.CollectingGuests, "person": booking.CollectingGuests, "persons": booking.CollectingGuests,
		"date": booking.CollectingDate, "day": booking.CollectingDate,
		"time": booking.CollectingTime, "hour": booking.CollectingTime,
		"cuisine": booking.CollectingCuisine, "food": booking.CollectingCuisine,
		"request": booking.CollectingRequests, "requests": booking.CollectingRequests,
		"allergy": booking.CollectingRequests, "allergies": booking.CollectingRequests, "dietary": booking.CollectingRequests,
		"seating": booking.SuggestingSeating, "seat": booking.SuggestingSeating, "indoor": booking.SuggestingSeating,
		"outdoor": booking.SuggestingSeating, "inside": booking.SuggestingSeating, "outside": booking.SuggestingSeating,
		"email": booking.CollectingEmail, "mail": booking.CollectingEmail,
	}

	declinePhrases = []string{
		"no special", "no dietary", "no requests", "no request", "no allergies", "not allergic",
		"no preference", "no thank", "no, we", "nothing", "not really", "doesn't matter",
		"does not matter", "don't mind", "dont mind", "skip", "none", "anything is fine",
		"anything's fine", "whatever", "no email", "don't need", "dont need",
	}
	declineFirst = set("no", "nope", "nah", "none", "nothing", "skip")

	anotherPhrases = []string{"another booking", "another reservation", "new booking", "new reservation",
		"book again", "one more", "another table", "start over", "book another"}
	closingWords = set("no", "nope", "nah", "bye", "goodbye", "thanks", "thank", "that's", "all", "done")
)

// words lower-cases and splits into whole-word tokens; apostrophes stay
// inside words.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func anyIn(tokens []string, s map[string]bool) bool {
	for _, t := range tokens {
		if s[t] {
			return true
		}
	}
	return false
}

func allIn(tokens []string, sets ...map[string]bool) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		ok := false
		for _, s := range sets {
			if s[t] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// isAck reports an utterance made only of acknowledgment tokens.
func isAck(text string) bool { return allIn(words(text), ackWords) }

// isPureConfirm reports a confirmation with nothing that could be a change.
func isPureConfirm(tokens []string) bool {
	return anyIn(tokens, confirmWords) && !anyIn(tokens, cancelWords) && allIn(tokens, confirmWords, ackWords, fillers)
}

func hasConfirm(tokens []string) bool {
	return anyIn(tokens, confirmWords) && !anyIn(tokens, cancelWords)
}

func hasCancel(tokens []string) bool { return anyIn(tokens, cancelWords) }

// namedField returns the collection state a correction points at.
func namedField(tokens []string) (booking.State, bool) {
	for _, t := range tokens {
		if s, ok := fieldWords[t]; ok {
			return s, true
		}
	}
	return "", false
}

// names reports whether any token refers to the collection state s.
func names(tokens []string, s booking.State) bool {
	for _, t := range tokens {
		if fieldWords[t] == s {
			return true
		}
	}
	return false
}

// isDecline reports an explicit "no" to an optional question.
func isDecline(text string) bool {
	l := strings.ToLower(strings.TrimSpace(text))
	toks := words(l)
	if len(toks) > 0 && declineFirst[toks[0]] {
		return true
	}
	for _, p := range declinePhrases {
		if strings.Contains(l, p) {
			return true
		}
	}
	return false
}

func wantsAnother(text string) bool {
	l := strings.ToLower(text)
	for _, p := range anotherPhrases {
		if strings.Contains(l, p) {
			return true
		}
	}
	return false
}

func isClosing(tokens []string) bool { return anyIn(tokens, closingWords) }

// seatingWord reads an explicit indoor/outdoor answer.
func seatingWord(tokens []string) (string, bool) {
	for _, t := range tokens {
		switch t {
		case "outdoor", "outdoors", "outside", "terrace", "patio", "garden":
			return booking.Outdoor, true
		case "indoor", "indoors", "inside":
			return booking.Indoor, true
		}
	}
	return "", false
}
