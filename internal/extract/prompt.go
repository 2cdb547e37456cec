package extract

import (
	"fmt"
	"strconv"
	"strings"

	"tablecall/agent/internal/booking"
)

// SystemPrompt instructs the model to answer with a single JSON object.
const SystemPrompt = `You extract restaurant booking details from what a caller said.
Answer with one JSON object and nothing else. Only include fields the caller
mentioned in this message. Never invent values.`

// BuildPrompt renders the per-turn user prompt: the utterance, what is already
// known, the pending step and the expected keys.
func BuildPrompt(req Request) string {
	c := req.Context
	var b strings.Builder
	fmt.Fprintf(&b, "Extract booking information from this message: %q\n\n", req.Utterance)
	if req.Today != "" {
		fmt.Fprintf(&b, "Today is %s.\n\n", req.Today)
	}
	b.WriteString("Current context:\n")
	guests := "Not set"
	if c.NumberOfGuests != nil {
		guests = strconv.Itoa(*c.NumberOfGuests)
	}
	fmt.Fprintf(&b, "- Number of guests: %s\n", guests)
	fmt.Fprintf(&b, "- Date: %s\n", orNotSet(c.BookingDate))
	fmt.Fprintf(&b, "- Time: %s\n", orNotSet(c.BookingTime))
	fmt.Fprintf(&b, "- Cuisine: %s\n", orNotSet(c.CuisinePreference))
	fmt.Fprintf(&b, "- Special requests: %s\n", orNotSet(c.SpecialRequests))
	fmt.Fprintf(&b, "- Seating: %s\n", orNotSet(c.SeatingPreference))
	fmt.Fprintf(&b, "- Email: %s\n\n", orNotSet(c.CustomerEmail))
	fmt.Fprintf(&b, "Current step: %s\n\n", req.State)
	b.WriteString(`Return ONLY a JSON object with any new information:
{
  "number_of_guests": <number or null>,
  "booking_date": "<YYYY-MM-DD; convert today/tomorrow/weekdays to a real date>",
  "booking_time": "<HH:MM in 24-hour format or null>",
  "cuisine_preference": "<string or null>",
  "special_requests": "<string or null>",
  "seating_preference": "<'indoor' or 'outdoor' or null>",
  "customer_email": "<email address or null>"
}

Rules:
- Never return the words "today" or "tomorrow" as a date.
- If the caller says no to the question of the current step, set that field to "".
- Omit fields that are not mentioned.
`)
	return b.String()
}

func orNotSet(p *string) string {
	switch {
	case p == nil:
		return "Not set"
	case *p == "":
		return "None"
	}
	return *p
}

// ForState returns the extraction key a state is waiting for, or "".
func ForState(s booking.State) string {
	switch s {
	case booking.Greeting, booking.CollectingGuests:
		return KeyGuests
	case booking.CollectingDate:
		return KeyDate
	case booking.CollectingTime:
		return KeyTime
	case booking.CollectingCuisine:
		return KeyCuisine
	case booking.CollectingRequests:
		return KeyRequests
	case booking.SuggestingSeating:
		return KeySeating
	case booking.CollectingEmail:
		return KeyEmail
	}
	return ""
}
