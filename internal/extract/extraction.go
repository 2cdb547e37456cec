// Package extract turns a user utterance into a typed partial booking update.
//
// The LLM call sits behind Completer; Extractor is what the dialogue machine
// depends on, and is satisfied either in-process (LLM) or over gRPC (Client).
package extract

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/normalize"
)

// JSON keys of an extraction result.
const (
	KeyGuests   = "number_of_guests"
	KeyDate     = "booking_date"
	KeyTime     = "booking_time"
	KeyCuisine  = "cuisine_preference"
	KeyRequests = "special_requests"
	KeySeating  = "seating_preference"
	KeyEmail    = "customer_email"
)

// ErrNoJSON is returned when the model answer carries no JSON object.
var ErrNoJSON = errors.New("extract: no json object in model output")

// Extraction is a partial update. A nil field was not mentioned; a non-nil
// empty string means the user explicitly declined.
type Extraction struct {
	Guests   *int
	Date     *string
	Time     *string
	Cuisine  *string
	Requests *string
	Seating  *string
	Email    *string
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool {
	return e.Guests == nil && e.Date == nil && e.Time == nil && e.Cuisine == nil &&
		e.Requests == nil && e.Seating == nil && e.Email == nil
}

// Request carries everything the extractor sees for one turn.
type Request struct {
	Utterance string
	State     booking.State
	Today     string
	Context   booking.Context
}

// Extractor produces an Extraction for an utterance.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Extraction, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, req Request) (Extraction, error)

func (f ExtractorFunc) Extract(ctx context.Context, req Request) (Extraction, error) {
	return f(ctx, req)
}

// ParseExtraction reads the JSON object embedded in raw model output. Prose
// around the object is ignored; "null" strings are treated as absent and
// numbers given as strings or words are accepted for the guest count.
func ParseExtraction(raw string) (Extraction, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Extraction{}, ErrNoJSON
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &m); err != nil {
		return Extraction{}, errors.Wrap(err, "extract: decode model output")
	}
	return FromMap(m), nil
}

// FromMap builds an Extraction from decoded JSON.
func FromMap(m map[string]any) Extraction {
	var e Extraction
	e.Guests = guestsValue(m[KeyGuests])
	e.Date = stringValue(m[KeyDate])
	e.Time = stringValue(m[KeyTime])
	e.Cuisine = stringValue(m[KeyCuisine])
	e.Requests = stringValue(m[KeyRequests])
	e.Seating = seatingValue(m[KeySeating])
	e.Email = stringValue(m[KeyEmail])
	return e
}

// Map is the inverse of FromMap; absent fields are omitted.
func (e Extraction) Map() map[string]any {
	m := map[string]any{}
	if e.Guests != nil {
		m[KeyGuests] = *e.Guests
	}
	put := func(k string, v *string) {
		if v != nil {
			m[k] = *v
		}
	}
	put(KeyDate, e.Date)
	put(KeyTime, e.Time)
	put(KeyCuisine, e.Cuisine)
	put(KeyRequests, e.Requests)
	put(KeySeating, e.Seating)
	put(KeyEmail, e.Email)
	return m
}

func stringValue(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "n/a":
		return nil
	}
	return &s
}

func guestsValue(v any) *int {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			n = i
		} else if i, ok := normalize.Number(s); ok {
			n = i
		}
	}
	if n <= 0 {
		return nil
	}
	return &n
}

func seatingValue(v any) *string {
	s := stringValue(v)
	if s == nil {
		return nil
	}
	l := strings.ToLower(*s)
	switch {
	case strings.Contains(l, "out"), strings.Contains(l, "terrace"), strings.Contains(l, "patio"):
		return booking.Ptr(booking.Outdoor)
	case strings.Contains(l, "in"):
		return booking.Ptr(booking.Indoor)
	}
	return nil
}
