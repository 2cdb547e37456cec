package dialogue

import (
	"strconv"
	"strings"

	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/normalize"
)

// Opening hours in minutes after midnight.
const (
	openMin  = 11 * 60
	closeMin = 22 * 60
)

// applied is the effect of one extraction on the context.
type applied struct {
	keys []string
	// echoed is set when the pending field was repeated unchanged.
	echoed bool
	// notes acknowledge corrections to fields that already had a value.
	notes []string
	// rejection is the prompt for a value heard but refused.
	rejection *prompt
}

func (a applied) any() bool { return len(a.keys) > 0 || a.echoed }

// fallbacks fills gaps the extractor left for the pending field from the raw
// utterance, and drops declines aimed at fields nobody asked about. Guests,
// date and time are only read from raw text when the extractor found nothing,
// since digits in the utterance may belong to another field.
func (m *Machine) fallbacks(e extract.Extraction, text string, st booking.State) extract.Extraction {
	pending := extract.ForState(st)
	tokens := words(text)
	failed := e.Empty()

	switch pending {
	case extract.KeyGuests:
		if failed {
			if n, ok := normalize.Number(text); ok && n > 0 {
				e.Guests = &n
			}
		}
	case extract.KeyDate:
		if failed {
			if d, ok := normalize.Date(text, m.now()); ok {
				e.Date = &d
			}
		}
	case extract.KeyTime:
		if failed {
			if t, ok := normalize.Time(text); ok {
				e.Time = &t
			}
		}
	case extract.KeySeating:
		if e.Seating == nil {
			e.Seating = m.seatingAnswer(text, tokens)
		}
	}

	if e.Email == nil || (*e.Email != "" && !normalize.ValidEmail(*e.Email)) {
		if addr, ok := normalize.Email(text); ok {
			e.Email = &addr
		}
	}

	switch pending {
	case extract.KeyCuisine, extract.KeyRequests, extract.KeyEmail:
		if p := m.field(&e, pending); *p == nil && isDecline(text) {
			*p = booking.Ptr("")
		}
	}

	// An empty string is a decline; it only answers the pending question,
	// or clears a value the user names during a correction.
	correcting := st == booking.Confirming || st == booking.Error
	for _, k := range []string{extract.KeyCuisine, extract.KeyRequests, extract.KeyEmail} {
		p := m.field(&e, k)
		if *p == nil || **p != "" || k == pending {
			continue
		}
		if correcting && m.current(k) != "" && names(tokens, transitionOf(k)) {
			continue
		}
		*p = nil
	}
	return e
}

// seatingAnswer reads the reply to a seating suggestion.
func (m *Machine) seatingAnswer(text string, tokens []string) *string {
	if s, ok := seatingWord(tokens); ok {
		return &s
	}
	l := strings.ToLower(text)
	for _, p := range []string{"either", "no preference", "don't mind", "dont mind", "doesn't matter", "whatever"} {
		if strings.Contains(l, p) {
			return booking.Ptr(orDefault(m.bc.SeatingPreference, booking.Indoor))
		}
	}
	if hasCancel(tokens) {
		if booking.Str(m.bc.SeatingPreference) == booking.Indoor {
			return booking.Ptr(booking.Outdoor)
		}
		return booking.Ptr(booking.Indoor)
	}
	return nil
}

// field returns the extraction slot for an optional text key.
func (m *Machine) field(e *extract.Extraction, key string) **string {
	switch key {
	case extract.KeyCuisine:
		return &e.Cuisine
	case extract.KeyRequests:
		return &e.Requests
	case extract.KeyEmail:
		return &e.Email
	}
	panic("dialogue: no optional field " + key)
}

// transitionOf is the collection state that asks for a field.
func transitionOf(key string) booking.State {
	for s, e := range transitions {
		if e.field == key {
			return s
		}
	}
	return ""
}

func (m *Machine) current(key string) string {
	switch key {
	case extract.KeyCuisine:
		return booking.Str(m.bc.CuisinePreference)
	case extract.KeyRequests:
		return booking.Str(m.bc.SpecialRequests)
	case extract.KeyEmail:
		return booking.Str(m.bc.CustomerEmail)
	}
	return ""
}

// apply writes an extraction into the context. A field is only written when
// it is unset or the new value differs, so a re-echoed value never counts as
// progress.
func (m *Machine) apply(e extract.Extraction, text string, st booking.State) applied {
	e = m.fallbacks(e, text, st)
	pending := extract.ForState(st)
	var r applied
	now := m.now()

	set := func(key, label string, cur **string, v string) {
		switch {
		case *cur != nil && strings.EqualFold(**cur, v):
			if key == pending {
				r.echoed = true
			}
			return
		case *cur != nil && key != pending && v != "":
			r.notes = append(r.notes, changed(label, v))
		}
		*cur = booking.Ptr(v)
		r.keys = append(r.keys, key)
	}
	reject := func(key, msg string) {
		if r.rejection == nil {
			r.rejection = &prompt{st, "invalid:" + key, msg}
		}
	}

	if e.Guests != nil && *e.Guests > 0 {
		n := *e.Guests
		switch cur := m.bc.NumberOfGuests; {
		case cur != nil && *cur == n:
			if pending == extract.KeyGuests {
				r.echoed = true
			}
		default:
			if cur != nil && pending != extract.KeyGuests {
				r.notes = append(r.notes, changed("number of guests", strconv.Itoa(n)))
			}
			m.bc.NumberOfGuests = &n
			r.keys = append(r.keys, extract.KeyGuests)
		}
	}

	if e.Date != nil {
		if d, ok := normalize.Date(*e.Date, now); ok {
			if normalize.IsPast(d, now) {
				reject(extract.KeyDate, msgPastDate)
			} else {
				set(extract.KeyDate, "date", &m.bc.BookingDate, d)
			}
		}
	}

	if e.Time != nil {
		if t, ok := normalize.Time(*e.Time); ok {
			if mins := minutes(t); mins < openMin || mins > closeMin {
				reject(extract.KeyTime, msgOutsideHours)
			} else {
				set(extract.KeyTime, "time", &m.bc.BookingTime, t)
			}
		}
	}

	if e.Cuisine != nil {
		set(extract.KeyCuisine, "cuisine preference", &m.bc.CuisinePreference, strings.TrimSpace(*e.Cuisine))
	}
	if e.Requests != nil {
		set(extract.KeyRequests, "special requests", &m.bc.SpecialRequests, strings.TrimSpace(*e.Requests))
	}

	if e.Email != nil {
		addr := strings.ToLower(strings.TrimSpace(*e.Email))
		switch {
		case addr == "" || normalize.ValidEmail(addr):
			set(extract.KeyEmail, "email", &m.bc.CustomerEmail, addr)
		case pending == extract.KeyEmail:
			reject(extract.KeyEmail, msgBadEmail)
		}
	}

	if e.Seating != nil && (*e.Seating == booking.Indoor || *e.Seating == booking.Outdoor) {
		v := *e.Seating
		if m.bc.SeatingConfirmed && booking.Str(m.bc.SeatingPreference) == v {
			if pending == extract.KeySeating {
				r.echoed = true
			}
		} else {
			if m.bc.SeatingConfirmed && pending != extract.KeySeating {
				r.notes = append(r.notes, changed("seating", v))
			}
			m.bc.SeatingPreference = booking.Ptr(v)
			m.bc.SeatingConfirmed = true
			r.keys = append(r.keys, extract.KeySeating)
		}
	}
	return r
}

// acceptSeating takes the suggested seating, indoor when none was suggested.
func (m *Machine) acceptSeating() {
	if m.bc.SeatingPreference == nil || *m.bc.SeatingPreference == "" {
		m.bc.SeatingPreference = booking.Ptr(booking.Indoor)
	}
	m.bc.SeatingConfirmed = true
}

func minutes(hhmm string) int {
	if len(hhmm) != 5 {
		return -1
	}
	h, err1 := strconv.Atoi(hhmm[:2])
	mm, err2 := strconv.Atoi(hhmm[3:])
	if err1 != nil || err2 != nil {
		return -1
	}
	return h*60 + mm
}
