package dialogue

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tablecall/agent/internal/booking"
)

// onCollecting handles a turn in any collection state.
func (m *Machine) onCollecting(ctx context.Context, text string) out {
	st := m.bc.State
	if m.revisit != st && m.settled(st) {
		// the field was answered earlier; move to what is still missing
		if p := m.walk(ctx); p != nil {
			return out{prompt: *p, progress: true}
		}
		st = m.bc.State
	}
	if isAck(text) {
		return m.onAck(ctx, st, words(text))
	}

	r := m.apply(m.extract(ctx, text), text, st)
	if !r.any() {
		if r.rejection != nil {
			return out{prompt: *r.rejection, forced: true}
		}
		return out{prompt: prompt{st, "clarify", clarification(st)}}
	}
	if st == booking.SuggestingSeating && !m.bc.SeatingConfirmed {
		// answering anything else takes the suggestion
		m.acceptSeating()
	}
	return m.advance(ctx, r)
}

// onAck handles an utterance with no booking information.
func (m *Machine) onAck(ctx context.Context, st booking.State, tokens []string) out {
	switch {
	case st == booking.SuggestingSeating:
		m.acceptSeating()
		return m.advance(ctx, applied{})
	case m.revisit == st && m.settled(st):
		// keep the value already on file
		return m.advance(ctx, applied{})
	case st == booking.CollectingEmail && anyIn(tokens, confirmWords):
		return out{prompt: prompt{st, "email_address", askEmailAddr}, forced: true}
	case st == booking.CollectingRequests && anyIn(tokens, confirmWords):
		return out{prompt: prompt{st, "requests_detail", askRequestText}, forced: true}
	}
	return out{prompt: m.ask(st), forced: true}
}

func (m *Machine) onConfirming(ctx context.Context, text string) out {
	tokens := words(text)
	if isPureConfirm(tokens) {
		return m.createBooking(ctx)
	}

	r := m.apply(m.extract(ctx, text), text, booking.Confirming)
	if len(r.keys) > 0 {
		return m.advance(ctx, r)
	}
	if r.rejection != nil {
		return out{prompt: *r.rejection, forced: true}
	}
	if hasConfirm(tokens) {
		return m.createBooking(ctx)
	}
	if s, ok := namedField(tokens); ok {
		return m.loopBack(s)
	}
	if hasCancel(tokens) {
		return out{prompt: prompt{booking.Confirming, "what_change", askWhatChange}, forced: true}
	}
	return out{prompt: prompt{booking.Confirming, "confirm_clarify", msgConfirmAsk}}
}

// onError handles the turn after a failed booking attempt.
func (m *Machine) onError(ctx context.Context, text string) out {
	tokens := words(text)
	if wantsAnother(text) {
		return m.restart(ctx)
	}
	if m.last.key == "not_created" && isClosing(tokens) {
		return out{prompt: prompt{booking.Error, "goodbye", msgGoodbye}}
	}

	r := m.apply(m.extract(ctx, text), text, booking.Error)
	if len(r.keys) > 0 {
		return m.advance(ctx, r)
	}
	if r.rejection != nil {
		return out{prompt: *r.rejection, forced: true}
	}
	if s, ok := namedField(tokens); ok {
		return m.loopBack(s)
	}

	conflict := isConflict(booking.Str(m.bc.ErrorMessage))
	switch {
	case hasConfirm(tokens) && conflict:
		return out{prompt: prompt{booking.Error, "alternate", msgAlternate}, forced: true}
	case hasConfirm(tokens):
		m.log.Info("retrying booking")
		return m.createBooking(ctx)
	case hasCancel(tokens):
		return out{prompt: prompt{booking.Error, "not_created", msgNotCreated}, forced: true}
	case conflict:
		return out{prompt: prompt{booking.Error, "alternate", msgAlternate}}
	}
	return out{prompt: prompt{booking.Error, "retry", msgRetryAsk}}
}

func (m *Machine) onCompleted(ctx context.Context, text string) out {
	tokens := words(text)
	switch {
	case wantsAnother(text):
		return m.restart(ctx)
	case isClosing(tokens):
		return out{prompt: prompt{booking.Completed, "goodbye", msgGoodbye}}
	case hasConfirm(tokens):
		return m.restart(ctx)
	case isAck(text):
		return out{prompt: prompt{booking.Completed, "goodbye", msgGoodbye}}
	}
	return out{prompt: prompt{booking.Completed, "already_booked", alreadyBooked(m.bc)}}
}

// loopBack re-opens a collection state from confirmation. The value on file
// is kept until the caller gives a new one.
func (m *Machine) loopBack(s booking.State) out {
	if s == booking.SuggestingSeating {
		m.bc.SeatingConfirmed = false
	}
	m.revisit = s
	m.transition(s)
	m.log.Info("revisiting field", zap.String("state", string(s)))
	return out{prompt: m.ask(s), forced: true, progress: true}
}

// restart begins a new booking in the same session.
func (m *Machine) restart(ctx context.Context) out {
	m.log.Info("starting another booking", zap.String("previous_booking_id", booking.Str(m.bc.BookingID)))
	greeting := m.startLocked(ctx)
	return out{prompt: prompt{booking.CollectingGuests, "greeting", greeting}, forced: true, progress: true}
}

// isConflict reports a backend failure caused by a taken slot.
func isConflict(msg string) bool {
	l := strings.ToLower(msg)
	return strings.Contains(l, "time slot") || strings.Contains(l, "already booked")
}
