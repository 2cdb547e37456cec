package dialogue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/tools"
)

// edge is the outgoing transition of a state: once field is known the flow
// moves to next. A state without a field always moves on.
type edge struct {
	field string
	next  booking.State
}

// transitions is the booking flow in order.
var transitions = map[booking.State]edge{
	booking.CollectingGuests:   {field: extract.KeyGuests, next: booking.CollectingDate},
	booking.CollectingDate:     {field: extract.KeyDate, next: booking.FetchingWeather},
	booking.FetchingWeather:    {next: booking.SuggestingSeating},
	booking.SuggestingSeating:  {field: extract.KeySeating, next: booking.CollectingTime},
	booking.CollectingTime:     {field: extract.KeyTime, next: booking.CollectingCuisine},
	booking.CollectingCuisine:  {field: extract.KeyCuisine, next: booking.CollectingRequests},
	booking.CollectingRequests: {field: extract.KeyRequests, next: booking.CollectingEmail},
	booking.CollectingEmail:    {field: extract.KeyEmail, next: booking.Confirming},
}

// known reports whether the flow can move past a field. An empty optional
// field counts as known: it was asked and declined.
func (m *Machine) known(field string) bool {
	c := m.bc
	switch field {
	case "":
		return true
	case extract.KeyGuests:
		return c.NumberOfGuests != nil
	case extract.KeyDate:
		return c.BookingDate != nil
	case extract.KeyTime:
		return c.BookingTime != nil
	case extract.KeyCuisine:
		return c.CuisinePreference != nil
	case extract.KeyRequests:
		return c.SpecialRequests != nil
	case extract.KeySeating:
		return c.SeatingConfirmed
	case extract.KeyEmail:
		return !m.opts.CollectEmail || c.CustomerEmail != nil
	}
	return false
}

// settled reports whether a collection state has nothing left to ask.
func (m *Machine) settled(s booking.State) bool {
	e, ok := transitions[s]
	return ok && e.field != "" && m.known(e.field)
}

// walk runs the flow from the first collection state, skipping states whose
// field is known and running side effects on the way. It stops at the first
// state still waiting for input, or at confirmation. A non-nil prompt means a
// side effect already produced what to say.
func (m *Machine) walk(ctx context.Context) *prompt {
	state := booking.CollectingGuests
	for hops := 0; hops < len(transitions)+1; hops++ {
		switch state {
		case booking.FetchingWeather:
			if m.weatherStale() {
				m.transition(booking.FetchingWeather)
				m.opts.Frontend.StateUpdate(ctx, string(booking.FetchingWeather), "Checking the weather...")
				if p := m.fetchWeather(ctx); p != nil {
					m.transition(booking.SuggestingSeating)
					return p
				}
			}
		case booking.CollectingTime:
			if m.bc.BookingTime != nil {
				if p := m.timeEffects(ctx); p != nil {
					m.transition(booking.CollectingTime)
					return p
				}
			}
		case booking.Confirming:
			if !m.bc.IsComplete() {
				// unreachable while the table gates every required field
				m.log.Error("incomplete context reached confirmation")
				m.transition(booking.CollectingGuests)
				return nil
			}
			m.transition(booking.Confirming)
			return &prompt{booking.Confirming, "confirm", summary(m.bc, m.opts.CollectEmail)}
		}
		e := transitions[state]
		if !m.known(e.field) {
			m.transition(state)
			return nil
		}
		state = e.next
	}
	return nil
}

func (m *Machine) weatherStale() bool {
	return m.bc.BookingDate != nil && m.bc.WeatherDate != *m.bc.BookingDate
}

// fetchWeather looks up the forecast for the booking date. It returns the
// seating suggestion when the caller still has to answer it, nil when the
// seating was already settled and the refresh is silent.
func (m *Machine) fetchWeather(ctx context.Context) *prompt {
	date := *m.bc.BookingDate
	params := map[string]any{"date": date}
	if m.bc.BookingTime != nil {
		params["time"] = *m.bc.BookingTime
		m.weatherSlot = date + " " + *m.bc.BookingTime
	}
	res := m.runTool(ctx, tools.Weather, params)
	m.bc.WeatherDate = date

	w, ok := tools.ParseWeather(res.Data)
	if !res.Success || !ok {
		m.bc.WeatherInfo = nil
		if m.bc.SeatingConfirmed {
			return nil
		}
		m.bc.SeatingPreference = booking.Ptr(booking.Indoor)
		return &prompt{booking.SuggestingSeating, "weather_unavailable", msgWeatherDown}
	}
	m.bc.WeatherInfo = &w
	if m.bc.SeatingConfirmed {
		return nil
	}
	s := suggestSeating(w)
	if s.seating != "" {
		m.bc.SeatingPreference = booking.Ptr(s.seating)
	} else {
		m.bc.SeatingPreference = nil
	}
	m.log.Info("seating suggested",
		zap.String("condition", w.Condition),
		zap.Float64("temperature", w.Temperature),
		zap.String("seating", s.seating))
	return &prompt{booking.SuggestingSeating, "weather", s.text}
}

// timeEffects runs once per date/time pair: the availability check, then a
// weather refresh for the exact time. A taken slot clears the time and
// returns the prompt asking for another one.
func (m *Machine) timeEffects(ctx context.Context) *prompt {
	if m.bc.BookingDate == nil {
		return nil
	}
	date, at := *m.bc.BookingDate, *m.bc.BookingTime
	slot := date + " " + at
	if m.checkedSlot != slot {
		res := m.runTool(ctx, tools.CheckAvailability, map[string]any{"date": date, "time": at})
		if res.Success {
			if ok, conflicts := tools.Available(res.Data); !ok {
				m.log.Info("slot unavailable", zap.String("slot", slot), zap.Int("conflicts", conflicts))
				m.bc.BookingTime = nil
				return &prompt{booking.CollectingTime, "slot_taken", slotTaken(date, at)}
			}
		}
		m.checkedSlot = slot
	}
	if m.bc.WeatherDate == date && m.weatherSlot != slot {
		m.weatherSlot = slot
		res := m.runTool(ctx, tools.Weather, map[string]any{"date": date, "time": at})
		if w, ok := tools.ParseWeather(res.Data); res.Success && ok {
			m.bc.WeatherInfo = &w
		}
	}
	return nil
}

// advance moves the flow after fields were applied and builds the turn.
func (m *Machine) advance(ctx context.Context, r applied) out {
	m.revisit = ""
	o := out{notes: r.notes, progress: true}
	if p := m.walk(ctx); p != nil {
		o.prompt = *p
		return o
	}
	if r.rejection != nil && r.rejection.state == m.bc.State {
		o.prompt = *r.rejection
		o.forced = true
		return o
	}
	o.prompt = m.ask(m.bc.State)
	return o
}

// createBooking submits the confirmed context and, on success, sends the
// confirmation email once.
func (m *Machine) createBooking(ctx context.Context) out {
	if !m.bc.IsComplete() {
		return m.advance(ctx, applied{})
	}
	m.transition(booking.CreatingBooking)
	m.opts.Frontend.StateUpdate(ctx, string(booking.CreatingBooking), "Creating your booking...")

	res := m.runTool(ctx, tools.CreateBooking, m.bc.ToBookingData().Params())
	if !res.Success {
		metricBookings.WithLabelValues("error").Inc()
		msg := res.Error
		m.bc.ErrorMessage = &msg
		m.transition(booking.Error)
		if isConflict(msg) {
			return out{prompt: prompt{booking.Error, "conflict", msgConflict}, forced: true, progress: true}
		}
		return out{prompt: prompt{booking.Error, "booking_error", msgBookingError}, forced: true, progress: true}
	}

	metricBookings.WithLabelValues("ok").Inc()
	if id := tools.BookingID(res.Data); id != "" {
		m.bc.SetBookingID(id)
	} else {
		m.log.Warn("booking created without id")
	}
	m.bc.ErrorMessage = nil
	m.transition(booking.Completed)
	m.log.Info("booking created", zap.String("booking_id", booking.Str(m.bc.BookingID)))

	text := success(m.bc)
	if email := booking.Str(m.bc.CustomerEmail); email != "" && m.bc.BookingID != nil && !m.emailSent {
		m.emailSent = true
		r := m.runTool(ctx, tools.SendEmail, map[string]any{"bookingId": *m.bc.BookingID})
		if r.Success {
			text += fmt.Sprintf(" A confirmation email has been sent to %s.", email)
		} else {
			text += " I couldn't send the confirmation email right now, but your booking is confirmed."
		}
	}
	text += " Is there anything else I can help you with?"
	return out{prompt: prompt{booking.Completed, "success", text}, forced: true, progress: true}
}
