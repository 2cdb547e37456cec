package dialogue

import (
	"fmt"
	"strings"

	"tablecall/agent/internal/booking"
)

const (
	welcomeFmt     = "Hello! Welcome to %s. I'm here to help you make a reservation."
	askGuests      = "How many guests will be joining us today?"
	askDate        = "What date would you like to make a reservation for?"
	askTime        = "What time would you prefer? We're open from 11 AM to 10 PM."
	askCuisine     = "Do you have a cuisine preference? We offer Italian, Chinese, Indian, and more."
	askRequests    = "Any special requests or dietary restrictions we should know about?"
	askEmail       = "Would you like to receive a confirmation email? If yes, please provide your email address."
	askSeating     = "Would you prefer indoor or outdoor seating?"
	askWhatChange  = "What would you like to change? You can modify the date, time, number of guests, or any other details."
	askEmailAddr   = "Great, what email address should I send the confirmation to?"
	askRequestText = "Of course. What would you like us to know?"

	msgPastDate     = "That date has already passed. " + askDate
	msgOutsideHours = "We're open from 11 AM to 10 PM. What time would you prefer?"
	msgBadEmail     = "Sorry, that doesn't look like a valid email address. Could you say it again, or say no to skip?"
	msgWeatherDown  = "I'm having trouble checking the weather, but we can still proceed. Would you prefer indoor or outdoor seating?"
	msgConflict     = "I'm sorry, but that time slot is already booked. Would you like to choose a different date or time?"
	msgBookingError = "I'm sorry, there was an error creating your booking. Please try again or contact us directly."
	msgAlternate    = "Which date or time would you like instead?"
	msgRetryAsk     = "Would you like me to try creating the booking again?"
	msgNotCreated   = "No problem, the booking was not created. Is there anything else I can help you with?"
	msgConfirmAsk   = "Sorry, I didn't catch that. Say 'yes' to confirm or tell me what you'd like to change."
	msgGoodbye      = "Thank you for booking with us. Enjoy your meal!"
)

// question is the pending question of a collection state.
func question(s booking.State) string {
	switch s {
	case booking.Greeting, booking.CollectingGuests:
		return askGuests
	case booking.CollectingDate:
		return askDate
	case booking.CollectingTime:
		return askTime
	case booking.CollectingCuisine:
		return askCuisine
	case booking.CollectingRequests:
		return askRequests
	case booking.CollectingEmail:
		return askEmail
	case booking.SuggestingSeating:
		return askSeating
	}
	return ""
}

// clarification is asked when nothing usable was heard for the pending field.
func clarification(s booking.State) string {
	switch s {
	case booking.Greeting, booking.CollectingGuests:
		return "Sorry, I didn't catch the number of guests. How many people will be dining?"
	case booking.CollectingDate:
		return "Sorry, I didn't catch the date. Which day would you like to book, for example tomorrow or December 27th?"
	case booking.CollectingTime:
		return "Sorry, I didn't catch the time. What time would you like, for example 7 PM?"
	case booking.CollectingCuisine:
		return "Sorry, I didn't catch that. Do you have a cuisine preference, or is anything fine?"
	case booking.CollectingRequests:
		return "Sorry, I didn't catch that. Do you have any special requests, or should I note none?"
	case booking.CollectingEmail:
		return "Sorry, I didn't catch an email address. Could you say it again, or say no to skip?"
	case booking.SuggestingSeating:
		return "Sorry, would you prefer indoor or outdoor seating?"
	}
	return "Sorry, I didn't catch that. Could you say it again?"
}

func slotTaken(date, at string) string {
	return fmt.Sprintf("I'm sorry, %s on %s is fully booked. What other time would work for you?", at, date)
}

func orDefault(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// summary renders every collected field; empty optional fields are spelled
// out rather than omitted. The email line appears whenever email is collected.
func summary(c *booking.Context, withEmail bool) string {
	d := c.ToBookingData()
	var b strings.Builder
	b.WriteString("Let me confirm your booking details:\n\n")
	fmt.Fprintf(&b, "- Number of guests: %d\n", d.NumberOfGuests)
	fmt.Fprintf(&b, "- Date: %s\n", d.BookingDate)
	fmt.Fprintf(&b, "- Time: %s\n", d.BookingTime)
	fmt.Fprintf(&b, "- Cuisine preference: %s\n", orDefault(c.CuisinePreference, "Not specified"))
	fmt.Fprintf(&b, "- Special requests: %s\n", orDefault(c.SpecialRequests, "None"))
	fmt.Fprintf(&b, "- Seating: %s\n", d.SeatingPreference)
	if withEmail || d.CustomerEmail != "" {
		fmt.Fprintf(&b, "- Confirmation email: %s\n", orDefault(c.CustomerEmail, "None"))
	}
	b.WriteString("\nDoes this look correct? Say 'yes' to confirm or let me know if you'd like to change anything.")
	return b.String()
}

func success(c *booking.Context) string {
	var b strings.Builder
	b.WriteString("Perfect! Your booking has been confirmed.")
	if c.BookingID != nil {
		fmt.Fprintf(&b, " Your booking ID is %s.", *c.BookingID)
	}
	guests := "your party"
	if c.NumberOfGuests != nil {
		guests = fmt.Sprintf("%d guests", *c.NumberOfGuests)
		if *c.NumberOfGuests == 1 {
			guests = "1 guest"
		}
	}
	fmt.Fprintf(&b, " We're looking forward to serving %s on %s at %s.", guests, booking.Str(c.BookingDate), booking.Str(c.BookingTime))
	return b.String()
}

func alreadyBooked(c *booking.Context) string {
	if c.BookingID != nil {
		return fmt.Sprintf("Your booking %s is confirmed. Would you like to make another booking?", *c.BookingID)
	}
	return "Your booking is confirmed. Would you like to make another booking?"
}

// changed acknowledges a correction to a field that already had a value.
func changed(field, value string) string {
	return fmt.Sprintf("Got it, I've changed the %s to %s.", field, value)
}
