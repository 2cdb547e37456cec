package dialogue

import (
	"fmt"
	"strings"

	"tablecall/agent/internal/booking"
)

// suggestion is what the weather says about seating. An empty seating means
// the user has to choose.
type suggestion struct {
	seating string
	text    string
}

func suggestSeating(w booking.Weather) suggestion {
	cond := strings.ToLower(w.Condition)
	desc := strings.ToLower(strings.TrimSpace(w.Description))
	if desc == "" {
		desc = cond
	}
	switch {
	case (strings.Contains(cond, "clear") || strings.Contains(cond, "sun")) && w.Temperature > 20:
		return suggestion{
			seating: booking.Outdoor,
			text:    "The weather looks perfect for outdoor dining! It's sunny and warm. Would you prefer outdoor seating?",
		}
	case strings.Contains(cond, "rain") || strings.Contains(cond, "storm") || strings.Contains(cond, "snow") ||
		strings.Contains(cond, "thunder") || strings.Contains(cond, "drizzle") || w.Temperature < 15:
		return suggestion{
			seating: booking.Indoor,
			text:    fmt.Sprintf("The weather forecast shows %s. I'd recommend our cozy indoor area for your comfort. Does indoor seating work for you?", desc),
		}
	}
	return suggestion{
		text: fmt.Sprintf("The weather is %s with a temperature of %.0f°C. Would you prefer indoor or outdoor seating?", desc, w.Temperature),
	}
}
