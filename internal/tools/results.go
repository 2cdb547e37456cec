package tools

import (
	"strconv"

	"tablecall/agent/internal/booking"
)

// BookingID finds the id in a create-booking result. Backends answer with
// data.booking._id, data.booking.bookingId or data.bookingId.
func BookingID(data map[string]any) string {
	if b, ok := data["booking"].(map[string]any); ok {
		for _, k := range []string{"_id", "bookingId", "id"} {
			if s := scalar(b[k]); s != "" {
				return s
			}
		}
	}
	for _, k := range []string{"bookingId", "_id", "id"} {
		if s := scalar(data[k]); s != "" {
			return s
		}
	}
	return ""
}

// ParseWeather reads a weather result.
func ParseWeather(data map[string]any) (booking.Weather, bool) {
	cond, _ := data["condition"].(string)
	if cond == "" {
		return booking.Weather{}, false
	}
	w := booking.Weather{Condition: cond}
	w.Description, _ = data["description"].(string)
	switch t := data["temperature"].(type) {
	case float64:
		w.Temperature = t
	case int:
		w.Temperature = float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			w.Temperature = f
		}
	}
	return w, true
}

// Today reads the date from a check-date result.
func Today(data map[string]any) string {
	for _, k := range []string{"today", "date"} {
		if s, ok := data[k].(string); ok && len(s) >= 10 {
			return s[:10]
		}
	}
	return ""
}

// Available reads a check-availability result. Unknown means available.
func Available(data map[string]any) (bool, int) {
	avail := true
	if b, ok := data["available"].(bool); ok {
		avail = b
	}
	n := 0
	if f, ok := data["conflictCount"].(float64); ok {
		n = int(f)
	}
	return avail, n
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
