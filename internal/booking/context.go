package booking

// State is the position of a conversation in the booking flow.
type State string

const (
	Greeting           State = "greeting"
	CollectingGuests   State = "collecting_guests"
	CollectingDate     State = "collecting_date"
	FetchingWeather    State = "fetching_weather"
	SuggestingSeating  State = "suggesting_seating"
	CollectingTime     State = "collecting_time"
	CollectingCuisine  State = "collecting_cuisine"
	CollectingRequests State = "collecting_requests"
	CollectingEmail    State = "collecting_email"
	Confirming         State = "confirming"
	CreatingBooking    State = "creating_booking"
	Completed          State = "completed"
	Error              State = "error"
)

// Seating values.
const (
	Indoor  = "indoor"
	Outdoor = "outdoor"
)

// Weather is the cached forecast used for the seating suggestion.
type Weather struct {
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
}

// Context holds everything collected during one conversation. Optional text
// fields distinguish nil (not asked yet) from "" (asked and declined).
type Context struct {
	State State `json:"state"`

	NumberOfGuests    *int     `json:"numberOfGuests,omitempty"`
	BookingDate       *string  `json:"bookingDate,omitempty"`
	BookingTime       *string  `json:"bookingTime,omitempty"`
	CuisinePreference *string  `json:"cuisinePreference,omitempty"`
	SpecialRequests   *string  `json:"specialRequests,omitempty"`
	SeatingPreference *string  `json:"seatingPreference,omitempty"`
	CustomerEmail     *string  `json:"customerEmail,omitempty"`
	WeatherInfo       *Weather `json:"weatherInfo,omitempty"`
	BookingID         *string  `json:"bookingId,omitempty"`
	ErrorMessage      *string  `json:"errorMessage,omitempty"`

	// WeatherDate is the booking date the cached weather was fetched for;
	// an empty value means no lookup has happened for the current date.
	WeatherDate string `json:"weatherDate,omitempty"`
	// SeatingConfirmed is set once the user answered (or implicitly accepted)
	// the seating suggestion.
	SeatingConfirmed bool `json:"seatingConfirmed"`
}

// New returns a context in the greeting state.
func New() *Context {
	return &Context{State: Greeting}
}

// Reset discards everything collected so far.
func (c *Context) Reset() {
	*c = Context{State: Greeting}
}

// IsComplete reports whether the required fields are known. It is the only
// gate into confirmation.
func (c *Context) IsComplete() bool {
	return c.NumberOfGuests != nil && c.BookingDate != nil && c.BookingTime != nil
}

// SetBookingID stores the backend id. The first id wins.
func (c *Context) SetBookingID(id string) bool {
	if c.BookingID != nil || id == "" {
		return false
	}
	c.BookingID = &id
	return true
}

// Data is the payload sent to the create-booking tool.
type Data struct {
	NumberOfGuests    int      `json:"numberOfGuests"`
	BookingDate       string   `json:"bookingDate"`
	BookingTime       string   `json:"bookingTime"`
	CuisinePreference string   `json:"cuisinePreference"`
	SpecialRequests   string   `json:"specialRequests"`
	WeatherInfo       *Weather `json:"weatherInfo,omitempty"`
	SeatingPreference string   `json:"seatingPreference"`
	CustomerName      string   `json:"customerName,omitempty"`
	CustomerEmail     string   `json:"customerEmail,omitempty"`
	CustomerContact   string   `json:"customerContact,omitempty"`
}

// ToBookingData renders the context as a backend payload. Unset optional
// text fields are sent as empty strings; seating defaults to indoor.
func (c *Context) ToBookingData() Data {
	d := Data{
		CuisinePreference: Str(c.CuisinePreference),
		SpecialRequests:   Str(c.SpecialRequests),
		SeatingPreference: Indoor,
		WeatherInfo:       c.WeatherInfo,
		CustomerEmail:     Str(c.CustomerEmail),
	}
	if c.NumberOfGuests != nil {
		d.NumberOfGuests = *c.NumberOfGuests
	}
	d.BookingDate = Str(c.BookingDate)
	d.BookingTime = Str(c.BookingTime)
	if c.SeatingPreference != nil && *c.SeatingPreference != "" {
		d.SeatingPreference = *c.SeatingPreference
	}
	return d
}

// Params flattens Data into the map form the tool executor takes.
func (d Data) Params() map[string]any {
	p := map[string]any{
		"numberOfGuests":    d.NumberOfGuests,
		"bookingDate":       d.BookingDate,
		"bookingTime":       d.BookingTime,
		"cuisinePreference": d.CuisinePreference,
		"specialRequests":   d.SpecialRequests,
		"seatingPreference": d.SeatingPreference,
	}
	if d.WeatherInfo != nil {
		p["weatherInfo"] = map[string]any{
			"condition":   d.WeatherInfo.Condition,
			"temperature": d.WeatherInfo.Temperature,
			"description": d.WeatherInfo.Description,
		}
	}
	if d.CustomerName != "" {
		p["customerName"] = d.CustomerName
	}
	if d.CustomerEmail != "" {
		p["customerEmail"] = d.CustomerEmail
	}
	if d.CustomerContact != "" {
		p["customerContact"] = d.CustomerContact
	}
	return p
}

// Str dereferences an optional string.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
