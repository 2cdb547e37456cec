package dialogue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/frontend"
	"tablecall/agent/internal/tools"
)

// scripted answers each utterance with a fixed extraction.
type scripted struct {
	mu    sync.Mutex
	byUtt map[string]extract.Extraction
	calls int
}

func (s *scripted) Extract(_ context.Context, req extract.Request) (extract.Extraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.byUtt[req.Utterance], nil
}

func defaultScript() *scripted {
	return &scripted{byUtt: map[string]extract.Extraction{
		"two people":          {Guests: booking.Ptr(2)},
		"two of us":           {Guests: booking.Ptr(2)},
		"make it four people": {Guests: booking.Ptr(4)},
		"tomorrow":            {Date: booking.Ptr("tomorrow")},
		"last week":           {Date: booking.Ptr("2025-10-01")},
		"7 PM":                {Time: booking.Ptr("7 PM")},
		"8 PM":                {Time: booking.Ptr("8 PM")},
		"at 3 am":             {Time: booking.Ptr("3 am")},
		"Italian":             {Cuisine: booking.Ptr("Italian")},
		"no preference":       {Cuisine: booking.Ptr("")},
	}}
}

type toolCall struct {
	name   string
	params map[string]any
}

// fakeTools answers tool calls from canned results. Create results are
// consumed in order; the last one repeats.
type fakeTools struct {
	mu      sync.Mutex
	calls   []toolCall
	weather *tools.Result
	avail   *tools.Result
	creates []tools.Result
	email   *tools.Result
}

func (f *fakeTools) Execute(_ context.Context, name string, params map[string]any) tools.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toolCall{name, params})
	switch name {
	case tools.CheckDate:
		return tools.Result{Success: true, Data: map[string]any{"today": "2025-10-16", "time": "10:00"}}
	case tools.Weather:
		if f.weather != nil {
			return *f.weather
		}
		return tools.Result{Success: true, Data: map[string]any{"condition": "Clear", "temperature": 24.0, "description": "clear sky"}}
	case tools.CheckAvailability:
		if f.avail != nil {
			return *f.avail
		}
		return tools.Result{Success: true, Data: map[string]any{"available": true, "conflictCount": 0.0}}
	case tools.CreateBooking:
		if len(f.creates) == 0 {
			return tools.Result{Success: true, Data: map[string]any{"booking": map[string]any{"_id": "B-1"}}}
		}
		r := f.creates[0]
		if len(f.creates) > 1 {
			f.creates = f.creates[1:]
		}
		return r
	case tools.SendEmail:
		if f.email != nil {
			return *f.email
		}
		return tools.Result{Success: true, Data: map[string]any{"sent": true}}
	}
	return tools.Result{Error: "Unknown tool: " + name}
}

func (f *fakeTools) named(name string) []toolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []toolCall
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []frontend.Event
}

func (r *recorder) Publish(_ context.Context, _ string, ev frontend.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) has(typ, state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ && (state == "" || ev.State == state) {
			return true
		}
	}
	return false
}

type harness struct {
	m     *Machine
	ex    *scripted
	tools *fakeTools
	rec   *recorder
}

func newHarness(t *testing.T, collectEmail bool) *harness {
	t.Helper()
	h := &harness{ex: defaultScript(), tools: &fakeTools{}, rec: &recorder{}}
	now := time.Date(2025, 10, 16, 10, 0, 0, 0, time.UTC)
	h.m = New(Options{
		SessionID:      "s-test",
		Extractor:      h.ex,
		Tools:          h.tools,
		Frontend:       frontend.NewCommunicator("s-test", nil, h.rec),
		Clock:          func() time.Time { return now },
		CollectEmail:   collectEmail,
		RestaurantName: "Trattoria",
	})
	return h
}

func (h *harness) say(t *testing.T, text string) Reply {
	t.Helper()
	r := h.m.HandleUtterance(context.Background(), text)
	if r.Dropped {
		t.Fatalf("turn %q dropped: %s", text, r.Reason)
	}
	return r
}

// toConfirm runs the standard conversation up to the summary.
func (h *harness) toConfirm(t *testing.T) Reply {
	t.Helper()
	h.m.Start(context.Background())
	var r Reply
	for _, u := range []string{"two people", "tomorrow", "7 PM", "Italian", "no allergies"} {
		r = h.say(t, u)
	}
	if r.State != booking.Confirming {
		t.Fatalf("state after collection = %s, want confirming (reply %q)", r.State, r.Text)
	}
	return r
}

func TestStartGreets(t *testing.T) {
	h := newHarness(t, false)
	r := h.m.Start(context.Background())
	if r.State != booking.CollectingGuests {
		t.Fatalf("state = %s", r.State)
	}
	if !strings.HasPrefix(r.Text, "Hello! Welcome to Trattoria.") || !strings.HasSuffix(r.Text, askGuests) {
		t.Errorf("greeting = %q", r.Text)
	}
	if h.m.Today() != "2025-10-16" {
		t.Errorf("today = %q", h.m.Today())
	}

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if len(h.rec.events) < 2 {
		t.Fatalf("events = %+v", h.rec.events)
	}
	speech, transcript := h.rec.events[0], h.rec.events[1]
	if speech.Type != frontend.TypeCurrentSpeech || speech.Text != r.Text {
		t.Errorf("first event = %+v, want current_speech with the greeting", speech)
	}
	if transcript.Type != frontend.TypeTranscript || transcript.Speaker != frontend.SpeakerAgent {
		t.Errorf("second event = %+v, want agent transcript", transcript)
	}
}

func TestFullConversation(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())

	steps := []struct {
		say   string
		state booking.State
	}{
		{"two people", booking.CollectingDate},
		{"tomorrow", booking.SuggestingSeating},
		{"7 PM", booking.CollectingCuisine},
		{"Italian", booking.CollectingRequests},
		{"no allergies", booking.Confirming},
	}
	for _, s := range steps {
		r := h.say(t, s.say)
		if r.State != s.state {
			t.Fatalf("after %q state = %s, want %s (reply %q)", s.say, r.State, s.state, r.Text)
		}
		if r.Text == "" {
			t.Fatalf("after %q no reply", s.say)
		}
	}

	r := h.say(t, "yes")
	if r.State != booking.Completed {
		t.Fatalf("state = %s, want completed (reply %q)", r.State, r.Text)
	}
	if !strings.Contains(r.Text, "B-1") {
		t.Errorf("success reply missing booking id: %q", r.Text)
	}

	snap := h.m.Snapshot()
	got := snap.ToBookingData()
	if got.NumberOfGuests != 2 || got.BookingDate != "2025-10-17" || got.BookingTime != "19:00" ||
		got.CuisinePreference != "Italian" || got.SpecialRequests != "" || got.SeatingPreference != booking.Outdoor {
		t.Errorf("booking data = %+v", got)
	}
	if booking.Str(snap.BookingID) != "B-1" {
		t.Errorf("booking id = %q", booking.Str(snap.BookingID))
	}

	creates := h.tools.named(tools.CreateBooking)
	if len(creates) != 1 {
		t.Fatalf("create-booking calls = %d", len(creates))
	}
	if creates[0].params["bookingTime"] != "19:00" || creates[0].params["numberOfGuests"] != 2 {
		t.Errorf("create params = %v", creates[0].params)
	}
	if n := len(h.tools.named(tools.SendEmail)); n != 0 {
		t.Errorf("send-email calls = %d, want 0", n)
	}
	if n := len(h.tools.named(tools.CheckAvailability)); n != 1 {
		t.Errorf("check-availability calls = %d, want 1", n)
	}
	if !h.rec.has(frontend.TypeStateUpdate, string(booking.Confirming)) || !h.rec.has(frontend.TypeOptions, "") {
		t.Errorf("frontend missing confirming state or options: %+v", h.rec.events)
	}
}

func TestConversationWithEmail(t *testing.T) {
	h := newHarness(t, true)
	h.m.Start(context.Background())
	for _, u := range []string{"two people", "tomorrow", "7 PM", "Italian", "no allergies"} {
		h.say(t, u)
	}
	if s := h.m.State(); s != booking.CollectingEmail {
		t.Fatalf("state = %s, want collecting_email", s)
	}
	if r := h.say(t, "yes"); r.Text != askEmailAddr {
		t.Errorf("bare yes reply = %q", r.Text)
	}
	r := h.say(t, "jane at example dot com")
	if r.State != booking.Confirming || !strings.Contains(r.Text, "jane@example.com") {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	r = h.say(t, "yes")
	if r.State != booking.Completed || !strings.Contains(r.Text, "sent to jane@example.com") {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	emails := h.tools.named(tools.SendEmail)
	if len(emails) != 1 || emails[0].params["bookingId"] != "B-1" {
		t.Errorf("send-email calls = %+v", emails)
	}

	// a closing remark must not send again
	h.say(t, "thanks, bye")
	if n := len(h.tools.named(tools.SendEmail)); n != 1 {
		t.Errorf("send-email calls = %d, want 1", n)
	}
}

func TestWeatherFailureDegrades(t *testing.T) {
	h := newHarness(t, false)
	h.tools.weather = &tools.Result{Error: "weather service unavailable"}
	h.m.Start(context.Background())
	h.say(t, "two people")
	r := h.say(t, "tomorrow")
	if r.State != booking.SuggestingSeating {
		t.Fatalf("state = %s", r.State)
	}
	if r.Text != msgWeatherDown {
		t.Errorf("reply = %q", r.Text)
	}
	snap := h.m.Snapshot()
	if booking.Str(snap.SeatingPreference) != booking.Indoor || snap.WeatherInfo != nil {
		t.Errorf("seating = %q weather = %v", booking.Str(snap.SeatingPreference), snap.WeatherInfo)
	}

	// an acknowledgment takes the default
	r = h.say(t, "ok")
	if r.State != booking.CollectingTime || !h.m.Snapshot().SeatingConfirmed {
		t.Errorf("after ok state = %s", r.State)
	}
}

func TestSeatingSuggestionAnswered(t *testing.T) {
	h := newHarness(t, false)
	h.tools.weather = &tools.Result{Success: true, Data: map[string]any{"condition": "Rain", "temperature": 12.0, "description": "light rain"}}
	h.m.Start(context.Background())
	h.say(t, "two people")
	r := h.say(t, "tomorrow")
	if !strings.Contains(r.Text, "indoor") {
		t.Errorf("suggestion = %q", r.Text)
	}
	r = h.say(t, "outside please")
	if r.State != booking.CollectingTime {
		t.Fatalf("state = %s", r.State)
	}
	if s := booking.Str(h.m.Snapshot().SeatingPreference); s != booking.Outdoor {
		t.Errorf("seating = %q", s)
	}
}

func TestBookingConflict(t *testing.T) {
	h := newHarness(t, false)
	h.tools.creates = []tools.Result{
		{Error: "This time slot is already booked"},
		{Success: true, Data: map[string]any{"bookingId": "B-2"}},
	}
	h.toConfirm(t)

	r := h.say(t, "yes")
	if r.State != booking.Error || r.Text != msgConflict {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	snap := h.m.Snapshot()
	if snap.BookingID != nil {
		t.Errorf("booking id set: %q", *snap.BookingID)
	}
	if booking.Str(snap.ErrorMessage) == "" {
		t.Error("error message not recorded")
	}

	if r = h.say(t, "yes"); r.Text != msgAlternate {
		t.Errorf("yes after conflict = %q", r.Text)
	}
	r = h.say(t, "8 PM")
	if r.State != booking.Confirming || !strings.HasPrefix(r.Text, "Got it, I've changed the time to 20:00.") {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	r = h.say(t, "yes")
	if r.State != booking.Completed || booking.Str(h.m.Snapshot().BookingID) != "B-2" {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
}

func TestRetryAfterGenericError(t *testing.T) {
	h := newHarness(t, false)
	h.tools.creates = []tools.Result{
		{Error: "database timeout"},
		{Success: true, Data: map[string]any{"bookingId": "B-3"}},
	}
	h.toConfirm(t)
	if r := h.say(t, "yes"); r.Text != msgBookingError {
		t.Fatalf("reply = %q", r.Text)
	}
	r := h.say(t, "yes")
	if r.State != booking.Completed {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if n := len(h.tools.named(tools.CreateBooking)); n != 2 {
		t.Errorf("create-booking calls = %d", n)
	}
}

func TestDeclineAfterError(t *testing.T) {
	h := newHarness(t, false)
	h.tools.creates = []tools.Result{{Error: "database timeout"}}
	h.toConfirm(t)
	h.say(t, "yes")
	if r := h.say(t, "no"); r.Text != msgNotCreated {
		t.Fatalf("reply = %q", r.Text)
	}
	if r := h.say(t, "no thanks"); r.Text != msgGoodbye {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestAcknowledgmentReasksGuests(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	r := h.say(t, "ok")
	if r.State != booking.CollectingGuests || r.Text != askGuests {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if h.m.Snapshot().NumberOfGuests != nil {
		t.Error("guests set by an acknowledgment")
	}
	if h.ex.calls != 0 {
		t.Errorf("extractor called %d times", h.ex.calls)
	}
}

func TestDeclinedCuisineSkipsQuestion(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.m.mu.Lock()
	h.m.bc.NumberOfGuests = booking.Ptr(2)
	h.m.bc.BookingDate = booking.Ptr("2025-10-17")
	h.m.bc.BookingTime = booking.Ptr("19:00")
	h.m.bc.WeatherDate = "2025-10-17"
	h.m.bc.SeatingPreference = booking.Ptr(booking.Indoor)
	h.m.bc.SeatingConfirmed = true
	h.m.bc.CuisinePreference = booking.Ptr("")
	h.m.setState(booking.CollectingCuisine)
	h.m.mu.Unlock()

	r := h.say(t, "hmm")
	if r.State != booking.CollectingRequests {
		t.Fatalf("state = %s", r.State)
	}
	if strings.Contains(r.Text, "cuisine") {
		t.Errorf("cuisine asked again: %q", r.Text)
	}
}

func TestCuisineDeclineAdvances(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	for _, u := range []string{"two people", "tomorrow", "7 PM"} {
		h.say(t, u)
	}
	r := h.say(t, "no preference")
	if r.State != booking.CollectingRequests || r.Text != askRequests {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if c := h.m.Snapshot().CuisinePreference; c == nil || *c != "" {
		t.Errorf("cuisine = %v", c)
	}
}

func TestDuplicateExtractionPromptsOnce(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.say(t, "two people")

	first := h.say(t, "two of us")
	second := h.say(t, "two of us")
	if first.State != booking.CollectingDate || second.State != booking.CollectingDate {
		t.Fatalf("states = %s, %s", first.State, second.State)
	}
	prompts := 0
	for _, r := range []Reply{first, second} {
		if r.Text != "" {
			prompts++
		}
	}
	if prompts != 1 {
		t.Errorf("prompts = %d (%q, %q), want 1", prompts, first.Text, second.Text)
	}
	// a third attempt is answered again
	if r := h.say(t, "two of us"); r.Text == "" {
		t.Error("third repeat not answered")
	}
}

func TestDroppedWhileSpeaking(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.m.Floor().OnTTSStarted("u-1")

	r := h.m.HandleUtterance(context.Background(), "two people")
	if !r.Dropped || r.Reason != "speaking" {
		t.Fatalf("reply = %+v, want dropped", r)
	}
	if h.m.Snapshot().NumberOfGuests != nil {
		t.Error("dropped turn changed the context")
	}

	h.m.Floor().OnTTSStopped("u-1")
	if r := h.say(t, "two people"); r.State != booking.CollectingDate {
		t.Errorf("state = %s", r.State)
	}
}

func TestPastDateReasked(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.say(t, "two people")
	r := h.say(t, "last week")
	if r.State != booking.CollectingDate || r.Text != msgPastDate {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if h.m.Snapshot().BookingDate != nil {
		t.Error("past date stored")
	}
}

func TestTimeOutsideOpeningHours(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.say(t, "two people")
	h.say(t, "tomorrow")
	h.say(t, "ok")
	r := h.say(t, "at 3 am")
	if r.State != booking.CollectingTime || r.Text != msgOutsideHours {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
}

func TestSlotTakenAsksAgain(t *testing.T) {
	h := newHarness(t, false)
	h.tools.avail = &tools.Result{Success: true, Data: map[string]any{"available": false, "conflictCount": 3.0}}
	h.m.Start(context.Background())
	h.say(t, "two people")
	h.say(t, "tomorrow")
	r := h.say(t, "7 PM")
	if r.State != booking.CollectingTime || !strings.Contains(r.Text, "fully booked") {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if h.m.Snapshot().BookingTime != nil {
		t.Error("taken time kept")
	}
}

func TestLoopBackFromConfirmation(t *testing.T) {
	h := newHarness(t, false)
	h.toConfirm(t)

	r := h.say(t, "no, the time")
	if r.State != booking.CollectingTime || r.Text != askTime {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	r = h.say(t, "8 PM")
	if r.State != booking.Confirming || !strings.Contains(r.Text, "Time: 20:00") {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
}

func TestAskWhatToChange(t *testing.T) {
	h := newHarness(t, false)
	h.toConfirm(t)
	r := h.say(t, "no")
	if r.State != booking.Confirming || r.Text != askWhatChange {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
}

func TestCorrectionWhileConfirming(t *testing.T) {
	h := newHarness(t, false)
	h.toConfirm(t)
	r := h.say(t, "make it four people")
	if r.State != booking.Confirming {
		t.Fatalf("state = %s", r.State)
	}
	if !strings.HasPrefix(r.Text, "Got it, I've changed the number of guests to 4.") ||
		!strings.Contains(r.Text, "Number of guests: 4") {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestAnotherBooking(t *testing.T) {
	h := newHarness(t, false)
	h.toConfirm(t)
	h.say(t, "yes")
	r := h.say(t, "I'd like to make another booking")
	if r.State != booking.CollectingGuests || !strings.HasSuffix(r.Text, askGuests) {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	snap := h.m.Snapshot()
	if snap.NumberOfGuests != nil || snap.BookingID != nil {
		t.Errorf("context not reset: %+v", snap)
	}
}

func TestUtteranceBeforeStart(t *testing.T) {
	h := newHarness(t, false)
	r := h.say(t, "two people")
	if r.State != booking.CollectingDate {
		t.Fatalf("state = %s", r.State)
	}
	if !strings.HasPrefix(r.Text, "Hello! Welcome to Trattoria.") || !strings.HasSuffix(r.Text, askDate) {
		t.Errorf("reply = %q", r.Text)
	}
}

func TestIsConflict(t *testing.T) {
	if !isConflict("That Time Slot is taken") || !isConflict("table already booked") {
		t.Error("conflict not detected")
	}
	if isConflict("validation failed") {
		t.Error("generic error treated as conflict")
	}
}

func TestExtractionErrorClarifies(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.say(t, "two people")
	h.m.opts.Extractor = extract.ExtractorFunc(func(context.Context, extract.Request) (extract.Extraction, error) {
		return extract.Extraction{}, errors.New("model unavailable")
	})

	before := h.m.Snapshot()
	r := h.say(t, "hmm let me check")
	if r.State != booking.CollectingDate || r.Text != clarification(booking.CollectingDate) {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if after := h.m.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("context changed on a failed extraction:\n%+v\n%+v", before, after)
	}
}

func TestExtractionTimeoutClarifies(t *testing.T) {
	h := newHarness(t, false)
	h.m.Start(context.Background())
	h.say(t, "two people")
	h.m.opts.ExtractTimeout = 20 * time.Millisecond
	h.m.opts.Extractor = extract.ExtractorFunc(func(ctx context.Context, _ extract.Request) (extract.Extraction, error) {
		<-ctx.Done()
		return extract.Extraction{}, ctx.Err()
	})

	before := h.m.Snapshot()
	start := time.Now()
	r := h.say(t, "hmm let me check")
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("turn took %s", took)
	}
	if r.State != booking.CollectingDate || r.Text != clarification(booking.CollectingDate) {
		t.Fatalf("state = %s reply = %q", r.State, r.Text)
	}
	if after := h.m.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("context changed on a timed out extraction:\n%+v\n%+v", before, after)
	}
}

func TestGuestsNotReadFromOtherDigits(t *testing.T) {
	h := newHarness(t, false)
	h.ex.byUtt["a table tomorrow at 7pm"] = extract.Extraction{Date: booking.Ptr("tomorrow"), Time: booking.Ptr("19:00")}
	h.m.Start(context.Background())

	r := h.say(t, "a table tomorrow at 7pm")
	snap := h.m.Snapshot()
	if snap.NumberOfGuests != nil {
		t.Fatalf("guests = %d, never given", *snap.NumberOfGuests)
	}
	if booking.Str(snap.BookingDate) != "2025-10-17" || booking.Str(snap.BookingTime) != "19:00" {
		t.Errorf("date/time = %q %q", booking.Str(snap.BookingDate), booking.Str(snap.BookingTime))
	}
	if r.State != booking.CollectingGuests {
		t.Fatalf("state = %s, want collecting_guests (reply %q)", r.State, r.Text)
	}

	// nothing extracted: the raw text still answers the question
	h.say(t, "three of us")
	if g := h.m.Snapshot().NumberOfGuests; g == nil || *g != 3 {
		t.Fatalf("guests = %v, want 3", g)
	}
}

func TestTimeNotReadFromGuestDigits(t *testing.T) {
	h := newHarness(t, false)
	h.ex.byUtt["actually we are 4 people"] = extract.Extraction{Guests: booking.Ptr(4)}
	h.m.Start(context.Background())
	h.say(t, "two people")
	h.say(t, "tomorrow")
	if r := h.say(t, "ok"); r.State != booking.CollectingTime {
		t.Fatalf("state = %s, want collecting_time", r.State)
	}

	r := h.say(t, "actually we are 4 people")
	snap := h.m.Snapshot()
	if snap.BookingTime != nil {
		t.Fatalf("time = %q, never given", *snap.BookingTime)
	}
	if g := snap.NumberOfGuests; g == nil || *g != 4 {
		t.Errorf("guests = %v, want 4", g)
	}
	if r.State != booking.CollectingTime {
		t.Errorf("state = %s, want collecting_time", r.State)
	}
}

func TestLogsCarrySessionIDOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := New(Options{SessionID: "s-log", Logger: zap.New(core).Named("dialogue")})
	m.Start(context.Background())

	entries := logs.FilterMessage("conversation started").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	var n int
	for _, f := range entries[0].Context {
		if f.Key == "session_id" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("session_id fields = %d, want 1", n)
	}
}
