// Package dialogue is the booking conversation state machine. It owns one
// booking context, consumes one utterance at a time and decides what the
// agent says next and which tools run.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/floor"
	"tablecall/agent/internal/frontend"
	"tablecall/agent/internal/normalize"
	"tablecall/agent/internal/tools"
)

const defaultExtractTimeout = 4 * time.Second

type Options struct {
	SessionID string
	Extractor extract.Extractor
	Tools     tools.Runner
	Frontend  *frontend.Communicator
	Logger    *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// CollectEmail adds the confirmation email question before confirming.
	CollectEmail   bool
	RestaurantName string
	ExtractTimeout time.Duration
}

// Reply is the outcome of one turn. Text is empty when the turn was dropped
// or the prompt was suppressed as a repeat.
type Reply struct {
	Text    string        `json:"reply"`
	State   booking.State `json:"state"`
	Dropped bool          `json:"dropped"`
	Reason  string        `json:"reason,omitempty"`
}

// prompt is the question or statement that ends a turn. Prompts are compared
// as a whole for de-duplication.
type prompt struct {
	state booking.State
	key   string
	text  string
}

// out collects what a turn wants to say.
type out struct {
	notes    []string
	prompt   prompt
	forced   bool // bypasses repeat suppression
	progress bool // something was learned or done
}

type Machine struct {
	opts  Options
	log   *zap.Logger
	clock func() time.Time
	floor *floor.Manager
	state atomic.Value // booking.State, readable while a turn runs

	mu      sync.Mutex
	bc      *booking.Context
	started bool
	today   string
	// revisit is a collection state re-entered from confirmation whose field
	// is already known.
	revisit     booking.State
	last        prompt
	checkedSlot string
	weatherSlot string
	emailSent   bool
}

func New(o Options) *Machine {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if o.SessionID != "" {
		log = log.With(zap.String("session_id", o.SessionID))
	}
	clock := o.Clock
	if clock == nil {
		clock = time.Now
	}
	if o.ExtractTimeout == 0 {
		o.ExtractTimeout = defaultExtractTimeout
	}
	if o.RestaurantName == "" {
		o.RestaurantName = "our restaurant"
	}
	m := &Machine{
		opts:  o,
		log:   log,
		clock: clock,
		floor: floor.New().WithClock(clock),
		bc:    booking.New(),
	}
	m.state.Store(booking.Greeting)
	return m
}

// Floor exposes the turn guard so the voice pipeline can report playback.
func (m *Machine) Floor() *floor.Manager { return m.floor }

// State is safe to call while a turn is being processed.
func (m *Machine) State() booking.State { return m.state.Load().(booking.State) }

// Snapshot returns a copy of the booking context.
func (m *Machine) Snapshot() booking.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bc
}

// Today is the date relative expressions resolve against.
func (m *Machine) Today() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.today
}

// Start resets the conversation and greets the caller.
func (m *Machine) Start(ctx context.Context) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.bc.State
	text := m.startLocked(ctx)
	m.emit(ctx, from, text)
	return Reply{Text: text, State: m.bc.State}
}

func (m *Machine) startLocked(ctx context.Context) string {
	m.bc.Reset()
	m.setState(booking.Greeting)
	m.revisit = ""
	m.checkedSlot, m.weatherSlot = "", ""
	m.emailSent = false
	m.anchorToday(ctx)
	m.started = true
	m.transition(booking.CollectingGuests)
	greeting := m.welcome() + " " + askGuests
	m.last = prompt{booking.CollectingGuests, "greeting", greeting}
	m.log.Info("conversation started", zap.String("today", m.today))
	return greeting
}

func (m *Machine) welcome() string {
	return fmt.Sprintf(welcomeFmt, m.opts.RestaurantName)
}

// anchorToday asks the backend for the current date and falls back to the
// local clock.
func (m *Machine) anchorToday(ctx context.Context) {
	m.today = m.clock().Format(normalize.ISODate)
	if m.opts.Tools == nil {
		return
	}
	res := m.opts.Tools.Execute(ctx, tools.CheckDate, nil)
	if !res.Success {
		m.log.Warn("check-date failed, using local clock", zap.String("error", res.Error))
		return
	}
	if d := tools.Today(res.Data); d != "" {
		if _, err := time.Parse(normalize.ISODate, d); err == nil {
			m.today = d
		}
	}
}

// now is the anchored date with the local time of day.
func (m *Machine) now() time.Time {
	t := m.clock()
	d, err := time.ParseInLocation(normalize.ISODate, m.today, t.Location())
	if err != nil {
		return t
	}
	y, mo, day := d.Date()
	return time.Date(y, mo, day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

// HandleUtterance processes one user turn, typed or transcribed. Turns that
// arrive while the agent is speaking or still busy are dropped.
func (m *Machine) HandleUtterance(ctx context.Context, text string) Reply {
	text = strings.TrimSpace(text)
	d := m.floor.Begin()
	if !d.Admit {
		metricTurns.WithLabelValues("dropped").Inc()
		m.log.Debug("turn dropped", zap.String("reason", d.Reason), zap.String("utterance_id", d.UtteranceID))
		return Reply{State: m.State(), Dropped: true, Reason: d.Reason}
	}
	defer m.floor.End()

	m.mu.Lock()
	defer m.mu.Unlock()
	if text == "" {
		return Reply{State: m.bc.State}
	}
	metricTurns.WithLabelValues("processed").Inc()
	m.opts.Frontend.Transcript(ctx, frontend.SpeakerUser, text)

	from := m.bc.State
	var reply string
	if !m.started {
		greeting := m.startLocked(ctx)
		o := m.step(ctx, text)
		if o.progress {
			reply = joinNonEmpty(m.welcome(), m.compose(o))
		} else {
			reply = greeting
		}
	} else {
		reply = m.compose(m.step(ctx, text))
	}
	m.emit(ctx, from, reply)
	m.log.Debug("turn processed",
		zap.String("from", string(from)),
		zap.String("state", string(m.bc.State)),
		zap.Bool("replied", reply != ""))
	return Reply{Text: reply, State: m.bc.State}
}

func (m *Machine) step(ctx context.Context, text string) out {
	switch m.bc.State {
	case booking.Confirming:
		return m.onConfirming(ctx, text)
	case booking.Completed:
		return m.onCompleted(ctx, text)
	case booking.Error:
		return m.onError(ctx, text)
	case booking.CreatingBooking:
		return out{}
	}
	return m.onCollecting(ctx, text)
}

// compose renders a turn, suppressing a prompt identical to the last one
// unless forced or accompanied by notes. A suppressed prompt is forgotten so
// a third identical turn is answered.
func (m *Machine) compose(o out) string {
	if o.prompt.text == "" {
		return strings.Join(o.notes, " ")
	}
	if !o.forced && len(o.notes) == 0 && o.prompt == m.last {
		metricPromptsSuppressed.Inc()
		m.log.Debug("prompt suppressed", zap.String("key", o.prompt.key))
		m.last = prompt{}
		return ""
	}
	m.last = o.prompt
	return joinNonEmpty(append(o.notes, o.prompt.text)...)
}

func (m *Machine) emit(ctx context.Context, from booking.State, reply string) {
	fe := m.opts.Frontend
	if reply != "" {
		fe.CurrentSpeech(ctx, reply)
		fe.Transcript(ctx, frontend.SpeakerAgent, reply)
	}
	if m.bc.State != from {
		fe.StateUpdate(ctx, string(m.bc.State), "")
	}
	if reply == "" {
		return
	}
	switch {
	case m.bc.State == booking.Confirming:
		fe.Options(ctx, []string{"Yes", "No"}, "Does this look correct?")
	case m.bc.State == booking.SuggestingSeating && !m.bc.SeatingConfirmed:
		fe.Options(ctx, []string{"Indoor", "Outdoor"}, askSeating)
	}
}

func (m *Machine) setState(s booking.State) {
	m.bc.State = s
	m.state.Store(s)
}

func (m *Machine) transition(to booking.State) {
	from := m.bc.State
	if from == to {
		return
	}
	metricStateTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.setState(to)
}

func (m *Machine) ask(s booking.State) prompt {
	return prompt{s, "ask", question(s)}
}

func (m *Machine) extract(ctx context.Context, text string) extract.Extraction {
	if m.opts.Extractor == nil {
		return extract.Extraction{}
	}
	if m.opts.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ExtractTimeout)
		defer cancel()
	}
	e, err := m.opts.Extractor.Extract(ctx, extract.Request{
		Utterance: text,
		State:     m.bc.State,
		Today:     m.today,
		Context:   *m.bc,
	})
	if err != nil {
		metricExtractionErrors.Inc()
		m.log.Warn("extraction failed", zap.String("state", string(m.bc.State)), zap.Error(err))
		return extract.Extraction{}
	}
	return e
}

func (m *Machine) runTool(ctx context.Context, name string, params map[string]any) tools.Result {
	if m.opts.Tools == nil {
		return tools.Result{Error: "no tool runner configured"}
	}
	res := m.opts.Tools.Execute(ctx, name, params)
	if !res.Success {
		m.log.Warn("tool call failed", zap.String("tool", name), zap.String("error", res.Error))
	}
	return res
}

func joinNonEmpty(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, " ")
}
