// Package floor decides whether a user turn may be processed right now.
package floor

import (
	"sync"
	"time"
)

// Phase is who holds the floor.
type Phase int

const (
	Idle Phase = iota
	Speaking
	AwaitingExtraction
)

func (p Phase) String() string {
	switch p {
	case Speaking:
		return "speaking"
	case AwaitingExtraction:
		return "awaiting_extraction"
	}
	return "idle"
}

// Decision is the guard's answer to an incoming turn.
type Decision struct {
	Admit  bool
	Reason string // "speaking" or "busy" when dropped
	// UtteranceID is the agent utterance playing when a turn is dropped for
	// speaking.
	UtteranceID string
}

// DefaultSpeakingTimeout bounds how long a missing tts_stopped can hold the
// floor.
const DefaultSpeakingTimeout = 30 * time.Second

// Manager is the per-session turn guard. A single phase replaces independent
// speaking/processing flags.
type Manager struct {
	mu              sync.Mutex
	phase           Phase
	utteranceID     string
	speakingSince   time.Time
	speakingTimeout time.Duration
	now             func() time.Time
}

func New() *Manager {
	return &Manager{speakingTimeout: DefaultSpeakingTimeout, now: time.Now}
}

// WithClock replaces the clock; tests use it.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.phase
}

// Begin claims the floor for one turn. Turns arriving while the agent speaks
// or while a previous turn is still processing are dropped, not queued.
func (m *Manager) Begin() Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	switch m.phase {
	case Speaking:
		return Decision{Reason: "speaking", UtteranceID: m.utteranceID}
	case AwaitingExtraction:
		return Decision{Reason: "busy"}
	}
	m.phase = AwaitingExtraction
	return Decision{Admit: true}
}

// End releases a floor claimed by Begin.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == AwaitingExtraction {
		m.phase = Idle
	}
}

func (m *Manager) OnTTSStarted(utteranceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = Speaking
	m.utteranceID = utteranceID
	m.speakingSince = m.now()
}

// OnTTSStopped clears speaking regardless of the utterance id.
func (m *Manager) OnTTSStopped(utteranceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Speaking {
		m.phase = Idle
	}
	m.utteranceID = ""
}

func (m *Manager) expireLocked() {
	if m.phase == Speaking && m.speakingTimeout > 0 && m.now().Sub(m.speakingSince) > m.speakingTimeout {
		m.phase = Idle
		m.utteranceID = ""
	}
}
