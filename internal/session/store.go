// Package session keeps the live conversations of one agent process. Each
// session owns its own dialogue machine and a capped event log.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tablecall/agent/internal/dialogue"
	"tablecall/agent/internal/frontend"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionEnded    = errors.New("session ended")
)

// MaxEvents caps the event log of a session. The oldest events are dropped
// and a single marker at the head of the log counts them.
const MaxEvents = 200

const TypeTruncated = "events_truncated"

const (
	StatusCreated = "created"
	StatusActive  = "active"
	StatusEnded   = "ended"
)

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"ts"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`

	Machine *dialogue.Machine `json:"-"`
}

// MachineFactory builds the dialogue machine for a new session. The
// communicator already fans out to the store and any extra sinks.
type MachineFactory func(id string, fe *frontend.Communicator) *dialogue.Machine

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	events   map[string][]Event
	dropped  map[string]int

	newMachine MachineFactory
	sinks      []frontend.Sink
	log        *zap.Logger
}

func New(f MachineFactory, log *zap.Logger, sinks ...frontend.Sink) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		sessions:   make(map[string]*Session),
		events:     make(map[string][]Event),
		dropped:    make(map[string]int),
		newMachine: f,
		sinks:      sinks,
		log:        log,
	}
}

// Create registers a new session with a random id.
func (s *Store) Create() (*Session, error) {
	return s.CreateWithID(uuid.NewString())
}

func (s *Store) CreateWithID(id string) (*Session, error) {
	sess := &Session{ID: id, CreatedAt: time.Now().UTC(), Status: StatusCreated}
	sinks := append([]frontend.Sink{s}, s.sinks...)
	fe := frontend.NewCommunicator(id, s.log, sinks...)
	sess.Machine = s.newMachine(id, fe)

	s.mu.Lock()
	if _, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return nil, ErrSessionExists
	}
	s.sessions[id] = sess
	s.events[id] = []Event{}
	s.mu.Unlock()

	metricSessionsActive.Inc()
	s.AppendEvent(id, "session_created", nil)
	s.log.Info("session created", zap.String("session_id", id))
	return sess, nil
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Info returns a copy of the session record.
func (s *Store) Info(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *sess, nil
}

// Active returns a session that can still take turns.
func (s *Store) Active(id string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	ended := sess.Status == StatusEnded
	s.mu.RUnlock()
	if ended {
		return nil, ErrSessionEnded
	}
	return sess, nil
}

// Start greets the caller and marks the session active.
func (s *Store) Start(ctx context.Context, id string) (dialogue.Reply, error) {
	sess, err := s.Active(id)
	if err != nil {
		return dialogue.Reply{}, err
	}
	s.mu.Lock()
	sess.Status = StatusActive
	s.mu.Unlock()
	s.AppendEvent(id, "session_started", nil)
	return sess.Machine.Start(ctx), nil
}

// Turn feeds one utterance to the session's machine.
func (s *Store) Turn(ctx context.Context, id, text string) (dialogue.Reply, error) {
	sess, err := s.Active(id)
	if err != nil {
		return dialogue.Reply{}, err
	}
	s.mu.Lock()
	sess.Status = StatusActive
	s.mu.Unlock()
	r := sess.Machine.HandleUtterance(ctx, text)
	if r.Dropped {
		s.AppendEvent(id, "turn_dropped", map[string]any{"reason": r.Reason, "text": text})
	}
	return r, nil
}

// End closes a session. Ending twice is a no-op that reports false.
func (s *Store) End(id string) (bool, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false, ErrSessionNotFound
	}
	if sess.Status == StatusEnded {
		s.mu.Unlock()
		return false, nil
	}
	now := time.Now().UTC()
	sess.Status = StatusEnded
	sess.EndedAt = &now
	s.mu.Unlock()

	metricSessionsActive.Dec()
	s.AppendEvent(id, "session_ended", map[string]any{"state": string(sess.Machine.State())})
	s.log.Info("session ended", zap.String("session_id", id), zap.String("state", string(sess.Machine.State())))
	return true, nil
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) Event {
	evt := Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return evt
	}
	log := append(s.events[sessionID], evt)
	if len(log) > MaxEvents {
		body := log
		if body[0].Type == TypeTruncated {
			body = body[1:]
		}
		// one slot goes to the marker so the log stays at MaxEvents
		keep := MaxEvents - 1
		s.dropped[sessionID] += len(body) - keep
		marker := Event{
			Type:    TypeTruncated,
			Ts:      evt.Ts,
			Payload: map[string]any{"dropped": s.dropped[sessionID], "kept": keep},
		}
		log = append([]Event{marker}, body[len(body)-keep:]...)
	}
	s.events[sessionID] = log
	return evt
}

func (s *Store) ListEvents(sessionID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

// Publish records frontend events in the session log.
func (s *Store) Publish(_ context.Context, sessionID string, ev frontend.Event) error {
	p := map[string]any{}
	if ev.Speaker != "" {
		p["speaker"] = ev.Speaker
	}
	if ev.Text != "" {
		p["text"] = ev.Text
	}
	if len(ev.Options) > 0 {
		p["options"] = ev.Options
	}
	if ev.State != "" {
		p["state"] = ev.State
	}
	if ev.Message != "" {
		p["message"] = ev.Message
	}
	s.AppendEvent(sessionID, ev.Type, p)
	return nil
}
