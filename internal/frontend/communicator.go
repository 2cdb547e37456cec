// Package frontend defines the out-of-band event channel between the agent
// and the browser or voice pipeline.
package frontend

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Outbound event types.
const (
	TypeTranscript    = "transcript"
	TypeOptions       = "options"
	TypeStateUpdate   = "state_update"
	TypeCurrentSpeech = "current_speech"
)

// Inbound message types.
const (
	TypeUserMessage     = "user_message"
	TypeOptionSelected  = "option_selected"
	TypeTranscriptFinal = "transcript_final"
	TypeTTSStarted      = "tts_started"
	TypeTTSStopped      = "tts_stopped"
	TypeSessionStart    = "session_start"
)

const (
	SpeakerAgent = "agent"
	SpeakerUser  = "user"
)

// Event is one outbound message.
type Event struct {
	Type    string   `json:"type"`
	Speaker string   `json:"speaker,omitempty"`
	Text    string   `json:"text,omitempty"`
	Options []string `json:"options,omitempty"`
	State   string   `json:"state,omitempty"`
	Message string   `json:"message,omitempty"`
	TsMs    int64    `json:"ts_ms"`
}

// Sink delivers events for a session.
type Sink interface {
	Publish(ctx context.Context, sessionID string, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sessionID string, ev Event) error

func (f SinkFunc) Publish(ctx context.Context, sessionID string, ev Event) error {
	return f(ctx, sessionID, ev)
}

// Communicator sends typed events to every sink. Delivery is fire-and-forget:
// a failing sink is logged and never fails the turn.
type Communicator struct {
	sessionID string
	sinks     []Sink
	log       *zap.Logger
}

func NewCommunicator(sessionID string, log *zap.Logger, sinks ...Sink) *Communicator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Communicator{sessionID: sessionID, sinks: sinks, log: log}
}

func (c *Communicator) Transcript(ctx context.Context, speaker, text string) {
	c.send(ctx, Event{Type: TypeTranscript, Speaker: speaker, Text: text})
}

func (c *Communicator) Options(ctx context.Context, options []string, message string) {
	c.send(ctx, Event{Type: TypeOptions, Options: options, Message: message})
}

func (c *Communicator) StateUpdate(ctx context.Context, state, message string) {
	c.send(ctx, Event{Type: TypeStateUpdate, State: state, Message: message})
}

func (c *Communicator) CurrentSpeech(ctx context.Context, text string) {
	c.send(ctx, Event{Type: TypeCurrentSpeech, Text: text})
}

func (c *Communicator) send(ctx context.Context, ev Event) {
	if c == nil {
		return
	}
	ev.TsMs = time.Now().UnixMilli()
	for _, s := range c.sinks {
		if err := s.Publish(ctx, c.sessionID, ev); err != nil {
			c.log.Debug("frontend publish failed",
				zap.String("session_id", c.sessionID),
				zap.String("type", ev.Type),
				zap.Error(err))
		}
	}
}

// Inbound is one message from the frontend or voice pipeline.
type Inbound struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Option      string `json:"option,omitempty"`
	UtteranceID string `json:"utterance_id,omitempty"`
}

// Utterance returns the user text carried by the message, if any. A selected
// option is treated exactly like typed text.
func (in Inbound) Utterance() (string, bool) {
	switch in.Type {
	case TypeUserMessage, TypeTranscriptFinal:
		t := strings.TrimSpace(in.Text)
		return t, t != ""
	case TypeOptionSelected:
		t := strings.TrimSpace(in.Option)
		return t, t != ""
	}
	return "", false
}

// ParseInbound decodes and checks a raw inbound message.
func ParseInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, errors.Wrap(err, "decode inbound message")
	}
	switch in.Type {
	case TypeUserMessage, TypeOptionSelected, TypeTranscriptFinal, TypeTTSStarted, TypeTTSStopped, TypeSessionStart:
		return in, nil
	case "":
		return Inbound{}, errors.New("inbound message missing type")
	}
	return Inbound{}, errors.Errorf("unknown inbound message type %q", in.Type)
}
