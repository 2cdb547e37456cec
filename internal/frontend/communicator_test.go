package frontend

import (
	"context"
	"errors"
	"testing"
)

func TestCommunicatorFansOut(t *testing.T) {
	var a, b []Event
	c := NewCommunicator("s1", nil,
		SinkFunc(func(_ context.Context, id string, ev Event) error {
			if id != "s1" {
				t.Errorf("session id = %q", id)
			}
			a = append(a, ev)
			return nil
		}),
		SinkFunc(func(_ context.Context, _ string, ev Event) error {
			b = append(b, ev)
			return errors.New("closed")
		}),
	)
	ctx := context.Background()
	c.Transcript(ctx, SpeakerAgent, "Hello")
	c.Options(ctx, []string{"Yes", "No"}, "Is this correct?")
	c.StateUpdate(ctx, "confirming", "")

	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("a=%d b=%d", len(a), len(b))
	}
	if a[0].Type != TypeTranscript || a[0].Speaker != SpeakerAgent || a[0].Text != "Hello" {
		t.Errorf("transcript = %+v", a[0])
	}
	if a[1].Type != TypeOptions || len(a[1].Options) != 2 {
		t.Errorf("options = %+v", a[1])
	}
	if a[2].Type != TypeStateUpdate || a[2].State != "confirming" || a[2].TsMs == 0 {
		t.Errorf("state update = %+v", a[2])
	}
}

func TestNilCommunicatorIsSafe(t *testing.T) {
	var c *Communicator
	c.Transcript(context.Background(), SpeakerUser, "hi")
}

func TestParseInbound(t *testing.T) {
	in, err := ParseInbound([]byte(`{"type":"option_selected","option":"Yes"}`))
	if err != nil {
		t.Fatal(err)
	}
	if u, ok := in.Utterance(); !ok || u != "Yes" {
		t.Fatalf("utterance = %q %v", u, ok)
	}

	in, err = ParseInbound([]byte(`{"type":"tts_started","utterance_id":"u1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := in.Utterance(); ok {
		t.Fatal("tts events carry no utterance")
	}

	for _, raw := range []string{`{}`, `{"type":"dance"}`, `not json`} {
		if _, err := ParseInbound([]byte(raw)); err == nil {
			t.Errorf("%s: want error", raw)
		}
	}
	if _, ok := (Inbound{Type: TypeUserMessage, Text: "  "}).Utterance(); ok {
		t.Fatal("blank text is not an utterance")
	}
}
