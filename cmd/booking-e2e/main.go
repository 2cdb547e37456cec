package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"tablecall/agent/internal/frontend"
)

var defaultScript = []string{
	"a table for two please",
	"tomorrow",
	"yes outdoor sounds lovely",
	"seven thirty in the evening",
	"Italian",
	"no special requests",
	"no thanks",
	"yes that's correct",
}

func main() {
	base := flag.String("agent", "http://localhost:8080", "Agent HTTP address")
	script := flag.String("script", "", "Utterances separated by '|' (defaults to a full booking)")
	wait := flag.Duration("wait", 20*time.Second, "How long to wait for each agent reply")
	timeout := flag.Duration("timeout", 3*time.Minute, "Overall timeout")
	flag.Parse()

	lines := defaultScript
	if *script != "" {
		lines = strings.Split(*script, "|")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, strings.TrimRight(*base, "/"), lines, *wait); err != nil {
		fmt.Fprintln(os.Stderr, "e2e:", err)
		os.Exit(1)
	}
}

type created struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func run(ctx context.Context, base string, lines []string, wait time.Duration) error {
	sess, err := createSession(ctx, base)
	if err != nil {
		return err
	}
	fmt.Printf("=== Booking E2E ===\nSession: %s\n\n", sess.SessionID)

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws/sessions/" + sess.SessionID
	c, _, err := ws.Dial(ctx, wsURL, &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + sess.Token}},
	})
	if err != nil {
		return errors.Wrap(err, "dial websocket")
	}
	defer c.Close(ws.StatusNormalClosure, "bye")

	replies := make(chan frontend.Event, 16)
	go func() {
		defer close(replies)
		for {
			var ev frontend.Event
			if err := wsjson.Read(ctx, c, &ev); err != nil {
				return
			}
			printEvent(ev)
			if ev.Type == frontend.TypeTranscript && ev.Speaker == frontend.SpeakerAgent {
				replies <- ev
			}
		}
	}()

	if err := wsjson.Write(ctx, c, frontend.Inbound{Type: frontend.TypeSessionStart}); err != nil {
		return errors.Wrap(err, "send session_start")
	}
	if err := awaitReply(ctx, replies, wait); err != nil {
		return err
	}

	for i, line := range lines {
		fmt.Printf("\n[%d] caller: %q\n", i+1, line)
		if err := wsjson.Write(ctx, c, frontend.Inbound{Type: frontend.TypeUserMessage, Text: line}); err != nil {
			return errors.Wrapf(err, "send utterance %d", i+1)
		}
		if err := awaitReply(ctx, replies, wait); err != nil {
			return err
		}
	}

	fmt.Println("\n=== Booking ===")
	return printBooking(ctx, base, sess.SessionID)
}

func createSession(ctx context.Context, base string) (created, error) {
	var out created
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/sessions", bytes.NewReader([]byte("{}")))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, errors.Wrap(err, "create session")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return out, errors.Errorf("create session: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, errors.Wrap(err, "decode session")
	}
	if out.Token == "" {
		return out, errors.New("agent issued no token; is SESSION_TOKEN_SECRET set?")
	}
	return out, nil
}

func awaitReply(ctx context.Context, replies <-chan frontend.Event, wait time.Duration) error {
	select {
	case _, ok := <-replies:
		if !ok {
			return errors.New("connection closed")
		}
		return nil
	case <-time.After(wait):
		return errors.Errorf("no agent reply within %s", wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printBooking(ctx context.Context, base, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/sessions/"+id+"/booking", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "get booking")
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decode booking")
	}
	b, _ := json.MarshalIndent(body, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printEvent(ev frontend.Event) {
	switch ev.Type {
	case frontend.TypeTranscript:
		fmt.Printf("  %s: %s\n", ev.Speaker, ev.Text)
	case frontend.TypeStateUpdate:
		fmt.Printf("  [state] %s\n", ev.State)
	case frontend.TypeOptions:
		fmt.Printf("  [options] %s\n", strings.Join(ev.Options, " / "))
	case frontend.TypeCurrentSpeech:
		// partial speech is noise for a scripted run
	default:
		fmt.Printf("  [%s] %s\n", ev.Type, ev.Message)
	}
}
