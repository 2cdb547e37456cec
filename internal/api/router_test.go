package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tablecall/agent/internal/auth"
	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/dialogue"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/frontend"
	"tablecall/agent/internal/gateway"
	"tablecall/agent/internal/health"
	"tablecall/agent/internal/session"
	"tablecall/agent/internal/tools"
)

func newTestServer(t *testing.T, ready ReadyFunc) *httptest.Server {
	t.Helper()
	ex := extract.ExtractorFunc(func(_ context.Context, req extract.Request) (extract.Extraction, error) {
		if req.Utterance == "two people" {
			return extract.Extraction{Guests: booking.Ptr(2)}, nil
		}
		return extract.Extraction{}, nil
	})
	reg := gateway.NewRegistry()
	st := session.New(func(id string, fe *frontend.Communicator) *dialogue.Machine {
		return dialogue.New(dialogue.Options{SessionID: id, Frontend: fe, Extractor: ex})
	}, nil, reg)
	tokens := auth.NewIssuer("test-secret", time.Minute, 0)
	h := NewHandlers(st, tokens, gateway.NewServer(st, reg, tokens, nil), ready, nil).
		WithTools(tools.NewExecutor(nil, nil))
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStartEndUnknownSession404(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/sessions/unknown/start", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/sessions/unknown/end", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	var created struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	decode(t, resp, &created)
	if created.SessionID == "" || created.Token == "" {
		t.Fatalf("created = %+v", created)
	}
	base := srv.URL + "/sessions/" + created.SessionID

	var reply dialogue.Reply
	decode(t, postJSON(t, base+"/start", nil), &reply)
	if reply.State != booking.CollectingGuests || !strings.Contains(reply.Text, "How many guests") {
		t.Fatalf("start reply = %+v", reply)
	}

	decode(t, postJSON(t, base+"/turns", map[string]string{"text": "two people"}), &reply)
	if reply.State != booking.CollectingDate || reply.Dropped {
		t.Fatalf("turn reply = %+v", reply)
	}

	resp, err := http.Get(base + "/booking")
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	var snap struct {
		State   booking.State   `json:"state"`
		Context booking.Context `json:"context"`
	}
	decode(t, resp, &snap)
	if snap.State != booking.CollectingDate || snap.Context.NumberOfGuests == nil || *snap.Context.NumberOfGuests != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	resp, err = http.Get(base + "/events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var evs struct {
		Events []session.Event `json:"events"`
	}
	decode(t, resp, &evs)
	if len(evs.Events) == 0 || evs.Events[0].Type != "session_created" {
		t.Fatalf("events = %+v", evs.Events)
	}

	resp = postJSON(t, base+"/end", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end: %d", resp.StatusCode)
	}
	resp = postJSON(t, base+"/turns", map[string]string{"text": "tomorrow"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("turn after end: %d", resp.StatusCode)
	}
}

func TestTurnRequiresText(t *testing.T) {
	srv := newTestServer(t, nil)
	var created struct {
		SessionID string `json:"session_id"`
	}
	decode(t, postJSON(t, srv.URL+"/sessions", nil), &created)

	resp := postJSON(t, srv.URL+"/sessions/"+created.SessionID+"/turns", map[string]string{"text": "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	srv := newTestServer(t, func(context.Context) health.HealthStatus {
		return health.HealthStatus{OK: false, Checks: []health.CheckResult{{Name: "backend", Error: "down"}}}
	})
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/tools")
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tools: %d", resp.StatusCode)
	}
	var body struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	decode(t, resp, &body)
	names := map[string][]string{}
	for _, d := range body.Tools {
		names[d.Name] = d.Required
	}
	for _, n := range []string{tools.Weather, tools.CheckAvailability, tools.CheckDate, tools.CreateBooking, tools.SendEmail} {
		if _, ok := names[n]; !ok {
			t.Errorf("tool %q missing from %+v", n, body.Tools)
		}
	}
	if req := names[tools.SendEmail]; len(req) != 1 || req[0] != "bookingId" {
		t.Errorf("send-email required = %v", req)
	}
}
