// Package api is the HTTP surface of the agent: session lifecycle, text
// turns, event and booking inspection, and the websocket upgrade.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tablecall/agent/internal/auth"
	"tablecall/agent/internal/booking"
	"tablecall/agent/internal/gateway"
	"tablecall/agent/internal/health"
	"tablecall/agent/internal/session"
	"tablecall/agent/internal/tools"
)

const MaxBodyBytes = 1 << 16

// ReadyFunc reports dependency health for /readyz.
type ReadyFunc func(ctx context.Context) health.HealthStatus

// ToolLister describes the backend tools the agent can call.
type ToolLister interface {
	List() []tools.Descriptor
}

type Handlers struct {
	store  *session.Store
	tokens *auth.Issuer
	gw     *gateway.Server
	ready  ReadyFunc
	tools  ToolLister
	log    *zap.Logger
}

func NewHandlers(st *session.Store, tokens *auth.Issuer, gw *gateway.Server, ready ReadyFunc, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{store: st, tokens: tokens, gw: gw, ready: ready, log: log}
}

// WithTools enables GET /tools.
func (h *Handlers) WithTools(l ToolLister) *Handlers {
	h.tools = l
	return h
}

type turnRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create()
	if err != nil {
		h.log.Error("create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	resp := map[string]any{"session_id": sess.ID}
	if h.tokens != nil {
		tok, exp, err := h.tokens.Mint(sess.ID)
		switch {
		case err == nil:
			resp["token"] = tok
			resp["token_expires_at"] = exp.UTC().Format(time.RFC3339)
		case errors.Is(err, auth.ErrNoSecret):
			h.log.Warn("session token secret not configured; websocket disabled")
		default:
			h.log.Error("mint token", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reply, err := h.store.Start(r.Context(), id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handlers) HandleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	reply, err := h.store.Turn(r.Context(), id, req.Text)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.Get(id); err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

func (h *Handlers) HandleGetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.store.Get(id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	bc := sess.Machine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"state":      bc.State,
		"complete":   bc.IsComplete(),
		"context":    bc,
		"booking":    bookingData(bc),
	})
}

func bookingData(bc booking.Context) *booking.Data {
	if !bc.IsComplete() {
		return nil
	}
	d := bc.ToBookingData()
	return &d
}

func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ended, err := h.store.End(id)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if h.gw != nil {
		h.gw.Reg.Close(id, "session ended")
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ended": ended})
}

func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil || h.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "websocket channel disabled")
		return
	}
	h.gw.Handle(w, r, chi.URLParam(r, "id"))
}

func (h *Handlers) HandleListTools(w http.ResponseWriter, r *http.Request) {
	list := []tools.Descriptor{}
	if h.tools != nil {
		list = h.tools.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": list})
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	st := h.ready(ctx)
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func (h *Handlers) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrSessionEnded):
		writeError(w, http.StatusConflict, "session ended")
	default:
		h.log.Error("session request", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
