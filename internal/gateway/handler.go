// Package gateway carries the frontend event channel over websockets: typed
// text and voice-pipeline messages in, transcript and state events out.
package gateway

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
	ws "nhooyr.io/websocket"

	"tablecall/agent/internal/auth"
	"tablecall/agent/internal/frontend"
	"tablecall/agent/internal/session"
)

type Server struct {
	Store  *session.Store
	Reg    *Registry
	Tokens *auth.Issuer
	Log    *zap.Logger
	// OriginPatterns is passed to websocket.Accept; empty means same origin.
	OriginPatterns []string
}

func NewServer(st *session.Store, reg *Registry, tokens *auth.Issuer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Store: st, Reg: reg, Tokens: tokens, Log: log}
}

// Handle upgrades the request for sessionID after checking its token, taken
// from the Authorization header or the token query parameter.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, err := s.Store.Active(sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, err := s.Tokens.Verify(token, sessionID); err != nil {
		s.Log.Info("ws token rejected", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: s.OriginPatterns})
	if err != nil {
		s.Log.Warn("ws accept", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if s.Reg.Replace(sessionID, c) {
		s.Store.AppendEvent(sessionID, "client_replaced", nil)
	}
	s.Store.AppendEvent(sessionID, "client_connected", nil)
	metricConnections.Inc()
	defer metricConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	var turns sync.WaitGroup
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		in, err := frontend.ParseInbound(data)
		if err != nil {
			s.Store.AppendEvent(sessionID, "client_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		if _, ok := in.Utterance(); ok {
			// Turns run beside the read loop so the floor guard sees a
			// second utterance while the first is processing and drops it.
			turns.Add(1)
			go func() {
				defer turns.Done()
				s.dispatch(ctx, sessionID, in)
			}()
			continue
		}
		s.dispatch(ctx, sessionID, in)
	}
	// an in-flight turn is abandoned with the connection
	cancel()
	turns.Wait()
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID, c)
	s.Store.AppendEvent(sessionID, "client_disconnected", nil)
}

func (s *Server) dispatch(ctx context.Context, sessionID string, in frontend.Inbound) {
	sess, err := s.Store.Active(sessionID)
	if err != nil {
		s.Reg.Close(sessionID, "session ended")
		return
	}
	metricInbound.WithLabelValues(in.Type).Inc()

	switch in.Type {
	case frontend.TypeSessionStart:
		if _, err := s.Store.Start(ctx, sessionID); err != nil {
			s.Log.Warn("start session", zap.String("session_id", sessionID), zap.Error(err))
		}
	case frontend.TypeTTSStarted:
		sess.Machine.Floor().OnTTSStarted(in.UtteranceID)
		s.Store.AppendEvent(sessionID, in.Type, map[string]any{"utterance_id": in.UtteranceID})
	case frontend.TypeTTSStopped:
		sess.Machine.Floor().OnTTSStopped(in.UtteranceID)
		s.Store.AppendEvent(sessionID, in.Type, map[string]any{"utterance_id": in.UtteranceID})
	default:
		text, ok := in.Utterance()
		if !ok {
			return
		}
		r, err := s.Store.Turn(ctx, sessionID, text)
		if err != nil {
			s.Log.Warn("turn", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		if r.Dropped {
			s.Log.Debug("turn dropped", zap.String("session_id", sessionID), zap.String("reason", r.Reason))
		}
	}
}
