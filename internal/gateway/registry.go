package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	ws "nhooyr.io/websocket"

	"tablecall/agent/internal/frontend"
)

const writeTimeout = 5 * time.Second

// Registry keeps at most one frontend connection per session.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

// Replace sets the connection for a session and closes the previous one if present.
func (r *Registry) Replace(sessionID string, c *ws.Conn) (prevClosed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[sessionID]; ok && old != nil {
		_ = old.Close(ws.StatusNormalClosure, "replaced")
		prevClosed = true
	}
	r.conns[sessionID] = c
	return
}

func (r *Registry) Get(sessionID string) *ws.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[sessionID]
}

// Remove drops the session's connection if it is still c.
func (r *Registry) Remove(sessionID string, c *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[sessionID] == c {
		delete(r.conns, sessionID)
	}
}

// Close closes and drops the session's connection.
func (r *Registry) Close(sessionID, reason string) {
	r.mu.Lock()
	c := r.conns[sessionID]
	delete(r.conns, sessionID)
	r.mu.Unlock()
	if c != nil {
		_ = c.Close(ws.StatusNormalClosure, reason)
	}
}

// SendJSON writes v to the session's connection. Without a connection it is
// a no-op.
func (r *Registry) SendJSON(ctx context.Context, sessionID string, v any) error {
	c := r.Get(sessionID)
	if c == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(ctx, ws.MessageText, b)
}

// Publish makes the registry a frontend sink.
func (r *Registry) Publish(ctx context.Context, sessionID string, ev frontend.Event) error {
	return r.SendJSON(ctx, sessionID, ev)
}
