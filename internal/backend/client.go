// Package backend is a thin REST client for the restaurant backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIError is a non-success answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend status %d", e.Status)
	}
	return e.Message
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSec caps outgoing requests; zero disables limiting.
	RatePerSec float64
	Burst      int
	// Generic routes every tool through POST /api/tools/{name}.
	Generic    bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	generic bool
	log     *zap.Logger
}

func New(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:5000"
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	httpc := o.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: o.Timeout}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if o.RatePerSec > 0 {
		burst := o.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(o.RatePerSec), burst)
	}
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		httpc:   httpc,
		limiter: lim,
		generic: o.Generic,
		log:     log,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Weather returns {condition, temperature, description} for a date.
func (c *Client) Weather(ctx context.Context, date, at string) (map[string]any, error) {
	if c.generic {
		return c.CallTool(ctx, "weather", withTime(map[string]any{"date": date}, at))
	}
	return c.getData(ctx, "/api/weather/"+url.PathEscape(date), http.StatusOK)
}

// CheckAvailability returns {available, conflictCount}.
func (c *Client) CheckAvailability(ctx context.Context, date, at string) (map[string]any, error) {
	if c.generic {
		return c.CallTool(ctx, "check-availability", withTime(map[string]any{"date": date}, at))
	}
	q := url.Values{"date": {date}}
	if at != "" {
		q.Set("time", at)
	}
	return c.getData(ctx, "/api/bookings/availability?"+q.Encode(), http.StatusOK)
}

// CheckDate returns the backend's notion of now ({today, currentTime}). It
// has no bespoke route.
func (c *Client) CheckDate(ctx context.Context) (map[string]any, error) {
	return c.CallTool(ctx, "check-date", map[string]any{})
}

// CreateBooking posts a booking and returns the created record.
func (c *Client) CreateBooking(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if c.generic {
		return c.CallTool(ctx, "create-booking", payload)
	}
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/api/bookings", payload, http.StatusCreated, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// SendEmail asks the backend to mail the confirmation for a booking.
func (c *Client) SendEmail(ctx context.Context, bookingID string) (map[string]any, error) {
	return c.CallTool(ctx, "send-email", map[string]any{"bookingId": bookingID})
}

// CallTool posts params to the generic tool endpoint.
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/api/tools/"+url.PathEscape(name), params, http.StatusOK, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{Status: http.StatusOK, Message: env.message()}
	}
	return env.Data, nil
}

type envelope struct {
	Success *bool          `json:"success"`
	Data    map[string]any `json:"data"`
	Error   any            `json:"error"`
	Message string         `json:"message"`
}

func (e envelope) message() string {
	switch v := e.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			return m
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return "unknown error"
}

func (c *Client) getData(ctx context.Context, path string, want int) (map[string]any, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, path, nil, want, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out *envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "backend rate limit")
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	c.log.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	decodeErr := json.Unmarshal(raw, out)
	if resp.StatusCode != want {
		msg := ""
		if decodeErr == nil {
			msg = out.message()
		} else {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return errors.Wrap(decodeErr, "decode response")
	}
	return nil
}

func withTime(p map[string]any, at string) map[string]any {
	if at != "" {
		p["time"] = at
	}
	return p
}
