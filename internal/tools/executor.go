// Package tools dispatches named backend operations behind a uniform
// success/error envelope.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Tool names.
const (
	Weather           = "weather"
	CheckAvailability = "check-availability"
	CheckDate         = "check-date"
	CreateBooking     = "create-booking"
	SendEmail         = "send-email"
)

// Result is the envelope every call returns. Errors never escape Execute.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func fail(msg string) Result { return Result{Error: msg} }

// Runner executes tools. The dialogue machine depends on this.
type Runner interface {
	Execute(ctx context.Context, name string, params map[string]any) Result
}

// Backend is the network side of the tools; *backend.Client implements it.
type Backend interface {
	Weather(ctx context.Context, date, at string) (map[string]any, error)
	CheckAvailability(ctx context.Context, date, at string) (map[string]any, error)
	CheckDate(ctx context.Context) (map[string]any, error)
	CreateBooking(ctx context.Context, payload map[string]any) (map[string]any, error)
	SendEmail(ctx context.Context, bookingID string) (map[string]any, error)
}

type handler func(ctx context.Context, p map[string]any) (map[string]any, error)

type tool struct {
	name        string
	description string
	required    []string
	run         handler
}

// Descriptor describes one registered tool.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
}

type Executor struct {
	tools map[string]tool
	log   *zap.Logger
}

func NewExecutor(b Backend, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{tools: map[string]tool{}, log: log}
	e.register(tool{
		name:        Weather,
		description: "Get the weather forecast for a booking date",
		required:    []string{"date"},
		run: func(ctx context.Context, p map[string]any) (map[string]any, error) {
			return b.Weather(ctx, str(p, "date"), str(p, "time"))
		},
	})
	e.register(tool{
		name:        CheckAvailability,
		description: "Check if a date/time slot is available for booking",
		required:    []string{"date"},
		run: func(ctx context.Context, p map[string]any) (map[string]any, error) {
			return b.CheckAvailability(ctx, str(p, "date"), str(p, "time"))
		},
	})
	e.register(tool{
		name:        CheckDate,
		description: "Get the current date and time",
		run: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			return b.CheckDate(ctx)
		},
	})
	e.register(tool{
		name:        CreateBooking,
		description: "Create a restaurant booking",
		required:    []string{"numberOfGuests", "bookingDate", "bookingTime"},
		run:         b.CreateBooking,
	})
	e.register(tool{
		name:        SendEmail,
		description: "Send booking confirmation email",
		required:    []string{"bookingId"},
		run: func(ctx context.Context, p map[string]any) (map[string]any, error) {
			return b.SendEmail(ctx, str(p, "bookingId"))
		},
	})
	return e
}

func (e *Executor) register(t tool) { e.tools[t.name] = t }

// Execute runs the named tool. Unknown tools, missing parameters, network
// errors and panics all come back as a failed Result.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tool panicked", zap.String("tool", name), zap.Any("panic", r))
			res = fail(fmt.Sprintf("tool %s failed unexpectedly", name))
		}
		outcome := "ok"
		if !res.Success {
			outcome = "error"
		}
		metricToolCalls.WithLabelValues(name, outcome).Inc()
		metricToolLatency.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	}()

	t, ok := e.tools[name]
	if !ok {
		return fail(fmt.Sprintf("Tool '%s' not found. Available tools: %s", name, strings.Join(e.names(), ", ")))
	}
	if params == nil {
		params = map[string]any{}
	}
	for _, k := range t.required {
		if missing(params[k]) {
			e.log.Warn("tool validation failed", zap.String("tool", name), zap.String("param", k))
			return fail("Missing required parameter: " + k)
		}
	}
	data, err := t.run(ctx, params)
	if err != nil {
		e.log.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return fail(err.Error())
	}
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: true, Data: data}
}

// List describes the registered tools, sorted by name.
func (e *Executor) List() []Descriptor {
	out := make([]Descriptor, 0, len(e.tools))
	for _, n := range e.names() {
		t := e.tools[n]
		out = append(out, Descriptor{Name: t.name, Description: t.description, Required: t.required})
	}
	return out
}

func (e *Executor) names() []string {
	names := make([]string, 0, len(e.tools))
	for n := range e.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func missing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func str(p map[string]any, k string) string {
	s, _ := p[k].(string)
	return s
}
