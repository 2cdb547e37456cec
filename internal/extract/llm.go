package extract

import (
	"context"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Completer is one round trip to a chat model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLM is an Extractor backed by a chat model.
type LLM struct {
	completer Completer
	timeout   time.Duration
	log       *zap.Logger
}

func NewLLM(c Completer, timeout time.Duration, log *zap.Logger) *LLM {
	if log == nil {
		log = zap.NewNop()
	}
	return &LLM{completer: c, timeout: timeout, log: log}
}

func (l *LLM) Extract(ctx context.Context, req Request) (Extraction, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	raw, err := l.completer.Complete(ctx, SystemPrompt, BuildPrompt(req))
	metricCompletionLatency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metricFailures.WithLabelValues("completion").Inc()
		return Extraction{}, err
	}
	e, err := ParseExtraction(raw)
	if err != nil {
		metricFailures.WithLabelValues("parse").Inc()
		l.log.Warn("unparseable model output", zap.String("state", string(req.State)), zap.Error(err))
		return Extraction{}, err
	}
	return e, nil
}

// OpenAI completes through the chat completions API in JSON mode. BaseURL
// may point at any compatible endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Gemini completes through the Gemini API with a JSON response type.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "gemini client")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0)
	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", errors.Wrap(err, "gemini generate")
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini: empty candidates")
	}
	return sb.String(), nil
}

func (g *Gemini) Close() error { return g.client.Close() }
