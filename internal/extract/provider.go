package extract

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tablecall/agent/internal/config"
)

// FromConfig builds the in-process LLM extractor for the configured
// provider. The returned close func releases provider clients.
func FromConfig(ctx context.Context, cfg config.Config, log *zap.Logger) (*LLM, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Extractor.Provider {
	case config.ProviderOpenAI, "":
		if cfg.OpenAI.APIKey == "" {
			return nil, noop, errors.New("OPENAI_API_KEY is required")
		}
		c := NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Extractor.Model)
		return NewLLM(c, cfg.ExtractTimeout(), log), noop, nil
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, noop, errors.New("GEMINI_API_KEY is required")
		}
		g, err := NewGemini(ctx, cfg.Gemini.APIKey, cfg.Extractor.Model)
		if err != nil {
			return nil, noop, err
		}
		return NewLLM(g, cfg.ExtractTimeout(), log), g.Close, nil
	}
	return nil, noop, errors.Errorf("unknown LLM provider %q", cfg.Extractor.Provider)
}
