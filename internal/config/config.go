package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Extractor modes.
const (
	ExtractorLocal = "local" // in-process LLM adapter
	ExtractorGRPC  = "grpc"  // sidecar over gRPC
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Server struct {
		Port        string
		LogLevel    string
		Environment string
	}
	Backend struct {
		URL       string
		TimeoutMs int
		Generic   bool
		RateLimit float64
		Burst     int
	}
	Extractor struct {
		Mode       string
		Addr       string
		TimeoutMs  int
		Provider   string
		Model      string
		GRPCPort   string
		HealthPort string
	}
	OpenAI struct {
		APIKey  string
		BaseURL string
	}
	Gemini struct {
		APIKey string
	}
	Dialogue struct {
		CollectEmail   bool
		RestaurantName string
	}
	Session struct {
		TokenSecret   string
		TokenTTLMin   int
		TokenSkewSecs int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", "development")

	v.SetDefault("backend.url", "http://localhost:5000")
	v.SetDefault("backend.timeout_ms", 5000)
	v.SetDefault("backend.generic", false)
	v.SetDefault("backend.rate_limit", 10)
	v.SetDefault("backend.burst", 5)

	v.SetDefault("extractor.mode", ExtractorLocal)
	v.SetDefault("extractor.addr", "localhost:9091")
	v.SetDefault("extractor.timeout_ms", 4000)
	v.SetDefault("extractor.provider", ProviderOpenAI)
	v.SetDefault("extractor.grpc_port", 9091)
	v.SetDefault("extractor.health_port", 9092)

	v.SetDefault("dialogue.collect_email", true)
	v.SetDefault("dialogue.restaurant_name", "our restaurant")

	v.SetDefault("session.token_ttl_min", 120)
	v.SetDefault("session.token_skew_secs", 30)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.environment", "ENVIRONMENT")

	v.BindEnv("backend.url", "BACKEND_URL")
	v.BindEnv("backend.timeout_ms", "BACKEND_TIMEOUT_MS")
	v.BindEnv("backend.generic", "BACKEND_GENERIC_TOOLS")
	v.BindEnv("backend.rate_limit", "BACKEND_RATE_LIMIT")
	v.BindEnv("backend.burst", "BACKEND_RATE_BURST")

	v.BindEnv("extractor.mode", "EXTRACTOR_MODE")
	v.BindEnv("extractor.addr", "EXTRACTOR_ADDR")
	v.BindEnv("extractor.timeout_ms", "EXTRACTOR_TIMEOUT_MS")
	v.BindEnv("extractor.provider", "LLM_PROVIDER")
	v.BindEnv("extractor.model", "LLM_MODEL")
	v.BindEnv("extractor.grpc_port", "EXTRACTOR_GRPC_PORT")
	v.BindEnv("extractor.health_port", "EXTRACTOR_HEALTH_PORT")

	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")

	v.BindEnv("dialogue.collect_email", "DIALOGUE_COLLECT_EMAIL")
	v.BindEnv("dialogue.restaurant_name", "RESTAURANT_NAME")

	v.BindEnv("session.token_secret", "SESSION_TOKEN_SECRET")
	v.BindEnv("session.token_ttl_min", "SESSION_TOKEN_TTL_MIN")
	v.BindEnv("session.token_skew_secs", "SESSION_TOKEN_SKEW_SECS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.Environment = v.GetString("server.environment")

	c.Backend.URL = strings.TrimRight(v.GetString("backend.url"), "/")
	c.Backend.TimeoutMs = v.GetInt("backend.timeout_ms")
	c.Backend.Generic = v.GetBool("backend.generic")
	c.Backend.RateLimit = v.GetFloat64("backend.rate_limit")
	c.Backend.Burst = v.GetInt("backend.burst")

	c.Extractor.Mode = strings.ToLower(v.GetString("extractor.mode"))
	c.Extractor.Addr = v.GetString("extractor.addr")
	c.Extractor.TimeoutMs = v.GetInt("extractor.timeout_ms")
	c.Extractor.Provider = strings.ToLower(v.GetString("extractor.provider"))
	c.Extractor.Model = v.GetString("extractor.model")
	c.Extractor.GRPCPort = toString(v.Get("extractor.grpc_port"))
	c.Extractor.HealthPort = toString(v.Get("extractor.health_port"))

	c.OpenAI.APIKey = v.GetString("openai.api_key")
	c.OpenAI.BaseURL = v.GetString("openai.base_url")
	c.Gemini.APIKey = v.GetString("gemini.api_key")

	c.Dialogue.CollectEmail = v.GetBool("dialogue.collect_email")
	c.Dialogue.RestaurantName = v.GetString("dialogue.restaurant_name")

	c.Session.TokenSecret = v.GetString("session.token_secret")
	c.Session.TokenTTLMin = v.GetInt("session.token_ttl_min")
	c.Session.TokenSkewSecs = v.GetInt("session.token_skew_secs")
	return c
}

func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutMs) * time.Millisecond
}

func (c Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Extractor.TimeoutMs) * time.Millisecond
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Session.TokenTTLMin) * time.Minute
}

func (c Config) TokenSkew() time.Duration {
	return time.Duration(c.Session.TokenSkewSecs) * time.Second
}

// Production reports whether logs should use the production encoder.
func (c Config) Production() bool {
	switch strings.ToLower(c.Server.Environment) {
	case "production", "prod":
		return true
	}
	return false
}

func toString(v any) string { return fmt.Sprint(v) }
