package health

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tablecall/agent/internal/config"
	"tablecall/agent/internal/extract"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// DateSource is the backend call used as a liveness probe.
type DateSource interface {
	CheckDate(ctx context.Context) (map[string]any, error)
}

// CheckAll runs all health checks and returns combined status. extractor is
// only dialed when the sidecar mode is configured.
func CheckAll(ctx context.Context, cfg config.Config, backend DateSource, extractor grpc.ClientConnInterface) HealthStatus {
	checks := []CheckResult{
		checkBackend(ctx, backend),
		checkExtractor(ctx, cfg, extractor),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkBackend(ctx context.Context, backend DateSource) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "backend"}
	if backend == nil {
		result.Error = "backend client not configured"
		return result
	}
	_, err := backend.CheckDate(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}

func checkExtractor(ctx context.Context, cfg config.Config, conn grpc.ClientConnInterface) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "extractor"}

	if cfg.Extractor.Mode != config.ExtractorGRPC {
		return checkLLMKey(cfg)
	}
	if conn == nil {
		result.Error = "extractor connection not configured"
		return result
	}
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: extract.ServiceName})
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("health rpc failed: %v", err)
		return result
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		result.Error = fmt.Sprintf("extractor status %s", resp.GetStatus())
		return result
	}
	result.OK = true
	return result
}

// checkLLMKey verifies the in-process extractor has credentials. It does not
// call the provider.
func checkLLMKey(cfg config.Config) CheckResult {
	result := CheckResult{Name: "llm_" + cfg.Extractor.Provider}
	switch cfg.Extractor.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			result.Error = "OPENAI_API_KEY not set"
			return result
		}
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			result.Error = "GEMINI_API_KEY not set"
			return result
		}
	default:
		result.Error = fmt.Sprintf("unknown LLM provider %q", cfg.Extractor.Provider)
		return result
	}
	result.OK = true
	return result
}
