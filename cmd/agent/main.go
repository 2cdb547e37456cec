package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"tablecall/agent/internal/api"
	"tablecall/agent/internal/auth"
	"tablecall/agent/internal/backend"
	"tablecall/agent/internal/config"
	"tablecall/agent/internal/dialogue"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/frontend"
	"tablecall/agent/internal/gateway"
	"tablecall/agent/internal/health"
	"tablecall/agent/internal/logging"
	"tablecall/agent/internal/session"
	"tablecall/agent/internal/tools"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := logging.New(cfg.Production(), cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	be := backend.New(backend.Options{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.BackendTimeout(),
		RatePerSec: cfg.Backend.RateLimit,
		Burst:      cfg.Backend.Burst,
		Generic:    cfg.Backend.Generic,
		Logger:     logger.Named("backend"),
	})
	exec := tools.NewExecutor(be, logger.Named("tools"))

	var (
		extractor    extract.Extractor
		extractConn  grpc.ClientConnInterface
		closeExtract func() error
	)
	switch cfg.Extractor.Mode {
	case config.ExtractorGRPC:
		c := extract.NewClient(cfg.Extractor.Addr)
		conn, err := c.Conn()
		if err != nil {
			logger.Fatal("extractor client", zap.Error(err))
		}
		extractor, extractConn, closeExtract = c, conn, c.Close
	default:
		l, closeFn, err := extract.FromConfig(context.Background(), cfg, logger.Named("extract"))
		if err != nil {
			// keep serving; readiness reports the missing provider
			logger.Warn("extractor unavailable", zap.Error(err))
			extractor = extract.ExtractorFunc(func(context.Context, extract.Request) (extract.Extraction, error) {
				return extract.Extraction{}, err
			})
		} else {
			extractor = l
		}
		closeExtract = closeFn
	}
	defer func() { _ = closeExtract() }()

	reg := gateway.NewRegistry()
	st := session.New(func(id string, fe *frontend.Communicator) *dialogue.Machine {
		return dialogue.New(dialogue.Options{
			SessionID:      id,
			Extractor:      extractor,
			Tools:          exec,
			Frontend:       fe,
			Logger:         logger.Named("dialogue"),
			CollectEmail:   cfg.Dialogue.CollectEmail,
			RestaurantName: cfg.Dialogue.RestaurantName,
			ExtractTimeout: cfg.ExtractTimeout(),
		})
	}, logger.Named("session"), reg)

	tokens := auth.NewIssuer(cfg.Session.TokenSecret, cfg.TokenTTL(), cfg.TokenSkew())
	if cfg.Session.TokenSecret == "" {
		logger.Warn("SESSION_TOKEN_SECRET not set; websocket connections will be refused")
	}
	wss := gateway.NewServer(st, reg, tokens, logger.Named("gateway"))

	ready := func(ctx context.Context) health.HealthStatus {
		return health.CheckAll(ctx, cfg, be, extractConn)
	}
	h := api.NewHandlers(st, tokens, wss, ready, logger.Named("api")).WithTools(exec)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(logger, api.NewRouter(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info("shutdown signal received; stopping server")
		for _, id := range st.ListSessionIDs() {
			if ok, _ := st.End(id); ok {
				reg.Close(id, "server shutting down")
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("agent starting",
		zap.String("addr", addr),
		zap.String("extractor_mode", cfg.Extractor.Mode),
		zap.String("backend", be.BaseURL()),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func logMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}
