package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tablecall/agent/internal/config"
	"tablecall/agent/internal/extract"
	"tablecall/agent/internal/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	addr := flag.String("addr", ":"+cfg.Extractor.GRPCPort, "extractor gRPC listen addr")
	probes := flag.String("probes", ":"+cfg.Extractor.HealthPort, "probes/metrics listen addr")
	flag.Parse()

	logger, err := logging.New(cfg.Production(), cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	llm, closeLLM, err := extract.FromConfig(context.Background(), cfg, logger.Named("extract"))
	if err != nil {
		logger.Fatal("extractor", zap.Error(err))
	}
	defer func() { _ = closeLLM() }()

	s := grpc.NewServer()
	extract.NewServer(llm, logger.Named("rpc")).Register(s)

	hs := grpchealth.NewServer()
	hs.SetServingStatus(extract.ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	// metrics/health
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok\n")) })
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok\n")) })
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("extractor probes/metrics", zap.String("addr", *probes))
		srv := &http.Server{Addr: *probes, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("probes server", zap.Error(err))
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info("shutdown signal received; draining")
		hs.Shutdown()
		s.GracefulStop()
	}()

	l, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	logger.Info("extractor listening",
		zap.String("addr", *addr),
		zap.String("provider", cfg.Extractor.Provider),
	)
	if err := s.Serve(l); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
