// File path: cmd/repoguard/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DataShieldAI/repoguard/internal/api"
	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/data/orchestrator"
	"github.com/DataShieldAI/repoguard/internal/llm"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		common.Logger().Warn("main: load .env failed", "error", err)
	}

	addr := flag.String("addr", ":8081", "listen address")
	dbPath := flag.String("db", "", "sqlite database path")
	evidencePath := flag.String("evidence", "", "evidence archive path")
	workers := flag.Int("workers", 0, "worker pool size")
	syncInterval := flag.Duration("sync-interval", 0, "reconciler interval")
	syncTimeout := flag.Duration("sync-timeout", 0, "reconciler pass timeout")
	syncRetries := flag.Int("sync-retries", 0, "reconciler retry budget per record")
	syncBackoff := flag.Duration("sync-backoff", 0, "reconciler retry backoff")
	flag.Parse()

	logger := common.Logger()
	cfg, err := orchestrator.LoadConfig()
	if err != nil {
		logger.Error("main: load configuration", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *evidencePath != "" {
		cfg.EvidencePath = *evidencePath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *syncInterval > 0 {
		cfg.SyncInterval = *syncInterval
	}
	if *syncTimeout > 0 {
		cfg.SyncTimeout = *syncTimeout
	}
	if *syncRetries > 0 {
		cfg.MaxSyncRetries = *syncRetries
	}
	if *syncBackoff > 0 {
		cfg.RetryBackoff = *syncBackoff
	}

	orch, err := orchestrator.New(cfg)
	if err != nil {
		logger.Error("main: build orchestrator", "error", err)
		os.Exit(1)
	}
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := llm.NewProvider()
	server, err := api.NewServer(ctx, orch, provider)
	if err != nil {
		logger.Error("main: build server", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("main: listening", "addr", *addr, "db", cfg.DatabasePath)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("main: server stopped", "error", err)
		os.Exit(1)
	}
}
