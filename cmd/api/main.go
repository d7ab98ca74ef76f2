package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gustavoatec2-lang/havencomics/internal/app"
	"github.com/gustavoatec2-lang/havencomics/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	application, err := app.New(cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN is empty, admin routes will refuse every request")
	}

	runnerCtx, runnerCancel := context.WithCancel(context.Background())
	application.Runner.Start(runnerCtx)

	server := application.Server()
	go func() {
		if err := server.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	slog.Info("api started",
		"port", cfg.Port,
		"env", cfg.Environment,
		"storage", cfg.Storage.Driver,
		"defaultSource", application.Pipeline.Snapshot().Source,
		"defaultProxy", application.Pipeline.Snapshot().Proxy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down server")
	application.Pipeline.Cancel()
	runnerCancel()
	application.Runner.StopWait(5 * time.Second)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
