package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/basex-empresa/internal/app"
	"github.com/ogurasousui/basex-empresa/internal/platform/config"
	"github.com/ogurasousui/basex-empresa/internal/platform/logger"
	"github.com/ogurasousui/basex-empresa/internal/platform/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireServer(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New(os.Stderr, cfg.Log)
	slog.SetDefault(lg)

	a, err := app.Open(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn("failed to close store session", slog.Any("error", err))
		}
	}()

	grpcServer := server.New(cfg.Server.ListenAddr, a.Service, lg)
	lg.Info("gRPC server listening", slog.String("addr", cfg.Server.ListenAddr))

	return grpcServer.Run(ctx)
}
