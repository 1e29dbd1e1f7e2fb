package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JohnTitor998/chiya/internal/app"
	"github.com/JohnTitor998/chiya/internal/config"
	loginfra "github.com/JohnTitor998/chiya/internal/infra/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := loginfra.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("create app", zap.Error(err))
	}

	logger.Info("bot starting", zap.String("env", cfg.Env))
	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("bot stopped with error", zap.Error(err))
	}
	logger.Info("bot stopped")
}
