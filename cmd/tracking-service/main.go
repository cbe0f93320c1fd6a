package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/pontipilat22/logcompany1/internal/shared/config"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/tracking/bootstrap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("failed to load config:", err)
	}

	lg := logger.New("tracking-service", cfg.Logging.Level, cfg.Logging.Format)

	// SIGINT/SIGTERM отменяют контекст — начало graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrap.Run(ctx, cfg, lg)
}
