package main

import (
	"context"
	"log"
	"os"

	"github.com/jonesrussell/complaint-engine/internal/bootstrap"
	"github.com/jonesrussell/complaint-engine/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Printf("engine-httpd: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	components, err := bootstrap.NewHTTPComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	// Live refresh keeps search results current between sweeps. The queue
	// drains before backing connections close.
	if components.IndexQueue != nil {
		if err := components.IndexQueue.Start(ctx); err != nil {
			return err
		}
		defer components.IndexQueue.Stop()
	}

	logger.Info("Starting complaint engine HTTP server",
		logging.String("version", cfg.Service.Version),
		logging.Int("port", cfg.Service.Port),
		logging.String("storage", cfg.Storage.Backend),
		logging.Bool("search", components.IndexQueue != nil),
	)

	return components.Server.RunWithGracefulShutdown(ctx)
}
