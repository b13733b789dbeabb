package main

import (
	"context"
	"log"
	"os"

	worker "github.com/jonesrussell/complaint-engine/cmd/processor"
	"github.com/jonesrussell/complaint-engine/internal/bootstrap"
	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// main runs the whole engine in one process: the HTTP API with its live
// index refresh queue, plus the index sweep poller and bulk intake drop
// watcher when configured. `complaint-engine processor` runs the
// background worker alone; the cmd/ binaries split the same pieces
// across processes.
func main() {
	if len(os.Args) > 1 && os.Args[1] == "processor" {
		if err := worker.Start(); err != nil {
			log.Printf("complaint-engine processor: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		log.Printf("complaint-engine: %v", err)
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

	if components.IndexQueue != nil {
		if err := components.IndexQueue.Start(ctx); err != nil {
			return err
		}
		defer components.IndexQueue.Stop()
	}

	if components.Poller != nil {
		if err := components.Poller.Start(ctx); err != nil {
			return err
		}
		defer components.Poller.Stop()
	}

	if components.Drop != nil {
		if err := components.Drop.Start(ctx); err != nil {
			return err
		}
		defer components.Drop.Stop()
	}

	logger.Info("Starting complaint engine",
		logging.String("version", cfg.Service.Version),
		logging.Int("port", cfg.Service.Port),
		logging.String("storage", cfg.Storage.Backend),
		logging.Bool("search", components.IndexQueue != nil),
	)

	return components.Server.RunWithGracefulShutdown(ctx)
}
