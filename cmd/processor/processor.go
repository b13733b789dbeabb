// Package processor runs the engine's background worker: periodic search
// index sweeps and bulk intake imports, either as a standalone process or
// embedded alongside another service.
package processor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonesrussell/complaint-engine/internal/bootstrap"
	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// Start runs the worker until an interrupt or termination signal.
func Start() error {
	stop, err := StartWithStop()
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	stop()
	return nil
}

// StartWithStop starts the worker and returns a stop function, so the
// worker can run concurrently with other services.
func StartWithStop() (func(), error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	components, err := bootstrap.NewProcessorComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("setup processor: %w", err)
	}

	if components.Poller != nil {
		if err := components.Poller.Start(ctx); err != nil {
			components.Close()
			_ = logger.Sync()
			return nil, fmt.Errorf("start index poller: %w", err)
		}
	}

	if components.Drop != nil {
		if err := components.Drop.Start(ctx); err != nil {
			if components.Poller != nil {
				components.Poller.Stop()
			}
			components.Close()
			_ = logger.Sync()
			return nil, fmt.Errorf("start drop watcher: %w", err)
		}
	}

	logger.Info("Processor started",
		logging.Bool("index_sweeps", components.Poller != nil),
		logging.Bool("bulk_intake", components.Drop != nil),
		logging.Duration("interval", cfg.Service.PollInterval),
		logging.Int("batch_size", cfg.Service.BatchSize),
		logging.Int("workers", cfg.Service.Concurrency),
	)

	stop := func() {
		logger.Info("Stopping processor")
		if components.Drop != nil {
			components.Drop.Stop()
		}
		if components.Poller != nil {
			components.Poller.Stop()
		}
		components.Close()
		_ = logger.Sync()
	}

	return stop, nil
}
