package bootstrap

import (
	"fmt"
	"log"

	"github.com/jonesrussell/complaint-engine/internal/config"
	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// LoadConfig loads configuration. Uses defaults if the file doesn't exist.
func LoadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config file (%s), using defaults: %v", configPath, err)
		return config.Default()
	}
	return cfg, nil
}

// CreateLogger creates a logger instance from configuration.
func CreateLogger(cfg *config.Config) (logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger.With(logging.String("service", cfg.Service.Name)), nil
}
