package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/complaint-engine/internal/config"
	"github.com/jonesrussell/complaint-engine/internal/database"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/storage"
)

// StoreComponents holds the complaint store and its backing connection.
type StoreComponents struct {
	Store registry.Store
	DB    *sqlx.DB // nil for the in-memory backend
}

// Close releases the backing database connection, if any.
func (s *StoreComponents) Close() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// Ping returns a connectivity probe for health checks, or nil for the
// in-memory backend.
func (s *StoreComponents) Ping() func() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Ping
}

// SetupStore creates the complaint store named by storage.backend.
func SetupStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (*StoreComponents, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		return setupPostgresStore(ctx, cfg, logger)
	case config.BackendMemory:
		logger.Info("Using in-memory complaint store")
		return &StoreComponents{Store: storage.NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func setupPostgresStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (*StoreComponents, error) {
	dbConfig := database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	logger.Info("Connecting to PostgreSQL database",
		logging.String("host", dbConfig.Host),
		logging.Int("port", dbConfig.Port),
		logging.String("database", dbConfig.DBName),
	)

	db, err := database.NewPostgresConnection(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := database.NewComplaintsRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure complaints schema: %w", err)
	}

	logger.Info("Database connected successfully")

	return &StoreComponents{Store: repo, DB: db}, nil
}
