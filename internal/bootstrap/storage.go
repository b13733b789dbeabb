package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/complaint-engine/internal/config"
	"github.com/jonesrussell/complaint-engine/internal/dedup"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/search"
)

// SetupSearch creates the optional Elasticsearch search index.
// Returns nil if ES is disabled or unavailable (the engine can still run).
func SetupSearch(ctx context.Context, cfg *config.Config, logger logging.Logger) *search.Index {
	if !cfg.Elasticsearch.Enabled {
		return nil
	}

	client, err := search.NewClient(ctx, search.ClientConfig{
		URL:        cfg.Elasticsearch.URL,
		Username:   cfg.Elasticsearch.Username,
		Password:   cfg.Elasticsearch.Password,
		MaxRetries: cfg.Elasticsearch.MaxRetries,
	})
	if err != nil {
		logger.Warn("Failed to connect to Elasticsearch", logging.Error(err))
		logger.Info("Search endpoint will not be available")
		return nil
	}

	idx := search.NewIndex(client, cfg.Elasticsearch.Index)
	if err := idx.Ensure(ctx); err != nil {
		logger.Warn("Failed to prepare search index", logging.Error(err))
		logger.Info("Search endpoint will not be available")
		return nil
	}

	logger.Info("Elasticsearch connected successfully",
		logging.String("index", cfg.Elasticsearch.Index),
	)
	return idx
}

// RecentComponents holds the recent-submission tracker and its client.
type RecentComponents struct {
	Tracker *dedup.Tracker
	Client  *redis.Client
}

// Close releases the Redis connection, if any.
func (r *RecentComponents) Close() {
	if r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping returns a connectivity probe for health checks, or nil when Redis
// is not in use.
func (r *RecentComponents) Ping() func() error {
	if r.Client == nil {
		return nil
	}
	return func() error {
		return r.Client.Ping(context.Background()).Err()
	}
}

// SetupRecentTracker creates the optional Redis-backed recent-submission
// tracker. Returns empty components when Redis is disabled or unreachable;
// intake then skips the fast path and relies on the similarity matcher alone.
func SetupRecentTracker(cfg *config.Config, logger logging.Logger) *RecentComponents {
	if !cfg.Redis.Enabled {
		return &RecentComponents{}
	}

	client, err := dedup.NewClient(dedup.ClientConfig{
		Address:  cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	if err != nil {
		logger.Warn("Failed to connect to Redis", logging.Error(err))
		logger.Info("Recent-submission tracking disabled")
		return &RecentComponents{}
	}

	logger.Info("Redis connected successfully")

	return &RecentComponents{
		Tracker: dedup.NewTracker(client, cfg.Redis.RecentTTL, logger),
		Client:  client,
	}
}
