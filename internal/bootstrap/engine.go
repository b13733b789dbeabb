// Package bootstrap wires configuration, storage, and the complaint
// pipeline into runnable components for the engine binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/api"
	"github.com/jonesrussell/complaint-engine/internal/classifier"
	"github.com/jonesrussell/complaint-engine/internal/config"
	"github.com/jonesrussell/complaint-engine/internal/dedup"
	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/intake"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/model"
	"github.com/jonesrussell/complaint-engine/internal/processor"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/server"
	"github.com/jonesrussell/complaint-engine/internal/similarity"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPComponents holds all components needed for the HTTP server. The
// IndexQueue and Poller are nil without a search backend and Drop is nil
// without a drop directory; all of them work on the same registry the
// handler writes to.
type HTTPComponents struct {
	Handler    *api.Handler
	Server     *server.Server
	Intake     *intake.Service
	IndexQueue *processor.IndexQueue
	Poller     *processor.Poller
	Drop       *processor.DropWatcher
	Telemetry  *telemetry.Provider

	store  *StoreComponents
	recent *RecentComponents
}

// Close releases backing connections.
func (c *HTTPComponents) Close() {
	if c.recent != nil {
		c.recent.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// NewHTTPComponents creates all components for the HTTP server.
func NewHTTPComponents(ctx context.Context, cfg *config.Config, logger logging.Logger) (*HTTPComponents, error) {
	tp := telemetry.NewProvider()

	store, err := SetupStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup store: %w", err)
	}

	idx := SetupSearch(ctx, cfg, logger)
	recent := SetupRecentTracker(cfg, logger)

	reg := registry.New(store.Store, cfg.Registry.LockTimeout, logger, tp)
	weights := urgencyWeights(cfg)
	ranker := ranking.NewRanker(weights, cfg.Ranking.AgeFactorCap, tp)

	svc, err := buildIntake(cfg, reg, ranker, recent.Tracker, logger, tp)
	if err != nil {
		recent.Close()
		store.Close()
		return nil, err
	}

	handler := api.NewHandler(svc, idx, weights, cfg.Classifier.ModelPath, logger)

	// The live refresh queue keeps search results current between sweeps;
	// the poller reconciles anything the queue missed. Without a search
	// backend there is nothing to refresh.
	var queue *processor.IndexQueue
	var poller *processor.Poller
	if idx != nil {
		queue = processor.NewIndexQueue(reg, idx, ranker, processor.QueueConfig{
			Size:     cfg.Service.QueueSize,
			IndexRPS: cfg.Service.IndexRPS,
		}, logger, tp)
		handler = handler.WithNotifier(queue)

		syncer := processor.NewSyncer(reg, idx, ranker, processor.SyncConfig{
			BatchSize: cfg.Service.BatchSize,
			Workers:   cfg.Service.Concurrency,
			IndexRPS:  cfg.Service.IndexRPS,
		}, logger, tp)
		poller = processor.NewPoller(syncer, processor.PollerConfig{
			Interval: cfg.Service.PollInterval,
		}, logger)
	}

	opts := api.ServerOptions{
		Metrics:      tp.Handler(),
		DatabasePing: store.Ping(),
		RedisPing:    recent.Ping(),
	}
	if idx != nil {
		opts.ElasticsearchPing = func() error {
			return idx.TestConnection(context.Background())
		}
	}

	srv := api.NewServer(handler, cfg, logger, opts)

	var drop *processor.DropWatcher
	if cfg.Intake.DropDir != "" {
		drop = newDropWatcher(cfg, svc, logger, tp)
	}

	return &HTTPComponents{
		Handler:    handler,
		Server:     srv,
		Intake:     svc,
		IndexQueue: queue,
		Poller:     poller,
		Drop:       drop,
		Telemetry:  tp,
		store:      store,
		recent:     recent,
	}, nil
}

// ProcessorComponents holds everything the background worker binary needs:
// the index sweep poller when search is configured, and the bulk intake
// drop watcher when a drop directory is configured.
type ProcessorComponents struct {
	Poller    *processor.Poller      // nil without a search backend
	Syncer    *processor.Syncer      // nil without a search backend
	Drop      *processor.DropWatcher // nil without a drop directory
	Telemetry *telemetry.Provider

	store  *StoreComponents
	recent *RecentComponents
}

// Close releases backing connections.
func (c *ProcessorComponents) Close() {
	if c.recent != nil {
		c.recent.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// NewProcessorComponents creates all components for the background worker.
// At least one duty must be configured; a worker with neither a search
// backend nor a drop directory would just spin.
func NewProcessorComponents(ctx context.Context, cfg *config.Config, logger logging.Logger) (*ProcessorComponents, error) {
	tp := telemetry.NewProvider()

	store, err := SetupStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup store: %w", err)
	}

	idx := SetupSearch(ctx, cfg, logger)
	if idx == nil && cfg.Intake.DropDir == "" {
		store.Close()
		return nil, errors.New("processor needs a search backend to sweep or a drop directory to import")
	}

	if cfg.Storage.Backend == config.BackendMemory {
		logger.Warn("In-memory store is process-local; a standalone processor only sees complaints written by this process")
	}

	reg := registry.New(store.Store, cfg.Registry.LockTimeout, logger, tp)
	ranker := ranking.NewRanker(urgencyWeights(cfg), cfg.Ranking.AgeFactorCap, tp)

	var syncer *processor.Syncer
	var poller *processor.Poller
	if idx != nil {
		syncer = processor.NewSyncer(reg, idx, ranker, processor.SyncConfig{
			BatchSize: cfg.Service.BatchSize,
			Workers:   cfg.Service.Concurrency,
			IndexRPS:  cfg.Service.IndexRPS,
		}, logger, tp)
		poller = processor.NewPoller(syncer, processor.PollerConfig{
			Interval: cfg.Service.PollInterval,
		}, logger)
	}

	recent := &RecentComponents{}
	var drop *processor.DropWatcher
	if cfg.Intake.DropDir != "" {
		recent = SetupRecentTracker(cfg, logger)
		svc, intakeErr := buildIntake(cfg, reg, ranker, recent.Tracker, logger, tp)
		if intakeErr != nil {
			recent.Close()
			store.Close()
			return nil, intakeErr
		}
		drop = newDropWatcher(cfg, svc, logger, tp)
	}

	return &ProcessorComponents{
		Poller:    poller,
		Syncer:    syncer,
		Drop:      drop,
		Telemetry: tp,
		store:     store,
		recent:    recent,
	}, nil
}

// newDropWatcher builds the bulk import pipeline over the intake service.
func newDropWatcher(cfg *config.Config, svc *intake.Service, logger logging.Logger, tp *telemetry.Provider) *processor.DropWatcher {
	submitter := processor.NewBatchSubmitter(svc, processor.BatchConfig{
		Concurrency: cfg.Service.Concurrency,
		SubmitRPS:   cfg.Intake.SubmitRPS,
	}, logger, tp)

	return processor.NewDropWatcher(submitter, processor.DropConfig{
		Dir:      cfg.Intake.DropDir,
		Interval: cfg.Service.PollInterval,
	}, logger)
}

// buildIntake assembles the classification and intake pipeline.
func buildIntake(
	cfg *config.Config,
	reg *registry.Registry,
	ranker *ranking.Ranker,
	tracker *dedup.Tracker,
	logger logging.Logger,
	tp *telemetry.Provider,
) (*intake.Service, error) {
	artifact, err := model.Load(cfg.Classifier.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model artifact: %w", err)
	}

	rules := classifier.DefaultKeywordRules()
	if cfg.Classifier.RulesPath != "" {
		rules, err = classifier.LoadKeywordRules(cfg.Classifier.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load keyword rules: %w", err)
		}
	}

	cls, err := classifier.New(artifact, classifier.Config{
		ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		KeywordRules:        rules,
	}, logging.NewAdapter(logger), tp)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	logger.Info("Classifier initialized",
		logging.String("model_version", cls.ModelVersion()),
		logging.Int("rules", len(rules)),
	)

	matcher := similarity.NewMatcher(nil, cfg.Intake.SimilarityThreshold, tp)

	return intake.New(cls, matcher, reg, ranker, tracker, intake.Config{
		MinTextLength: cfg.Intake.MinTextLength,
		MaxTextLength: cfg.Intake.MaxTextLength,
	}, logger, tp), nil
}

// urgencyWeights maps configured category weights onto the taxonomy,
// starting from the defaults. Unknown categories and non-positive weights
// are dropped.
func urgencyWeights(cfg *config.Config) map[domain.Category]float64 {
	if len(cfg.Ranking.UrgencyWeights) == 0 {
		return nil
	}
	weights := domain.DefaultUrgencyWeights()
	for name, w := range cfg.Ranking.UrgencyWeights {
		cat := domain.Category(name)
		if cat.Valid() && w > 0 {
			weights[cat] = w
		}
	}
	return weights
}

// HTTPShutdownTimeout returns the timeout for HTTP server graceful shutdown.
func HTTPShutdownTimeout() time.Duration {
	return defaultHTTPTimeout
}
