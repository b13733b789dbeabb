// Package processor keeps the search read model in step with the
// complaint registry. The registry is authoritative; Elasticsearch is a
// projection of it with priority scores attached. A Syncer performs one
// full reconciliation sweep, a Poller runs sweeps on an interval, and an
// IndexQueue refreshes single complaints right after writes so searches
// see them before the next sweep.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/search"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

// Default sweep parameters, used when SyncConfig fields are zero.
const (
	DefaultBatchSize = 100
	DefaultWorkers   = 4
	DefaultIndexRPS  = 10
)

// Registry is the slice of the complaint registry the processor reads.
// *registry.Registry satisfies it.
type Registry interface {
	Get(ctx context.Context, id string) (*domain.Complaint, error)
	List(ctx context.Context, f registry.Filter) ([]*domain.Complaint, int, error)
}

// SearchIndex receives scored complaints. *search.Index satisfies it.
type SearchIndex interface {
	IndexComplaint(ctx context.Context, entry search.Entry) error
	BulkIndex(ctx context.Context, entries []search.Entry) error
}

// SyncConfig controls how a sweep pages through the registry and how hard
// it pushes the search backend.
type SyncConfig struct {
	BatchSize int // complaints per page and per bulk request
	Workers   int // concurrent page workers
	IndexRPS  int // bulk requests per second toward the search backend
}

// SyncStats summarizes one reconciliation sweep.
type SyncStats struct {
	Pages      int
	Complaints int
	Indexed    int
	Failed     int
	Duration   time.Duration
}

// Syncer mirrors the full registry into the search index. Complaints are
// read in pages, scored with the same ranker that serves the priority
// feed, and written in bulk. Complaints created while a sweep is running
// surface on the next one.
type Syncer struct {
	source    Registry
	target    SearchIndex
	ranker    *ranking.Ranker
	limiter   *RateLimiter
	batchSize int
	workers   int
	logger    logging.Logger
	telemetry *telemetry.Provider
	now       func() time.Time
}

// NewSyncer builds a sweep syncer. Zero config fields fall back to the
// package defaults.
func NewSyncer(
	source Registry,
	target SearchIndex,
	ranker *ranking.Ranker,
	cfg SyncConfig,
	log logging.Logger,
	tp *telemetry.Provider,
) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Syncer{
		source:    source,
		target:    target,
		ranker:    ranker,
		limiter:   NewRateLimiter(cfg.IndexRPS, 0, "search-index", log),
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		logger:    log,
		telemetry: tp,
		now:       time.Now,
	}
}

type pageResult struct {
	page       int
	complaints int
	indexed    int
	open       map[domain.Category]int
	err        error
}

// Sync runs one full sweep. Page failures are logged and counted but do
// not stop the remaining pages; Sync returns an error only when the
// registry cannot be enumerated or when every page failed.
func (s *Syncer) Sync(ctx context.Context) (SyncStats, error) {
	start := time.Now()
	now := s.now().UTC()

	_, total, err := s.source.List(ctx, registry.Filter{Page: 1, PerPage: 1})
	if err != nil {
		return SyncStats{}, fmt.Errorf("count complaints for index sweep: %w", err)
	}
	if total == 0 {
		s.logger.Debug("index sweep skipped, registry is empty")
		return SyncStats{Duration: time.Since(start)}, nil
	}

	if s.telemetry != nil {
		s.telemetry.SetIndexBacklog(total)
	}

	pages := (total + s.batchSize - 1) / s.batchSize
	jobs := make(chan int, pages)
	results := make(chan pageResult, pages)

	workers := s.workers
	if workers > pages {
		workers = pages
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				results <- s.syncPage(ctx, page, now)
			}
		}()
	}

	for page := 1; page <= pages; page++ {
		jobs <- page
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	stats := SyncStats{Pages: pages}
	openByCategory := make(map[domain.Category]int, len(domain.Categories()))
	for _, cat := range domain.Categories() {
		openByCategory[cat] = 0
	}
	var firstErr error
	failedPages := 0
	for res := range results {
		stats.Complaints += res.complaints
		stats.Indexed += res.indexed
		for cat, n := range res.open {
			openByCategory[cat] += n
		}
		if res.err != nil {
			failedPages++
			stats.Failed += res.complaints - res.indexed
			if firstErr == nil {
				firstErr = res.err
			}
		}
	}
	stats.Duration = time.Since(start)

	if s.telemetry != nil {
		s.telemetry.SetIndexBacklog(stats.Failed)
		// The sweep is the only place that sees every complaint, so it
		// owns the open-complaints gauge. A failed page may mean unread
		// complaints, so keep the previous values until a clean sweep.
		if failedPages == 0 {
			for cat, n := range openByCategory {
				s.telemetry.SetOpenComplaints(cat, n)
			}
		}
	}

	if firstErr != nil && stats.Indexed == 0 {
		return stats, fmt.Errorf("index sweep: all %d pages failed: %w", pages, firstErr)
	}

	s.logger.Info("index sweep complete",
		logging.Int("pages", stats.Pages),
		logging.Int("complaints", stats.Complaints),
		logging.Int("indexed", stats.Indexed),
		logging.Int("failed", stats.Failed),
		logging.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// syncPage reads, scores, and bulk-indexes one page of complaints.
func (s *Syncer) syncPage(ctx context.Context, page int, now time.Time) pageResult {
	res := pageResult{page: page}

	complaints, _, err := s.source.List(ctx, registry.Filter{Page: page, PerPage: s.batchSize})
	if err != nil {
		res.err = fmt.Errorf("list page %d: %w", page, err)
		s.logger.Warn("index sweep page failed",
			logging.Int("page", page),
			logging.NamedError("error", res.err),
		)
		return res
	}
	res.complaints = len(complaints)
	if len(complaints) == 0 {
		return res
	}

	res.open = make(map[domain.Category]int)
	entries := make([]search.Entry, len(complaints))
	for i, c := range complaints {
		if !c.Status.Terminal() {
			res.open[c.Category]++
		}
		entries[i] = search.Entry{
			Complaint:     c,
			PriorityScore: s.ranker.Score(c, now),
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		res.err = err
		return res
	}

	if s.telemetry != nil {
		s.telemetry.RecordBatchSize(len(entries))
	}

	if err := s.target.BulkIndex(ctx, entries); err != nil {
		res.err = fmt.Errorf("bulk index page %d: %w", page, err)
		if s.telemetry != nil {
			s.telemetry.RecordIndexed(ctx, "failure", len(entries))
		}
		s.logger.Warn("index sweep page failed",
			logging.Int("page", page),
			logging.Int("complaints", len(entries)),
			logging.NamedError("error", err),
		)
		return res
	}

	res.indexed = len(entries)
	if s.telemetry != nil {
		s.telemetry.RecordIndexed(ctx, "success", len(entries))
	}
	return res
}
