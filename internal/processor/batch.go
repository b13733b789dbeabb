package processor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

// DefaultSubmitRPS bounds bulk imports so they cannot starve interactive
// submissions hitting the same category locks.
const DefaultSubmitRPS = 25

// maxSubmissionLine bounds one JSONL line; complaint text tops out at a few
// kilobytes so a megabyte means a corrupt file.
const maxSubmissionLine = 1 << 20

// Submission is one queued citizen report.
type Submission struct {
	Text      string `json:"text"`
	CitizenID string `json:"citizen_id"`
}

// Intake is the part of the intake service batch imports drive.
type Intake interface {
	Submit(ctx context.Context, text, citizenID string) (*domain.SubmissionResult, error)
}

// SubmitResult pairs a queued submission with its outcome.
type SubmitResult struct {
	Submission Submission
	Result     *domain.SubmissionResult
	Err        error
}

// BatchStats summarizes one import run.
type BatchStats struct {
	Total    int
	Created  int
	Merged   int
	Repeats  int // votes by citizens who had already voted
	Failed   int
	Skipped  int // not attempted, run cancelled
	Duration time.Duration
}

// BatchConfig tunes the batch submitter. Zero values fall back to the
// package defaults.
type BatchConfig struct {
	Concurrency int
	SubmitRPS   int
}

// BatchSubmitter pushes queued submissions through the intake pipeline with
// a worker pool. Submissions are rate limited as a whole, not per worker.
type BatchSubmitter struct {
	intake      Intake
	limiter     *RateLimiter
	concurrency int
	logger      logging.Logger
	telemetry   *telemetry.Provider
}

// NewBatchSubmitter builds a batch submitter over the intake service.
func NewBatchSubmitter(svc Intake, cfg BatchConfig, log logging.Logger, tp *telemetry.Provider) *BatchSubmitter {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultWorkers
	}
	if cfg.SubmitRPS <= 0 {
		cfg.SubmitRPS = DefaultSubmitRPS
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &BatchSubmitter{
		intake:      svc,
		limiter:     NewRateLimiter(cfg.SubmitRPS, 0, "batch-intake", log),
		concurrency: cfg.Concurrency,
		logger:      log,
		telemetry:   tp,
	}
}

// Process submits a batch through the worker pool and reports per-item
// outcomes. Cancellation stops workers between items; already-submitted
// items keep their results and the remainder is counted as skipped.
func (b *BatchSubmitter) Process(ctx context.Context, subs []Submission) ([]SubmitResult, BatchStats) {
	if len(subs) == 0 {
		return nil, BatchStats{}
	}

	start := time.Now()
	b.logger.Info("Starting batch intake",
		logging.Int("batch_size", len(subs)),
		logging.Int("concurrency", b.concurrency),
	)
	if b.telemetry != nil {
		b.telemetry.RecordBatchSize(len(subs))
	}

	jobs := make(chan Submission, len(subs))
	results := make(chan SubmitResult, len(subs))

	var wg sync.WaitGroup
	for id := 0; id < b.concurrency; id++ {
		wg.Add(1)
		go b.worker(ctx, id, jobs, results, &wg)
	}

	for _, sub := range subs {
		jobs <- sub
	}
	close(jobs)

	wg.Wait()
	close(results)

	out := make([]SubmitResult, 0, len(subs))
	for r := range results {
		out = append(out, r)
	}

	stats := summarize(subs, out, time.Since(start))
	b.logger.Info("Batch intake complete",
		logging.Int("total", stats.Total),
		logging.Int("created", stats.Created),
		logging.Int("merged", stats.Merged),
		logging.Int("repeats", stats.Repeats),
		logging.Int("failed", stats.Failed),
		logging.Int("skipped", stats.Skipped),
		logging.Duration("duration", stats.Duration),
	)

	return out, stats
}

func (b *BatchSubmitter) worker(
	ctx context.Context,
	id int,
	jobs <-chan Submission,
	results chan<- SubmitResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	b.logger.Debug("Batch intake worker started", logging.Int("worker_id", id))

	for sub := range jobs {
		select {
		case <-ctx.Done():
			b.logger.Warn("Batch intake worker stopping, run cancelled",
				logging.Int("worker_id", id))
			return
		default:
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return
		}

		result, err := b.intake.Submit(ctx, sub.Text, sub.CitizenID)
		if err != nil {
			b.logger.Warn("Batch submission rejected",
				logging.String("citizen_id", sub.CitizenID),
				logging.NamedError("reason", err),
			)
		}
		results <- SubmitResult{Submission: sub, Result: result, Err: err}
	}
}

func summarize(subs []Submission, results []SubmitResult, took time.Duration) BatchStats {
	stats := BatchStats{
		Total:    len(subs),
		Skipped:  len(subs) - len(results),
		Duration: took,
	}
	for _, r := range results {
		switch {
		case r.Err != nil:
			stats.Failed++
		case r.Result.AlreadyVoted:
			stats.Repeats++
		case r.Result.IsNew:
			stats.Created++
		default:
			stats.Merged++
		}
	}
	return stats
}

// ReadSubmissions parses a JSONL stream, one submission per line. Blank
// lines are skipped. A malformed line fails the whole read with its line
// number so a bad drop file gets fixed instead of partially imported.
func ReadSubmissions(r io.Reader) ([]Submission, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSubmissionLine)

	var subs []Submission
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var sub Submission
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, fmt.Errorf("parse submission at line %d: %w", line, err)
		}
		subs = append(subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}

	return subs, nil
}

// ImportFile reads a JSONL drop file and submits its contents.
func (b *BatchSubmitter) ImportFile(ctx context.Context, path string) (BatchStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return BatchStats{}, fmt.Errorf("open drop file: %w", err)
	}
	defer f.Close()

	subs, err := ReadSubmissions(f)
	if err != nil {
		return BatchStats{}, fmt.Errorf("drop file %s: %w", path, err)
	}

	_, stats := b.Process(ctx, subs)
	return stats, nil
}
