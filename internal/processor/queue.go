package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
	"github.com/jonesrussell/complaint-engine/internal/search"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

// Default queue parameters, used when QueueConfig fields are zero.
const (
	DefaultQueueSize    = 1024
	DefaultQueueWorkers = 2
	DefaultEnqueueWait  = 50 * time.Millisecond

	queueDrainTimeout = 30 * time.Second

	// throttleThreshold is the queue fill ratio above which callers
	// should back off.
	throttleThreshold = 0.8
)

// QueueConfig controls the live refresh queue.
type QueueConfig struct {
	Size        int           // queued refresh capacity
	Workers     int           // concurrent index workers
	EnqueueWait time.Duration // how long Enqueue blocks on a full queue
	IndexRPS    int           // single-document index requests per second
}

// IndexQueue refreshes single complaints in the search index right after
// they change, so a citizen who just submitted can find their complaint
// before the next sweep. The queue is bounded: when it is full, Enqueue
// drops the refresh and the periodic sweep reconciles the miss.
//
// Writers hand over complaint identifiers, not snapshots. Workers re-read
// the registry so the indexed document always reflects the freshest state,
// and back-to-back writes to one complaint collapse into equivalent
// refreshes instead of racing each other.
type IndexQueue struct {
	source  Registry
	target  SearchIndex
	ranker  *ranking.Ranker
	limiter *RateLimiter

	queue       chan string
	enqueueWait time.Duration
	workers     int

	logger    logging.Logger
	telemetry *telemetry.Provider
	now       func() time.Time

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	active  atomic.Int32
}

// NewIndexQueue builds a live refresh queue. Zero config fields fall back
// to the package defaults.
func NewIndexQueue(
	source Registry,
	target SearchIndex,
	ranker *ranking.Ranker,
	cfg QueueConfig,
	log logging.Logger,
	tp *telemetry.Provider,
) *IndexQueue {
	if cfg.Size <= 0 {
		cfg.Size = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultQueueWorkers
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = DefaultEnqueueWait
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &IndexQueue{
		source:      source,
		target:      target,
		ranker:      ranker,
		limiter:     NewRateLimiter(cfg.IndexRPS, 0, "live-index", log),
		queue:       make(chan string, cfg.Size),
		enqueueWait: cfg.EnqueueWait,
		workers:     cfg.Workers,
		logger:      log,
		telemetry:   tp,
		now:         time.Now,
	}
}

// Start launches the worker goroutines. It fails if the queue is already
// running.
func (q *IndexQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return errors.New("index queue is already running")
	}
	q.started = true

	q.logger.Info("index queue starting",
		logging.Int("workers", q.workers),
		logging.Int("capacity", cap(q.queue)),
	)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	return nil
}

// Stop closes the queue and waits for the workers to drain it, up to a
// bounded drain timeout. Safe to call more than once.
func (q *IndexQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.queue)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("index queue drained")
	case <-time.After(queueDrainTimeout):
		q.logger.Warn("index queue drain timed out",
			logging.Int("remaining", len(q.queue)),
		)
	}
}

// Enqueue schedules a refresh for one complaint. It reports false when
// the queue is not running or stays full past the enqueue wait; a dropped
// refresh is picked up by the next sweep.
func (q *IndexQueue) Enqueue(complaintID string) bool {
	if complaintID == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return false
	}

	select {
	case q.queue <- complaintID:
		q.setDepth()
		return true
	default:
	}

	timer := time.NewTimer(q.enqueueWait)
	defer timer.Stop()

	select {
	case q.queue <- complaintID:
		q.setDepth()
		return true
	case <-timer.C:
		if q.telemetry != nil {
			q.telemetry.RecordIndexed(context.Background(), "dropped", 1)
		}
		q.logger.Warn("index refresh dropped, queue full",
			logging.String("complaint_id", complaintID),
			logging.Int("depth", len(q.queue)),
		)
		return false
	}
}

// Depth returns the number of queued refreshes.
func (q *IndexQueue) Depth() int {
	return len(q.queue)
}

// ShouldThrottle reports whether the queue is close enough to capacity
// that callers should back off.
func (q *IndexQueue) ShouldThrottle() bool {
	return float64(len(q.queue)) >= float64(cap(q.queue))*throttleThreshold
}

func (q *IndexQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	q.setActive(q.active.Add(1))
	defer func() {
		q.setActive(q.active.Add(-1))
	}()

	q.logger.Debug("index queue worker started", logging.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			return
		case complaintID, ok := <-q.queue:
			if !ok {
				return
			}
			q.setDepth()
			q.refresh(ctx, complaintID)
		}
	}
}

// refresh re-reads one complaint and indexes it. A panic in the index
// client is contained here so one bad document cannot take a worker down.
func (q *IndexQueue) refresh(ctx context.Context, complaintID string) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("index refresh panicked",
				logging.String("complaint_id", complaintID),
				logging.Any("panic", r),
			)
		}
	}()

	c, err := q.source.Get(ctx, complaintID)
	if err != nil {
		q.recordFailure(ctx, complaintID, err)
		return
	}

	if err := q.limiter.Wait(ctx); err != nil {
		return
	}

	entry := search.Entry{
		Complaint:     c,
		PriorityScore: q.ranker.Score(c, q.now().UTC()),
	}
	if err := q.target.IndexComplaint(ctx, entry); err != nil {
		q.recordFailure(ctx, complaintID, err)
		return
	}

	if q.telemetry != nil {
		q.telemetry.RecordIndexed(ctx, "success", 1)
	}
}

func (q *IndexQueue) recordFailure(ctx context.Context, complaintID string, err error) {
	if q.telemetry != nil {
		q.telemetry.RecordIndexed(ctx, "failure", 1)
	}
	q.logger.Warn("index refresh failed",
		logging.String("complaint_id", complaintID),
		logging.NamedError("error", err),
	)
}

func (q *IndexQueue) setDepth() {
	if q.telemetry != nil {
		q.telemetry.SetQueueDepth(len(q.queue))
	}
}

func (q *IndexQueue) setActive(n int32) {
	if q.telemetry != nil {
		q.telemetry.SetActiveWorkers(int(n))
	}
}
