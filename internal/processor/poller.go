package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// DefaultPollInterval is used when PollerConfig.Interval is zero.
const DefaultPollInterval = 30 * time.Second

// PollerConfig holds poller settings.
type PollerConfig struct {
	Interval time.Duration
}

// Poller runs reconciliation sweeps on a fixed interval. The first sweep
// runs immediately on Start, so a fresh deployment serves search results
// without waiting out an interval.
type Poller struct {
	syncer   *Syncer
	interval time.Duration
	logger   logging.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	sweeps   int
	lastTook time.Duration
}

// NewPoller builds a poller over the given syncer.
func NewPoller(syncer *Syncer, cfg PollerConfig, log logging.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Poller{
		syncer:   syncer,
		interval: cfg.Interval,
		logger:   log,
	}
}

// Start launches the polling loop. It fails if the poller is already
// running. A stopped poller may be started again.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("index poller is already running")
	}
	p.running = true
	p.stopChan = make(chan struct{})
	stop := p.stopChan
	p.mu.Unlock()

	p.logger.Info("index poller starting",
		logging.Duration("interval", p.interval),
	)

	go p.run(ctx, stop)
	return nil
}

// Stop ends the polling loop. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	close(p.stopChan)
	p.logger.Info("index poller stopping")
}

func (p *Poller) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("index poller stopped, context canceled")
			p.markStopped()
			return
		case <-stop:
			p.logger.Info("index poller stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	stats, err := p.syncer.Sync(ctx)

	p.mu.Lock()
	p.sweeps++
	p.lastTook = stats.Duration
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("index sweep failed", logging.Error(err))
	}
}

func (p *Poller) markStopped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// IsRunning reports whether the polling loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// GetStats returns poller statistics for health and debug endpoints.
func (p *Poller) GetStats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]any{
		"running":             p.running,
		"interval":            p.interval.String(),
		"sweeps":              p.sweeps,
		"last_sweep_duration": p.lastTook.String(),
	}
}
