package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/logging"
)

const dropSuffix = ".jsonl"

// DropConfig tunes the drop directory watcher.
type DropConfig struct {
	Dir      string
	Interval time.Duration
}

// DropWatcher periodically scans a directory for .jsonl drop files and
// imports them through the batch submitter. A processed file is renamed
// with a .done suffix (.failed when rejected), so retrying is renaming it
// back. A file whose import was cut short by shutdown keeps its name and
// is picked up again; re-importing is safe because repeat submissions
// merge or land as already-voted.
type DropWatcher struct {
	submitter *BatchSubmitter
	dir       string
	interval  time.Duration
	logger    logging.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	imports  int
}

// NewDropWatcher builds a watcher over the drop directory.
func NewDropWatcher(submitter *BatchSubmitter, cfg DropConfig, log logging.Logger) *DropWatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &DropWatcher{
		submitter: submitter,
		dir:       cfg.Dir,
		interval:  cfg.Interval,
		logger:    log,
	}
}

// Start launches the scan loop. It fails when the drop directory does not
// exist rather than silently watching nothing.
func (w *DropWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("drop watcher is already running")
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("drop path is not a directory: " + w.dir)
	}

	w.running = true
	w.stopChan = make(chan struct{})
	stop := w.stopChan

	w.logger.Info("Drop watcher started",
		logging.String("dir", w.dir),
		logging.Duration("interval", w.interval),
	)

	go w.run(ctx, stop)
	return nil
}

// Stop halts the scan loop. Safe to call more than once.
func (w *DropWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
}

func (w *DropWatcher) run(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Drop watcher context cancelled")
			w.markStopped()
			return
		case <-stop:
			w.logger.Info("Drop watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *DropWatcher) markStopped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

// scan imports every pending drop file. ReadDir sorts by name, so
// timestamp-named drops import in submission order.
func (w *DropWatcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("Drop directory scan failed",
			logging.String("dir", w.dir),
			logging.Error(err),
		)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), dropSuffix) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.importOne(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *DropWatcher) importOne(ctx context.Context, path string) {
	stats, err := w.submitter.ImportFile(ctx, path)
	if err != nil {
		w.logger.Error("Drop file rejected",
			logging.String("file", path),
			logging.Error(err),
		)
		w.rename(path, ".failed")
		return
	}

	if stats.Skipped > 0 || ctx.Err() != nil {
		w.logger.Warn("Drop file import interrupted, keeping file for retry",
			logging.String("file", path),
			logging.Int("skipped", stats.Skipped),
		)
		return
	}

	w.mu.Lock()
	w.imports++
	w.mu.Unlock()

	w.logger.Info("Drop file imported",
		logging.String("file", path),
		logging.Int("total", stats.Total),
		logging.Int("created", stats.Created),
		logging.Int("merged", stats.Merged),
		logging.Int("repeats", stats.Repeats),
		logging.Int("failed", stats.Failed),
		logging.Duration("duration", stats.Duration),
	)
	w.rename(path, ".done")
}

func (w *DropWatcher) rename(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		w.logger.Error("Failed to rename drop file",
			logging.String("file", path),
			logging.Error(err),
		)
	}
}

// IsRunning reports whether the watcher is active.
func (w *DropWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetStats returns statistics about the drop watcher.
func (w *DropWatcher) GetStats() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	return map[string]any{
		"running":  w.running,
		"dir":      w.dir,
		"interval": w.interval.String(),
		"imports":  w.imports,
	}
}
