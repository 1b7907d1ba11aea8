// Package watch re-runs the correction pipeline on source files as they are
// saved.
package watch

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"codemend/internal/config"
	"codemend/internal/logging"
	"codemend/internal/repair"

	"github.com/fsnotify/fsnotify"
)

// Report describes one pipeline run triggered by the watcher.
type Report struct {
	Path    string
	Result  repair.Result
	Written bool
}

// Stats tracks watcher activity.
type Stats struct {
	EventsSeen    int
	Corrections   int
	FilesWritten  int
	Failures      int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Options configures a Watcher.
type Options struct {
	// Write saves successful corrections back to disk.
	Write bool
	// OnReport is called from the event goroutine after every run.
	OnReport func(Report)
}

// Watcher watches directories and corrects files matching the configured
// extensions once their writes settle. All corrections run on the single
// event goroutine, so the optimizer is never used concurrently.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	opt         *repair.Optimizer
	cfg         *config.Config
	opts        Options
	debounceMap map[string]time.Time
	debounceDur time.Duration
	written     map[string]string
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher that corrects files with opt.
func New(cfg *config.Config, opt *repair.Optimizer, opts Options) (*Watcher, error) {
	if opt == nil {
		return nil, errors.New("optimizer required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		opt:         opt,
		cfg:         cfg,
		opts:        opts,
		debounceMap: make(map[string]time.Time),
		debounceDur: cfg.GetDebounce(),
		written:     make(map[string]string),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Add starts watching dir. Directories are not watched recursively.
func (w *Watcher) Add(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		logging.WatchError("failed to watch %s: %v", dir, err)
		return err
	}
	logging.Watch("watching directory: %s", dir)
	return nil
}

// Start runs the event loop in a goroutine. It is a no-op if already running.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the event loop, waits for it and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("watcher stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Enqueue schedules path for correction on the next debounce tick, as if it
// had just been written.
func (w *Watcher) Enqueue(path string) {
	w.mu.Lock()
	w.debounceMap[path] = time.Now().Add(-w.debounceDur)
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.cfg.WatchesFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	logging.WatchDebug("%s event for %s", event.Op, event.Name)

	now := time.Now()
	w.mu.Lock()
	w.stats.EventsSeen++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = now
	w.debounceMap[event.Name] = now
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.correct(path)
	}
}

func (w *Watcher) correct(path string) {
	log := logging.Get(logging.CategoryWatch).With("path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("failed to read: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		}
		return
	}
	content := string(data)

	// Our own write-back fires another event; skip it.
	w.mu.Lock()
	last, ours := w.written[path]
	w.mu.Unlock()
	if ours && last == content {
		log.Debug("skipping own write")
		return
	}

	res := w.opt.OptimizeCorrection(path, content)
	report := Report{Path: path, Result: res}
	log.Debug("corrected: success=%t corrections=%d", res.Success, len(res.Corrections))

	if res.Success && w.opts.Write && res.CorrectedContent != content {
		if err := os.WriteFile(path, []byte(res.CorrectedContent), 0644); err != nil {
			log.Error("failed to write: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		} else {
			report.Written = true
			log.Info("wrote corrected file")
		}
	}

	w.mu.Lock()
	w.stats.Corrections++
	if !res.Success {
		w.stats.Failures++
	}
	if report.Written {
		w.stats.FilesWritten++
		w.written[path] = res.CorrectedContent
	} else {
		delete(w.written, path)
	}
	w.mu.Unlock()

	if w.opts.OnReport != nil {
		w.opts.OnReport(report)
	}
}

// GetStats returns a snapshot of the watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedDirs returns the directories currently watched.
func (w *Watcher) WatchedDirs() []string {
	return w.watcher.WatchList()
}
