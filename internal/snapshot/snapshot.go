// Package snapshot persists the best solution of a running search to text
// files: a throttled "latest" file, one file per elapsed-time checkpoint and
// a final file when the search ends.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"vrptw/internal/model"
)

// Checkpoint names a snapshot taken once the search has run for After.
type Checkpoint struct {
	Label string        `yaml:"label" validate:"required,alphanum"`
	After time.Duration `yaml:"after" validate:"gt=0"`
}

type Writer struct {
	base        string
	checkpoints []Checkpoint
	limiter     *rate.Limiter
	log         *slog.Logger
	begin       time.Time
	tick        time.Duration

	mu      sync.Mutex
	best    *model.Solution
	dirty   bool
	written map[string]bool
}

// New returns a Writer for files named <base>-<label>.txt. minInterval
// bounds how often the latest file is rewritten; zero rewrites on every
// Observe.
func New(base string, checkpoints []Checkpoint, minInterval time.Duration, log *slog.Logger) *Writer {
	lim := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		lim = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		base:        base,
		checkpoints: checkpoints,
		limiter:     lim,
		log:         log,
		begin:       time.Now(),
		tick:        250 * time.Millisecond,
		written:     map[string]bool{},
	}
}

// Path returns the file a label is written to.
func (w *Writer) Path(label string) string { return fmt.Sprintf("%s-%s.txt", w.base, label) }

// Observe records sol when it beats every solution observed before; worse
// solutions are ignored.
func (w *Writer) Observe(sol *model.Solution) error {
	w.mu.Lock()
	if w.best != nil && !sol.Less(w.best) {
		w.mu.Unlock()
		return nil
	}
	w.best, w.dirty = sol, true
	w.mu.Unlock()
	if !w.limiter.Allow() {
		return nil
	}
	return w.flushLatest()
}

func (w *Writer) flushLatest() error {
	w.mu.Lock()
	sol, dirty := w.best, w.dirty
	w.dirty = false
	w.mu.Unlock()
	if !dirty || sol == nil {
		return nil
	}
	return writeAtomic(w.Path("latest"), sol.String())
}

// Run writes due checkpoints and pending latest updates until ctx is done.
// Write errors are logged.
func (w *Writer) Run(ctx context.Context) {
	t := time.NewTicker(w.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.checkpoint(time.Since(w.begin)); err != nil {
				w.log.Error("snapshot checkpoint", "err", err)
			}
			if w.limiter.Allow() {
				if err := w.flushLatest(); err != nil {
					w.log.Error("snapshot latest", "err", err)
				}
			}
		}
	}
}

func (w *Writer) checkpoint(elapsed time.Duration) error {
	w.mu.Lock()
	sol := w.best
	w.mu.Unlock()
	if sol == nil {
		return nil
	}
	for _, cp := range w.checkpoints {
		if elapsed < cp.After || w.written[cp.Label] {
			continue
		}
		if err := writeAtomic(w.Path(cp.Label), sol.String()); err != nil {
			return err
		}
		w.written[cp.Label] = true
		w.log.Info("snapshot written", "label", cp.Label, "routes", sol.RouteCount(), "distance", sol.Distance())
	}
	return nil
}

// Close writes the final file and the latest file if it is stale.
func (w *Writer) Close() error {
	if err := w.flushLatest(); err != nil {
		return err
	}
	w.mu.Lock()
	sol := w.best
	w.mu.Unlock()
	if sol == nil {
		return nil
	}
	return writeAtomic(w.Path("final"), sol.String())
}

func writeAtomic(path, body string) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	tmp := f.Name()
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapshot: rename %s: %w", path, err)
	}
	return nil
}
