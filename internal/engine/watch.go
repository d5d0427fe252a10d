package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/gtfsprep/internal/config"
)

// DefaultDebounce is how long Watch waits after the last change before
// re-running the pipeline.
const DefaultDebounce = 500 * time.Millisecond

// Watch runs the pipeline once, then again whenever a parquet table in the
// input folder is created or written. It returns when ctx is cancelled.
// Failed runs are logged and do not stop the loop.
func (e *Engine) Watch(ctx context.Context, opts ProcessOptions, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(e.cfg.InputDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", e.cfg.InputDir, err)
	}

	e.runOnce(ctx, opts)
	e.logger.Info("watching for changes", "dir", e.cfg.InputDir)

	// The direction step writes into the input folder itself.
	derived := filepath.Base(e.cfg.InputTable(config.TableStopTimesDirection))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
		changed string
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if filepath.Ext(name) != ".parquet" || name == derived {
				continue
			}

			changed = name
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			trigger = timer.C

		case <-trigger:
			trigger = nil
			e.logger.Info("change detected", "file", changed)
			e.runOnce(ctx, opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", "error", err)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context, opts ProcessOptions) {
	run, err := e.Process(ctx, opts)
	if err != nil {
		e.logger.Error("run failed", "error", err)
		return
	}
	e.logger.Info("run finished", "run_id", run.ID, "status", run.Status)
}
