package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of file events (editors often write a
// file several times) into one run.
const DefaultDebounce = 500 * time.Millisecond

// Watch re-runs Ingest whenever an ingestible file in dir changes, until
// ctx is cancelled. Events within debounce of each other trigger a single
// run. onRun, if set, receives the result of every run.
func (p *Pipeline) Watch(ctx context.Context, dir string, debounce time.Duration, onRun func(*Report, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingestion: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("ingestion: watch %s: %w", dir, err)
	}
	p.log.Info("ingestion: watching for changes", slog.String("dir", dir))

	// fire is nil while no run is pending.
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			p.log.Debug("ingestion: change detected", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			fire = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("ingestion: watcher error", slog.String("error", err.Error()))
		case <-fire:
			fire = nil
			rep, err := p.Ingest(ctx, dir)
			if err != nil {
				p.log.Error("ingestion: re-ingest failed", slog.String("error", err.Error()))
			}
			if onRun != nil {
				onRun(rep, err)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if KindOf(ev.Name) == KindIgnored {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
