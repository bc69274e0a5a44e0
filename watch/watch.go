// Package watch turns file-system change notifications into entry delivery.
//
// A [Monitor] watches a Decsync instance's store directory recursively and
// calls ExecuteAllNewEntries when logs change, so embedders get push-style
// updates as soon as the external file-sync tool drops new data. Events are
// coalesced with a short debounce, and a rate limiter caps rescan frequency
// during bulk transfers.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/localfirst/decsync"
)

// debounce is how long the monitor waits after the last event before
// rescanning, so one synced batch of files triggers one delivery pass.
const debounce = 250 * time.Millisecond

// Monitor delivers new entries when the store directory changes on disk.
type Monitor[E any] struct {
	ds      *decsync.Decsync[E]
	extra   E
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
}

// New creates a monitor for ds. The extra value is passed to listeners on
// every delivery.
func New[E any](ds *decsync.Decsync[E], extra E) (*Monitor[E], error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	m := &Monitor[E]{
		ds:      ds,
		extra:   extra,
		watcher: watcher,
		// At most two rescans per second, with a small burst for startup.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
	if err := m.addRecursive(ds.StoreDir()); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return m, nil
}

// addRecursive watches dir and every non-hidden directory below it. A
// missing directory is fine: it is picked up once the first write creates it
// and its parent emits a create event.
func (m *Monitor[E]) addRecursive(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch root %s: %w", dir, err)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && len(name) > 0 && name[0] == '.' {
			return filepath.SkipDir
		}
		if err := m.watcher.Add(path); err != nil {
			slog.Warn("Failed to watch directory", "dir", path, "err", err)
		}
		return nil
	})
}

// Run blocks delivering entries until ctx is canceled or the watcher fails.
// It performs one delivery pass at startup to catch changes that happened
// while no monitor was running.
func (m *Monitor[E]) Run(ctx context.Context) error {
	defer func() {
		_ = m.watcher.Close()
	}()

	if err := m.ds.ExecuteAllNewEntries(m.extra); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := m.addRecursive(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", "dir", event.Name, "err", err)
					}
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = true
				timer.Reset(debounce)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", "err", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := m.ds.ExecuteAllNewEntries(m.extra); err != nil {
				slog.Error("Failed to deliver new entries", "err", err)
			}
		}
	}
}
