package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/localfirst/decsync"
	"github.com/localfirst/decsync/jsonval"
)

func TestMonitorDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	writer, err := decsync.New[struct{}](dir, "sync-type", "", "app-writer")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	reader, err := decsync.New[struct{}](dir, "sync-type", "", "app-reader")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var mu sync.Mutex
	var values []string
	reader.AddListener(nil, func(path []string, entry decsync.Entry, _ struct{}) error {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := entry.Value.AsString(); ok {
			values = append(values, s)
		}
		return nil
	})

	// Written before the monitor starts: delivered by the startup pass.
	if err := writer.SetEntry([]string{"p"}, jsonval.NewString("k"), jsonval.NewString("before")); err != nil {
		t.Fatalf("SetEntry failed: %v", err)
	}

	m, err := New(reader, struct{}{})
	if err != nil {
		t.Fatalf("New monitor failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	waitFor := func(want int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			n := len(values)
			mu.Unlock()
			if n >= want {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %d deliveries", want)
	}
	waitFor(1)

	if err := writer.SetEntry([]string{"p"}, jsonval.NewString("k"), jsonval.NewString("after")); err != nil {
		t.Fatalf("SetEntry failed: %v", err)
	}
	waitFor(2)

	mu.Lock()
	got := append([]string(nil), values...)
	mu.Unlock()
	if got[0] != "before" || got[1] != "after" {
		t.Errorf("delivered values = %v, want [before after]", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestMonitorMissingStoreDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	ds, err := decsync.New[struct{}](dir, "sync-type", "", "app-a")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// The store directory does not exist until the first write; the monitor
	// must still start.
	m, err := New(ds, struct{}{})
	if err != nil {
		t.Fatalf("New monitor failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
