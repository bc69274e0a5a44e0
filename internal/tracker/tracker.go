// Package tracker persists which log positions have already been delivered
// to the local instance's listeners.
//
// Markers are kept per (other app id, path) in an append-only JSONL journal
// owned exclusively by the local instance. On load the journal is reduced
// last-wins, so a crash between delivering an entry and appending its marker
// costs at most a redelivery, never a lost entry. The journal is compacted
// in place once the number of superseded lines outgrows the live set.
package tracker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// mark is one journal line: the last delivered byte offset of one log.
type mark struct {
	AppID  string   `json:"app_id"`
	Path   []string `json:"path"`
	Offset int64    `json:"offset"`
}

func markKey(appID string, path []string) string {
	// Path segments may contain any characters, so a JSON encoding is the
	// simplest unambiguous composite key.
	data, _ := json.Marshal(path)
	return appID + "\x00" + string(data)
}

// Tracker stores delivered-position markers for one reading instance.
type Tracker struct {
	file string

	mu    sync.Mutex
	marks map[string]mark
	// Journal lines written since the last compaction, including the live
	// ones loaded from disk.
	lines int
}

// Open loads (or creates) the marker journal at file.
func Open(file string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tracker directory: %w", err)
	}
	t := &Tracker{file: file, marks: map[string]mark{}}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) load() error {
	f, err := os.Open(t.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open tracker journal %s: %w", t.file, err)
	}
	defer func() {
		_ = f.Close()
	}()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m mark
		if err := json.Unmarshal(line, &m); err != nil {
			slog.Warn("Skipping corrupt tracker record", "file", t.file, "err", err)
			continue
		}
		t.marks[markKey(m.AppID, m.Path)] = m
		t.lines++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read tracker journal %s: %w", t.file, err)
	}
	return nil
}

// Get returns the last delivered byte offset for (appID, path), 0 if none
// was ever recorded.
func (t *Tracker) Get(appID string, path []string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marks[markKey(appID, path)].Offset
}

// Set advances the delivered position for (appID, path) and persists it.
// Offsets never move backwards; a smaller or equal offset is a no-op.
func (t *Tracker) Set(appID string, path []string, offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := markKey(appID, path)
	if offset <= t.marks[key].Offset {
		return nil
	}
	m := mark{AppID: appID, Path: path, Offset: offset}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal tracker record: %w", err)
	}
	f, err := os.OpenFile(t.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open tracker journal for append: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write tracker record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close tracker journal: %w", err)
	}
	t.marks[key] = m
	t.lines++
	if t.lines > 2*len(t.marks)+64 {
		if err := t.compact(); err != nil {
			slog.Warn("Tracker compaction failed", "file", t.file, "err", err)
		}
	}
	return nil
}

// compact rewrites the journal with only the live markers. Called with the
// lock held.
func (t *Tracker) compact() error {
	tmp := t.file + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create compacted journal: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, m := range t.marks {
		data, err := json.Marshal(m)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to marshal tracker record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write compacted journal: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush compacted journal: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close compacted journal: %w", err)
	}
	if err := os.Rename(tmp, t.file); err != nil {
		return fmt.Errorf("failed to replace tracker journal: %w", err)
	}
	t.lines = len(t.marks)
	return nil
}
