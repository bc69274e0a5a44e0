// Package logstore implements the on-disk entry logs.
//
// Each writer instance owns one append-only log file per path, so no two
// processes ever write to the same file and the file system itself is the
// only synchronization point. A log line is a self-delimiting JSON array
// [datetime, key, value]. Reads tolerate logs growing underneath them: a
// torn or corrupt line is skipped, never fatal.
package logstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/localfirst/decsync/internal/pathenc"
	"github.com/localfirst/decsync/jsonval"
)

// Record is one timestamped key/value update in a log.
type Record struct {
	Datetime string
	Key      jsonval.Value
	Value    jsonval.Value
}

func (r Record) marshal() ([]byte, error) {
	dt, err := json.Marshal(r.Datetime)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal datetime: %w", err)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	sb.Write(dt)
	sb.WriteByte(',')
	sb.WriteString(r.Key.String())
	sb.WriteByte(',')
	sb.WriteString(r.Value.String())
	sb.WriteString("]\n")
	return []byte(sb.String()), nil
}

func parseRecord(line []byte) (Record, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(line, &parts); err != nil {
		return Record{}, fmt.Errorf("malformed log line: %w", err)
	}
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("malformed log line: %d elements, want 3", len(parts))
	}
	var rec Record
	if err := json.Unmarshal(parts[0], &rec.Datetime); err != nil {
		return Record{}, fmt.Errorf("malformed datetime: %w", err)
	}
	var err error
	if rec.Key, err = jsonval.Parse(parts[1]); err != nil {
		return Record{}, fmt.Errorf("malformed key: %w", err)
	}
	if rec.Value, err = jsonval.Parse(parts[2]); err != nil {
		return Record{}, fmt.Errorf("malformed value: %w", err)
	}
	return rec, nil
}

// Store reads and writes the logs under one sync-type/collection directory.
type Store struct {
	root string
}

// New returns a Store rooted at dir. The directory is created lazily on the
// first append.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the directory the store operates on.
func (s *Store) Root() string { return s.root }

func (s *Store) dirFor(path []string) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, s.root)
	for _, segment := range path {
		parts = append(parts, pathenc.Escape(segment))
	}
	return filepath.Join(parts...)
}

// FileFor returns the log file for one app id under a path.
func (s *Store) FileFor(path []string, appID string) string {
	return filepath.Join(s.dirFor(path), pathenc.Escape(appID))
}

// Append writes the records to the log owned by appID under path. Each
// record is written as one complete line; a crash mid-call never corrupts
// previously committed lines.
func (s *Store) Append(appID string, path []string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	dir := s.dirFor(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file := s.FileFor(path, appID)
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s for append: %w", file, err)
	}
	defer func() {
		_ = f.Close()
	}()
	for _, rec := range recs {
		line, err := rec.marshal()
		if err != nil {
			return err
		}
		// One Write per record so a partial append never interleaves with
		// the previous line.
		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("failed to write log record: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync log %s: %w", file, err)
	}
	return nil
}

// Records iterates the log in append order. A missing log yields nothing.
func (s *Store) Records(appID string, path []string) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for rec := range s.RecordsFrom(appID, path, 0) {
			if !yield(rec) {
				return
			}
		}
	}
}

// RecordsFrom iterates the log starting at the given byte offset, yielding
// each record together with the byte offset of the end of its line. Corrupt
// lines are skipped; a torn final line (no trailing newline, typically a
// concurrent writer or a file-sync tool mid-transfer) is ignored and not
// advanced past.
func (s *Store) RecordsFrom(appID string, path []string, offset int64) iter.Seq2[Record, int64] {
	file := s.FileFor(path, appID)
	return func(yield func(Record, int64) bool) {
		f, err := os.Open(file)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("Failed to open log", "file", file, "err", err)
			}
			return
		}
		defer func() {
			_ = f.Close()
		}()
		if offset > 0 {
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				slog.Warn("Failed to seek log", "file", file, "offset", offset, "err", err)
				return
			}
		}
		pos := offset
		r := bufio.NewReader(f)
		for {
			line, err := r.ReadBytes('\n')
			if err != nil {
				// A final line without newline is still being written.
				return
			}
			pos += int64(len(line))
			rec, perr := parseRecord(line)
			if perr != nil {
				slog.Warn("Skipping corrupt log record", "file", file, "err", perr)
				continue
			}
			if !yield(rec, pos) {
				return
			}
		}
	}
}

// Size returns the current length of the log in bytes, 0 if it does not
// exist.
func (s *Store) Size(appID string, path []string) int64 {
	info, err := os.Stat(s.FileFor(path, appID))
	if err != nil {
		return 0
	}
	return info.Size()
}

// AppIDs returns the app ids that have ever written under path.
func (s *Store) AppIDs(path []string) ([]string, error) {
	entries, err := os.ReadDir(s.dirFor(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list logs under %s: %w", s.dirFor(path), err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, err := pathenc.Unescape(e.Name())
		if err != nil {
			slog.Warn("Skipping unrecognized log file", "name", e.Name(), "err", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Paths returns every path that has at least one log, in directory walk
// order.
func (s *Store) Paths() ([][]string, error) {
	var paths [][]string
	var walk func(dir string, path []string) error
	walk = func(dir string, path []string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to walk %s: %w", dir, err)
		}
		hasLogs := false
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if !e.IsDir() {
				hasLogs = true
				continue
			}
			segment, err := pathenc.Unescape(e.Name())
			if err != nil {
				slog.Warn("Skipping unrecognized directory", "name", e.Name(), "err", err)
				continue
			}
			sub := make([]string, len(path), len(path)+1)
			copy(sub, path)
			if err := walk(filepath.Join(dir, e.Name()), append(sub, segment)); err != nil {
				return err
			}
		}
		if hasLogs {
			paths = append(paths, path)
		}
		return nil
	}
	if err := walk(s.root, nil); err != nil {
		return nil, err
	}
	return paths, nil
}
