// Package decsync is a decentralized synchronization engine for key-value
// mappings that uses a plain directory tree as its only transport and
// durability medium.
//
// Multiple application instances, each with its own app id, write timestamped
// entries to logs they exclusively own. The directory is replicated by any
// external file-sync tool; no server or network protocol is involved. Reads
// merge all logs under a path and pick, per key, the entry with the newest
// timestamp, preferring the reading instance's own app id on ties, so every
// instance converges to the same logical state without coordination.
//
// A [Decsync] instance is scoped to one (directory, sync type, collection,
// own app id) tuple. Writers call [Decsync.SetEntry] and friends; readers
// register listeners with [Decsync.AddListener] and drain updates with
// [Decsync.ExecuteAllNewEntries]. Historical state is re-delivered on demand
// through the stored-entry executors.
package decsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/localfirst/decsync/internal/appid"
	"github.com/localfirst/decsync/internal/logstore"
	"github.com/localfirst/decsync/internal/pathenc"
	"github.com/localfirst/decsync/internal/tracker"
	"github.com/localfirst/decsync/jsonval"
)

// Entry is one timestamped key/value update as delivered to listeners.
type Entry struct {
	// Datetime is the ISO-8601 timestamp assigned by the writer. Its fixed
	// width makes string comparison equivalent to chronological comparison.
	Datetime string
	Key      jsonval.Value
	Value    jsonval.Value
}

// EntryWithPath is a write request: a key/value update targeting a path.
// The timestamp is assigned by the engine at append time.
type EntryWithPath struct {
	Path  []string
	Key   jsonval.Value
	Value jsonval.Value
}

// KeyValue is a key/value update for batch writes sharing one path.
type KeyValue struct {
	Key   jsonval.Value
	Value jsonval.Value
}

// StoredEntry points at a path and key whose currently resolved value should
// be (re-)delivered. The value is intentionally unknown.
type StoredEntry struct {
	Path []string
	Key  jsonval.Value
}

// datetimeFormat is fixed-width so timestamps compare correctly as strings.
const datetimeFormat = "2006-01-02T15:04:05.000"

// localStateDir holds per-instance state (delivered-position markers) inside
// the store directory. The leading dot keeps it out of path enumeration:
// encoded path segments never start with a dot.
const localStateDir = ".decsync-local"

// Decsync is one synchronization instance. E is the type of the opaque
// context value passed through to listeners.
//
// Methods are safe for concurrent reads, but two goroutines must not call
// mutating operations (SetEntry*, ExecuteAllNewEntries, InitStoredEntries)
// concurrently without external serialization.
type Decsync[E any] struct {
	dir        string
	syncType   string
	collection string
	ownAppID   string
	store      *logstore.Store
	track      *tracker.Tracker

	mu           sync.Mutex
	lastDatetime string
	listeners    []listener[E]
}

// New creates an instance operating on dir (the default directory when
// empty). collection may be empty for sync types with a single implicit
// collection. ownAppID must be unique among concurrently running instances;
// use [GetAppID]. Returns [ErrInvalidInfo] or [ErrUnsupportedVersion] when
// the directory's configuration marker is unusable.
func New[E any](dir, syncType, collection, ownAppID string) (*Decsync[E], error) {
	if syncType == "" {
		return nil, errors.New("sync type is required")
	}
	if ownAppID == "" {
		return nil, errors.New("own app id is required")
	}
	if dir == "" {
		dir = appid.DefaultDir()
	}
	if err := appid.CheckInfo(dir); err != nil {
		return nil, err
	}
	root := storeRoot(dir, syncType, collection)
	trackFile := filepath.Join(root, localStateDir, pathenc.Escape(ownAppID), "positions.jsonl")
	track, err := tracker.Open(trackFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open position tracker: %w", err)
	}
	return &Decsync[E]{
		dir:        dir,
		syncType:   syncType,
		collection: collection,
		ownAppID:   ownAppID,
		store:      logstore.New(root),
		track:      track,
	}, nil
}

func storeRoot(dir, syncType, collection string) string {
	root := filepath.Join(dir, pathenc.Escape(syncType))
	if collection != "" {
		root = filepath.Join(root, pathenc.Escape(collection))
	}
	return root
}

// Dir returns the sync directory the instance operates on.
func (d *Decsync[E]) Dir() string { return d.dir }

// StoreDir returns the directory holding this instance's sync-type and
// collection, useful for external change monitoring.
func (d *Decsync[E]) StoreDir() string { return d.store.Root() }

// OwnAppID returns the app id this instance writes under.
func (d *Decsync[E]) OwnAppID() string { return d.ownAppID }

// nextDatetime returns the timestamp for a new batch of entries. Successive
// calls never go backwards, even if the wall clock does.
func (d *Decsync[E]) nextDatetime() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	dt := time.Now().UTC().Format(datetimeFormat)
	if dt < d.lastDatetime {
		dt = d.lastDatetime
	}
	d.lastDatetime = dt
	return dt
}

// SetEntry associates value with key in the mapping at path. The update is
// picked up by synchronized devices.
func (d *Decsync[E]) SetEntry(path []string, key, value jsonval.Value) error {
	return d.SetEntriesForPath(path, []KeyValue{{Key: key, Value: value}})
}

// SetEntriesForPath writes several updates sharing one path. All entries of
// the batch carry the same timestamp.
func (d *Decsync[E]) SetEntriesForPath(path []string, entries []KeyValue) error {
	if len(entries) == 0 {
		return nil
	}
	dt := d.nextDatetime()
	recs := make([]logstore.Record, len(entries))
	for i, e := range entries {
		recs[i] = logstore.Record{Datetime: dt, Key: e.Key, Value: e.Value}
	}
	return d.store.Append(d.ownAppID, path, recs)
}

// SetEntries writes updates that may target different paths, grouping them
// per path so each log is appended once.
func (d *Decsync[E]) SetEntries(entries []EntryWithPath) error {
	dt := d.nextDatetime()
	groups := map[string][]logstore.Record{}
	paths := map[string][]string{}
	var order []string
	for _, e := range entries {
		key := pathKey(e.Path)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			paths[key] = e.Path
		}
		groups[key] = append(groups[key], logstore.Record{Datetime: dt, Key: e.Key, Value: e.Value})
	}
	for _, key := range order {
		if err := d.store.Append(d.ownAppID, paths[key], groups[key]); err != nil {
			return err
		}
	}
	return nil
}

func pathKey(path []string) string {
	data, _ := json.Marshal(path)
	return string(data)
}

// ExecuteStoredEntry resolves the current value of (path, key) and, if one
// exists, dispatches it to matching listeners with its stored timestamp.
func (d *Decsync[E]) ExecuteStoredEntry(path []string, key jsonval.Value, extra E) error {
	res, ok, err := d.store.Latest(d.ownAppID, path, key.String())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	d.dispatch(path, Entry{Datetime: res.Datetime, Key: res.Key, Value: res.Value}, extra)
	return nil
}

// ExecuteStoredEntries is like [Decsync.ExecuteStoredEntry] for several
// entries, sharing resolution work between entries with the same path.
func (d *Decsync[E]) ExecuteStoredEntries(entries []StoredEntry, extra E) error {
	byPath := map[string][]jsonval.Value{}
	paths := map[string][]string{}
	var order []string
	for _, e := range entries {
		key := pathKey(e.Path)
		if _, ok := byPath[key]; !ok {
			order = append(order, key)
			paths[key] = e.Path
		}
		byPath[key] = append(byPath[key], e.Key)
	}
	for _, key := range order {
		if err := d.ExecuteStoredEntriesForPath(paths[key], extra, byPath[key]); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteStoredEntriesForPath resolves and dispatches the given keys under
// one path. A nil keys slice means every key currently resolvable under the
// path.
func (d *Decsync[E]) ExecuteStoredEntriesForPath(path []string, extra E, keys []jsonval.Value) error {
	resolved, err := d.store.ResolveAll(d.ownAppID, path)
	if err != nil {
		return err
	}
	var selected []string
	if keys == nil {
		selected = make([]string, 0, len(resolved))
		for key := range resolved {
			selected = append(selected, key)
		}
		sort.Strings(selected)
	} else {
		selected = make([]string, 0, len(keys))
		for _, key := range keys {
			selected = append(selected, key.String())
		}
	}
	for _, key := range selected {
		res, ok := resolved[key]
		if !ok {
			continue
		}
		d.dispatch(path, Entry{Datetime: res.Datetime, Key: res.Key, Value: res.Value}, extra)
	}
	return nil
}

// ExecuteAllStoredEntriesForPath dispatches every key currently resolvable
// under path.
func (d *Decsync[E]) ExecuteAllStoredEntriesForPath(path []string, extra E) error {
	return d.ExecuteStoredEntriesForPath(path, extra, nil)
}

// LatestAppID returns the app id that wrote the most recent entry anywhere
// under this instance's scope, preferring the own app id on ties.
func (d *Decsync[E]) LatestAppID() (string, error) {
	return d.store.LatestAppID(d.ownAppID)
}
