package decsync

import (
	"sort"
)

// newEntry is one undelivered record from another app id's log, together
// with everything needed to order it globally and advance its marker.
type newEntry struct {
	path    []string
	pathKey string
	appID   string
	entry   Entry
	end     int64
	// Position of this record within its log's pending slice, in log order.
	idx int
}

// logKey identifies one (app id, path) log.
type logKey struct {
	appID   string
	pathKey string
}

// logProgress tracks which of one log's pending records have been dispatched.
// The global dispatch order sorts by timestamp and key, so records of one log
// can dispatch out of log order. The on-disk marker may only advance over a
// contiguous prefix of dispatched records: moving it past an undispatched
// record would drop that record for good if the process dies before reaching
// it.
type logProgress struct {
	ends []int64
	done []bool
	next int
}

// ExecuteAllNewEntries dispatches every entry written by other app ids that
// has not been delivered to this instance yet, in increasing-timestamp order
// across all paths. Delivered-position markers advance as entries are
// consumed, covering only entries that were actually dispatched, so a crash
// mid-call can cause an entry to be delivered again on the next call, never
// to be lost.
func (d *Decsync[E]) ExecuteAllNewEntries(extra E) error {
	paths, err := d.store.Paths()
	if err != nil {
		return err
	}
	var pending []newEntry
	progress := map[logKey]*logProgress{}
	for _, path := range paths {
		appIDs, err := d.store.AppIDs(path)
		if err != nil {
			return err
		}
		pk := pathKey(path)
		for _, appID := range appIDs {
			if appID == d.ownAppID {
				continue
			}
			lk := logKey{appID: appID, pathKey: pk}
			offset := d.track.Get(appID, path)
			for rec, end := range d.store.RecordsFrom(appID, path, offset) {
				lp := progress[lk]
				if lp == nil {
					lp = &logProgress{}
					progress[lk] = lp
				}
				pending = append(pending, newEntry{
					path:    path,
					pathKey: pk,
					appID:   appID,
					entry:   Entry{Datetime: rec.Datetime, Key: rec.Key, Value: rec.Value},
					end:     end,
					idx:     len(lp.ends),
				})
				lp.ends = append(lp.ends, end)
			}
		}
	}
	for _, lp := range progress {
		lp.done = make([]bool, len(lp.ends))
	}
	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.entry.Datetime != b.entry.Datetime {
			return a.entry.Datetime < b.entry.Datetime
		}
		if a.pathKey != b.pathKey {
			return a.pathKey < b.pathKey
		}
		if ka, kb := a.entry.Key.String(), b.entry.Key.String(); ka != kb {
			return ka < kb
		}
		return a.end < b.end
	})
	for _, p := range pending {
		d.dispatch(p.path, p.entry, extra)
		lp := progress[logKey{appID: p.appID, pathKey: p.pathKey}]
		lp.done[p.idx] = true
		advanced := false
		for lp.next < len(lp.done) && lp.done[lp.next] {
			lp.next++
			advanced = true
		}
		if advanced {
			if err := d.track.Set(p.appID, p.path, lp.ends[lp.next-1]); err != nil {
				return err
			}
		}
	}
	return nil
}

// InitStoredEntries marks every other app id's log as fully delivered
// without dispatching anything. A reinstalled instance calls this so only
// future updates stream as new, then materializes historical state through
// the stored-entry executors.
func (d *Decsync[E]) InitStoredEntries() error {
	paths, err := d.store.Paths()
	if err != nil {
		return err
	}
	for _, path := range paths {
		appIDs, err := d.store.AppIDs(path)
		if err != nil {
			return err
		}
		for _, appID := range appIDs {
			if appID == d.ownAppID {
				continue
			}
			if err := d.track.Set(appID, path, d.store.Size(appID, path)); err != nil {
				return err
			}
		}
	}
	return nil
}
