package decsync

import (
	"log/slog"
)

// OnEntryUpdate is the action a listener executes for an updated entry. The
// extra value is passed through unchanged from the triggering Execute* call.
// A returned error is logged and does not stop the surrounding batch.
type OnEntryUpdate[E any] func(path []string, entry Entry, extra E) error

type listener[E any] struct {
	subpath []string
	update  OnEntryUpdate[E]
}

func (l listener[E]) matches(path []string) bool {
	if len(l.subpath) > len(path) {
		return false
	}
	for i, segment := range l.subpath {
		if path[i] != segment {
			return false
		}
	}
	return true
}

// AddListener registers an action to execute for updated entries whose path
// starts with subpath. The empty subpath matches every entry. Listeners run
// in registration order.
func (d *Decsync[E]) AddListener(subpath []string, update OnEntryUpdate[E]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, listener[E]{subpath: subpath, update: update})
}

// dispatch invokes every matching listener. A failing listener never
// prevents the remaining ones from running.
func (d *Decsync[E]) dispatch(path []string, entry Entry, extra E) {
	d.mu.Lock()
	matched := make([]listener[E], 0, len(d.listeners))
	for _, l := range d.listeners {
		if l.matches(path) {
			matched = append(matched, l)
		}
	}
	d.mu.Unlock()
	for _, l := range matched {
		invoke(l, path, entry, extra)
	}
}

func invoke[E any](l listener[E], path []string, entry Entry, extra E) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Listener panicked", "path", path, "key", entry.Key.String(), "panic", r)
		}
	}()
	if err := l.update(path, entry, extra); err != nil {
		slog.Error("Listener failed", "path", path, "key", entry.Key.String(), "err", err)
	}
}
