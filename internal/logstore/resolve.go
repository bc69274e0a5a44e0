package logstore

// Resolved is the winning record for a key together with the app id that
// wrote it.
type Resolved struct {
	Record
	AppID string
}

// wins reports whether candidate a beats candidate b. Later datetimes win.
// On a datetime tie the reading instance's own app id wins if it is among
// the tied set; otherwise the lexicographically smallest app id does, so
// every instance picks the same winner among foreign writers.
func wins(a, b Resolved, ownAppID string) bool {
	if a.Datetime != b.Datetime {
		return a.Datetime > b.Datetime
	}
	if a.AppID == ownAppID {
		return true
	}
	if b.AppID == ownAppID {
		return false
	}
	return a.AppID < b.AppID
}

// Latest returns the logical value of (path, key): the winning record across
// all app-id logs under path, or false if no app id ever wrote that key.
// Within a single log a later position supersedes an earlier record for the
// same key, regardless of datetimes.
func (s *Store) Latest(ownAppID string, path []string, key string) (Resolved, bool, error) {
	appIDs, err := s.AppIDs(path)
	if err != nil {
		return Resolved{}, false, err
	}
	var best Resolved
	found := false
	for _, appID := range appIDs {
		var last Record
		seen := false
		for rec := range s.Records(appID, path) {
			if rec.Key.String() == key {
				last = rec
				seen = true
			}
		}
		if !seen {
			continue
		}
		cand := Resolved{Record: last, AppID: appID}
		if !found || wins(cand, best, ownAppID) {
			best = cand
			found = true
		}
	}
	return best, found, nil
}

// ResolveAll returns the logical value of every key under path, keyed by the
// canonical key serialization. The winner per key is exactly the one Latest
// would pick.
func (s *Store) ResolveAll(ownAppID string, path []string) (map[string]Resolved, error) {
	appIDs, err := s.AppIDs(path)
	if err != nil {
		return nil, err
	}
	resolved := map[string]Resolved{}
	for _, appID := range appIDs {
		// Last record per key within this log.
		last := map[string]Record{}
		for rec := range s.Records(appID, path) {
			last[rec.Key.String()] = rec
		}
		for key, rec := range last {
			cand := Resolved{Record: rec, AppID: appID}
			if prev, ok := resolved[key]; !ok || wins(cand, prev, ownAppID) {
				resolved[key] = cand
			}
		}
	}
	return resolved, nil
}

// LatestAppID returns the app id holding the globally most recent record
// under any path, preferring ownAppID on ties. With no records at all it
// returns ownAppID.
func (s *Store) LatestAppID(ownAppID string) (string, error) {
	paths, err := s.Paths()
	if err != nil {
		return "", err
	}
	var best Resolved
	found := false
	for _, path := range paths {
		appIDs, err := s.AppIDs(path)
		if err != nil {
			return "", err
		}
		for _, appID := range appIDs {
			for rec := range s.Records(appID, path) {
				cand := Resolved{Record: rec, AppID: appID}
				if !found || wins(cand, best, ownAppID) {
					best = cand
					found = true
				}
			}
		}
	}
	if !found {
		return ownAppID, nil
	}
	return best.AppID, nil
}
