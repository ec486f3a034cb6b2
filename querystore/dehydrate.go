package querystore

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/unkn0wn-root/queryfx"
	"github.com/unkn0wn-root/queryfx/internal/keyutil"
	"github.com/unkn0wn-root/queryfx/persist"
)

// Dehydrate captures every populated entry as a persistable snapshot.
// Requests and values are rendered to JSON; an entry whose value cannot be
// marshaled is skipped. Entries are emitted in a stable order so identical
// cache states produce identical snapshots.
func (c *Cache) Dehydrate() persist.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := persist.Snapshot{SavedAt: time.Now()}
	for _, e := range c.entries {
		if !e.present {
			continue
		}
		data, err := json.Marshal(e.value)
		if err != nil {
			c.log.Warn("dehydrate: skipping unmarshalable value", queryfx.Fields{"key": e.key.String(), "err": err})
			continue
		}
		var req json.RawMessage
		if e.key.HasRequest() {
			req = json.RawMessage(keyutil.Canonical(e.key.Request))
		}
		s.Entries = append(s.Entries, persist.Entry{
			Method:    e.key.Method,
			Request:   req,
			Data:      data,
			Stale:     e.stale,
			UpdatedAt: e.updatedAt,
		})
	}
	sort.Slice(s.Entries, func(i, j int) bool {
		if s.Entries[i].Method != s.Entries[j].Method {
			return s.Entries[i].Method < s.Entries[j].Method
		}
		return string(s.Entries[i].Request) < string(s.Entries[j].Request)
	})
	return s
}

// Hydrate loads snapshot entries into the cache. Requests and values come
// back as generic JSON values (maps, slices, json.Number), which derive
// the same canonical keys the original typed requests did. An existing
// entry at least as new as the snapshot's is kept; undecodable entries are
// skipped. Consumers treat a hydrated value whose shape no longer matches
// as absent, so stale snapshots self-heal on the next fetch.
func (c *Cache) Hydrate(s persist.Snapshot) {
	for _, pe := range s.Entries {
		var req any
		if len(pe.Request) > 0 {
			v, err := keyutil.DecodeAny(pe.Request)
			if err != nil {
				c.log.Warn("hydrate: skipping entry with bad request", queryfx.Fields{"method": pe.Method, "err": err})
				continue
			}
			req = v
		}
		var val any
		if err := json.Unmarshal(pe.Data, &val); err != nil {
			c.log.Warn("hydrate: skipping entry with bad data", queryfx.Fields{"method": pe.Method, "err": err})
			continue
		}
		key := queryfx.DeriveKey(pe.Method, req)

		c.mu.Lock()
		e := c.ensureLocked(key)
		// Ties keep the live entry: the snapshot only applies when it is
		// strictly newer.
		if e.present && !e.updatedAt.Before(pe.UpdatedAt) {
			c.mu.Unlock()
			continue
		}
		e.value = val
		e.present = true
		e.stale = pe.Stale
		e.updatedAt = pe.UpdatedAt
		c.mu.Unlock()
	}
}
