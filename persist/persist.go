// Package persist saves and restores whole cache snapshots through a byte
// store, so a warm cache survives process restarts or travels between
// replicas. A querystore.Cache dehydrates into a Snapshot; the Persister
// frames and encodes it under a single storage key.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unkn0wn-root/queryfx"
	"github.com/unkn0wn-root/queryfx/codec"
	"github.com/unkn0wn-root/queryfx/internal/snapwire"
	"github.com/unkn0wn-root/queryfx/persist/provider"
)

// Entry is one dehydrated cache entry. Request and Data hold JSON
// renderings of the key's request component and the cached value, so a
// snapshot is self-describing regardless of the Go types that produced it.
type Entry struct {
	Method    string          `json:"method"`
	Request   json.RawMessage `json:"request,omitempty"`
	Data      json.RawMessage `json:"data"`
	Stale     bool            `json:"stale,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshot is a point-in-time dehydration of a cache.
type Snapshot struct {
	SavedAt time.Time `json:"savedAt"`
	Entries []Entry   `json:"entries"`
}

// Options configures a Persister. Provider is required; everything else
// has a default.
type Options struct {
	// Provider is the byte store snapshots are written to.
	Provider provider.Provider

	// Codec encodes the snapshot payload. Defaults to codec.JSON.
	Codec codec.Codec[Snapshot]

	// Key is the storage key the snapshot lives under.
	// Defaults to "queryfx:snapshot".
	Key string

	// TTL bounds the stored blob's lifetime in the provider.
	// Defaults to 24h.
	TTL time.Duration

	// MaxAge rejects snapshots older than this at Load time, for stores
	// whose TTL is coarser than wanted (or absent). Zero disables the
	// age check.
	MaxAge time.Duration

	Logger queryfx.Logger
}

// Persister saves and loads one Snapshot under a fixed storage key.
type Persister struct {
	p      provider.Provider
	c      codec.Codec[Snapshot]
	key    string
	ttl    time.Duration
	maxAge time.Duration
	log    queryfx.Logger
}

func New(o Options) (*Persister, error) {
	if o.Provider == nil {
		return nil, fmt.Errorf("queryfx: persist: provider is required")
	}
	p := &Persister{
		p:      o.Provider,
		c:      o.Codec,
		key:    o.Key,
		ttl:    o.TTL,
		maxAge: o.MaxAge,
		log:    o.Logger,
	}
	if p.c == nil {
		p.c = codec.JSON[Snapshot]{}
	}
	if p.key == "" {
		p.key = "queryfx:snapshot"
	}
	if p.ttl <= 0 {
		p.ttl = 24 * time.Hour
	}
	if p.log == nil {
		p.log = queryfx.NopLogger{}
	}
	return p, nil
}

// Save encodes, frames, and stores the snapshot, replacing any previous one.
func (p *Persister) Save(ctx context.Context, s Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	raw, err := p.c.Encode(s)
	if err != nil {
		return fmt.Errorf("queryfx: persist: encode snapshot: %w", err)
	}
	framed := snapwire.Encode(raw)
	if err := p.p.Set(ctx, p.key, framed, p.ttl); err != nil {
		return fmt.Errorf("queryfx: persist: store snapshot: %w", err)
	}
	p.log.Debug("snapshot saved", queryfx.Fields{"key": p.key, "entries": len(s.Entries), "bytes": len(framed)})
	return nil
}

// Load reads back the stored snapshot. A missing snapshot is (zero, false,
// nil). Corrupt, undecodable, or over-age blobs are deleted and reported as
// a miss rather than an error, so a bad snapshot never blocks startup.
func (p *Persister) Load(ctx context.Context) (Snapshot, bool, error) {
	var zero Snapshot
	b, ok, err := p.p.Get(ctx, p.key)
	if err != nil {
		return zero, false, fmt.Errorf("queryfx: persist: read snapshot: %w", err)
	}
	if !ok {
		return zero, false, nil
	}
	raw, err := snapwire.Decode(b)
	if err != nil {
		p.log.Warn("dropping corrupt snapshot", queryfx.Fields{"key": p.key, "err": err})
		_ = p.p.Del(ctx, p.key)
		return zero, false, nil
	}
	s, err := p.c.Decode(raw)
	if err != nil {
		p.log.Warn("dropping undecodable snapshot", queryfx.Fields{"key": p.key, "err": err})
		_ = p.p.Del(ctx, p.key)
		return zero, false, nil
	}
	if p.maxAge > 0 && !s.SavedAt.IsZero() && time.Since(s.SavedAt) > p.maxAge {
		p.log.Debug("snapshot over max age", queryfx.Fields{"key": p.key, "savedAt": s.SavedAt})
		_ = p.p.Del(ctx, p.key)
		return zero, false, nil
	}
	return s, true, nil
}

// Clear removes the stored snapshot.
func (p *Persister) Clear(ctx context.Context) error {
	return p.p.Del(ctx, p.key)
}
