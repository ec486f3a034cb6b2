// Package memory provides an in-process Provider backed by a map with
// lazy per-key expiry. Suitable for tests and single-process use.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/queryfx/persist/provider"
)

type item struct {
	value []byte
	exp   time.Time // zero = no expiry
}

type Provider struct {
	mu sync.Mutex
	m  map[string]item
}

var _ pr.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{m: make(map[string]item)}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = item{value: cp, exp: exp}
	p.mu.Unlock()
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]item)
	p.mu.Unlock()
	return nil
}
