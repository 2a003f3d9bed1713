// Package ristretto is an in-memory cachestorage.Provider over
// dgraph-io/ristretto. Entries may be evicted under cost pressure; keys
// under a pinned prefix are held outside ristretto and never are.
package ristretto

import (
	"context"
	"errors"
	"strings"
	"sync"

	rc "github.com/dgraph-io/ristretto"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
)

var _ cachestorage.Provider = (*Provider)(nil)

var ErrRejected = errors.New("ristretto: write rejected")

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	// PinnedPrefixes name keys that bypass ristretto.
	PinnedPrefixes []string
}

// DefaultConfig sizes the cache for roughly 64 MiB of entries and pins the
// partition registry.
func DefaultConfig() Config {
	return Config{
		NumCounters:    1e5,
		MaxCost:        64 << 20,
		BufferItems:    64,
		PinnedPrefixes: []string{cachestorage.RegistryPrefix},
	}
}

// Provider keeps its own key index because ristretto stores hashes only.
// Index entries for evicted keys are pruned lazily by Keys.
type Provider struct {
	c        *rc.Cache
	prefixes []string

	mu     sync.Mutex
	index  map[string]struct{}
	pinned map[string][]byte
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{
		c:        c,
		prefixes: append([]string(nil), cfg.PinnedPrefixes...),
		index:    make(map[string]struct{}),
		pinned:   make(map[string][]byte),
	}, nil
}

func (p *Provider) isPinned(key string) bool {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	if p.isPinned(key) {
		p.mu.Lock()
		defer p.mu.Unlock()
		b, ok := p.pinned[key]
		return b, ok, nil
	}

	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write to be applied so it is visible to the next Get.
// A write the admission policy dropped after buffering is reported as
// ErrRejected.
func (p *Provider) Set(_ context.Context, key string, value []byte) error {
	buf := append([]byte(nil), value...)
	if p.isPinned(key) {
		p.mu.Lock()
		p.pinned[key] = buf
		p.mu.Unlock()
		return nil
	}

	if !p.c.Set(key, buf, int64(len(buf))+int64(len(key))) {
		return ErrRejected
	}
	p.c.Wait()
	if _, ok := p.c.Get(key); !ok {
		return ErrRejected
	}

	p.mu.Lock()
	p.index[key] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)

	p.mu.Lock()
	delete(p.index, key)
	delete(p.pinned, key)
	p.mu.Unlock()
	return nil
}

func (p *Provider) Keys(_ context.Context, prefix string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for k := range p.pinned {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	for k := range p.index {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := p.c.Get(k); !ok {
			delete(p.index, k)
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (p *Provider) DelPrefix(ctx context.Context, prefix string) error {
	keys, err := p.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := p.Del(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
