package serp

import (
	"context"
	"strings"
	"sync"
)

// Key identifies one cache entry.
type Key struct {
	Keyword string
	Domain  string
}

// NewKey normalises keyword (trimmed, lowercased, single spaced) and
// domain (bare host without www.).
func NewKey(keyword, domain string) Key {
	return Key{
		Keyword: strings.Join(strings.Fields(strings.ToLower(keyword)), " "),
		Domain:  ExtractDomain(domain),
	}
}

// Cache stores at most one enrichment per key. Entries never expire;
// callers decide freshness through force refresh.
type Cache interface {
	Get(ctx context.Context, key Key) (*EnrichedSerp, bool, error)
	Put(ctx context.Context, key Key, entry *EnrichedSerp) error
	Delete(ctx context.Context, key Key) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]*EnrichedSerp
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]*EnrichedSerp)}
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key Key) (*EnrichedSerp, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

// Put implements Cache.
func (m *MemoryCache) Put(_ context.Context, key Key, entry *EnrichedSerp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

// Delete implements Cache.
func (m *MemoryCache) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// keyLocks serialises work per key. Acquisition honours ctx.
type keyLocks struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[Key]*keyLock)}
}

// acquire blocks until key is free or ctx is done. The returned func releases it.
func (k *keyLocks) acquire(ctx context.Context, key Key) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			k.drop(key, l)
		}, nil
	case <-ctx.Done():
		k.drop(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyLocks) drop(key Key, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
