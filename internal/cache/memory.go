package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is an in-process Store backed by ttlcache. Entries keep the TTL
// they were written with; reads do not extend it.
type MemoryStore struct {
	items *ttlcache.Cache[string, []byte]
	once  sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its expiry loop. Close stops it.
func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()

	return &MemoryStore{items: items}
}

// Get returns a copy of the value stored at key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}

	value := item.Value()
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores a copy of value for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.items.Set(key, v, ttl)
	return nil
}

// Delete removes keys.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() error {
	s.once.Do(s.items.Stop)
	return nil
}
