package ratelimiter

import (
	"sync"
	"time"
)

type inMemoryEntry struct {
	bucket    Bucket
	expiresAt time.Time
}

type InMemory struct {
	cache     map[string]inMemoryEntry
	mu        sync.Mutex
	now       func() time.Time
	stopClean chan struct{}
	cleanOnce sync.Once
}

func NewInMemory() *InMemory {
	im := &InMemory{
		cache:     make(map[string]inMemoryEntry),
		now:       time.Now,
		stopClean: make(chan struct{}),
	}

	go im.cleanupExpired(time.Minute)

	return im
}

func (i *InMemory) Update(key string, ttl time.Duration, fn UpdateFunc) (Bucket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	entry, found := i.cache[key]
	if found && !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		found = false
	}

	next := fn(entry.bucket, found)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	i.cache[key] = inMemoryEntry{bucket: next, expiresAt: expiresAt}

	return next, nil
}

// Len reports the number of stored keys, expired ones included until the
// next sweep.
func (i *InMemory) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.cache)
}

func (i *InMemory) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.removeExpired()
		case <-i.stopClean:
			return
		}
	}
}

func (i *InMemory) removeExpired() {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	for key, entry := range i.cache {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(i.cache, key)
		}
	}
}

func (i *InMemory) Close() error {
	i.cleanOnce.Do(func() {
		close(i.stopClean)
	})
	return nil
}
