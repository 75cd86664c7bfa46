package cache

import (
	"context"
	"sync"
	"time"
)

// UnreadCache is an advisory cache of per-sender unread counts keyed by
// recipient. The message ledger stays the source of truth; an entry may
// be dropped at any time and callers must fall back to recomputation.
type UnreadCache interface {
	Get(ctx context.Context, recipientId string) (map[string]int, bool)
	Set(ctx context.Context, recipientId string, counts map[string]int)
	Invalidate(ctx context.Context, recipientId string)
}

type memEntry struct {
	counts     map[string]int
	expiration int64 // unix nano; 0 means no expiration
}

// MemUnreadCache is the in-process default. A background cleanup
// goroutine runs when NewMemUnreadCache is given a positive
// cleanupInterval.
type MemUnreadCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewMemUnreadCache(ttl, cleanupInterval time.Duration) *MemUnreadCache {
	m := &MemUnreadCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer m.wg.Done()
			for {
				select {
				case <-ticker.C:
					m.cleanup()
				case <-m.stop:
					return
				}
			}
		}()
	}
	return m
}

func (m *MemUnreadCache) Get(_ context.Context, recipientId string) (map[string]int, bool) {
	m.mu.RLock()
	entry, ok := m.entries[recipientId]
	m.mu.RUnlock()
	if !ok || entry.isExpired() {
		return nil, false
	}

	counts := make(map[string]int, len(entry.counts))
	for senderId, count := range entry.counts {
		counts[senderId] = count
	}
	return counts, true
}

func (m *MemUnreadCache) Set(_ context.Context, recipientId string, counts map[string]int) {
	copied := make(map[string]int, len(counts))
	for senderId, count := range counts {
		copied[senderId] = count
	}

	var exp int64
	if m.ttl > 0 {
		exp = time.Now().Add(m.ttl).UnixNano()
	}

	m.mu.Lock()
	m.entries[recipientId] = memEntry{counts: copied, expiration: exp}
	m.mu.Unlock()
}

func (m *MemUnreadCache) Invalidate(_ context.Context, recipientId string) {
	m.mu.Lock()
	delete(m.entries, recipientId)
	m.mu.Unlock()
}

func (m *MemUnreadCache) Close() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.wg.Wait()
}

func (e memEntry) isExpired() bool {
	return e.expiration != 0 && time.Now().UnixNano() > e.expiration
}

func (m *MemUnreadCache) cleanup() {
	now := time.Now().UnixNano()
	m.mu.Lock()
	for recipientId, entry := range m.entries {
		if entry.expiration != 0 && now > entry.expiration {
			delete(m.entries, recipientId)
		}
	}
	m.mu.Unlock()
}
