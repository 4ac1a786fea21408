package chain

import (
	"sync"
	"time"
)

// txCache memoizes getTransaction lookups by signature. A transaction's
// on-ledger content never changes once it exists, so entries only ever die
// by TTL. A nil transaction is a cached "not found".
type txCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]txCacheEntry
	now     func() time.Time
}

type txCacheEntry struct {
	tx        *ParsedTransaction
	expiresAt time.Time
}

func newTxCache(ttl time.Duration) *txCache {
	return &txCache{
		ttl:     ttl,
		entries: make(map[string]txCacheEntry),
		now:     time.Now,
	}
}

func (c *txCache) get(signature string) (*ParsedTransaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[signature]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, signature)
		return nil, false
	}
	return entry.tx, true
}

func (c *txCache) put(signature string, tx *ParsedTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[signature] = txCacheEntry{tx: tx, expiresAt: c.now().Add(c.ttl)}
}
