package cache

import (
    "sync"
    "time"

    "stockwatch/internal/provider"
)

// DefaultTTL is used when a Store is constructed without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// entry stores one cached quote with expiry.
type entry struct {
    expiresAt time.Time
    quote     provider.Quote
}

// Store caches one quote per symbol for a TTL. Expired entries are
// deleted the moment a read observes them; there is no background sweep
// and no capacity bound (watchlists are small). The store owns quote
// freshness: nothing else writes entries or extends expiry.
type Store struct {
    ttl time.Duration

    mu    sync.Mutex
    items map[string]entry // key: uppercase symbol
    now   func() time.Time
}

// New returns an empty Store with the given default TTL.
// A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Store {
    if ttl <= 0 { ttl = DefaultTTL }
    return &Store{ttl: ttl, items: make(map[string]entry), now: time.Now}
}

// Get returns the cached quote for symbol if present and unexpired.
// An expired entry is removed as part of the same read, so no caller
// ever observes a stale quote.
func (s *Store) Get(symbol string) (provider.Quote, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.items[symbol]
    if !ok {
        return provider.Quote{}, false
    }
    if !s.now().Before(e.expiresAt) {
        delete(s.items, symbol)
        return provider.Quote{}, false
    }
    return e.quote, true
}

// Put inserts or overwrites the entry for symbol with the default TTL.
// Overwriting always resets the expiry window.
func (s *Store) Put(symbol string, q provider.Quote) {
    s.PutTTL(symbol, q, s.ttl)
}

// PutTTL is Put with an explicit TTL for this insert only.
func (s *Store) PutTTL(symbol string, q provider.Quote, ttl time.Duration) {
    if ttl <= 0 { ttl = s.ttl }
    s.mu.Lock()
    s.items[symbol] = entry{expiresAt: s.now().Add(ttl), quote: q}
    s.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (s *Store) Len() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.items)
}
