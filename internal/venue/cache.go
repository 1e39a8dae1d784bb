package venue

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// oracleCache mirrors the latest oracle prices streamed over the account feed.
// It is the session's subscription cache: reads prefer a fresh cached price
// and fall back to REST. Concurrency-safe (RWMutex protected).
type oracleCache struct {
	mu      sync.RWMutex
	entries map[int]oracleEntry // by market index
}

type oracleEntry struct {
	price decimal.Decimal
	slot  uint64
	at    time.Time
}

func newOracleCache() *oracleCache {
	return &oracleCache{entries: make(map[int]oracleEntry)}
}

// set records a streamed oracle price. Updates from an older slot than the
// cached one are dropped; the feed can deliver out of order after a reconnect.
func (c *oracleCache) set(marketIndex int, price decimal.Decimal, slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[marketIndex]; ok && slot < cur.slot {
		return
	}
	c.entries[marketIndex] = oracleEntry{price: price, slot: slot, at: time.Now()}
}

// get returns the cached price if one arrived within maxAge.
func (c *oracleCache) get(marketIndex int, maxAge time.Duration) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[marketIndex]
	if !ok || time.Since(e.at) > maxAge {
		return decimal.Zero, false
	}
	return e.price, true
}

// len reports how many markets have a cached price.
func (c *oracleCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
