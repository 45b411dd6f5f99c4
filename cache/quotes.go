// Package cache holds the hot state the API serves from: a TTL quote
// cache fed by the providers and the live stream, the option-chain poller
// and the fetch-job registry.
package cache

import (
	"strings"
	"sync"
	"time"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/metrics"
)

// DefaultQuoteTTL is how long a polled quote stays fresh. Stream-fed
// quotes overwrite continuously so the TTL mostly guards REST-sourced
// entries.
const DefaultQuoteTTL = 30 * time.Second

type quoteEntry struct {
	quote     faststock.Quote
	expiresAt time.Time
}

// QuoteCache is a TTL map of the latest quote per symbol. It implements
// stream.QuoteSink so the ticker stream can feed it directly.
type QuoteCache struct {
	ttl     time.Duration
	metrics *metrics.ProviderCollector

	mu      sync.RWMutex
	entries map[string]quoteEntry
}

// NewQuoteCache creates a quote cache. ttl <= 0 uses DefaultQuoteTTL;
// collector may be nil.
func NewQuoteCache(ttl time.Duration, collector *metrics.ProviderCollector) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &QuoteCache{
		ttl:     ttl,
		metrics: collector,
		entries: make(map[string]quoteEntry),
	}
}

// Get returns the cached quote for a symbol if it is still fresh
func (c *QuoteCache) Get(symbol string) (faststock.Quote, bool) {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			c.mu.Lock()
			// recheck under the write lock; the stream may have refreshed it
			if cur, still := c.entries[key]; still && time.Now().After(cur.expiresAt) {
				delete(c.entries, key)
			}
			c.mu.Unlock()
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		return faststock.Quote{}, false
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
	return entry.quote, true
}

// Set stores a quote under its symbol
func (c *QuoteCache) Set(q faststock.Quote) {
	key := strings.ToUpper(strings.TrimSpace(q.Symbol))
	if key == "" {
		return
	}

	c.mu.Lock()
	c.entries[key] = quoteEntry{quote: q, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// ApplyQuote implements the stream sink
func (c *QuoteCache) ApplyQuote(q faststock.Quote) {
	c.Set(q)
}

// Len returns the number of entries, fresh or not
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries. The poller calls this once per cycle; the
// cache stays correct without it, this just bounds memory.
func (c *QuoteCache) Purge() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
