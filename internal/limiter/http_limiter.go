// Package limiter enforces the request budgets of the upstream market-data
// providers. None of them publish generous limits: NSE silently bans
// aggressive clients, Yahoo throttles per IP and Binance weights every
// endpoint, so every provider client waits on a shared limiter before
// touching the network.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Provider budgets. Conservative on purpose: a banned IP serves no data
// at all.
const (
	// NSE: cookie-gated endpoints, ban-happy
	NSEQuotePerSecond = 2
	NSEChainPerSecond = 1
	NSEPerMinute      = 30

	// Yahoo chart API: per-IP throttling kicks in around 100/min
	YahooPerSecond = 4
	YahooPerMinute = 60

	// Binance public REST: weight limit is 1200/min, ticker and klines
	// are cheap
	BinancePerSecond = 10
)

// Category identifies the upstream budget a request draws from
type Category int

const (
	CategoryNSEQuote Category = iota
	CategoryNSEChain
	CategoryYahoo
	CategoryBinance
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryNSEQuote:
		return "NSEQuote"
	case CategoryNSEChain:
		return "NSEChain"
	case CategoryYahoo:
		return "Yahoo"
	case CategoryBinance:
		return "Binance"
	default:
		return "Unknown"
	}
}

// HTTPRateLimiter enforces per-provider request budgets. NSE quote and
// chain requests have separate per-second buckets but share one
// per-minute window, since NSE counts both against the same ban
// threshold.
type HTTPRateLimiter struct {
	nseQuote *rate.Limiter
	nseChain *rate.Limiter
	nseMin   *slidingWindowCounter

	yahoo    *rate.Limiter
	yahooMin *slidingWindowCounter

	binance *rate.Limiter
}

// NewHTTPRateLimiter creates a limiter with the default provider budgets
func NewHTTPRateLimiter() *HTTPRateLimiter {
	return &HTTPRateLimiter{
		nseQuote: rate.NewLimiter(rate.Limit(NSEQuotePerSecond), NSEQuotePerSecond),
		nseChain: rate.NewLimiter(rate.Limit(NSEChainPerSecond), NSEChainPerSecond),
		nseMin:   newSlidingWindowCounter(NSEPerMinute, time.Minute),
		yahoo:    rate.NewLimiter(rate.Limit(YahooPerSecond), YahooPerSecond),
		yahooMin: newSlidingWindowCounter(YahooPerMinute, time.Minute),
		binance:  rate.NewLimiter(rate.Limit(BinancePerSecond), BinancePerSecond),
	}
}

// Wait blocks until the request is allowed under the category's per-second
// budget. Returns an error if the context is cancelled or the per-minute
// window is exhausted.
func (rl *HTTPRateLimiter) Wait(ctx context.Context, category Category) error {
	switch category {
	case CategoryNSEQuote:
		if err := rl.nseQuote.Wait(ctx); err != nil {
			return fmt.Errorf("nse quote rate limit: %w", err)
		}
		if !rl.nseMin.allow() {
			return fmt.Errorf("nse rate limit exceeded (%d req/min)", NSEPerMinute)
		}
	case CategoryNSEChain:
		if err := rl.nseChain.Wait(ctx); err != nil {
			return fmt.Errorf("nse chain rate limit: %w", err)
		}
		if !rl.nseMin.allow() {
			return fmt.Errorf("nse rate limit exceeded (%d req/min)", NSEPerMinute)
		}
	case CategoryYahoo:
		if err := rl.yahoo.Wait(ctx); err != nil {
			return fmt.Errorf("yahoo rate limit: %w", err)
		}
		if !rl.yahooMin.allow() {
			return fmt.Errorf("yahoo rate limit exceeded (%d req/min)", YahooPerMinute)
		}
	case CategoryBinance:
		if err := rl.binance.Wait(ctx); err != nil {
			return fmt.Errorf("binance rate limit: %w", err)
		}
	default:
		return fmt.Errorf("unknown limiter category %d", int(category))
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (rl *HTTPRateLimiter) Allow(category Category) error {
	switch category {
	case CategoryNSEQuote:
		if !rl.nseQuote.Allow() || !rl.nseMin.allow() {
			return fmt.Errorf("nse quote rate limit exceeded")
		}
	case CategoryNSEChain:
		if !rl.nseChain.Allow() || !rl.nseMin.allow() {
			return fmt.Errorf("nse chain rate limit exceeded")
		}
	case CategoryYahoo:
		if !rl.yahoo.Allow() || !rl.yahooMin.allow() {
			return fmt.Errorf("yahoo rate limit exceeded")
		}
	case CategoryBinance:
		if !rl.binance.Allow() {
			return fmt.Errorf("binance rate limit exceeded")
		}
	default:
		return fmt.Errorf("unknown limiter category %d", int(category))
	}
	return nil
}

// GetStats returns current rate limiter statistics
func (rl *HTTPRateLimiter) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"nse": map[string]interface{}{
			"quote_per_second": NSEQuotePerSecond,
			"chain_per_second": NSEChainPerSecond,
			"per_minute_limit": NSEPerMinute,
			"per_minute_used":  rl.nseMin.count(),
		},
		"yahoo": map[string]interface{}{
			"per_second_limit": YahooPerSecond,
			"per_minute_limit": YahooPerMinute,
			"per_minute_used":  rl.yahooMin.count(),
		},
		"binance": map[string]interface{}{
			"per_second_limit": BinancePerSecond,
		},
	}
}

// slidingWindowCounter implements a sliding window counter for rate limiting
type slidingWindowCounter struct {
	limit    int
	window   time.Duration
	requests []time.Time
	mu       sync.Mutex
}

// newSlidingWindowCounter creates a new sliding window counter
func newSlidingWindowCounter(limit int, window time.Duration) *slidingWindowCounter {
	return &slidingWindowCounter{
		limit:    limit,
		window:   window,
		requests: make([]time.Time, 0, limit),
	}
}

// allow checks if a new request is allowed and records it if so
func (swc *slidingWindowCounter) allow() bool {
	swc.mu.Lock()
	defer swc.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-swc.window)

	// Drop expired requests
	valid := swc.requests[:0]
	for _, reqTime := range swc.requests {
		if reqTime.After(windowStart) {
			valid = append(valid, reqTime)
		}
	}
	swc.requests = valid

	if len(swc.requests) >= swc.limit {
		return false
	}

	swc.requests = append(swc.requests, now)
	return true
}

// count returns the current number of requests in the window
func (swc *slidingWindowCounter) count() int {
	swc.mu.Lock()
	defer swc.mu.Unlock()

	windowStart := time.Now().Add(-swc.window)
	count := 0
	for _, reqTime := range swc.requests {
		if reqTime.After(windowStart) {
			count++
		}
	}
	return count
}
