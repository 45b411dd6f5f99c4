package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/metrics"
)

func TestQuoteCacheSetGet(t *testing.T) {
	c := NewQuoteCache(time.Minute, nil)

	c.Set(faststock.Quote{Symbol: "AAPL", Price: 230.5})

	got, ok := c.Get("aapl") // lookups are case-insensitive
	require.True(t, ok)
	assert.Equal(t, 230.5, got.Price)

	_, ok = c.Get("MSFT")
	assert.False(t, ok)
}

func TestQuoteCacheExpiry(t *testing.T) {
	c := NewQuoteCache(10*time.Millisecond, nil)

	c.Set(faststock.Quote{Symbol: "AAPL", Price: 230.5})
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("AAPL")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry dropped on read")
}

func TestQuoteCacheApplyQuote(t *testing.T) {
	c := NewQuoteCache(time.Minute, nil)

	// the stream sink path overwrites older entries
	c.ApplyQuote(faststock.Quote{Symbol: "BTCUSDT", Price: 64000})
	c.ApplyQuote(faststock.Quote{Symbol: "BTCUSDT", Price: 64100})

	got, ok := c.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 64100.0, got.Price)
	assert.Equal(t, 1, c.Len())
}

func TestQuoteCachePurge(t *testing.T) {
	c := NewQuoteCache(10*time.Millisecond, nil)
	c.Set(faststock.Quote{Symbol: "A", Price: 1})
	c.Set(faststock.Quote{Symbol: "B", Price: 2})

	time.Sleep(20 * time.Millisecond)
	c.Set(faststock.Quote{Symbol: "C", Price: 3})

	c.Purge()
	assert.Equal(t, 1, c.Len())
}

func TestQuoteCacheMetrics(t *testing.T) {
	collector := metrics.NewProviderCollector()
	c := NewQuoteCache(time.Minute, collector)

	c.Set(faststock.Quote{Symbol: "AAPL", Price: 1})
	c.Get("AAPL")
	c.Get("MSFT")

	m := collector.GetMetrics()
	assert.EqualValues(t, 1, m["cache_hits"])
	assert.EqualValues(t, 1, m["cache_misses"])
}
