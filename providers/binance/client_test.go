package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol": "BTCUSDT", "price": "64123.50000000"}`))
	})

	quote, err := client.Price(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", quote.Symbol)
	assert.Equal(t, 64123.5, quote.Price)
	assert.Equal(t, "binance", quote.Source)
}

func TestPriceInvalidSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -1121, "msg": "Invalid symbol."}`))
	})

	_, err := client.Price(context.Background(), "NOSUCH")
	assert.ErrorIs(t, err, faststock.ErrSymbolNotFound)
}

func TestTicker24h(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		w.Write([]byte(`{
			"symbol": "ETHUSDT",
			"lastPrice": "2601.10000000",
			"priceChange": "-44.20000000",
			"priceChangePercent": "-1.671",
			"closeTime": 1757692800000
		}`))
	})

	quote, err := client.Ticker24h(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2601.1, quote.Price)
	assert.Equal(t, -44.2, quote.Change)
	assert.Equal(t, -1.671, quote.PercentChange)
	assert.Equal(t, time.UnixMilli(1757692800000).UTC(), quote.AsOf)
}

func TestKlines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			[1757689200000, "64000.0", "64200.5", "63900.1", "64123.5", "812.44", 1757692799999],
			[1757692800000, "64123.5", "64300.0", "64100.0", "64250.2", "501.02", 1757696399999]
		]`))
	})

	candles, err := client.Klines(context.Background(), "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, faststock.Candle{
		Time:   time.UnixMilli(1757689200000).UTC(),
		Open:   64000.0,
		High:   64200.5,
		Low:    63900.1,
		Close:  64123.5,
		Volume: 812,
	}, candles[0])
}

func TestKlinesValidation(t *testing.T) {
	client := NewClient() // request must never go out

	_, err := client.Klines(context.Background(), "BTCUSDT", "7h", 10)
	assert.ErrorIs(t, err, faststock.ErrInvalidArgument)

	_, err = client.Klines(context.Background(), "BTCUSDT", "1h", MaxKlineLimit+1)
	assert.ErrorIs(t, err, faststock.ErrInvalidArgument)
}
