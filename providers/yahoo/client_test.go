package yahoo

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

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {
        "symbol": "AAPL",
        "currency": "USD",
        "regularMarketPrice": 230.5,
        "chartPreviousClose": 228.0,
        "regularMarketTime": 1757692800
      },
      "timestamp": [1757606400, 1757692800],
      "indicators": {
        "quote": [{
          "open":   [227.1, 229.0],
          "high":   [229.9, 231.2],
          "low":    [226.5, 228.4],
          "close":  [228.0, 230.5],
          "volume": [51230000, 48110000]
        }]
      }
    }],
    "error": null
  }
}`

const notFoundBody = `{
  "chart": {
    "result": null,
    "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL))
}

func TestQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.NotContains(t, r.Header.Get("User-Agent"), "Go-http-client")
		w.Write([]byte(chartBody))
	})

	quote, err := client.Quote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 230.5, quote.Price)
	assert.InDelta(t, 2.5, quote.Change, 1e-9)
	assert.InDelta(t, 2.5/228.0*100, quote.PercentChange, 1e-9)
	assert.Equal(t, "USD", quote.Currency)
	assert.Equal(t, "yahoo", quote.Source)
}

func TestQuoteNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(notFoundBody))
	})

	_, err := client.Quote(context.Background(), "NOSUCH")
	assert.ErrorIs(t, err, faststock.ErrSymbolNotFound)
}

func TestHistorical(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1mo", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Write([]byte(chartBody))
	})

	candles, err := client.Historical(context.Background(), "AAPL", "1mo", "1d")
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, faststock.Candle{
		Time:   time.Unix(1757606400, 0).UTC(),
		Open:   227.1,
		High:   229.9,
		Low:    226.5,
		Close:  228.0,
		Volume: 51230000,
	}, candles[0])
}

func TestHistoricalInvalidRange(t *testing.T) {
	client := NewClient() // request must never go out

	_, err := client.Historical(context.Background(), "AAPL", "7mo", "1d")
	assert.ErrorIs(t, err, faststock.ErrInvalidArgument)

	_, err = client.Historical(context.Background(), "AAPL", "1mo", "7m")
	assert.ErrorIs(t, err, faststock.ErrInvalidArgument)
}

func TestHistoricalDropsNullBars(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
		  "chart": {"result": [{
		    "meta": {"symbol": "AAPL", "currency": "USD", "regularMarketPrice": 1},
		    "timestamp": [1, 2, 3],
		    "indicators": {"quote": [{
		      "open": [10, 0, 11], "high": [10, 0, 11], "low": [10, 0, 11],
		      "close": [10, 0, 11], "volume": [100, 0, 200]
		    }]}
		  }], "error": null}
		}`))
	})

	candles, err := client.Historical(context.Background(), "AAPL", "1d", "1m")
	require.NoError(t, err)
	assert.Len(t, candles, 2)
}

func TestPairQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/EURUSD=X", r.URL.Path)
		w.Write([]byte(chartBody))
	})

	_, err := client.PairQuote(context.Background(), "eur", "usd")
	require.NoError(t, err)

	_, err = client.PairQuote(context.Background(), "EURO", "USD")
	assert.ErrorIs(t, err, faststock.ErrInvalidArgument)
}
