package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/cache"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

var testExpiry = time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC)

func testSnapshot() *chain.Snapshot {
	return chain.NewSnapshot("NIFTY", testExpiry, 24585.05, []chain.OptionRecord{
		{Strike: 24400, Side: chain.Call, OpenInterest: 1200, Volume: 300},
		{Strike: 24400, Side: chain.Put, OpenInterest: 2400, Volume: 500},
		{Strike: 24500, Side: chain.Call, OpenInterest: 5000, Volume: 900},
		{Strike: 24500, Side: chain.Put, OpenInterest: 4100, Volume: 700},
		{Strike: 24600, Side: chain.Call, OpenInterest: 3300, Volume: 200},
		{Strike: 24600, Side: chain.Put, OpenInterest: 900, Volume: 100},
	})
}

type fakeIndia struct{ err error }

func (f *fakeIndia) EquityQuote(_ context.Context, symbol string) (*faststock.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &faststock.Quote{Symbol: symbol, Price: 3450.5, Currency: "INR", Source: "nse"}, nil
}

func (f *fakeIndia) IndexQuote(_ context.Context, symbol string) (*faststock.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &faststock.Quote{Symbol: symbol, Price: 24585.05, Currency: "INR", Source: "nse"}, nil
}

type fakeGlobal struct{}

func (f *fakeGlobal) Quote(_ context.Context, symbol string) (*faststock.Quote, error) {
	return &faststock.Quote{Symbol: symbol, Price: 230.1, Currency: "USD", Source: "yahoo"}, nil
}

func (f *fakeGlobal) Historical(_ context.Context, symbol, rng, interval string) ([]faststock.Candle, error) {
	return []faststock.Candle{{Close: 229.4, Volume: 1000}}, nil
}

func (f *fakeGlobal) PairQuote(_ context.Context, base, quote string) (*faststock.Quote, error) {
	return &faststock.Quote{Symbol: base + quote + "=X", Price: 1.0842, Source: "yahoo"}, nil
}

type fakeCrypto struct{ calls int }

func (f *fakeCrypto) Ticker24h(_ context.Context, symbol string) (*faststock.Quote, error) {
	f.calls++
	return &faststock.Quote{Symbol: strings.ToUpper(symbol), Price: 64123.5, Source: "binance"}, nil
}

func (f *fakeCrypto) Klines(_ context.Context, symbol, interval string, limit int) ([]faststock.Candle, error) {
	return []faststock.Candle{{Open: 63500, Close: 64000, Volume: 812}}, nil
}

type fakeChains struct {
	snaps map[string]*chain.Snapshot
	jobs  *cache.JobRegistry
	subs  []cache.Subscription
}

func newFakeChains(snaps ...*chain.Snapshot) *fakeChains {
	f := &fakeChains{snaps: map[string]*chain.Snapshot{}, jobs: cache.NewJobRegistry(0)}
	for _, s := range snaps {
		f.snaps[s.UnderlyingSymbol+"|"+s.Expiry.Format("2006-01-02")] = s
	}
	return f
}

func (f *fakeChains) Latest(symbol string, expiry time.Time) (*chain.Snapshot, error) {
	snap, ok := f.snaps[strings.ToUpper(symbol)+"|"+expiry.Format("2006-01-02")]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}
	return snap, nil
}

func (f *fakeChains) Subscribe(symbol string, expiry time.Time) error {
	f.subs = append(f.subs, cache.Subscription{Symbol: symbol, Expiry: expiry.Format("2006-01-02")})
	return nil
}

func (f *fakeChains) Unsubscribe(string, time.Time) error {
	f.subs = nil
	return nil
}

func (f *fakeChains) Subscriptions() []cache.Subscription { return f.subs }

func (f *fakeChains) FetchNow(_ context.Context, symbol string, expiry time.Time) (cache.Job, error) {
	return f.jobs.Create(strings.ToUpper(symbol), expiry), nil
}

func (f *fakeChains) Job(id string) (cache.Job, error) { return f.jobs.Get(id) }
func (f *fakeChains) Jobs() []cache.Job                { return f.jobs.List() }

type fakeExpiries struct{ expiries []time.Time }

func (f *fakeExpiries) Expiries(context.Context, string) ([]time.Time, error) {
	return f.expiries, nil
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		India:    &fakeIndia{},
		Global:   &fakeGlobal{},
		Crypto:   &fakeCrypto{},
		Chains:   newFakeChains(testSnapshot()),
		Expiries: &fakeExpiries{expiries: []time.Time{testExpiry}},
		Quotes:   cache.NewQuoteCache(time.Minute, nil),
		Logger:   zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func doRequest(s *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestBannerAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/analytics/max-pain")

	w = doRequest(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestIndexPriceVariants(t *testing.T) {
	s := newTestServer(t, nil)

	for _, target := range []string{"/market/price/index/NIFTY", "/market/price/index?symbol=NIFTY"} {
		w := doRequest(s, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, w.Code, target)

		var q faststock.Quote
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
		assert.Equal(t, 24585.05, q.Price)
	}

	w := doRequest(s, http.MethodGet, "/market/price/index", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockQuoteRegions(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/stocks/quote/IND/TCS", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"nse"`)

	w = doRequest(s, http.MethodGet, "/stocks/quote/US/AAPL", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"yahoo"`)

	w = doRequest(s, http.MethodGet, "/stocks/quote/EU/SAP", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockHistoricalAddsNSESuffix(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/stocks/historical/IND/TCS", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"TCS.NS"`)
}

func TestCryptoQuoteUsesCache(t *testing.T) {
	crypto := &fakeCrypto{}
	s := newTestServer(t, func(cfg *Config) { cfg.Crypto = crypto })

	// miss goes upstream and warms the cache
	w := doRequest(s, http.MethodGet, "/crypto/quote/BTCUSDT", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, crypto.calls)

	// hit is served from cache
	w = doRequest(s, http.MethodGet, "/crypto/quote/BTCUSDT", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, crypto.calls)
}

func TestForexQuote(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/forex/quote?symbol=EURUSD", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "EURUSD=X")

	w = doRequest(s, http.MethodGet, "/forex/quote?symbol=EUR", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOptionExpiries(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/options/expiries", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025-09-16")
}

func TestOptionLatestClip(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodGet, "/options/latest?index=NIFTY&expiry=2025-09-16&strikes=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap chain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	// ATM is the top strike, so the window holds it plus one strike below
	assert.Len(t, snap.Records, 4)

	w = doRequest(s, http.MethodGet, "/options/latest?index=NIFTY&expiry=2025-09-16&strikes=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetchChainExpiry(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/options/fetch/expiry",
		`{"index":"NIFTY","expiry":"2025-09-16"}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job cache.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)

	w = doRequest(s, http.MethodGet, "/options/jobs/"+job.ID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/options/jobs/job-0-0", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	w := doRequest(s, http.MethodPost, "/options/subscriptions",
		`{"index":"NIFTY","expiry":"2025-09-16"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(s, http.MethodGet, "/options/subscriptions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NIFTY")

	w = doRequest(s, http.MethodDelete, "/options/subscriptions?index=NIFTY&expiry=2025-09-16", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	base := "?index=NIFTY&expiry=2025-09-16"

	w := doRequest(s, http.MethodGet, "/analytics/pcr"+base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_put_oi":7400`)

	w = doRequest(s, http.MethodGet, "/analytics/top-oi"+base+"&top_n=2&side=calls", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"top_oi_calls"`)
	assert.NotContains(t, w.Body.String(), `"top_oi_puts"`)

	w = doRequest(s, http.MethodGet, "/analytics/max-pain"+base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"max_pain_strike"`)

	w = doRequest(s, http.MethodGet, "/analytics/summary"+base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"atm_strike":24600`)
}

func TestAnalyticsErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)

	// unknown expiry: no cached or stored snapshot
	w := doRequest(s, http.MethodGet, "/analytics/pcr?index=NIFTY&expiry=2030-01-01", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// malformed expiry
	w = doRequest(s, http.MethodGet, "/analytics/pcr?index=NIFTY&expiry=16-09-2025", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// bad side filter
	w = doRequest(s, http.MethodGet, "/analytics/top-oi?index=NIFTY&expiry=2025-09-16&side=straddle", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// puts without calls is a degenerate chain, not a server fault
	putsOnly := chain.NewSnapshot("FINNIFTY", testExpiry, 21000, []chain.OptionRecord{
		{Strike: 21000, Side: chain.Put, OpenInterest: 500},
	})
	s = newTestServer(t, func(cfg *Config) { cfg.Chains = newFakeChains(putsOnly) })
	w = doRequest(s, http.MethodGet, "/analytics/pcr?index=FINNIFTY&expiry=2025-09-16", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpstreamFailureMapsToBadGateway(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.India = &fakeIndia{err: fmt.Errorf("nse: connection reset")}
	})

	w := doRequest(s, http.MethodGet, "/market/price/index/NIFTY", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAuthGuardsProtectedRoutes(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) { cfg.APIToken = "s3cret" })
	body := `{"index":"NIFTY","expiry":"2025-09-16"}`

	w := doRequest(s, http.MethodPost, "/options/fetch/expiry", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodPost, "/options/fetch/expiry", body,
		http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodPost, "/options/fetch/expiry", body,
		http.Header{"Authorization": {"Bearer s3cret"}})
	assert.Equal(t, http.StatusAccepted, w.Code)

	// read-only routes stay open
	w = doRequest(s, http.MethodGet, "/options/expiries", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
