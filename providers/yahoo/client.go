// Package yahoo fetches quotes and historical candles from the Yahoo
// Finance v8 chart API. It covers US equities and forex pairs; NSE symbols
// work too with the .NS suffix but the NSE client is the primary source
// for those.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
	"github.com/OMCHOKSI108/faststock-go/utils"
)

// DefaultBaseURL is the Yahoo Finance query host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// validRanges are the range values the chart API accepts
var validRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// validIntervals are the interval values the chart API accepts
var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true,
	"60m": true, "90m": true, "1h": true, "1d": true, "5d": true,
	"1wk": true, "1mo": true, "3mo": true,
}

// Client talks to the Yahoo Finance chart API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *limiter.HTTPRateLimiter
}

// clientConfig holds configuration for the Yahoo client
type clientConfig struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *limiter.HTTPRateLimiter
}

// Option is a functional option for configuring the Yahoo client
type Option func(*clientConfig)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithBaseURL overrides the Yahoo base URL, mainly for tests
func WithBaseURL(baseURL string) Option {
	return func(cfg *clientConfig) {
		cfg.baseURL = baseURL
	}
}

// WithRateLimiter enables rate limiting with a custom rate limiter
// If nil is passed, creates a new rate limiter with the default budgets
func WithRateLimiter(rateLimiter *limiter.HTTPRateLimiter) Option {
	return func(cfg *clientConfig) {
		if rateLimiter == nil {
			cfg.rateLimiter = limiter.NewHTTPRateLimiter()
		} else {
			cfg.rateLimiter = rateLimiter
		}
	}
}

// NewClient creates a Yahoo Finance client
func NewClient(opts ...Option) *Client {
	cfg := &clientConfig{
		httpClient: utils.DefaultHTTPClient(),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		httpClient:  cfg.httpClient,
		baseURL:     cfg.baseURL,
		rateLimiter: cfg.rateLimiter,
	}
}

// chartPayload is the subset of the v8 chart response we read
type chartPayload struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// doRequest performs a rate-limited GET against a chart API path
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, limiter.CategoryYahoo); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Yahoo throttles the default Go user agent hard
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, faststock.ErrSymbolNotFound
	default:
		return nil, fmt.Errorf("yahoo returned status %d: %w", resp.StatusCode, faststock.ErrNoData)
	}
}

func (c *Client) chart(ctx context.Context, symbol, rng, interval string) (*chartPayload, error) {
	path := fmt.Sprintf("/v8/finance/chart/%s?range=%s&interval=%s",
		url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	var payload chartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse chart response: %w", err)
	}

	if payload.Chart.Error != nil {
		if payload.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("yahoo chart error %s: %s: %w",
			payload.Chart.Error.Code, payload.Chart.Error.Description, faststock.ErrNoData)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}
	return &payload, nil
}

// Quote fetches the latest price for a symbol
func (c *Client) Quote(ctx context.Context, symbol string) (*faststock.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	payload, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, fmt.Errorf("get quote failed: %w", err)
	}

	meta := payload.Chart.Result[0].Meta
	change := meta.RegularMarketPrice - meta.PreviousClose
	var pct float64
	if meta.PreviousClose != 0 {
		pct = change / meta.PreviousClose * 100
	}

	return &faststock.Quote{
		Symbol:        meta.Symbol,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		PercentChange: pct,
		Currency:      meta.Currency,
		Source:        "yahoo",
		AsOf:          time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

// Historical fetches OHLCV candles for a symbol. Range and interval use
// Yahoo's vocabulary ("1mo", "1d", ...); invalid values fail with
// ErrInvalidArgument before any request goes out.
func (c *Client) Historical(ctx context.Context, symbol, rng, interval string) ([]faststock.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if !validRanges[rng] {
		return nil, fmt.Errorf("%w: range %q", faststock.ErrInvalidArgument, rng)
	}
	if !validIntervals[interval] {
		return nil, fmt.Errorf("%w: interval %q", faststock.ErrInvalidArgument, interval)
	}

	payload, err := c.chart(ctx, symbol, rng, interval)
	if err != nil {
		return nil, fmt.Errorf("get historical failed: %w", err)
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}
	quote := result.Indicators.Quote[0]

	candles := make([]faststock.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo pads open sessions with null rows; json decodes those
		// to zero values, drop bars with no trade at all
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		candles = append(candles, faststock.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  quote.Close[i],
			Volume: atInt(quote.Volume, i),
		})
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}
	return candles, nil
}

// PairQuote fetches a forex rate, e.g. PairQuote(ctx, "EUR", "USD")
func (c *Client) PairQuote(ctx context.Context, base, quote string) (*faststock.Quote, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if len(base) != 3 || len(quote) != 3 {
		return nil, fmt.Errorf("%w: currency codes must be 3 letters", faststock.ErrInvalidArgument)
	}

	return c.Quote(ctx, base+quote+"=X")
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}

func atInt(vals []int64, i int) int64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}
