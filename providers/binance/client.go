// Package binance fetches crypto prices and klines from the Binance public
// REST API. No authentication: only public market-data endpoints are used.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
	"github.com/OMCHOKSI108/faststock-go/utils"
)

// DefaultBaseURL is the Binance REST API host
const DefaultBaseURL = "https://api.binance.com"

// MaxKlineLimit is the most candles one klines request may return
const MaxKlineLimit = 1000

// validIntervals are the kline intervals Binance accepts
var validIntervals = map[string]bool{
	"1s": true, "1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// Client talks to the Binance public REST API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *limiter.HTTPRateLimiter
}

// clientConfig holds configuration for the Binance client
type clientConfig struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *limiter.HTTPRateLimiter
}

// Option is a functional option for configuring the Binance client
type Option func(*clientConfig)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithBaseURL overrides the Binance base URL, mainly for tests
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

// NewClient creates a Binance client
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

// apiError is Binance's error envelope, e.g. {"code":-1121,"msg":"Invalid symbol."}
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

const codeInvalidSymbol = -1121

// doRequest performs a rate-limited GET against a Binance API path
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, limiter.CategoryBinance); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code == codeInvalidSymbol {
			return nil, fmt.Errorf("binance: %s: %w", apiErr.Msg, faststock.ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("binance returned status %d: %s: %w",
			resp.StatusCode, string(body), faststock.ErrNoData)
	}

	return body, nil
}

// Price fetches the latest trade price for a symbol like "BTCUSDT"
func (c *Client) Price(ctx context.Context, symbol string) (*faststock.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.doRequest(ctx, "/api/v3/ticker/price?symbol="+url.QueryEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("get price failed: %w", err)
	}

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse price response: %w", err)
	}

	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad price %q from binance: %w", payload.Price, err)
	}

	return &faststock.Quote{
		Symbol: payload.Symbol,
		Price:  price,
		Source: "binance",
		AsOf:   time.Now().UTC(),
	}, nil
}

// Ticker24h fetches the rolling 24h stats for a symbol
func (c *Client) Ticker24h(ctx context.Context, symbol string) (*faststock.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.doRequest(ctx, "/api/v3/ticker/24hr?symbol="+url.QueryEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("get 24h ticker failed: %w", err)
	}

	var payload struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChange        string `json:"priceChange"`
		PriceChangePercent string `json:"priceChangePercent"`
		CloseTime          int64  `json:"closeTime"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse 24h ticker response: %w", err)
	}

	price, err := strconv.ParseFloat(payload.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("bad price %q from binance: %w", payload.LastPrice, err)
	}
	change, _ := strconv.ParseFloat(payload.PriceChange, 64)
	pct, _ := strconv.ParseFloat(payload.PriceChangePercent, 64)

	return &faststock.Quote{
		Symbol:        payload.Symbol,
		Price:         price,
		Change:        change,
		PercentChange: pct,
		Source:        "binance",
		AsOf:          time.UnixMilli(payload.CloseTime).UTC(),
	}, nil
}

// Klines fetches up to MaxKlineLimit candles. limit <= 0 uses Binance's
// default of 500.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]faststock.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if !validIntervals[interval] {
		return nil, fmt.Errorf("%w: interval %q", faststock.ErrInvalidArgument, interval)
	}
	if limit > MaxKlineLimit {
		return nil, fmt.Errorf("%w: limit %d exceeds %d", faststock.ErrInvalidArgument, limit, MaxKlineLimit)
	}

	path := fmt.Sprintf("/api/v3/klines?symbol=%s&interval=%s", url.QueryEscape(symbol), url.QueryEscape(interval))
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("get klines failed: %w", err)
	}

	// Each kline is a positional array:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse klines response: %w", err)
	}

	candles := make([]faststock.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("short kline row from binance: %w", faststock.ErrNoData)
		}

		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("bad kline open time: %w", err)
		}

		var c faststock.Candle
		c.Time = time.UnixMilli(openTime).UTC()
		if c.Open, err = parseField(row[1]); err != nil {
			return nil, err
		}
		if c.High, err = parseField(row[2]); err != nil {
			return nil, err
		}
		if c.Low, err = parseField(row[3]); err != nil {
			return nil, err
		}
		if c.Close, err = parseField(row[4]); err != nil {
			return nil, err
		}
		vol, err := parseField(row[5])
		if err != nil {
			return nil, err
		}
		c.Volume = int64(vol)

		candles = append(candles, c)
	}

	return candles, nil
}

// parseField decodes one quoted decimal from a kline row
func parseField(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("bad kline field %s: %w", string(raw), err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad kline field %q: %w", s, err)
	}
	return v, nil
}
