// Package nse fetches quotes and option chains from the NSE public API.
//
// NSE gates its JSON endpoints behind anti-bot cookies: a bare request gets
// a 401 or an HTML interstitial. The client warms up by hitting the home
// page first with browser-like headers, carries the cookies in a jar and
// re-warms when they expire.
package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
)

const (
	// DefaultBaseURL is the NSE website root
	DefaultBaseURL = "https://www.nseindia.com"

	// expiryLayout is NSE's expiry date format ("16-Sep-2025")
	expiryLayout = "02-Jan-2006"

	// cookieTTL is how long warmed-up cookies are trusted before the next
	// request re-warms. NSE rotates them server-side well before an hour.
	cookieTTL = 15 * time.Minute

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// indexSymbols are the underlyings served by /api/option-chain-indices;
// everything else goes through /api/option-chain-equities
var indexSymbols = map[string]string{
	"NIFTY":      "NIFTY 50",
	"BANKNIFTY":  "NIFTY BANK",
	"FINNIFTY":   "NIFTY FINANCIAL SERVICES",
	"MIDCPNIFTY": "NIFTY MIDCAP SELECT",
	"NIFTYNXT50": "NIFTY NEXT 50",
}

// Client talks to the NSE public API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *limiter.HTTPRateLimiter

	mu       sync.Mutex
	warmedAt time.Time
}

// NewClient creates an NSE client. The supplied http.Client must carry a
// cookie jar; pass nil to get one built from utils.NSEConfig.
func NewClient(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.httpClient.Jar == nil {
		return nil, fmt.Errorf("nse: http client needs a cookie jar")
	}

	return &Client{
		httpClient:  cfg.httpClient,
		baseURL:     cfg.baseURL,
		rateLimiter: cfg.rateLimiter,
	}, nil
}

// warmUp fetches the NSE home page so the jar picks up the anti-bot
// cookies. Callers hold no locks; warmUp serializes itself.
func (c *Client) warmUp(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.warmedAt) < cookieTTL {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("nse warm-up: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nse warm-up: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nse warm-up returned status %d", resp.StatusCode)
	}

	c.warmedAt = time.Now()
	return nil
}

// forceWarmUp invalidates the cookie state so the next warmUp goes out
func (c *Client) forceWarmUp() {
	c.mu.Lock()
	c.warmedAt = time.Time{}
	c.mu.Unlock()
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.nseindia.com/")
}

// doRequest performs a warmed-up GET against an NSE API path. A 401/403
// means the cookies went stale; re-warm once and retry.
func (c *Client) doRequest(ctx context.Context, category limiter.Category, path string) ([]byte, error) {
	body, status, err := c.get(ctx, category, path)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.forceWarmUp()
		body, status, err = c.get(ctx, category, path)
		if err != nil {
			return nil, err
		}
	}

	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("nse %s: %w", path, faststock.ErrSymbolNotFound)
	default:
		return nil, fmt.Errorf("nse %s returned status %d: %w", path, status, faststock.ErrNoData)
	}
}

func (c *Client) get(ctx context.Context, category limiter.Category, path string) ([]byte, int, error) {
	if err := c.warmUp(ctx); err != nil {
		return nil, 0, err
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, category); err != nil {
			return nil, 0, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// chainPath returns the option-chain API path for a symbol
func chainPath(symbol string) string {
	if _, ok := indexSymbols[symbol]; ok {
		return "/api/option-chain-indices?symbol=" + url.QueryEscape(symbol)
	}
	return "/api/option-chain-equities?symbol=" + url.QueryEscape(symbol)
}

// OptionChain fetches the option chain for one underlying and expiry.
// Returns ErrExpiryNotFound if the exchange does not list the expiry.
func (c *Client) OptionChain(ctx context.Context, symbol string, expiry time.Time) (*chain.Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.doRequest(ctx, limiter.CategoryNSEChain, chainPath(symbol))
	if err != nil {
		return nil, fmt.Errorf("get option chain failed: %w", err)
	}

	payload, err := parseOptionChain(body)
	if err != nil {
		return nil, err
	}

	want := expiry.Format(expiryLayout)
	if !containsExpiry(payload.Records.ExpiryDates, want) {
		return nil, fmt.Errorf("%s %s: %w", symbol, want, faststock.ErrExpiryNotFound)
	}

	records := make([]chain.OptionRecord, 0, len(payload.Records.Data)*2)
	for _, entry := range payload.Records.Data {
		if entry.ExpiryDate != want {
			continue
		}
		if entry.CE != nil {
			records = append(records, legRecord(entry.StrikePrice, chain.Call, entry.CE))
		}
		if entry.PE != nil {
			records = append(records, legRecord(entry.StrikePrice, chain.Put, entry.PE))
		}
	}

	return chain.NewSnapshot(symbol, expiry, payload.Records.UnderlyingValue, records), nil
}

func legRecord(strike float64, side chain.Side, leg *legEntry) chain.OptionRecord {
	return chain.OptionRecord{
		Strike:       strike,
		Side:         side,
		OpenInterest: int64(leg.OpenInterest),
		LastPrice:    leg.LastPrice,
		HasLastPrice: leg.LastPrice != 0,
		Volume:       int64(leg.TotalTradedVolume),
	}
}

func containsExpiry(dates []string, want string) bool {
	for _, d := range dates {
		if d == want {
			return true
		}
	}
	return false
}

// Expiries returns the listed expiry dates for an underlying, in exchange
// order (nearest first)
func (c *Client) Expiries(ctx context.Context, symbol string) ([]time.Time, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.doRequest(ctx, limiter.CategoryNSEChain, chainPath(symbol))
	if err != nil {
		return nil, fmt.Errorf("get expiry list failed: %w", err)
	}

	payload, err := parseOptionChain(body)
	if err != nil {
		return nil, err
	}

	expiries := make([]time.Time, 0, len(payload.Records.ExpiryDates))
	for _, d := range payload.Records.ExpiryDates {
		t, err := time.Parse(expiryLayout, d)
		if err != nil {
			return nil, fmt.Errorf("bad expiry %q from nse: %w", d, err)
		}
		expiries = append(expiries, t)
	}

	if len(expiries) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}
	return expiries, nil
}

// EquityQuote fetches the latest price for an NSE-listed equity
func (c *Client) EquityQuote(ctx context.Context, symbol string) (*faststock.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.doRequest(ctx, limiter.CategoryNSEQuote, "/api/quote-equity?symbol="+url.QueryEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("get equity quote failed: %w", err)
	}

	var payload equityQuotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse equity quote: %w", err)
	}

	if payload.Info.Symbol == "" {
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrSymbolNotFound)
	}

	return &faststock.Quote{
		Symbol:        payload.Info.Symbol,
		Name:          payload.Info.CompanyName,
		Price:         payload.PriceInfo.LastPrice,
		Change:        payload.PriceInfo.Change,
		PercentChange: payload.PriceInfo.PChange,
		Currency:      "INR",
		Source:        "nse",
		AsOf:          time.Now().UTC(),
	}, nil
}

// IndexQuote fetches the latest level for an NSE index. Accepts either the
// option symbol ("NIFTY") or the full index name ("NIFTY 50").
func (c *Client) IndexQuote(ctx context.Context, symbol string) (*faststock.Quote, error) {
	want := strings.ToUpper(strings.TrimSpace(symbol))
	if full, ok := indexSymbols[want]; ok {
		want = strings.ToUpper(full)
	}

	body, err := c.doRequest(ctx, limiter.CategoryNSEQuote, "/api/allIndices")
	if err != nil {
		return nil, fmt.Errorf("get index quote failed: %w", err)
	}

	var payload allIndicesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse index list: %w", err)
	}

	for _, idx := range payload.Data {
		if strings.ToUpper(idx.Index) == want || strings.ToUpper(idx.IndexSymbol) == want {
			return &faststock.Quote{
				Symbol:        idx.IndexSymbol,
				Name:          idx.Index,
				Price:         idx.Last,
				Change:        idx.Variation,
				PercentChange: idx.PercentChange,
				Currency:      "INR",
				Source:        "nse",
				AsOf:          time.Now().UTC(),
			}, nil
		}
	}

	return nil, fmt.Errorf("index %s: %w", symbol, faststock.ErrSymbolNotFound)
}

// GetRateLimiterStats returns current rate limiter statistics
// Returns nil if rate limiting is not enabled
func (c *Client) GetRateLimiterStats() map[string]interface{} {
	if c.rateLimiter == nil {
		return nil
	}
	return c.rateLimiter.GetStats()
}
