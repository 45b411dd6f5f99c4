package nse

import (
	"net/http"
	"net/http/cookiejar"

	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
	"github.com/OMCHOKSI108/faststock-go/utils"
)

// clientConfig holds configuration for the NSE client
type clientConfig struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *limiter.HTTPRateLimiter
}

// Option is a functional option for configuring the NSE client
type Option func(*clientConfig)

func defaultConfig() *clientConfig {
	client := utils.NewHTTPClient(utils.NSEConfig())
	// cookiejar.New never fails with nil options
	jar, _ := cookiejar.New(nil)
	client.Jar = jar

	return &clientConfig{
		httpClient: client,
		baseURL:    DefaultBaseURL,
	}
}

// WithHTTPClient sets a custom HTTP client. The client must carry a cookie
// jar or NewClient will refuse it.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithBaseURL overrides the NSE base URL, mainly for tests
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

// WithDefaultRateLimiter enables rate limiting with the default budgets
func WithDefaultRateLimiter() Option {
	return WithRateLimiter(nil)
}
