// Package utils holds the shared plumbing the provider clients build on:
// tuned http.Transport factories, a tiered buffer pool and the stream
// connection settings.
package utils

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/OMCHOKSI108/faststock-go/middleware"
)

// HTTPClientConfig holds configuration for HTTP client
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	// Timeout settings
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration

	// Keep alive
	KeepAlive time.Duration

	// TLS
	InsecureSkipVerify bool
}

// DefaultConfig returns a balanced configuration suitable for most providers
func DefaultConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       10,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		KeepAlive:             30 * time.Second,
		InsecureSkipVerify:    false,
	}
}

// NSEConfig returns a configuration tuned for NSE. NSE ties its anti-bot
// cookies to the connection, so idle connections are kept alive longer and
// the per-host pool stays small.
func NSEConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		MaxConnsPerHost:       2,
		IdleConnTimeout:       120 * time.Second,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		KeepAlive:             60 * time.Second,
		InsecureSkipVerify:    false,
	}
}

// LowLatencyConfig returns configuration optimized for low latency
func LowLatencyConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   5,
		MaxConnsPerHost:       5,
		IdleConnTimeout:       30 * time.Second,
		DialTimeout:           5 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ExpectContinueTimeout: 500 * time.Millisecond,
		KeepAlive:             15 * time.Second,
		InsecureSkipVerify:    false,
	}
}

// NewHTTPClient creates an HTTP client with the given configuration
func NewHTTPClient(config *HTTPClientConfig) *http.Client {
	if config == nil {
		config = DefaultConfig()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	return &http.Client{
		Transport: transport,
	}
}

// DefaultHTTPClient returns an HTTP client with default configuration
func DefaultHTTPClient() *http.Client {
	return NewHTTPClient(DefaultConfig())
}

// WithMiddleware wraps an HTTP client's transport with middleware
func WithMiddleware(client *http.Client, wrappers ...func(http.RoundTripper) http.RoundTripper) *http.Client {
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = middleware.ChainRoundTrippers(transport, wrappers...)
	return client
}
