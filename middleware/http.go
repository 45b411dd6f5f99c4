// Package middleware provides composable wrappers for the outbound HTTP
// transports of the provider clients and for the inbound stream message
// path. Everything here wraps and delegates; no wrapper owns a goroutine.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RoundTripperFunc is an adapter to allow using functions as http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ChainRoundTrippers composes multiple RoundTripper wrappers
// Wrappers are applied in order: first wrapper is outermost
func ChainRoundTrippers(transport http.RoundTripper, wrappers ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	result := transport
	// Apply in reverse order so first wrapper is outermost
	for i := len(wrappers) - 1; i >= 0; i-- {
		result = wrappers[i](result)
	}
	return result
}

// RateLimitRoundTripper delays requests through a token bucket. Providers
// normally go through the category limiter; this wrapper is for callers
// that build their own http.Client against a single upstream.
func RateLimitRoundTripper(perSecond float64, burst int) func(http.RoundTripper) http.RoundTripper {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}

// LoggingRoundTripper logs outbound requests and responses at debug level
func LoggingRoundTripper(logger zerolog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(req)

			duration := time.Since(start)

			if err != nil {
				logger.Warn().
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Dur("duration", duration).
					Err(err).
					Msg("upstream request failed")
				return nil, err
			}

			logger.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", resp.StatusCode).
				Dur("duration", duration).
				Msg("upstream request")

			return resp, nil
		})
	}
}

// CallRecorder is the subset of the provider metrics collector the
// metrics wrapper needs
type CallRecorder interface {
	RecordCall(provider, endpoint string, statusCode int, duration time.Duration, err error)
}

// MetricsRoundTripper records every outbound call under the given
// provider name
func MetricsRoundTripper(provider string, recorder CallRecorder) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(req)

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			recorder.RecordCall(provider, req.URL.Path, status, time.Since(start), err)

			return resp, err
		})
	}
}

// RecoveryRoundTripper recovers from panics in HTTP requests
func RecoveryRoundTripper(logger zerolog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("recovered from panic in HTTP request")
					err = fmt.Errorf("panic recovered: %v", r)
					resp = nil
				}
			}()

			return next.RoundTrip(req)
		})
	}
}
