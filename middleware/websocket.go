package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// StreamMessageHandler handles one raw message from the ticker stream
type StreamMessageHandler func(ctx context.Context, msg []byte) error

// StreamMiddleware wraps a stream message handler
type StreamMiddleware func(StreamMessageHandler) StreamMessageHandler

// StreamMetricsCollector defines the interface for collecting stream metrics
type StreamMetricsCollector interface {
	RecordMessageReceived(bytes int, latency time.Duration)
	RecordError()
}

// ChainStreamMiddleware composes multiple middleware functions
// Middleware is applied in order: first middleware is outermost
func ChainStreamMiddleware(middlewares ...StreamMiddleware) StreamMiddleware {
	return func(handler StreamMessageHandler) StreamMessageHandler {
		// Apply in reverse order so first middleware is outermost
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// StreamLoggingMiddleware logs stream messages at trace level. The stream
// delivers a message per symbol per second, so anything louder drowns the
// log.
func StreamLoggingMiddleware(logger zerolog.Logger) StreamMiddleware {
	return func(next StreamMessageHandler) StreamMessageHandler {
		return func(ctx context.Context, msg []byte) error {
			start := time.Now()

			err := next(ctx, msg)

			if err != nil {
				logger.Warn().
					Int("bytes", len(msg)).
					Dur("duration", time.Since(start)).
					Err(err).
					Msg("stream message failed")
				return err
			}

			logger.Trace().
				Int("bytes", len(msg)).
				Dur("duration", time.Since(start)).
				Msg("stream message")

			return nil
		}
	}
}

// StreamMetricsMiddleware collects metrics for stream messages
func StreamMetricsMiddleware(collector StreamMetricsCollector) StreamMiddleware {
	if collector == nil {
		return func(next StreamMessageHandler) StreamMessageHandler {
			return next // No-op if no collector
		}
	}

	return func(next StreamMessageHandler) StreamMessageHandler {
		return func(ctx context.Context, msg []byte) error {
			start := time.Now()

			err := next(ctx, msg)

			collector.RecordMessageReceived(len(msg), time.Since(start))

			if err != nil {
				collector.RecordError()
			}

			return err
		}
	}
}

// StreamRecoveryMiddleware recovers from panics in message handling
func StreamRecoveryMiddleware(logger zerolog.Logger) StreamMiddleware {
	return func(next StreamMessageHandler) StreamMessageHandler {
		return func(ctx context.Context, msg []byte) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("recovered from panic in stream handler")
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()

			return next(ctx, msg)
		}
	}
}

// StreamTimeoutMiddleware adds a timeout to message processing
func StreamTimeoutMiddleware(timeout time.Duration) StreamMiddleware {
	return func(next StreamMessageHandler) StreamMessageHandler {
		return func(ctx context.Context, msg []byte) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1)

			go func() {
				done <- next(ctx, msg)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return fmt.Errorf("message processing timeout: %w", ctx.Err())
			}
		}
	}
}
