package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
	"github.com/OMCHOKSI108/faststock-go/metrics"
	"github.com/OMCHOKSI108/faststock-go/middleware"
	"github.com/OMCHOKSI108/faststock-go/utils"
)

// DefaultStreamURL is the Binance combined-stream endpoint
const DefaultStreamURL = "wss://stream.binance.com:9443"

// QuoteSink receives live quotes as they arrive. The cache implements it.
type QuoteSink interface {
	ApplyQuote(q faststock.Quote)
}

// ConsumerConfig configures a ticker stream consumer
type ConsumerConfig struct {
	// BaseURL is the websocket host; DefaultStreamURL if empty
	BaseURL string
	// Symbols to subscribe, e.g. ["BTCUSDT", "ETHUSDT"]
	Symbols []string
	// Sink receives decoded quotes
	Sink QuoteSink
	// Config tunes the connection; DefaultStreamConfig if nil
	Config  *utils.StreamConfig
	Metrics *metrics.StreamCollector
	Limiter *limiter.StreamLimiter
	Logger  zerolog.Logger
}

// Consumer keeps one combined miniTicker stream alive and feeds its sink.
// It reconnects with capped exponential backoff until its context ends.
type Consumer struct {
	baseURL string
	symbols []string
	sink    QuoteSink
	config  *utils.StreamConfig
	metrics *metrics.StreamCollector
	limiter *limiter.StreamLimiter
	logger  zerolog.Logger
}

// NewConsumer creates a ticker stream consumer
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("stream: %w: no symbols", faststock.ErrInvalidArgument)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("stream: %w: nil sink", faststock.ErrInvalidArgument)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultStreamURL
	}
	if cfg.Config == nil {
		cfg.Config = utils.DefaultStreamConfig()
	}
	if len(cfg.Symbols) > cfg.Config.MaxStreamsPerConn {
		return nil, fmt.Errorf("stream: %w: %d symbols exceed %d streams per connection",
			faststock.ErrInvalidArgument, len(cfg.Symbols), cfg.Config.MaxStreamsPerConn)
	}

	return &Consumer{
		baseURL: cfg.BaseURL,
		symbols: cfg.Symbols,
		sink:    cfg.Sink,
		config:  cfg.Config,
		metrics: cfg.Metrics,
		limiter: cfg.Limiter,
		logger:  cfg.Logger.With().Str("component", "stream").Logger(),
	}, nil
}

// streamURL builds the combined-stream URL for the subscribed symbols
func (c *Consumer) streamURL() string {
	streams := make([]string, len(c.symbols))
	for i, s := range c.symbols {
		streams[i] = strings.ToLower(strings.TrimSpace(s)) + "@miniTicker"
	}
	return c.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}

// Run consumes the stream until ctx is cancelled. Connection drops are
// retried with exponential backoff; Run only returns the context error or,
// when MaxReconnectAttempts is set, the final dial failure.
func (c *Consumer) Run(ctx context.Context) error {
	handler := c.buildHandler()
	delay := c.config.ReconnectDelay
	attempts := 0

	for {
		conn := NewConn(ConnConfig{
			ID:      fmt.Sprintf("ticker-%d", attempts),
			URL:     c.streamURL(),
			Config:  c.config,
			Handler: handler,
			Metrics: c.metrics,
			Limiter: c.limiter,
			Logger:  c.logger,
		})

		err := conn.Connect(ctx)
		if err == nil {
			if c.limiter != nil {
				// Track the stream count for this connection; the cap was
				// already checked in NewConsumer
				if lerr := c.limiter.AddStreams(fmt.Sprintf("ticker-%d", attempts), len(c.symbols)); lerr != nil {
					c.logger.Warn().Err(lerr).Msg("stream limiter rejected subscription count")
				}
			}

			delay = c.config.ReconnectDelay // healthy connection resets backoff

			select {
			case <-ctx.Done():
				conn.Close()
				return ctx.Err()
			case <-conn.Done():
				// dropped; Close reaps the write and health goroutines
				// before the next attempt
				conn.Close()
			}
		} else {
			c.logger.Warn().Err(err).Msg("stream dial failed")
		}

		attempts++
		if c.config.MaxReconnectAttempts > 0 && attempts >= c.config.MaxReconnectAttempts {
			if err != nil {
				return fmt.Errorf("stream: giving up after %d attempts: %w", attempts, err)
			}
			return fmt.Errorf("stream: connection dropped, giving up after %d attempts", attempts)
		}

		if c.metrics != nil {
			c.metrics.RecordReconnection()
		}
		c.logger.Info().Dur("delay", delay).Msg("stream reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// buildHandler assembles the message handler with the configured middleware
func (c *Consumer) buildHandler() middleware.StreamMessageHandler {
	handler := c.handleMessage

	var chain []middleware.StreamMiddleware
	if c.config.EnableRecovery {
		chain = append(chain, middleware.StreamRecoveryMiddleware(c.logger))
	}
	if c.config.EnableMetrics && c.metrics != nil {
		chain = append(chain, middleware.StreamMetricsMiddleware(c.metrics))
	}
	if c.config.EnableLogging {
		chain = append(chain, middleware.StreamLoggingMiddleware(c.logger))
	}
	if len(chain) == 0 {
		return handler
	}
	return middleware.ChainStreamMiddleware(chain...)(handler)
}

// combinedFrame is the /stream envelope
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// miniTicker is the 24hrMiniTicker event payload
type miniTicker struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
}

func (c *Consumer) handleMessage(_ context.Context, msg []byte) error {
	var frame combinedFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return fmt.Errorf("bad stream frame: %w", err)
	}
	if frame.Data == nil {
		// subscription acks arrive without a data field
		return nil
	}

	var tick miniTicker
	if err := json.Unmarshal(frame.Data, &tick); err != nil {
		return fmt.Errorf("bad ticker payload: %w", err)
	}
	if tick.Event != "24hrMiniTicker" {
		return nil
	}

	price, err := strconv.ParseFloat(tick.Close, 64)
	if err != nil {
		return fmt.Errorf("bad ticker price %q: %w", tick.Close, err)
	}
	open, err := strconv.ParseFloat(tick.Open, 64)
	if err != nil {
		return fmt.Errorf("bad ticker open %q: %w", tick.Open, err)
	}

	change := price - open
	var pct float64
	if open != 0 {
		pct = change / open * 100
	}

	c.sink.ApplyQuote(faststock.Quote{
		Symbol:        tick.Symbol,
		Price:         price,
		Change:        change,
		PercentChange: pct,
		Source:        "binance",
		AsOf:          time.UnixMilli(tick.EventTime).UTC(),
	})

	if c.metrics != nil {
		c.metrics.RecordTickerUpdate()
	}
	return nil
}
