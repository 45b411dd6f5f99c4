// Package stream consumes live crypto tickers from the Binance websocket
// API and applies them to the quote cache. Conn owns one socket with
// read/write/health goroutines; Consumer sits above it and handles
// subscriptions, payload decoding and reconnects.
package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/OMCHOKSI108/faststock-go/internal/limiter"
	"github.com/OMCHOKSI108/faststock-go/metrics"
	"github.com/OMCHOKSI108/faststock-go/middleware"
	"github.com/OMCHOKSI108/faststock-go/utils"
)

// maxMessageSize caps one stream frame; combined miniTicker frames stay
// well under this
const maxMessageSize = 64 * 1024

// Conn is a single websocket connection with goroutine-based lifecycle
// management. The message handler runs on the read goroutine and must not
// retain the payload: the buffer goes back to the pool when it returns.
type Conn struct {
	id     string
	url    string
	config *utils.StreamConfig
	logger zerolog.Logger

	// WebSocket connection
	connMu sync.RWMutex
	conn   *websocket.Conn

	// Channels for goroutine communication
	sendCh chan []byte
	stopCh chan struct{}
	doneCh chan struct{}

	// Message handling
	handler middleware.StreamMessageHandler

	// Metrics, pooling, limits
	metrics    *metrics.StreamCollector
	bufferPool *utils.BufferPool
	limiter    *limiter.StreamLimiter

	// Health monitoring
	lastPingMu sync.RWMutex
	lastPing   time.Time
	lastPong   time.Time

	// State
	stateMu   sync.RWMutex
	connected bool
	started   bool
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// ConnConfig holds configuration for creating a new connection
type ConnConfig struct {
	ID         string
	URL        string
	Config     *utils.StreamConfig
	Handler    middleware.StreamMessageHandler
	Middleware middleware.StreamMiddleware
	Metrics    *metrics.StreamCollector
	BufferPool *utils.BufferPool
	Limiter    *limiter.StreamLimiter
	Logger     zerolog.Logger
}

// NewConn creates a websocket connection (not yet connected)
func NewConn(cfg ConnConfig) *Conn {
	if cfg.Config == nil {
		cfg.Config = utils.DefaultStreamConfig()
	}
	if cfg.BufferPool == nil {
		cfg.BufferPool = utils.NewBufferPool()
	}

	handler := cfg.Handler
	if cfg.Middleware != nil && handler != nil {
		handler = cfg.Middleware(handler)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		id:         cfg.ID,
		url:        cfg.URL,
		config:     cfg.Config,
		logger:     cfg.Logger.With().Str("conn_id", cfg.ID).Logger(),
		handler:    handler,
		metrics:    cfg.Metrics,
		bufferPool: cfg.BufferPool,
		limiter:    cfg.Limiter,
		sendCh:     make(chan []byte, 256),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Connect establishes the websocket connection and starts goroutines
func (c *Conn) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.connected {
		c.stateMu.Unlock()
		return fmt.Errorf("connection %s already connected", c.id)
	}
	c.stateMu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.AcquireConnection(c.id); err != nil {
			return fmt.Errorf("failed to acquire connection slot: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.ConnectTimeout,
		ReadBufferSize:   c.config.ReadBufferSize,
		WriteBufferSize:  c.config.WriteBufferSize,
	}

	conn, _, err := dialer.DialContext(connectCtx, c.url, nil)
	if err != nil {
		if c.limiter != nil {
			c.limiter.ReleaseConnection(c.id)
		}
		c.cancel()
		return fmt.Errorf("failed to dial websocket: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.stateMu.Lock()
	c.connected = true
	c.started = true
	c.stateMu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordConnection(true)
	}
	c.logger.Info().Str("url", c.url).Msg("stream connected")

	go c.readLoop()
	go c.writeLoop()
	go c.healthLoop()

	return nil
}

// readLoop continuously reads messages from the websocket
func (c *Conn) readLoop() {
	defer func() {
		c.disconnect()
		close(c.doneCh)
	}()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if c.config.PongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	}

	conn.SetPongHandler(func(string) error {
		c.lastPingMu.Lock()
		c.lastPong = time.Now()
		c.lastPingMu.Unlock()

		if c.config.PongWait > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		}
		return nil
	})

	// Binance pings from the server side; answering keeps the read
	// deadline moving too
	conn.SetPingHandler(func(appData string) error {
		if c.config.PongWait > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		}
		deadline := time.Now().Add(c.config.WriteTimeout)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), deadline)
	})

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ctx.Done():
			return
		default:
		}

		_, r, err := conn.NextReader()
		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordError()
			}
			c.logger.Warn().Err(err).Msg("stream read error")
			return
		}

		// Read into a pooled buffer; the handler runs synchronously so
		// the buffer can go straight back
		buf := c.bufferPool.Get(maxMessageSize)
		n, err := readFrame(r, buf)
		if err != nil {
			c.bufferPool.Put(buf)
			if c.metrics != nil {
				c.metrics.RecordError()
			}
			c.logger.Warn().Err(err).Msg("stream frame read error")
			return
		}

		if c.handler != nil {
			if err := c.handler(c.ctx, buf[:n]); err != nil {
				if c.metrics != nil {
					c.metrics.RecordError()
				}
				// Keep consuming; one bad frame is not fatal
			}
		}
		c.bufferPool.Put(buf)
	}
}

// readFrame drains one websocket frame into buf
func readFrame(r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, fmt.Errorf("frame exceeds %d bytes", len(buf))
}

// writeLoop continuously writes messages to the websocket
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ctx.Done():
			return
		case message := <-c.sendCh:
			if c.config.WriteTimeout > 0 {
				conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if c.metrics != nil {
					c.metrics.RecordError()
				}
				return
			}

		case <-ticker.C:
			if c.config.WriteTimeout > 0 {
				conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if c.metrics != nil {
					c.metrics.RecordError()
				}
				return
			}

			c.lastPingMu.Lock()
			c.lastPing = time.Now()
			c.lastPingMu.Unlock()
		}
	}
}

// healthLoop monitors connection health
func (c *Conn) healthLoop() {
	if c.config.PongWait == 0 {
		return // Health monitoring disabled
	}

	ticker := time.NewTicker(c.config.PingInterval * 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.lastPingMu.RLock()
			lastPing := c.lastPing
			lastPong := c.lastPong
			c.lastPingMu.RUnlock()

			// Sent a ping but no pong inside the window: connection is dead
			if !lastPing.IsZero() && lastPong.Before(lastPing) {
				if time.Since(lastPing) > c.config.PongWait {
					c.logger.Warn().Msg("stream pong timeout")
					c.disconnect()
					return
				}
			}
		}
	}
}

// Send queues a message for the write loop
func (c *Conn) Send(message []byte) error {
	c.stateMu.RLock()
	connected := c.connected
	c.stateMu.RUnlock()

	if !connected {
		return fmt.Errorf("connection %s not connected", c.id)
	}

	select {
	case c.sendCh <- message:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("connection %s closed", c.id)
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

// disconnect closes the connection (internal). It always cancels the
// connection context so the write and health loops exit with it, whichever
// side initiated the teardown.
func (c *Conn) disconnect() {
	defer c.cancel()

	c.stateMu.Lock()
	if !c.connected {
		c.stateMu.Unlock()
		return
	}
	c.connected = false
	c.stateMu.Unlock()

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordConnection(false)
	}
	if c.limiter != nil {
		c.limiter.ReleaseConnection(c.id)
	}
	c.logger.Info().Msg("stream disconnected")
}

// Close stops all goroutines and closes the connection. Safe to call more
// than once and regardless of connection state.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })

	// Closing the socket unblocks the read loop; disconnect also cancels
	// the connection context
	c.disconnect()

	c.stateMu.RLock()
	started := c.started
	c.stateMu.RUnlock()
	if !started {
		return nil
	}

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
	}
	return nil
}

// IsConnected returns whether the connection is currently connected
func (c *Conn) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

// Done returns a channel closed when the read loop exits
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}
