package utils

import "time"

// StreamConfig holds configuration for the Binance websocket stream
type StreamConfig struct {
	// Connection limits
	MaxConnections    int // Max concurrent connections (5 is plenty)
	MaxStreamsPerConn int // Max streams per combined connection (1024 for Binance)
	MaxBatchSize      int // Max streams per SUBSCRIBE message

	// Timeouts
	ConnectTimeout time.Duration // Timeout for initial connection
	WriteTimeout   time.Duration // Timeout for writing messages
	PongWait       time.Duration // Binance pings every ~20s; drop after this silence
	PingInterval   time.Duration // Client-side keepalive ping interval

	// Reconnection
	ReconnectDelay       time.Duration // Base delay before reconnection attempt
	MaxReconnectDelay    time.Duration // Backoff ceiling
	MaxReconnectAttempts int           // Maximum reconnection attempts (0 = infinite)

	// Buffer sizes
	ReadBufferSize  int // WebSocket read buffer size
	WriteBufferSize int // WebSocket write buffer size

	// Middleware
	EnableLogging  bool
	EnableMetrics  bool
	EnableRecovery bool
}

// DefaultStreamConfig returns stream configuration tuned for Binance
func DefaultStreamConfig() *StreamConfig {
	return &StreamConfig{
		MaxConnections:       5,
		MaxStreamsPerConn:    1024,
		MaxBatchSize:         200,
		ConnectTimeout:       30 * time.Second,
		WriteTimeout:         10 * time.Second,
		PongWait:             75 * time.Second,
		PingInterval:         30 * time.Second,
		ReconnectDelay:       2 * time.Second,
		MaxReconnectDelay:    60 * time.Second,
		MaxReconnectAttempts: 0, // Infinite
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
		EnableLogging:        true,
		EnableMetrics:        true,
		EnableRecovery:       true,
	}
}
