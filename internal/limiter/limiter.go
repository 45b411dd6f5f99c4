package limiter

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Binance websocket limits
const (
	MaxConnections          = 5    // Max concurrent stream connections
	MaxStreamsPerConnection = 1024 // Max streams on a combined connection
	MaxStreamsPerMessage    = 200  // Max streams per SUBSCRIBE message
)

// StreamLimiter enforces Binance's websocket connection and subscription
// limits
type StreamLimiter struct {
	maxConnections       int
	maxStreamsPerConn    int
	maxStreamsPerMessage int

	activeConnections    atomic.Int32
	streamsPerConnection map[string]*atomic.Int32 // connection ID -> count
	mu                   sync.RWMutex
}

// NewStreamLimiter creates a stream limiter with Binance's default limits
func NewStreamLimiter() *StreamLimiter {
	return &StreamLimiter{
		maxConnections:       MaxConnections,
		maxStreamsPerConn:    MaxStreamsPerConnection,
		maxStreamsPerMessage: MaxStreamsPerMessage,
		streamsPerConnection: make(map[string]*atomic.Int32),
	}
}

// NewStreamLimiterWithLimits creates a limiter with custom limits
func NewStreamLimiterWithLimits(maxConns, maxStreamsPerConn, maxStreamsPerMsg int) *StreamLimiter {
	return &StreamLimiter{
		maxConnections:       maxConns,
		maxStreamsPerConn:    maxStreamsPerConn,
		maxStreamsPerMessage: maxStreamsPerMsg,
		streamsPerConnection: make(map[string]*atomic.Int32),
	}
}

// AcquireConnection attempts to acquire a connection slot
// Returns error if max connections reached
func (sl *StreamLimiter) AcquireConnection(connectionID string) error {
	current := sl.activeConnections.Load()
	if current >= int32(sl.maxConnections) {
		return fmt.Errorf("max connections reached (%d/%d)", current, sl.maxConnections)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	// Double-check after acquiring lock
	current = sl.activeConnections.Load()
	if current >= int32(sl.maxConnections) {
		return fmt.Errorf("max connections reached (%d/%d)", current, sl.maxConnections)
	}

	sl.activeConnections.Add(1)
	sl.streamsPerConnection[connectionID] = &atomic.Int32{}

	return nil
}

// ReleaseConnection releases a connection slot
func (sl *StreamLimiter) ReleaseConnection(connectionID string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if _, exists := sl.streamsPerConnection[connectionID]; exists {
		delete(sl.streamsPerConnection, connectionID)
		sl.activeConnections.Add(-1)
	}
}

// CanSubscribe checks if adding streams to a connection would exceed limits
// Returns error if limits would be exceeded
func (sl *StreamLimiter) CanSubscribe(connectionID string, streamCount int) error {
	if streamCount > sl.maxStreamsPerMessage {
		return fmt.Errorf("too many streams in single message (%d/%d)",
			streamCount, sl.maxStreamsPerMessage)
	}

	sl.mu.RLock()
	counter, exists := sl.streamsPerConnection[connectionID]
	sl.mu.RUnlock()

	if !exists {
		return fmt.Errorf("connection %s not registered", connectionID)
	}

	current := counter.Load()
	if current+int32(streamCount) > int32(sl.maxStreamsPerConn) {
		return fmt.Errorf("would exceed max streams per connection (%d + %d > %d)",
			current, streamCount, sl.maxStreamsPerConn)
	}

	return nil
}

// AddStreams adds streams to a connection's count
func (sl *StreamLimiter) AddStreams(connectionID string, count int) error {
	sl.mu.RLock()
	counter, exists := sl.streamsPerConnection[connectionID]
	sl.mu.RUnlock()

	if !exists {
		return fmt.Errorf("connection %s not registered", connectionID)
	}

	newCount := counter.Add(int32(count))
	if newCount > int32(sl.maxStreamsPerConn) {
		// Rollback
		counter.Add(-int32(count))
		return fmt.Errorf("exceeded max streams per connection (%d/%d)",
			newCount, sl.maxStreamsPerConn)
	}

	return nil
}

// RemoveStreams removes streams from a connection's count
func (sl *StreamLimiter) RemoveStreams(connectionID string, count int) {
	sl.mu.RLock()
	counter, exists := sl.streamsPerConnection[connectionID]
	sl.mu.RUnlock()

	if exists {
		counter.Add(-int32(count))
	}
}

// GetConnectionCount returns the current number of active connections
func (sl *StreamLimiter) GetConnectionCount() int {
	return int(sl.activeConnections.Load())
}

// GetStreamCount returns the number of streams for a connection
func (sl *StreamLimiter) GetStreamCount(connectionID string) int {
	sl.mu.RLock()
	counter, exists := sl.streamsPerConnection[connectionID]
	sl.mu.RUnlock()

	if !exists {
		return 0
	}

	return int(counter.Load())
}

// GetTotalStreams returns the total number of streams across all connections
func (sl *StreamLimiter) GetTotalStreams() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	total := 0
	for _, counter := range sl.streamsPerConnection {
		total += int(counter.Load())
	}

	return total
}

// GetStats returns current limiter statistics
func (sl *StreamLimiter) GetStats() map[string]interface{} {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	total := 0
	perConnectionCounts := make(map[string]int)
	for connID, counter := range sl.streamsPerConnection {
		count := int(counter.Load())
		perConnectionCounts[connID] = count
		total += count
	}

	return map[string]interface{}{
		"active_connections":     int(sl.activeConnections.Load()),
		"max_connections":        sl.maxConnections,
		"total_streams":          total,
		"max_streams_per_conn":   sl.maxStreamsPerConn,
		"streams_per_connection": perConnectionCounts,
	}
}

// Reset clears all limits (useful for testing)
func (sl *StreamLimiter) Reset() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.activeConnections.Store(0)
	sl.streamsPerConnection = make(map[string]*atomic.Int32)
}
