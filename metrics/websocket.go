package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// StreamCollector collects metrics for the live ticker stream
type StreamCollector struct {
	// Message counters
	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	tickersUpdated   atomic.Int64
	errors           atomic.Int64

	// Connection state
	activeConnections atomic.Int32
	totalConnections  atomic.Int64
	reconnections     atomic.Int64

	// Processing latency tracking
	mu              sync.RWMutex
	latencies       []time.Duration
	maxLatencyCount int
}

// NewStreamCollector creates a new stream metrics collector
func NewStreamCollector() *StreamCollector {
	return &StreamCollector{
		maxLatencyCount: 1000, // Keep last 1000 latency samples
		latencies:       make([]time.Duration, 0, 1000),
	}
}

// RecordMessageReceived records a received stream message
func (s *StreamCollector) RecordMessageReceived(bytes int, latency time.Duration) {
	s.messagesReceived.Add(1)
	s.bytesReceived.Add(int64(bytes))
	s.recordLatency(latency)
}

// RecordTickerUpdate records one ticker applied to the cache
func (s *StreamCollector) RecordTickerUpdate() {
	s.tickersUpdated.Add(1)
}

// RecordError records an error
func (s *StreamCollector) RecordError() {
	s.errors.Add(1)
}

// RecordConnection records a connection state change
func (s *StreamCollector) RecordConnection(connected bool) {
	if connected {
		s.activeConnections.Add(1)
		s.totalConnections.Add(1)
	} else {
		s.activeConnections.Add(-1)
	}
}

// RecordReconnection records a reconnection attempt
func (s *StreamCollector) RecordReconnection() {
	s.reconnections.Add(1)
}

func (s *StreamCollector) recordLatency(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) >= s.maxLatencyCount {
		// Remove oldest entry
		s.latencies = s.latencies[1:]
	}
	s.latencies = append(s.latencies, latency)
}

// GetMetrics returns current metrics as a map
func (s *StreamCollector) GetMetrics() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make(map[string]interface{})

	// Message counts
	metrics["messages_received"] = s.messagesReceived.Load()
	metrics["bytes_received"] = s.bytesReceived.Load()
	metrics["tickers_updated"] = s.tickersUpdated.Load()
	metrics["errors"] = s.errors.Load()

	// Connection state
	metrics["active_connections"] = s.activeConnections.Load()
	metrics["total_connections"] = s.totalConnections.Load()
	metrics["reconnections"] = s.reconnections.Load()

	// Latency stats
	if len(s.latencies) > 0 {
		var sum time.Duration
		min := s.latencies[0]
		max := s.latencies[0]

		for _, lat := range s.latencies {
			sum += lat
			if lat < min {
				min = lat
			}
			if lat > max {
				max = lat
			}
		}

		metrics["avg_latency_ms"] = float64(sum.Milliseconds()) / float64(len(s.latencies))
		metrics["min_latency_ms"] = min.Milliseconds()
		metrics["max_latency_ms"] = max.Milliseconds()
		metrics["latency_samples"] = len(s.latencies)
	}

	return metrics
}

// Reset resets all metrics to zero
func (s *StreamCollector) Reset() {
	s.messagesReceived.Store(0)
	s.bytesReceived.Store(0)
	s.tickersUpdated.Store(0)
	s.errors.Store(0)
	s.totalConnections.Store(0)
	s.reconnections.Store(0)

	s.mu.Lock()
	s.latencies = make([]time.Duration, 0, s.maxLatencyCount)
	s.mu.Unlock()
}
