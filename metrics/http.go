// Package metrics collects in-process counters for upstream provider calls
// and stream consumption. Collectors are plain maps behind a mutex, cheap
// enough to leave on permanently; the /health endpoint exposes them.
package metrics

import (
	"fmt"
	"sync"
	"time"
)

// ProviderCollector collects metrics for upstream provider HTTP calls
type ProviderCollector struct {
	mu            sync.RWMutex
	callCounts    map[string]int64
	callDurations map[string]int64 // in milliseconds
	errorCounts   map[string]int64
	statusCodes   map[int]int64
	cacheHits     int64
	cacheMisses   int64
}

// NewProviderCollector creates a new provider metrics collector
func NewProviderCollector() *ProviderCollector {
	return &ProviderCollector{
		callCounts:    make(map[string]int64),
		callDurations: make(map[string]int64),
		errorCounts:   make(map[string]int64),
		statusCodes:   make(map[int]int64),
	}
}

// RecordCall records one upstream call, keyed by provider and endpoint
func (m *ProviderCollector) RecordCall(provider, endpoint string, statusCode int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s %s", provider, endpoint)
	m.callCounts[key]++
	m.callDurations[key] += duration.Milliseconds()

	if err != nil {
		m.errorCounts[key]++
	}

	if statusCode > 0 {
		m.statusCodes[statusCode]++
	}
}

// RecordCacheHit records a quote served from cache instead of upstream
func (m *ProviderCollector) RecordCacheHit() {
	m.mu.Lock()
	m.cacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss records a quote that had to go upstream
func (m *ProviderCollector) RecordCacheMiss() {
	m.mu.Lock()
	m.cacheMisses++
	m.mu.Unlock()
}

// GetMetrics returns the current metrics as a map
func (m *ProviderCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})
	metrics["call_counts"] = copyMap(m.callCounts)
	metrics["call_durations_ms"] = copyMap(m.callDurations)
	metrics["error_counts"] = copyMap(m.errorCounts)
	metrics["status_codes"] = copyMapInt(m.statusCodes)
	metrics["cache_hits"] = m.cacheHits
	metrics["cache_misses"] = m.cacheMisses

	var totalCalls int64
	for _, count := range m.callCounts {
		totalCalls += count
	}
	metrics["total_calls"] = totalCalls

	var totalErrors int64
	for _, count := range m.errorCounts {
		totalErrors += count
	}
	metrics["total_errors"] = totalErrors

	return metrics
}

// Reset resets all metrics to zero
func (m *ProviderCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCounts = make(map[string]int64)
	m.callDurations = make(map[string]int64)
	m.errorCounts = make(map[string]int64)
	m.statusCodes = make(map[int]int64)
	m.cacheHits = 0
	m.cacheMisses = 0
}

func copyMap(m map[string]int64) map[string]int64 {
	result := make(map[string]int64, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

func copyMapInt(m map[int]int64) map[int]int64 {
	result := make(map[int]int64, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
