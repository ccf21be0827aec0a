package metrics

import (
	"sync"
	"time"
)

// Collector tracks relay runtime counters.
type Collector struct {
	mu sync.Mutex

	startTime time.Time

	totalConnections  int64
	activeConnections int64
	peakConnections   int64

	totalMessages  int64
	messagesByType map[string]int64
	totalLatency   time.Duration
	latencyCount   int64

	totalErrors  int64
	errorsByType map[string]int64

	rateLimitHits int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:      time.Now(),
		messagesByType: make(map[string]int64),
		errorsByType:   make(map[string]int64),
	}
}

// RecordConnect counts a new connection.
func (c *Collector) RecordConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalConnections++
	c.activeConnections++
	if c.activeConnections > c.peakConnections {
		c.peakConnections = c.activeConnections
	}
}

// RecordDisconnect counts a closed connection.
func (c *Collector) RecordDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeConnections > 0 {
		c.activeConnections--
	}
}

// RecordMessage counts a handled frame and its handling latency.
func (c *Collector) RecordMessage(category string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalMessages++
	c.messagesByType[category]++
	c.totalLatency += latency
	c.latencyCount++
}

// RecordError counts an error by kind.
func (c *Collector) RecordError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalErrors++
	c.errorsByType[kind]++
}

// RecordRateLimitHit counts a rate-limit rejection.
func (c *Collector) RecordRateLimitHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimitHits++
}

// Stats is a point-in-time snapshot of all counters.
type Stats struct {
	UptimeSeconds     float64          `json:"uptime_seconds"`
	TotalConnections  int64            `json:"total_connections"`
	ActiveConnections int64            `json:"active_connections"`
	PeakConnections   int64            `json:"peak_connections"`
	TotalMessages     int64            `json:"total_messages"`
	MessagesByType    map[string]int64 `json:"messages_by_type"`
	AvgLatencyMillis  float64          `json:"avg_latency_ms"`
	TotalErrors       int64            `json:"total_errors"`
	ErrorsByType      map[string]int64 `json:"errors_by_type"`
	RateLimitHits     int64            `json:"rate_limit_hits"`
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.messagesByType))
	for k, v := range c.messagesByType {
		byType[k] = v
	}
	byKind := make(map[string]int64, len(c.errorsByType))
	for k, v := range c.errorsByType {
		byKind[k] = v
	}

	var avg float64
	if c.latencyCount > 0 {
		avg = float64(c.totalLatency.Milliseconds()) / float64(c.latencyCount)
	}

	return Stats{
		UptimeSeconds:     time.Since(c.startTime).Seconds(),
		TotalConnections:  c.totalConnections,
		ActiveConnections: c.activeConnections,
		PeakConnections:   c.peakConnections,
		TotalMessages:     c.totalMessages,
		MessagesByType:    byType,
		AvgLatencyMillis:  avg,
		TotalErrors:       c.totalErrors,
		ErrorsByType:      byKind,
		RateLimitHits:     c.rateLimitHits,
	}
}

// Reset clears all counters. Used by the admin endpoint and tests.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.totalConnections = 0
	c.activeConnections = 0
	c.peakConnections = 0
	c.totalMessages = 0
	c.messagesByType = make(map[string]int64)
	c.totalLatency = 0
	c.latencyCount = 0
	c.totalErrors = 0
	c.errorsByType = make(map[string]int64)
	c.rateLimitHits = 0
}
