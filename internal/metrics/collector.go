// Package metrics provides in-memory statistics about calls to the backend.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Errors      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the full client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds      float64
	Query              *OperationSnapshot
	Mutation           *OperationSnapshot
	AIAction           *OperationSnapshot
	SubscriptionEvents *OperationSnapshot
	Auth               *OperationSnapshot
}

// Operation names for the collector.
const (
	OpQuery             = "graphql_query"
	OpMutation          = "graphql_mutation"
	OpAIAction          = "ai_action"
	OpSubscriptionEvent = "subscription_event"
	OpAuth              = "auth"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordError counts a failed operation. Failed calls are also timed via RecordTiming.
func (c *Collector) RecordError(op string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).Errors++
}

// Observe times a call and records an error when err is non-nil.
func (c *Collector) Observe(op string, start time.Time, err error) {
	c.RecordTiming(op, time.Since(start))
	if err != nil {
		c.RecordError(op)
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:      time.Since(c.startTime).Seconds(),
		Query:              snapshotOp(c.ops[OpQuery]),
		Mutation:           snapshotOp(c.ops[OpMutation]),
		AIAction:           snapshotOp(c.ops[OpAIAction]),
		SubscriptionEvents: snapshotOp(c.ops[OpSubscriptionEvent]),
		Auth:               snapshotOp(c.ops[OpAuth]),
	}
}
