package engine

import (
	"time"

	"go.uber.org/zap"
)

// Stats provides statistics about component execution.
type Stats struct {
	ComponentCount  int
	TotalExecutions int64
	Components      []ComponentStats
}

// ComponentStats provides execution statistics for a single component.
type ComponentStats struct {
	Name           string
	Enabled        bool
	ExecutionCount int64
	ChangedCount   int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type componentStatsInternal struct {
	executionCount int64
	changedCount   int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

type registryEntry struct {
	name      string
	component Component
	enabled   bool
	stats     componentStatsInternal
}

type opKind int

const (
	opAttach opKind = iota
	opDetach
	opEnable
	opDisable
)

type pendingOp struct {
	kind  opKind
	entry *registryEntry
	name  string
}

// registry holds the ordered component set plus a buffer for structural
// changes requested mid-frame. Mutations during a tick are deferred and
// flushed at frame end so iteration order is never disturbed.
type registry struct {
	entries []*registryEntry
	pending []pendingOp
}

func newRegistry() *registry {
	return &registry{entries: make([]*registryEntry, 0)}
}

func newEntry(name string, c Component) *registryEntry {
	return &registryEntry{
		name:      name,
		component: c,
		enabled:   true,
		stats:     componentStatsInternal{minDuration: time.Duration(1<<63 - 1)},
	}
}

func (r *registry) find(name string) *registryEntry {
	for _, e := range r.entries {
		if e.name == name {
			return e
		}
	}
	return nil
}

func (r *registry) attach(e *registryEntry) {
	if existing := r.find(e.name); existing != nil {
		existing.component = e.component
		existing.enabled = true
		return
	}
	r.entries = append(r.entries, e)
}

func (r *registry) detach(name string) {
	for i, e := range r.entries {
		if e.name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry) setEnabled(name string, enabled bool) {
	if e := r.find(name); e != nil {
		e.enabled = enabled
	}
}

// tick runs every enabled component exactly once, in registration order.
// A panicking component is isolated: its panic is logged and the remaining
// components still tick this frame.
func (r *registry) tick(dt float64) {
	for _, e := range r.entries {
		if !e.enabled {
			continue
		}

		start := time.Now()
		changed := safeUpdate(e, dt)
		duration := time.Since(start)

		e.stats.executionCount++
		e.stats.lastDuration = duration
		e.stats.totalDuration += duration
		if changed {
			e.stats.changedCount++
		}

		if duration < e.stats.minDuration {
			e.stats.minDuration = duration
		}
		if duration > e.stats.maxDuration {
			e.stats.maxDuration = duration
		}
	}
}

func safeUpdate(e *registryEntry, dt float64) (changed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			changed = false
			Logger().Error("component panicked during tick",
				zap.String("component", e.name),
				zap.Any("panic", rec),
			)
		}
	}()
	return e.component.Update(dt)
}

// deferOp queues a structural change for the end of the current frame.
func (r *registry) deferOp(op pendingOp) {
	r.pending = append(r.pending, op)
}

// flush applies all deferred structural changes, resetting the buffer.
func (r *registry) flush() {
	for _, op := range r.pending {
		switch op.kind {
		case opAttach:
			r.attach(op.entry)
		case opDetach:
			r.detach(op.name)
		case opEnable:
			r.setEnabled(op.name, true)
		case opDisable:
			r.setEnabled(op.name, false)
		}
	}
	r.pending = r.pending[:0]
}

func (r *registry) collectStats() *Stats {
	stats := &Stats{
		ComponentCount: len(r.entries),
		Components:     make([]ComponentStats, len(r.entries)),
	}

	var totalExecs int64
	for i, e := range r.entries {
		avgDuration := time.Duration(0)
		if e.stats.executionCount > 0 {
			avgDuration = e.stats.totalDuration / time.Duration(e.stats.executionCount)
		}

		stats.Components[i] = ComponentStats{
			Name:           e.name,
			Enabled:        e.enabled,
			ExecutionCount: e.stats.executionCount,
			ChangedCount:   e.stats.changedCount,
			MinDuration:    e.stats.minDuration,
			MaxDuration:    e.stats.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   e.stats.lastDuration,
			TotalDuration:  e.stats.totalDuration,
		}
		totalExecs += e.stats.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
