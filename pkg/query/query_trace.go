package query

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventResolvedNodeIDs TraceEventKind = "resolved_node_ids"
	TraceEventQueriedNodeIDs  TraceEventKind = "queried_node_ids"
	TraceEventQueriedEdgeIDs  TraceEventKind = "queried_edge_ids"

	TraceEventOperation TraceEventKind = "operation"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	NodeIDs []string
	EdgeIDs []string

	Operation  string
	DurationMs int64
	Error      string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func recordResolvedNodeIDs(t Tracer, ids ...string) {
	if t == nil || len(ids) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventResolvedNodeIDs, NodeIDs: ids})
}

func recordOperation(t Tracer, operation string, durationMs int64, err error) {
	if t == nil {
		return
	}
	event := TraceEvent{
		Kind:       TraceEventOperation,
		Operation:  operation,
		DurationMs: durationMs,
	}
	if err != nil {
		event.Error = err.Error()
	}
	t.Record(event)
}

// CollectingTracer accumulates trace events in memory. It is safe for
// concurrent use and mainly serves tests and ad-hoc debugging.
type CollectingTracer struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (c *CollectingTracer) Record(event TraceEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of the recorded events.
func (c *CollectingTracer) Events() []TraceEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TraceEvent, len(c.events))
	copy(out, c.events)
	return out
}

// NodeIDs returns the distinct node ids seen across all recorded events,
// sorted.
func (c *CollectingTracer) NodeIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, ev := range c.events {
		for _, id := range ev.NodeIDs {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}
