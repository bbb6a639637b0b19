// Package jobs holds the in-memory BatchJobRecord log the monitoring API
// exposes at /v1/status (§4.M). It is read-only from the API's
// perspective; only the batch drivers append to it.
package jobs

import (
	"sync"
	"time"
)

// Record is one completed batch-driver job: one partitioning run or one
// query-batch group.
type Record struct {
	Kind              string // "index" or "query"
	Dataset           string
	Status            string // "ok" or "error"
	StartedAt         time.Time
	Duration          time.Duration
	Detail            string
	DuplicateEstimate int // §4.N, only set for index jobs
}

// Registry is a bounded, most-recent-first log of Records, safe for
// concurrent use by batch workers and the monitoring HTTP handlers.
type Registry struct {
	mu      sync.Mutex
	records []Record
	cap     int
}

// NewRegistry creates a Registry retaining at most capacity records.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 500
	}
	return &Registry{cap: capacity}
}

// Append records rec, evicting the oldest entry once the registry is full.
func (r *Registry) Append(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append([]Record{rec}, r.records...)
	if len(r.records) > r.cap {
		r.records = r.records[:r.cap]
	}
}

// List returns a snapshot of the registry, most recent first.
func (r *Registry) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
