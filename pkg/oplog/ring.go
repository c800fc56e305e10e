package oplog

import (
	"sync"
	"time"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 1000

// Ring is a bounded, thread-safe buffer of recent entries. When full,
// appending evicts the oldest entry.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	size    int
}

// NewRing creates a ring holding up to capacity entries. Non-positive
// capacities fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Append records one entry.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.start + r.size) % len(r.entries)
	r.entries[idx] = e
	if r.size < len(r.entries) {
		r.size++
	} else {
		r.start = (r.start + 1) % len(r.entries)
	}
}

// Recent returns up to limit entries, newest first, optionally filtered
// by level and workflow id. A non-positive limit returns everything
// buffered.
func (r *Ring) Recent(limit int, level Level, workflowID string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]Entry, 0, limit)
	for i := r.size - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[(r.start+i)%len(r.entries)]
		if level != "" && e.Level != level {
			continue
		}
		if workflowID != "" && e.WorkflowID != workflowID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats summarizes the buffered entries.
type Stats struct {
	Total   int            `json:"total"`
	ByLevel map[Level]int  `json:"by_level"`
	ByOp    map[string]int `json:"by_op"`
	Oldest  *time.Time     `json:"oldest,omitempty"`
	Newest  *time.Time     `json:"newest,omitempty"`
}

// Stats reports counts by level and op plus the buffered time range.
func (r *Ring) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Total:   r.size,
		ByLevel: make(map[Level]int),
		ByOp:    make(map[string]int),
	}
	for i := 0; i < r.size; i++ {
		e := r.entries[(r.start+i)%len(r.entries)]
		s.ByLevel[e.Level]++
		s.ByOp[e.Op]++
		if s.Oldest == nil {
			t := e.Time
			s.Oldest = &t
		}
		t := e.Time
		s.Newest = &t
	}
	return s
}

// Clear drops everything buffered and reports how many entries were
// removed.
func (r *Ring) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.size
	r.size = 0
	r.start = 0
	return n
}
