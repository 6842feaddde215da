package alerts

import "sync"

const defaultHistorySize = 200

// History is a bounded in-memory ring of recent alerts across all
// providers. When full, the oldest entry is dropped; durable retention
// is the structured log's job.
type History struct {
	mu      sync.Mutex
	entries []Alert
	max     int
}

// NewHistory creates a history bounded to max entries. Non-positive
// max falls back to the default.
func NewHistory(max int) *History {
	if max <= 0 {
		max = defaultHistorySize
	}
	return &History{max: max}
}

// Add appends an alert, evicting the oldest entry when full
func (h *History) Add(alert Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, alert)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Recent returns up to limit alerts, newest first. A non-positive
// limit returns everything retained.
func (h *History) Recent(limit int) []Alert {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

// Len returns the number of retained alerts
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
