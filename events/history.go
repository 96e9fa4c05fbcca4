package events

import (
	"sync"
	"time"
)

// Record is one dispatched emission kept by a History
type Record struct {
	Name Name
	// Subject is the first argument when it is a string: the instance or plugin id
	Subject string
	Args    []any
	At      time.Time
}

// History keeps the most recent dispatched emissions, bounded by count and age.
type History struct {
	mu      sync.RWMutex
	records []Record
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
}

// NewHistory creates a history holding at most maxSize records for 24h
func NewHistory(maxSize int) *History {
	return NewHistoryWithAge(maxSize, 24*time.Hour)
}

// NewHistoryWithAge creates a history with an age limit. maxAge <= 0 keeps records until evicted by size.
func NewHistoryWithAge(maxSize int, maxAge time.Duration) *History {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &History{
		records: make([]Record, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Add records an emission, evicting the oldest when full
func (h *History) Add(name Name, args []any) {
	r := Record{Name: name, Args: args, At: h.now()}
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			r.Subject = s
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.expire(r.At)
	if len(h.records) >= h.maxSize {
		// copy down rather than reslice so the backing array does not grow
		n := copy(h.records, h.records[len(h.records)-h.maxSize+1:])
		clear(h.records[n:])
		h.records = h.records[:n]
	}
	h.records = append(h.records, r)
}

// expire drops records older than maxAge. Records are in time order.
func (h *History) expire(now time.Time) {
	if h.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-h.maxAge)
	i := 0
	for i < len(h.records) && h.records[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		n := copy(h.records, h.records[i:])
		clear(h.records[n:])
		h.records = h.records[:n]
	}
}

// Records returns the kept records, oldest first
func (h *History) Records() []Record {
	return h.Query(nil)
}

// Query returns the records matching f, oldest first. A nil filter matches all.
func (h *History) Query(f *Filter) []Record {
	h.mu.Lock()
	h.expire(h.now())
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Record, 0, len(h.records))
	for _, r := range h.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Size returns the number of kept records
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// MaxSize returns the record limit
func (h *History) MaxSize() int { return h.maxSize }

// Clear drops every record
func (h *History) Clear() {
	h.mu.Lock()
	clear(h.records)
	h.records = h.records[:0]
	h.mu.Unlock()
}
