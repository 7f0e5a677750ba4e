package orchestrator

import (
	"sync"
	"time"

	"github.com/docmindlabs/docmind/internal/providers"
)

// Record is one successful ensemble extraction, kept for the external
// prompt-optimization collaborator. It never feeds back into merging.
type Record struct {
	Text       string
	DocType    string
	Merged     map[string]providers.Value
	Individual []providers.InferenceResult
	At         time.Time
}

// History is a bounded, append-only log safe for concurrent appends from
// completing ensemble tasks.
type History struct {
	mu      sync.Mutex
	cap     int
	records []Record
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{cap: capacity}
}

func (h *History) Append(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.cap {
		h.records = h.records[len(h.records)-h.cap:]
	}
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Snapshot copies the current records for the optimization collaborator.
func (h *History) Snapshot() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// ByType filters the snapshot to one document type.
func (h *History) ByType(docType string) []Record {
	var out []Record
	for _, r := range h.Snapshot() {
		if r.DocType == docType && len(r.Merged) > 0 {
			out = append(out, r)
		}
	}
	return out
}
