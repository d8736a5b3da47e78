// Package report collects the modification log and run summary for a
// correction pass. Every accepted or rejected correction is recorded so
// reviewers can audit what the pipeline changed and why.
package report

import (
	"sync"
	"time"
)

// Entry is one recorded correction attempt.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`

	// Paragraph is the zero-based index of the paragraph in the document.
	Paragraph int `json:"paragraph"`

	// Stage names the stage that proposed the correction
	// ("local", "grammar", "llm", "cache").
	Stage string `json:"stage"`

	Original  string `json:"original"`
	Corrected string `json:"corrected,omitempty"`

	// Applied reports whether the correction made it into the document.
	Applied bool `json:"applied"`

	// Quality is the overall score the proposal received.
	Quality float64 `json:"quality,omitempty"`

	// RollbackReason explains a rejection. Empty when Applied.
	RollbackReason string `json:"rollback_reason,omitempty"`
}

// Summary aggregates a full run.
type Summary struct {
	Paragraphs       int `json:"paragraphs"`
	Accepted         int `json:"accepted"`
	RolledBack       int `json:"rolled_back"`
	Unchanged        int `json:"unchanged"`
	CacheHits        int `json:"cache_hits"`
	DegradedServices int `json:"degraded_services"`
}

// Log accumulates entries during a run. Safe for concurrent use;
// chunks report from parallel goroutines.
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	unchanged int
	cacheHits int
	degraded  int
}

func NewLog() *Log {
	return &Log{}
}

// Record appends an attempt entry, stamping it with the current time
// when the entry carries none.
func (l *Log) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// RecordUnchanged counts a paragraph no stage wanted to touch.
func (l *Log) RecordUnchanged() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unchanged++
}

// RecordCacheHit counts a paragraph served from the cache.
func (l *Log) RecordCacheHit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cacheHits++
}

// RecordDegradation counts a stage outage the run continued through.
func (l *Log) RecordDegradation() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.degraded++
}

// Entries returns a copy of the recorded entries in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Summarize produces the run summary for a document of the given
// paragraph count.
func (l *Log) Summarize(paragraphs int) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		Paragraphs:       paragraphs,
		Unchanged:        l.unchanged,
		CacheHits:        l.cacheHits,
		DegradedServices: l.degraded,
	}
	for _, e := range l.entries {
		if e.Applied {
			s.Accepted++
		} else {
			s.RolledBack++
		}
	}
	return s
}
