// Package audit provides the connection log: a bounded, in-memory record of
// every ingestion attempt and its outcome.
package audit

import (
	"sync"
	"time"
)

// Status classifies the outcome of an ingestion attempt. The set is closed:
// every record carries exactly one of these.
type Status string

const (
	// StatusSuccess marks a reading accepted and stored.
	StatusSuccess Status = "SUCCESS"

	// StatusInfo marks a notable non-failure event, e.g. auto-registration.
	StatusInfo Status = "INFO"

	// StatusWarning marks an accepted reading with suspicious values.
	StatusWarning Status = "WARNING"

	// StatusError marks a rejected submission.
	StatusError Status = "ERROR"
)

const (
	// DefaultCapacity bounds the number of retained entries.
	DefaultCapacity = 100

	// DefaultRecent is how many entries Recent returns when no count is given.
	DefaultRecent = 50
)

// Entry is a single request-outcome record.
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	ClientAddr    string    `json:"client_addr"`
	UserAgent     string    `json:"user_agent"`
	Status        Status    `json:"status"`
	Message       string    `json:"message"`
	APIKeyPresent bool      `json:"api_key_present"`
}

// ConnectionLog is a concurrent-safe ring of request-outcome records. When
// full, recording a new entry evicts the oldest. Entries only ever live in
// memory; they are not persisted across restarts.
type ConnectionLog struct {
	mu      sync.Mutex
	entries []Entry // ring storage, fixed length
	head    int     // index of the oldest entry
	size    int
}

// NewConnectionLog creates a log retaining at most capacity entries.
// A capacity <= 0 falls back to DefaultCapacity.
func NewConnectionLog(capacity int) *ConnectionLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ConnectionLog{entries: make([]Entry, capacity)}
}

// Record appends an entry, evicting the oldest when the log is full.
// A zero Timestamp is filled with the current time.
func (l *ConnectionLog) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tail := (l.head + l.size) % len(l.entries)
	l.entries[tail] = e
	if l.size < len(l.entries) {
		l.size++
	} else {
		l.head = (l.head + 1) % len(l.entries)
	}
}

// Recent returns the last n entries, newest first.
// n <= 0 returns DefaultRecent entries.
func (l *ConnectionLog) Recent(n int) []Entry {
	if n <= 0 {
		n = DefaultRecent
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n > l.size {
		n = l.size
	}

	out := make([]Entry, n)
	for i := range out {
		// Walk backwards from the newest entry.
		idx := (l.head + l.size - 1 - i) % len(l.entries)
		out[i] = l.entries[idx]
	}
	return out
}

// Size returns the number of retained entries.
func (l *ConnectionLog) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.size
}
