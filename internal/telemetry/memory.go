package telemetry

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps readings in an insertion-ordered slice guarded by an
// RWMutex. It is the default backend; contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []Reading
	capacity int
}

// NewMemoryStore creates a store bounded at capacity readings.
// A capacity <= 0 falls back to DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		readings: make([]Reading, 0, capacity),
		capacity: capacity,
	}
}

// Append inserts a reading at the tail, evicting the oldest past capacity.
func (s *MemoryStore) Append(_ context.Context, r Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, r)
	if excess := len(s.readings) - s.capacity; excess > 0 {
		// Compact in place so the backing array is not leaked.
		s.readings = append(s.readings[:0], s.readings[excess:]...)
	}
	return nil
}

// Query returns a filtered, paginated page of readings, newest first.
func (s *MemoryStore) Query(_ context.Context, params QueryParams) (QueryResult, error) {
	limit := normaliseLimit(params.Limit)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Filter in insertion order, oldest first.
	filtered := make([]Reading, 0, len(s.readings))
	for _, r := range s.readings {
		if params.DeviceID != "" && r.DeviceID != params.DeviceID {
			continue
		}
		filtered = append(filtered, r)
	}

	total := len(filtered)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := filtered[offset:end]

	// Reverse so the newest reading in the page comes first.
	out := make([]Reading, len(page))
	for i, r := range page {
		out[len(page)-1-i] = r
	}

	return QueryResult{Readings: out, Total: total, Offset: offset, Limit: limit}, nil
}

// CleanupOlderThan removes readings received strictly before cutoff.
func (s *MemoryStore) CleanupOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.readings[:0]
	for _, r := range s.readings {
		if r.ReceivedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(s.readings) - len(kept)
	s.readings = kept
	return removed, nil
}

// Size returns the number of stored readings.
func (s *MemoryStore) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.readings), nil
}

// Latest returns the most recently appended reading, or nil when empty.
func (s *MemoryStore) Latest(_ context.Context) (*Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.readings) == 0 {
		return nil, nil
	}
	r := s.readings[len(s.readings)-1]
	return &r, nil
}

// CountSince returns how many readings were received at or after since.
func (s *MemoryStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.readings {
		if !r.ReceivedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
