package telemetry

import (
	"context"
	"time"
)

// Store is the persistence contract for readings. Two implementations exist:
// MemoryStore for the default deployment and SQLiteStore when readings must
// survive restarts. The ingest pipeline and query engine depend only on this
// interface, so the backends are never mixed within one deployment.
type Store interface {
	// Append inserts a reading at the tail, then evicts from the head until
	// the store is within capacity.
	Append(ctx context.Context, r Reading) error

	// Query returns a filtered, paginated page of readings per QueryParams.
	Query(ctx context.Context, params QueryParams) (QueryResult, error)

	// CleanupOlderThan removes readings received strictly before cutoff and
	// returns the number removed.
	CleanupOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Size returns the number of stored readings.
	Size(ctx context.Context) (int, error)

	// Latest returns the most recently appended reading, or nil when the
	// store is empty.
	Latest(ctx context.Context) (*Reading, error)

	// CountSince returns how many readings were received at or after since.
	CountSince(ctx context.Context, since time.Time) (int, error)
}
