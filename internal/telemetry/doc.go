// Package telemetry holds the reading store and the query engine: the write
// and read sides of the stored sensor data.
//
// # Data flow
//
//	ingest pipeline ──▶ Store.Append ──▶ [MemoryStore | SQLiteStore]
//	                                            │
//	REST API ──▶ Engine ── Query/Statistics ────┘
//
// The Store interface bounds retention at a fixed capacity with oldest-first
// eviction, so the service can run unattended on small hardware. MemoryStore
// is the default backend; SQLiteStore keeps readings across restarts using
// the shared database handle. A deployment uses exactly one of them.
//
// Engine layers the read-side operations on top: device listings, filtered
// and paginated reading queries, connection log excerpts, count-based
// statistics, and age-based cleanup.
package telemetry
