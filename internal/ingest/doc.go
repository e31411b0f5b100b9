// Package ingest implements the submission pipeline: the single path every
// reading takes from raw bytes to the store, regardless of transport.
//
// # Pipeline stages
//
//	auth ─▶ parse ─▶ presence ─▶ coercion ─▶ range check ─▶ registry ─▶ persist ─▶ audit ─▶ sinks
//
// The stages short-circuit on the first failure, and every Submit leaves
// exactly one terminal SUCCESS or ERROR record in the connection log.
// Out-of-range values and auto-registrations add non-terminal WARNING and
// INFO records on the way through.
//
// Transports stay thin: the HTTP handler and the MQTT feed both reduce to
// building a Request and calling Submit, so audit, validation and metrics
// behaviour cannot drift between them.
package ingest
