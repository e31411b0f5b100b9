package ingest

// Kind classifies pipeline failures so transports can map them to their own
// status codes.
type Kind int

const (
	// KindUnauthenticated rejects a submission with a missing or wrong
	// credential.
	KindUnauthenticated Kind = iota + 1

	// KindInvalidPayload rejects a submission whose body cannot be parsed
	// or validated.
	KindInvalidPayload

	// KindInternal reports a storage or registry failure on our side.
	KindInternal
)

// String returns the wire code for the kind, as used in error envelopes and
// metric labels.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidPayload:
		return "invalid_payload"
	case KindInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure carrying the client-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
