// Package auth implements the shared-secret credential check for ingestion.
package auth

import "crypto/subtle"

// Verifier checks submitted API keys against the configured secret.
//
// An empty configured key puts the verifier in open mode: every submission
// passes, credential or not. That is a deliberate deployment choice for
// trusted networks, not a fallback.
type Verifier struct {
	key []byte
}

// NewVerifier creates a verifier for the configured API key.
func NewVerifier(key string) *Verifier {
	return &Verifier{key: []byte(key)}
}

// Open reports whether the verifier accepts unauthenticated submissions.
func (v *Verifier) Open() bool {
	return len(v.key) == 0
}

// Verify checks a submitted credential in constant time.
func (v *Verifier) Verify(candidate string) bool {
	if v.Open() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(candidate), v.key) == 1
}
