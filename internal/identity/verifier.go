// Package identity verifies bearer tokens issued by the external identity
// provider and turns them into an Identity the HTTP layer can trust.
//
// The HTTP layer only depends on the Verifier interface. JWTVerifier checks
// Firebase-style ID tokens, and CachingVerifier memoizes successful checks
// in a TokenCache (Redis in production).
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidToken is wrapped by every verification failure caused by the
// token itself (bad signature, wrong audience, expired, ...).
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified caller.
type Identity struct {
	// UserID is the provider's stable user id (the token subject).
	UserID string `json:"user_id"`
	// Email is informational and may be empty.
	Email string `json:"email,omitempty"`
	// ExpiresAt is the token expiry; cached identities never outlive it.
	ExpiresAt time.Time `json:"expires_at"`
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (Identity, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}
