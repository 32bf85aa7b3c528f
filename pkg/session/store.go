// Package session tracks revoked JWTs between logout and natural expiry.
// Tokens are opaque here: the store hashes them and remembers the hash until
// the token would have expired anyway.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RevocationStore marks tokens as revoked and answers whether a presented
// token has been revoked. Implementations must treat expired entries as not
// revoked; the JWT's own exp claim rejects those requests.
type RevocationStore interface {
	// Revoke invalidates the token until expiresAt.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error

	// IsRevoked reports whether the token was revoked and has not yet
	// passed its original expiry.
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// hashToken derives the storage key. Raw JWTs never land in the store.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
