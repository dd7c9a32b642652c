// Package password provides the one-way hashing primitive used for user
// credentials.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes and verifies secrets with bcrypt.
type Bcrypt struct {
	// Cost is the bcrypt work factor; zero means bcrypt.DefaultCost.
	Cost int
}

// NewBcrypt returns a Bcrypt hasher with the given cost.
func NewBcrypt(cost int) *Bcrypt {
	return &Bcrypt{Cost: cost}
}

// Hash returns the bcrypt digest of secret.
func (b *Bcrypt) Hash(secret string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest.
func (b *Bcrypt) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
