package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const secretTokenBytes = 32

// SecretToken is a single-use credential delivered to a user out of band
// (activation and password-reset links). Raw is returned to the caller
// exactly once and never persisted; only Digest and ExpiresAt are stored.
type SecretToken struct {
	Raw       string
	Digest    string
	ExpiresAt time.Time
}

// NewSecretToken generates a high-entropy token with a caller-supplied
// lifetime: 24h for activation, 10m for password reset.
func NewSecretToken(ttl time.Duration) (SecretToken, error) {
	buf := make([]byte, secretTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return SecretToken{}, err
	}
	raw := hex.EncodeToString(buf)
	return SecretToken{
		Raw:       raw,
		Digest:    HashSecretToken(raw),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// HashSecretToken computes the stored digest form of a raw token. SHA-256 is
// enough here: the input is already high-entropy, and the digest only needs
// to support equality lookup without persisting the secret itself.
func HashSecretToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
