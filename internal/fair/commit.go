package fair

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// NewServerSeed returns a fresh 64-hex-char server secret. The secret
// stays server-side until the round's entropy is settled and the curve
// has crashed; only its commitment goes on-chain up front.
func NewServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Commitment hashes the seed's UTF-8 bytes, matching the contract-side
// check at reveal.
func Commitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifyReveal reports whether seed opens commitment. A false result at
// reveal time is an integrity incident, never expected in operation.
func VerifyReveal(seed, commitment string) bool {
	return subtle.ConstantTimeCompare([]byte(Commitment(seed)), []byte(commitment)) == 1
}
