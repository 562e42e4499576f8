package security

import (
	"crypto/rand"
	"encoding/hex"
)

// NewSecurityStamp returns a fresh 128-bit random stamp, hex-encoded. Stored
// on the account and embedded in session tokens; rotating it invalidates every
// session issued under the old stamp.
func NewSecurityStamp() (string, error) {
	return randomHex(16)
}

// NewChallengeToken returns an opaque token keying a pending two-factor login.
func NewChallengeToken() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
