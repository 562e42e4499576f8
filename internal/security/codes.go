package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"strings"
)

const (
	recoveryCodeBytes = 5 // 8 base32 chars per code
	// RecoveryCodeCount is how many codes an account receives on enrollment.
	RecoveryCodeCount = 10
)

// GenerateRecoveryCodes returns n fresh one-time recovery codes in the form
// "ABCD-EFGH". Callers store only the hashes.
func GenerateRecoveryCodes(n int) ([]string, error) {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, recoveryCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		s := enc.EncodeToString(raw)
		codes = append(codes, s[:4]+"-"+s[4:])
	}
	return codes, nil
}

// HashCode returns a SHA-256 hash of the normalized code, hex-encoded.
// Normalization strips whitespace and separators and upper-cases, so a user
// may type "abcd efgh" for "ABCD-EFGH".
func HashCode(code string) string {
	h := sha256.Sum256([]byte(normalizeCode(code)))
	return hex.EncodeToString(h[:])
}

// CodeEqual performs constant-time comparison of the provided code's hash with the stored hash.
func CodeEqual(providedCode, storedHash string) bool {
	providedHash := HashCode(providedCode)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}
