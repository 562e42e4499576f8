package security

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPVerifier checks time-based authenticator codes against an enrolled
// secret, accepting a configurable clock-skew window.
type TOTPVerifier struct {
	Issuer string
	Skew   uint // number of 30s steps accepted either side of now
}

// NewTOTPVerifier returns a verifier with the given issuer label and skew.
func NewTOTPVerifier(issuer string, skew int) *TOTPVerifier {
	if skew < 0 {
		skew = 0
	}
	return &TOTPVerifier{Issuer: issuer, Skew: uint(skew)}
}

// Verify reports whether code matches the secret at the given time within the
// skew window. Standard 6-digit, 30-second, SHA-1 parameters.
func (v *TOTPVerifier) Verify(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      v.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateSecret creates fresh enrollment material for the account and returns
// the base32 secret plus the otpauth:// provisioning URL.
func (v *TOTPVerifier) GenerateSecret(accountEmail string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.Issuer,
		AccountName: accountEmail,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}
