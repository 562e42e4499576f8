package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

const confirmEmailPurpose = "email_confirm"

// SessionClaims holds JWT claims for the session grant handed to clients.
// SecurityStamp is compared against the account's current stamp by the
// liveness gate; a mismatch revokes the session.
type SessionClaims struct {
	jwt.RegisteredClaims
	SecurityStamp string `json:"security_stamp,omitempty"`
	AllowRefresh  bool   `json:"allow_refresh"`
	RedirectURI   string `json:"redirect_uri,omitempty"`
}

// ConfirmClaims holds JWT claims for the email-confirmation token. Subject is
// the email address; Purpose pins the token to confirmation so a session token
// can never confirm an address.
type ConfirmClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

// SessionGrant is the decoded result of a validated session token.
type SessionGrant struct {
	Subject       string
	SecurityStamp string
	AllowRefresh  bool
	RedirectURI   string
	ExpiresAt     time.Time
}

// TokenProvider issues and validates signed tokens using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	sessionTTL time.Duration
	confirmTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// sessionTTL bounds session grants; confirmTTL bounds email confirmation tokens.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, sessionTTL, confirmTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		sessionTTL: sessionTTL,
		confirmTTL: confirmTTL,
	}
}

// IssueSession issues a session token for the given subject. The account's
// current security stamp is embedded so the liveness gate can revoke the
// session after a credential change. redirectURI is carried untouched; the
// downstream token layer validates it before any redirect.
func (p *TokenProvider) IssueSession(subject, securityStamp string, allowRefresh bool, redirectURI string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.sessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SecurityStamp: securityStamp,
		AllowRefresh:  allowRefresh,
		RedirectURI:   redirectURI,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

// ValidateSession parses and validates a session token (signature, exp, iss, aud)
// and returns its decoded grant.
func (p *TokenProvider) ValidateSession(tokenString string) (*SessionGrant, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, p.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &SessionGrant{
		Subject:       claims.Subject,
		SecurityStamp: claims.SecurityStamp,
		AllowRefresh:  claims.AllowRefresh,
		RedirectURI:   claims.RedirectURI,
		ExpiresAt:     exp,
	}, nil
}

// IssueEmailConfirmation issues a purpose-scoped token that confirms ownership
// of the given email address.
func (p *TokenProvider) IssueEmailConfirmation(email string) (string, error) {
	now := time.Now().UTC()
	claims := ConfirmClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.confirmTTL)),
		},
		Purpose: confirmEmailPurpose,
	}
	return p.sign(claims)
}

// ValidateEmailConfirmation parses a confirmation token and returns the email
// it was issued for.
func (p *TokenProvider) ValidateEmailConfirmation(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ConfirmClaims{}, p.keyFunc)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ConfirmClaims)
	if !ok || !token.Valid || claims.Purpose != confirmEmailPurpose {
		return "", ErrInvalidToken
	}
	if err := p.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrInvalidToken
}

func (p *TokenProvider) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != p.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == p.audience {
			return nil
		}
	}
	return ErrInvalidToken
}
