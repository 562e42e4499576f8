// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AppOrigin is the externally visible base URL used to build email confirmation links.
	AppOrigin string `mapstructure:"APP_ORIGIN"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) used to sign session and confirmation tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key paired with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "identity-gateway").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "platform-clients").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// TokenLifetimeMinutes is the session grant lifetime in minutes.
	TokenLifetimeMinutes int `mapstructure:"TOKEN_LIFETIME_MINUTES"`
	// EmailTokenLifetimeMinutes is the email confirmation token lifetime in minutes.
	EmailTokenLifetimeMinutes int `mapstructure:"EMAIL_TOKEN_LIFETIME_MINUTES"`

	// LockoutOnFailure enables locking an account after repeated failed password attempts.
	// Both observed policy variants are supported; deployments choose.
	LockoutOnFailure bool `mapstructure:"LOCKOUT_ON_FAILURE"`
	// LockoutSpanMinutes is how long a lockout lasts once triggered.
	LockoutSpanMinutes int `mapstructure:"LOCKOUT_SPAN_MINUTES"`
	// MaxFailedAccessAttempts is the failed-attempt count at which lockout triggers.
	MaxFailedAccessAttempts int `mapstructure:"MAX_FAILED_ACCESS_ATTEMPTS"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// TOTPIssuer is the issuer label for authenticator enrollment.
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`
	// TOTPSkew is the number of 30s steps of clock skew accepted when verifying codes.
	TOTPSkew int `mapstructure:"TOTP_SKEW"`
	// ChallengeTTLMinutes is how long a pending two-factor challenge stays valid.
	ChallengeTTLMinutes int `mapstructure:"CHALLENGE_TTL_MINUTES"`

	// SMTPHost, SMTPPort, SMTPUsername, SMTPPassword configure the confirmation email transport.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// EmailFromName is the display name on outgoing confirmation mail.
	EmailFromName string `mapstructure:"EMAIL_FROM_NAME"`
	// EmailFromAddress is the envelope sender for outgoing confirmation mail.
	EmailFromAddress string `mapstructure:"EMAIL_FROM_ADDRESS"`

	// ProfileAPIURL is the base URL of the external profile service that receives new registrations.
	ProfileAPIURL string `mapstructure:"PROFILE_API_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ORIGIN", "http://localhost:8080")
	v.SetDefault("JWT_ISSUER", "identity-gateway")
	v.SetDefault("JWT_AUDIENCE", "platform-clients")
	v.SetDefault("TOKEN_LIFETIME_MINUTES", 120)
	v.SetDefault("EMAIL_TOKEN_LIFETIME_MINUTES", 1440)
	v.SetDefault("LOCKOUT_ON_FAILURE", true)
	v.SetDefault("LOCKOUT_SPAN_MINUTES", 5)
	v.SetDefault("MAX_FAILED_ACCESS_ATTEMPTS", 3)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TOTP_ISSUER", "identity-gateway")
	v.SetDefault("TOTP_SKEW", 1)
	v.SetDefault("CHALLENGE_TTL_MINUTES", 10)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM_NAME", "Social Network")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@localhost")
	v.SetDefault("PROFILE_API_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.TokenLifetimeMinutes <= 0 {
		return nil, errors.New("config: TOKEN_LIFETIME_MINUTES must be positive")
	}
	if cfg.LockoutSpanMinutes <= 0 {
		return nil, errors.New("config: LOCKOUT_SPAN_MINUTES must be positive")
	}
	if cfg.MaxFailedAccessAttempts <= 0 {
		return nil, errors.New("config: MAX_FAILED_ACCESS_ATTEMPTS must be positive")
	}

	return &cfg, nil
}

// TokenLifetime returns the session grant lifetime as a duration.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}

// EmailTokenLifetime returns the confirmation token lifetime as a duration.
func (c *Config) EmailTokenLifetime() time.Duration {
	return time.Duration(c.EmailTokenLifetimeMinutes) * time.Minute
}

// LockoutSpan returns how long a triggered lockout lasts.
func (c *Config) LockoutSpan() time.Duration {
	return time.Duration(c.LockoutSpanMinutes) * time.Minute
}

// ChallengeTTL returns the pending two-factor challenge lifetime.
func (c *Config) ChallengeTTL() time.Duration {
	return time.Duration(c.ChallengeTTLMinutes) * time.Minute
}
