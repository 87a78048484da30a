package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatehouse-auth/gatehouse/metrics"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
)

// Sender delivers a verification challenge out of band (email, SMS, ...).
// challengeID and code together redeem the challenge; purpose is one of the
// Verification purposes.
type Sender func(ctx context.Context, identifier, challengeID, code, purpose string) error

type SessionConfig struct {
	// MaxAge is the session lifetime from issuance (or last renewal).
	MaxAge time.Duration

	// UpdateAge enables rolling renewal: when a session is verified more
	// than UpdateAge after its last touch, expiry is pushed out to
	// now+MaxAge. Zero disables renewal.
	UpdateAge time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge:    24 * time.Hour,
		UpdateAge: time.Hour,
	}
}

// VerificationConfig tunes one-time challenges (email verification,
// password reset, pending second-factor logins).
type VerificationConfig struct {
	TTL         time.Duration
	MaxAttempts int
	CodeDigits  int
}

func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{
		TTL:         15 * time.Minute,
		MaxAttempts: 5,
		CodeDigits:  6,
	}
}

type Config struct {
	Secret string

	Database AuthStorage

	HTTP HTTPProvider

	// Optional config
	Cache          Cache
	DisableCache   bool
	Session        *SessionConfig
	Verification   *VerificationConfig
	PasswordHasher crypto.PasswordHandler
	RateLimiter    RateLimiter
	Strategies     []Strategy
	Plugins        []Plugin
	Hooks          Hooks
	Sender         Sender
	Logger         *slog.Logger
	Metrics        *metrics.Registry
	BasePath       string
}
