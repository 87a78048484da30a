package core

import "context"

// SignUpInput contains the data needed to register a new user
type SignUpInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Image    *string `json:"image,omitempty"`
}

// SignUpResult contains the newly created user and their first session
type SignUpResult struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
	Token   string   `json:"token"` // The raw token (not the hash)
}

// SignInInput contains the credentials for authentication.
// Provider selects the strategy; empty means "credential" (email/password).
// Code and State carry the OAuth authorization response or a one-time code.
type SignInInput struct {
	Provider string `json:"provider,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
	State    string `json:"state,omitempty"`

	// ChallengeID identifies a previously requested one-time code.
	ChallengeID string `json:"challengeId,omitempty"`
}

// SignInResult contains the authenticated user and their session.
// When a second factor is enrolled, Session and Token are empty and
// ChallengeID identifies the pending login to complete.
type SignInResult struct {
	User              *User    `json:"user"`
	Session           *Session `json:"session,omitempty"`
	Token             string   `json:"token,omitempty"` // The raw token (not the hash)
	TwoFactorRequired bool     `json:"twoFactorRequired,omitempty"`
	ChallengeID       string   `json:"challengeId,omitempty"`
}

// RefreshResult contains the rotated session and its new raw token
type RefreshResult struct {
	Session *Session `json:"session"`
	Token   string   `json:"token"`
}

// AuthProvider provides authentication operations for HTTP adapters
type AuthProvider interface {
	SignUp(ctx context.Context, input SignUpInput, ipAddress, userAgent string) (*SignUpResult, error)
	SignIn(ctx context.Context, input SignInInput, ipAddress, userAgent string) (*SignInResult, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (*SessionData, error)
	Refresh(ctx context.Context, token string) (*RefreshResult, error)

	// Verification flows. Challenges are delivered through the configured
	// Sender; the endpoints never echo codes back to the caller.
	RequestEmailVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, challengeID, code string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, challengeID, code, newPassword string) error
}
