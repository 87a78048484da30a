package core

import (
	"context"
	"log/slog"

	"github.com/gatehouse-auth/gatehouse/metrics"
)

// SessionIssuer lets plugins mint sessions after completing their own
// verification step (e.g. a second factor).
type SessionIssuer interface {
	Issue(ctx context.Context, userID, ipAddress, userAgent string) (*Session, string, error)
}

// SecondFactor gates session issuance during sign-in. When a registered
// second factor reports the user as enrolled, SignIn returns a pending
// challenge instead of a session.
type SecondFactor interface {
	ID() string
	Enrolled(ctx context.Context, userID string) (bool, error)
	// Begin creates the pending-login challenge and returns its ID.
	Begin(ctx context.Context, user *User) (string, error)
}

// PluginHost is the surface the auth service exposes to plugins at Init time.
// Metrics may return nil; the registry's methods are nil-safe.
type PluginHost interface {
	Storage() AuthStorage
	Sessions() SessionIssuer
	Logger() *slog.Logger
	Metrics() *metrics.Registry
	Secret() []byte
	SetSecondFactor(sf SecondFactor)
}

// Plugin extends the auth service with optional capabilities. Endpoints are
// mounted under the base path by the HTTP adapter.
type Plugin interface {
	ID() string
	Init(host PluginHost) error
	Endpoints() []Endpoint
}

// HookEvent describes the lifecycle event passed to hooks.
type HookEvent struct {
	User      *User
	Session   *Session
	Provider  string
	IPAddress string
	UserAgent string
}

// Hook observes or vetoes an auth lifecycle event. An error from a before
// hook aborts the operation; errors from after hooks are logged and ignored.
type Hook func(ctx context.Context, ev *HookEvent) error

// Hooks attach to auth service lifecycle events.
type Hooks struct {
	BeforeSignUp []Hook
	AfterSignUp  []Hook
	BeforeSignIn []Hook
	AfterSignIn  []Hook
	AfterSignOut []Hook
}
