// Package gatehouse is the public surface of the library. It re-exports
// the core types and wires the configured storage, HTTP adapter,
// strategies, and plugins into a running auth service.
package gatehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
	"github.com/gatehouse-auth/gatehouse/services"
)

// interfaces
type (
	AuthStorage = core.AuthStorage
	Cache       = core.Cache

	HTTPProvider = core.HTTPProvider
	RateLimiter  = core.RateLimiter

	Strategy     = core.Strategy
	Plugin       = core.Plugin
	SecondFactor = core.SecondFactor

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	Config             = core.Config
	SessionConfig      = core.SessionConfig
	VerificationConfig = core.VerificationConfig
	CacheConfig        = core.CacheConfig
	Hooks              = core.Hooks
	HookEvent          = core.HookEvent
	Endpoint           = core.Endpoint

	OAuthProviderConfig = services.OAuthProviderConfig
)

type (
	User         = core.User
	Account      = core.Account
	Session      = core.Session
	Verification = core.Verification
	SessionData  = core.SessionData
	SignUpInput  = core.SignUpInput
	SignInInput  = core.SignInInput
	SignInResult = core.SignInResult
	CacheStats   = core.CacheStats
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache          = core.NewInMemoryCache
	NewArgon2                 = crypto.NewArgon2
	DefaultSessionConfig      = core.DefaultSessionConfig
	DefaultVerificationConfig = core.DefaultVerificationConfig
	NewOAuthStrategy          = services.NewOAuthStrategy
	NewEmailOTPStrategy       = services.NewEmailOTPStrategy
	GoogleProvider            = services.GoogleProvider
	GitHubProvider            = services.GitHubProvider
)

var (
	ErrUserExists         = core.ErrUserExists
	ErrUserNotFound       = core.ErrUserNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrSessionNotFound   = core.ErrSessionNotFound
	ErrSessionExpired    = core.ErrSessionExpired
	ErrCacheNotFound     = core.ErrCacheNotFound
)

var (
	ErrProviderNotFound  = core.ErrProviderNotFound
	ErrInvalidOAuthState = core.ErrInvalidOAuthState
	ErrAccountNotLinked  = core.ErrAccountNotLinked
)

var (
	ErrVerificationNotFound = core.ErrVerificationNotFound
	ErrVerificationInvalid  = core.ErrVerificationInvalid
	ErrTooManyAttempts      = core.ErrTooManyAttempts
	ErrRateLimited          = core.ErrRateLimited
)

var (
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrEmailRequired     = core.ErrEmailRequired
	ErrPasswordRequired  = core.ErrPasswordRequired
	ErrPasswordTooShort  = core.ErrPasswordTooShort
	ErrPasswordTooLong   = core.ErrPasswordTooLong
	ErrInvalidEmail      = core.ErrInvalidEmail
)

var (
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
)

var (
	ErrNotImplemented = core.ErrNotImplemented
)

// Gatehouse is the assembled auth system.
type Gatehouse struct {
	Auth          *services.AuthService
	Sessions      *services.SessionManager
	Verifications *services.VerificationService
	BasePath      string

	endpoints []core.Endpoint
	logger    *slog.Logger
}

// Endpoints returns every mounted route: base, strategy, and plugin.
func (g *Gatehouse) Endpoints() []core.Endpoint {
	out := make([]core.Endpoint, len(g.endpoints))
	copy(out, g.endpoints)
	return out
}

// CleanupExpired removes expired sessions and verification challenges.
// Call it periodically; neither store requires it for correctness, but it
// keeps table sizes bounded.
func (g *Gatehouse) CleanupExpired(ctx context.Context) error {
	sessions, err := g.Sessions.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("session cleanup: %w", err)
	}
	var challenges int
	if g.Verifications != nil {
		challenges, err = g.Verifications.CleanupExpired(ctx)
		if err != nil {
			return fmt.Errorf("verification cleanup: %w", err)
		}
	}
	g.logger.Debug("expired records removed",
		"sessions", sessions,
		"verifications", challenges,
	)
	return nil
}

func New(config Config) (*Gatehouse, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	cache := config.Cache
	if cache == nil && !config.DisableCache {
		cache = NewInMemoryCache(CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 500,
		})
	}

	sessionConfig := config.Session
	if sessionConfig == nil {
		c := DefaultSessionConfig()
		sessionConfig = &c
	}

	verificationConfig := config.Verification
	if verificationConfig == nil {
		c := DefaultVerificationConfig()
		verificationConfig = &c
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	sessionManager := services.NewSessionManager(*sessionConfig, config.Database, cache)

	// Verification flows need a delivery channel; without a Sender the
	// related endpoints report not-implemented.
	var verificationService *services.VerificationService
	if config.Sender != nil {
		verificationService = services.NewVerificationService(
			config.Database,
			*verificationConfig,
			config.Sender,
			config.Metrics,
		)
	}

	auth, err := services.NewAuthService(config.Database, sessionManager, passwordHasher, &services.AuthServiceOptions{
		Strategies:   config.Strategies,
		RateLimiter:  config.RateLimiter,
		Hooks:        config.Hooks,
		Verification: verificationService,
		Logger:       logger,
		Metrics:      config.Metrics,
		Secret:       []byte(config.Secret),
	})
	if err != nil {
		return nil, err
	}

	registry := services.NewEndpointRegistry()
	if err := registry.Register("base", services.BaseEndpoints()...); err != nil {
		return nil, err
	}
	if err := registry.Register("strategies", auth.Strategies().Endpoints()...); err != nil {
		return nil, err
	}
	for _, plugin := range config.Plugins {
		if err := registry.RegisterPlugin(plugin, auth); err != nil {
			return nil, err
		}
	}

	gatehouse := &Gatehouse{
		Auth:          auth,
		Sessions:      sessionManager,
		Verifications: verificationService,
		BasePath:      basePath,
		endpoints:     registry.All(),
		logger:        logger,
	}

	// Base routes carry nil handlers; adapters mount their own and wrap
	// the rest generically.
	var extra []core.Endpoint
	for _, ep := range gatehouse.endpoints {
		if ep.Handler != nil {
			extra = append(extra, ep)
		}
	}
	if err := config.HTTP.RegisterRoutes(auth, basePath, extra); err != nil {
		return nil, err
	}

	return gatehouse, nil
}
