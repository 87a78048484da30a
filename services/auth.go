package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/metrics"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
)

// AuthServiceOptions carries the optional collaborators of the auth
// service. Zero values are safe: no rate limiting, no extra strategies,
// no hooks, default logger.
type AuthServiceOptions struct {
	Strategies   []core.Strategy
	RateLimiter  core.RateLimiter
	Hooks        core.Hooks
	Verification *VerificationService
	Logger       *slog.Logger
	Metrics      *metrics.Registry
	Secret       []byte
}

// AuthService orchestrates sign-up, sign-in, session lifecycle, and
// verification flows. Strategies resolve users; sessions, hooks, rate
// limits, and second factors are applied here so every strategy gets the
// same treatment.
type AuthService struct {
	db            core.AuthStorage
	passwords     crypto.PasswordHandler
	sessions      *SessionManager
	strategies    *StrategyRegistry
	verifications *VerificationService
	limiter       core.RateLimiter
	hooks         core.Hooks
	logger        *slog.Logger
	metrics       *metrics.Registry
	secret        []byte
	secondFactor  core.SecondFactor
}

var (
	_ core.AuthProvider = (*AuthService)(nil)
	_ core.PluginHost   = (*AuthService)(nil)
)

func NewAuthService(db core.AuthStorage, sessions *SessionManager, passwords crypto.PasswordHandler, opts *AuthServiceOptions) (*AuthService, error) {
	if opts == nil {
		opts = &AuthServiceOptions{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &AuthService{
		db:            db,
		passwords:     passwords,
		sessions:      sessions,
		strategies:    NewStrategyRegistry(),
		verifications: opts.Verification,
		limiter:       opts.RateLimiter,
		hooks:         opts.Hooks,
		logger:        logger,
		metrics:       opts.Metrics,
		secret:        opts.Secret,
	}

	// The credential strategy is always available.
	password, err := NewPasswordStrategy(db, passwords)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential strategy: %w", err)
	}
	if err := s.strategies.Register(password); err != nil {
		return nil, err
	}

	for _, strategy := range opts.Strategies {
		if err := s.strategies.Register(strategy); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Strategies exposes the registry so the facade can collect strategy
// endpoints for route registration.
func (s *AuthService) Strategies() *StrategyRegistry { return s.strategies }

// PluginHost surface

func (s *AuthService) Storage() core.AuthStorage    { return s.db }
func (s *AuthService) Sessions() core.SessionIssuer { return s.sessions }
func (s *AuthService) Logger() *slog.Logger         { return s.logger }
func (s *AuthService) Metrics() *metrics.Registry   { return s.metrics }
func (s *AuthService) Secret() []byte               { return s.secret }
func (s *AuthService) SetSecondFactor(sf core.SecondFactor) {
	s.secondFactor = sf
}

// SignUp registers a new user with email and password
func (s *AuthService) SignUp(ctx context.Context, input core.SignUpInput, ipAddress, userAgent string) (*core.SignUpResult, error) {
	if err := s.allow(ctx, "sign-up:"+ipAddress); err != nil {
		return nil, err
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := ValidateEmail(input.Email); err != nil {
		s.count(metrics.SignUpFailure)
		return nil, err
	}
	if err := ValidatePassword(input.Password); err != nil {
		s.count(metrics.SignUpFailure)
		return nil, err
	}

	// Step 1: Check if user already exists
	existingUser, err := s.db.GetUserByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		s.count(metrics.SignUpFailure)
		return nil, core.ErrUserExists
	}

	// Step 2: Hash the password
	hashedPassword, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &core.User{
		Email:         input.Email,
		EmailVerified: false,
		Name:          input.Name,
		Image:         input.Image,
	}

	if err := s.runBefore(ctx, s.hooks.BeforeSignUp, &core.HookEvent{
		User:      user,
		Provider:  ProviderCredential,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}); err != nil {
		s.count(metrics.SignUpFailure)
		return nil, err
	}

	// Step 3: Create the user
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Step 4: Create a credential account for this user
	account := &core.Account{
		UserID:     user.ID,
		ProviderID: ProviderCredential,
		AccountID:  user.ID, // for the credential provider, account ID = user ID
		Password:   &hashedPassword,
	}

	if err := s.db.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Step 5: Create a session for the new user
	sessionResult, err := s.sessions.Create(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.count(metrics.SignUpSuccess)
	s.runAfter(ctx, s.hooks.AfterSignUp, &core.HookEvent{
		User:      user,
		Session:   sessionResult.Session,
		Provider:  ProviderCredential,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})

	return &core.SignUpResult{
		User:    user,
		Session: sessionResult.Session,
		Token:   sessionResult.Token,
	}, nil
}

// SignIn authenticates a user through the selected strategy. An empty
// provider means email/password. When a second factor is enrolled, the
// result carries a challenge ID instead of a session.
func (s *AuthService) SignIn(ctx context.Context, input core.SignInInput, ipAddress, userAgent string) (*core.SignInResult, error) {
	limitKey := "sign-in:" + ipAddress
	if err := s.allow(ctx, limitKey); err != nil {
		return nil, err
	}

	providerID := input.Provider
	if providerID == "" {
		providerID = ProviderCredential
	}

	strategy, err := s.strategies.Get(providerID)
	if err != nil {
		s.count(metrics.SignInFailure)
		return nil, err
	}

	user, err := strategy.Authenticate(ctx, core.Credential{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		Password:    input.Password,
		Code:        input.Code,
		State:       input.State,
		ChallengeID: input.ChallengeID,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
	})
	if err != nil {
		s.count(metrics.SignInFailure)
		return nil, err
	}

	s.resetLimit(ctx, limitKey)

	if err := s.runBefore(ctx, s.hooks.BeforeSignIn, &core.HookEvent{
		User:      user,
		Provider:  providerID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}); err != nil {
		s.count(metrics.SignInFailure)
		return nil, err
	}

	// Second-factor gate: enrolled users get a pending challenge, not a
	// session. The factor's own endpoint completes the login.
	if s.secondFactor != nil {
		enrolled, err := s.secondFactor.Enrolled(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check second factor: %w", err)
		}
		if enrolled {
			challengeID, err := s.secondFactor.Begin(ctx, user)
			if err != nil {
				return nil, fmt.Errorf("failed to begin second factor: %w", err)
			}
			s.count(metrics.TwoFactorRequired)
			return &core.SignInResult{
				User:              user,
				TwoFactorRequired: true,
				ChallengeID:       challengeID,
			}, nil
		}
	}

	sessionResult, err := s.sessions.Create(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.count(metrics.SignInSuccess)
	s.runAfter(ctx, s.hooks.AfterSignIn, &core.HookEvent{
		User:      user,
		Session:   sessionResult.Session,
		Provider:  providerID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})

	return &core.SignInResult{
		User:    user,
		Session: sessionResult.Session,
		Token:   sessionResult.Token,
	}, nil
}

// SignOut invalidates the current session
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	session, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return err
	}

	if err := s.sessions.Destroy(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.count(metrics.SignOut)
	s.runAfter(ctx, s.hooks.AfterSignOut, &core.HookEvent{
		Session:   session,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
	})
	return nil
}

// GetSession retrieves session data by token
func (s *AuthService) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	session, err := s.sessions.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrSessionExpired) {
			s.count(metrics.SessionExpired)
		}
		return nil, err
	}

	user, err := s.db.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	s.count(metrics.SessionVerified)
	return &core.SessionData{
		User:    user,
		Session: session,
	}, nil
}

// Refresh rotates the session token and extends its expiry
func (s *AuthService) Refresh(ctx context.Context, token string) (*core.RefreshResult, error) {
	result, err := s.sessions.Refresh(ctx, token)
	if err != nil {
		return nil, err
	}
	s.count(metrics.SessionRefreshed)
	return result, nil
}

// RequestEmailVerification issues an email-verification challenge. Unknown
// addresses succeed silently so the endpoint cannot be used to discover
// which emails are registered.
func (s *AuthService) RequestEmailVerification(ctx context.Context, email string) error {
	return s.requestChallenge(ctx, email, PurposeEmailVerification)
}

// VerifyEmail redeems an email-verification challenge and marks the user's
// email as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, challengeID, code string) error {
	if s.verifications == nil {
		return core.ErrNotImplemented
	}

	record, err := s.verifications.Consume(ctx, challengeID, code, PurposeEmailVerification)
	if err != nil {
		return err
	}

	user, err := s.db.GetUserByEmail(ctx, record.Identifier)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	if user.EmailVerified {
		return nil
	}

	user.EmailVerified = true
	if err := s.db.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a password-reset challenge. Unknown addresses
// succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.requestChallenge(ctx, email, PurposePasswordReset)
}

// ResetPassword redeems a password-reset challenge, replaces the stored
// password hash, and revokes every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, challengeID, code, newPassword string) error {
	if s.verifications == nil {
		return core.ErrNotImplemented
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	record, err := s.verifications.Consume(ctx, challengeID, code, PurposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.db.GetUserByEmail(ctx, record.Identifier)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	hashed, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	accounts, err := s.db.GetAccountsByUserAndProvider(ctx, user.ID, ProviderCredential)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if len(accounts) == 0 {
		return core.ErrAccountNotLinked
	}

	account := accounts[0]
	account.Password = &hashed
	if err := s.db.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	// A reset invalidates every open session for the user.
	if _, err := s.sessions.DestroyAllUserSessions(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}

func (s *AuthService) requestChallenge(ctx context.Context, email, purpose string) error {
	if s.verifications == nil {
		return core.ErrNotImplemented
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return err
	}

	if err := s.allow(ctx, "challenge:"+email); err != nil {
		return err
	}

	if _, err := s.db.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	_, _, err := s.verifications.Issue(ctx, email, purpose)
	return err
}

// allow consults the rate limiter. Over-budget requests fail closed;
// backend failures fail open with a warning so an unreachable limiter
// store does not take sign-in down with it.
func (s *AuthService) allow(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Allow(ctx, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrRateLimited) {
		s.count(metrics.SignInRateLimited)
		return core.ErrRateLimited
	}
	s.logger.Warn("rate limiter unavailable", slog.String("key", key), slog.Any("error", err))
	return nil
}

func (s *AuthService) resetLimit(ctx context.Context, key string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.Warn("rate limiter reset failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *AuthService) runBefore(ctx context.Context, hooks []core.Hook, ev *core.HookEvent) error {
	for _, hook := range hooks {
		if err := hook(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) runAfter(ctx context.Context, hooks []core.Hook, ev *core.HookEvent) {
	for _, hook := range hooks {
		if err := hook(ctx, ev); err != nil {
			s.logger.Warn("after hook failed", slog.Any("error", err))
		}
	}
}

func (s *AuthService) count(id metrics.MetricID) {
	s.metrics.Inc(id)
}
