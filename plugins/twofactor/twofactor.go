// Package twofactor adds TOTP-based two-factor authentication. Enrolled
// users must complete a pending-login challenge with an authenticator code
// before a session is issued.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/metrics"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
)

// PluginID is the provider id under which TOTP secrets are stored.
const PluginID = "two-factor"

const (
	purposeEnroll = "two-factor-enroll"
	purposeLogin  = "two-factor-login"

	enrollIDPrefix = "2fa-enroll:"
)

type Config struct {
	// Issuer labels provisioning URIs in authenticator apps.
	Issuer string

	// ChallengeTTL bounds both enrollment confirmation and pending logins.
	ChallengeTTL time.Duration

	// MaxAttempts is the wrong-code budget per pending login.
	MaxAttempts int

	// Skew is the accepted clock drift in 30s steps either side of now.
	Skew int
}

func DefaultConfig() Config {
	return Config{
		Issuer:       "gatehouse",
		ChallengeTTL: 5 * time.Minute,
		MaxAttempts:  5,
		Skew:         1,
	}
}

// Plugin implements core.Plugin and core.SecondFactor.
type Plugin struct {
	config Config
	totp   *crypto.TOTP

	db       core.AuthStorage
	sessions core.SessionIssuer
	logger   *slog.Logger
	metrics  *metrics.Registry
}

var (
	_ core.Plugin       = (*Plugin)(nil)
	_ core.SecondFactor = (*Plugin)(nil)
)

func New(config Config) *Plugin {
	defaults := DefaultConfig()
	if config.Issuer == "" {
		config.Issuer = defaults.Issuer
	}
	if config.ChallengeTTL <= 0 {
		config.ChallengeTTL = defaults.ChallengeTTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Skew < 0 {
		config.Skew = defaults.Skew
	}

	return &Plugin{
		config: config,
		totp: crypto.NewTOTP(crypto.TOTPConfig{
			Issuer: config.Issuer,
			Skew:   config.Skew,
		}),
	}
}

func (p *Plugin) ID() string { return PluginID }

func (p *Plugin) Init(host core.PluginHost) error {
	p.db = host.Storage()
	p.sessions = host.Sessions()
	p.logger = host.Logger()
	p.metrics = host.Metrics()
	host.SetSecondFactor(p)
	return nil
}

// Enrolled reports whether the user has a confirmed TOTP secret.
func (p *Plugin) Enrolled(ctx context.Context, userID string) (bool, error) {
	accounts, err := p.db.GetAccountsByUserAndProvider(ctx, userID, PluginID)
	if err != nil {
		return false, err
	}
	return len(accounts) > 0, nil
}

// Begin creates the pending-login challenge for an enrolled user and
// returns its ID. Called by the auth service during sign-in.
func (p *Plugin) Begin(ctx context.Context, user *core.User) (string, error) {
	challenge := &core.Verification{
		ID:         uuid.NewString(),
		Identifier: user.ID,
		Purpose:    purposeLogin,
		ExpiresAt:  time.Now().Add(p.config.ChallengeTTL),
		CreatedAt:  time.Now(),
	}
	if err := p.db.CreateVerification(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to create login challenge: %w", err)
	}
	return challenge.ID, nil
}

// EnrollResult carries the material the user needs to set up their
// authenticator app. The secret is shown once.
type EnrollResult struct {
	Secret       string `json:"secret"`
	ProvisionURI string `json:"provisionUri"`
}

// Enroll generates a fresh secret for the user and stores it as a pending
// enrollment. The secret does not gate logins until Confirm succeeds.
func (p *Plugin) Enroll(ctx context.Context, user *core.User) (*EnrollResult, error) {
	enrolled, err := p.Enrolled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	_, secretBase32, err := p.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	// One pending enrollment per user; restarting replaces it.
	pendingID := enrollIDPrefix + user.ID
	_ = p.db.DeleteVerification(ctx, pendingID)

	pending := &core.Verification{
		ID:         pendingID,
		Identifier: user.ID,
		ValueHash:  secretBase32,
		Purpose:    purposeEnroll,
		ExpiresAt:  time.Now().Add(p.config.ChallengeTTL),
		CreatedAt:  time.Now(),
	}
	if err := p.db.CreateVerification(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to store pending enrollment: %w", err)
	}

	return &EnrollResult{
		Secret:       secretBase32,
		ProvisionURI: p.totp.ProvisionURI(secretBase32, user.Email),
	}, nil
}

// Confirm activates a pending enrollment once the user proves they hold
// the secret by submitting a current code.
func (p *Plugin) Confirm(ctx context.Context, userID, code string) error {
	pending, err := p.db.GetVerificationByID(ctx, enrollIDPrefix+userID)
	if err != nil {
		return ErrNotEnrolling
	}
	if pending.Purpose != purposeEnroll || time.Now().After(pending.ExpiresAt) {
		_ = p.db.DeleteVerification(ctx, pending.ID)
		return ErrNotEnrolling
	}

	secret, err := crypto.DecodeTOTPSecret(pending.ValueHash)
	if err != nil {
		return fmt.Errorf("corrupt pending secret: %w", err)
	}

	ok, counter, err := p.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrVerificationInvalid
	}

	lastCounter := strconv.FormatInt(counter, 10)
	if err := p.db.CreateAccount(ctx, &core.Account{
		UserID:      userID,
		ProviderID:  PluginID,
		AccountID:   userID,
		Password:    &pending.ValueHash,
		AccessToken: &lastCounter,
	}); err != nil {
		return fmt.Errorf("failed to activate enrollment: %w", err)
	}

	_ = p.db.DeleteVerification(ctx, pending.ID)
	return nil
}

// Verify completes a pending login: a correct authenticator code redeems
// the challenge and issues the withheld session.
func (p *Plugin) Verify(ctx context.Context, challengeID, code, ipAddress, userAgent string) (*core.SignInResult, error) {
	challenge, err := p.db.GetVerificationByID(ctx, challengeID)
	if err != nil {
		return nil, core.ErrVerificationNotFound
	}
	if challenge.Purpose != purposeLogin {
		return nil, core.ErrVerificationNotFound
	}
	if time.Now().After(challenge.ExpiresAt) {
		_ = p.db.DeleteVerification(ctx, challengeID)
		return nil, core.ErrVerificationNotFound
	}

	account, secret, err := p.enrolledSecret(ctx, challenge.Identifier)
	if err != nil {
		return nil, err
	}

	ok, counter, err := p.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if ok && p.isReplay(account, counter) {
		ok = false
	}
	if !ok {
		p.metrics.Inc(metrics.TwoFactorFailure)
		challenge.Attempts++
		if challenge.Attempts >= p.config.MaxAttempts {
			_ = p.db.DeleteVerification(ctx, challengeID)
			return nil, core.ErrTooManyAttempts
		}
		_ = p.db.UpdateVerification(ctx, challenge)
		return nil, core.ErrVerificationInvalid
	}

	// Record the accepted counter so the same code cannot be replayed.
	lastCounter := strconv.FormatInt(counter, 10)
	account.AccessToken = &lastCounter
	if err := p.db.UpdateAccount(ctx, account); err != nil {
		p.logger.Warn("failed to record totp counter", slog.Any("error", err))
	}

	if err := p.db.DeleteVerification(ctx, challengeID); err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	user, err := p.db.GetUserByID(ctx, challenge.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	session, token, err := p.sessions.Issue(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	p.metrics.Inc(metrics.TwoFactorSuccess)
	return &core.SignInResult{
		User:    user,
		Session: session,
		Token:   token,
	}, nil
}

// Disable removes the user's TOTP enrollment. A current code is required
// so a hijacked session cannot silently switch the factor off.
func (p *Plugin) Disable(ctx context.Context, userID, code string) error {
	account, secret, err := p.enrolledSecret(ctx, userID)
	if err != nil {
		return err
	}

	ok, _, err := p.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrVerificationInvalid
	}

	return p.db.DeleteAccount(ctx, account.ID)
}

func (p *Plugin) enrolledSecret(ctx context.Context, userID string) (*core.Account, []byte, error) {
	accounts, err := p.db.GetAccountsByUserAndProvider(ctx, userID, PluginID)
	if err != nil {
		return nil, nil, err
	}
	if len(accounts) == 0 || accounts[0].Password == nil {
		return nil, nil, ErrNotEnrolled
	}

	secret, err := crypto.DecodeTOTPSecret(*accounts[0].Password)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt totp secret: %w", err)
	}
	return accounts[0], secret, nil
}

func (p *Plugin) isReplay(account *core.Account, counter int64) bool {
	if account.AccessToken == nil {
		return false
	}
	last, err := strconv.ParseInt(*account.AccessToken, 10, 64)
	if err != nil {
		return false
	}
	return counter <= last
}

var (
	ErrAlreadyEnrolled = errors.New("two-factor already enrolled")
	ErrNotEnrolling    = errors.New("no pending two-factor enrollment")
	ErrNotEnrolled     = errors.New("two-factor not enrolled")
)
