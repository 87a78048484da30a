package services

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
)

// ProviderCredential is the provider id of the built-in email/password
// strategy.
const ProviderCredential = "credential"

// StrategyRegistry holds the authentication strategies composed for a
// deployment, keyed by provider id with conflict detection.
type StrategyRegistry struct {
	strategies map[string]core.Strategy
	order      []string
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		strategies: make(map[string]core.Strategy),
	}
}

// Register adds a strategy. Returns an error when the provider id is
// already taken.
func (r *StrategyRegistry) Register(s core.Strategy) error {
	id := s.ID()
	if _, exists := r.strategies[id]; exists {
		return fmt.Errorf("%w: %s", core.ErrProviderConflict, id)
	}
	r.strategies[id] = s
	r.order = append(r.order, id)
	return nil
}

// Get resolves a strategy by provider id.
func (r *StrategyRegistry) Get(id string) (core.Strategy, error) {
	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrProviderNotFound, id)
	}
	return s, nil
}

// Endpoints collects routes contributed by registered strategies, in
// registration order.
func (r *StrategyRegistry) Endpoints() []core.Endpoint {
	var endpoints []core.Endpoint
	for _, id := range r.order {
		if provider, ok := r.strategies[id].(core.StrategyEndpoints); ok {
			endpoints = append(endpoints, provider.Endpoints()...)
		}
	}
	return endpoints
}

// PasswordStrategy authenticates against the credential account's stored
// password hash.
type PasswordStrategy struct {
	db        core.AuthStorage
	passwords crypto.PasswordHandler

	// dummyHash is verified against when the user lookup misses, keeping
	// response timing flat for unknown emails.
	dummyHash string
}

var _ core.Strategy = (*PasswordStrategy)(nil)

func NewPasswordStrategy(db core.AuthStorage, passwords crypto.PasswordHandler) (*PasswordStrategy, error) {
	pair, err := crypto.GenerateHashedToken()
	if err != nil {
		return nil, err
	}
	dummy, err := passwords.Hash(pair.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &PasswordStrategy{db: db, passwords: passwords, dummyHash: dummy}, nil
}

func (s *PasswordStrategy) ID() string { return ProviderCredential }

func (s *PasswordStrategy) Authenticate(ctx context.Context, cred core.Credential) (*core.User, error) {
	if err := ValidateEmail(cred.Email); err != nil {
		return nil, err
	}
	if cred.Password == "" {
		return nil, core.ErrPasswordRequired
	}

	user, err := s.db.GetUserByEmail(ctx, cred.Email)
	if err != nil {
		if err == core.ErrUserNotFound {
			// Burn a verification anyway so timing does not reveal
			// whether the email exists
			_, _ = s.passwords.Verify(cred.Password, s.dummyHash)
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	accounts, err := s.db.GetAccountsByUserAndProvider(ctx, user.ID, ProviderCredential)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if len(accounts) == 0 || accounts[0].Password == nil {
		_, _ = s.passwords.Verify(cred.Password, s.dummyHash)
		return nil, core.ErrInvalidCredentials
	}

	valid, err := s.passwords.Verify(cred.Password, *accounts[0].Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}

	return user, nil
}

// ValidateEmail rejects empty and syntactically invalid addresses.
func ValidateEmail(email string) error {
	if email == "" {
		return core.ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return core.ErrInvalidEmail
	}
	return nil
}

// Password length policy for sign-up and reset.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return core.ErrPasswordRequired
	case len(password) < MinPasswordLength:
		return core.ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return core.ErrPasswordTooLong
	}
	return nil
}
