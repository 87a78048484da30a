package core

import "context"

type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error

	// Query methods
	GetSessionByHash(ctx context.Context, tokenHash string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetUserSessions(ctx context.Context, userID string) ([]*Session, error)

	// Update
	UpdateSession(ctx context.Context, session *Session) error

	// Delete methods
	DeleteSessionByID(ctx context.Context, id string) error
	DeleteSessionByHash(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)

	// Cleanup
	DeleteExpiredSessions(ctx context.Context) (int, error)
}

type UserStorage interface {
	CreateUser(ctx context.Context, u *User) error

	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	UpdateUser(ctx context.Context, u *User) error

	DeleteUser(ctx context.Context, id string) error
}

type AccountStorage interface {
	CreateAccount(ctx context.Context, a *Account) error

	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountsByUserAndProvider(ctx context.Context, userID, providerID string) ([]*Account, error)
	// GetAccountByProvider resolves a provider-side identity (e.g. the OAuth
	// subject) to its linked account.
	GetAccountByProvider(ctx context.Context, providerID, accountID string) (*Account, error)

	UpdateAccount(ctx context.Context, a *Account) error

	DeleteAccount(ctx context.Context, id string) error
}

// VerificationStorage persists single-use challenges. Records are deleted
// on successful redemption; the verification service owns the
// load-check-delete sequence.
type VerificationStorage interface {
	CreateVerification(ctx context.Context, v *Verification) error

	GetVerificationByID(ctx context.Context, id string) (*Verification, error)

	// UpdateVerification persists attempt-counter changes.
	UpdateVerification(ctx context.Context, v *Verification) error

	DeleteVerification(ctx context.Context, id string) error
	DeleteExpiredVerifications(ctx context.Context) (int, error)
}

type AuthStorage interface {
	UserStorage
	AccountStorage
	SessionStorage
	VerificationStorage
}
