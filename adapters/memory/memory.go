// Package memory provides an in-memory storage adapter. Intended for
// development, examples, and tests; nothing survives a restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-auth/gatehouse/core"
)

// Adapter implements core.AuthStorage with maps behind a single mutex.
type Adapter struct {
	mu            sync.RWMutex
	users         map[string]*core.User
	accounts      map[string]*core.Account
	sessions      map[string]*core.Session // keyed by token hash
	verifications map[string]*core.Verification
}

var _ core.AuthStorage = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{
		users:         make(map[string]*core.User),
		accounts:      make(map[string]*core.Account),
		sessions:      make(map[string]*core.Session),
		verifications: make(map[string]*core.Verification),
	}
}

// UserStorage

func (a *Adapter) CreateUser(_ context.Context, u *core.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, existing := range a.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.ErrUserExists
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	copied := *u
	a.users[u.ID] = &copied
	return nil
}

func (a *Adapter) GetUserByID(_ context.Context, id string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (a *Adapter) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, u := range a.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (a *Adapter) UpdateUser(_ context.Context, u *core.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[u.ID]; !ok {
		return core.ErrUserNotFound
	}
	u.UpdatedAt = time.Now()
	copied := *u
	a.users[u.ID] = &copied
	return nil
}

func (a *Adapter) DeleteUser(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[id]; !ok {
		return core.ErrUserNotFound
	}
	delete(a.users, id)
	return nil
}

// AccountStorage

func (a *Adapter) CreateAccount(_ context.Context, acc *core.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	copied := *acc
	a.accounts[acc.ID] = &copied
	return nil
}

func (a *Adapter) GetAccountByID(_ context.Context, id string) (*core.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotLinked
	}
	copied := *acc
	return &copied, nil
}

func (a *Adapter) GetAccountsByUserAndProvider(_ context.Context, userID, providerID string) ([]*core.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var accounts []*core.Account
	for _, acc := range a.accounts {
		if acc.UserID == userID && acc.ProviderID == providerID {
			copied := *acc
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

func (a *Adapter) GetAccountByProvider(_ context.Context, providerID, accountID string) (*core.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, acc := range a.accounts {
		if acc.ProviderID == providerID && acc.AccountID == accountID {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, core.ErrAccountNotLinked
}

func (a *Adapter) UpdateAccount(_ context.Context, acc *core.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[acc.ID]; !ok {
		return core.ErrAccountNotLinked
	}
	acc.UpdatedAt = time.Now()
	copied := *acc
	a.accounts[acc.ID] = &copied
	return nil
}

func (a *Adapter) DeleteAccount(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[id]; !ok {
		return core.ErrAccountNotLinked
	}
	delete(a.accounts, id)
	return nil
}

// SessionStorage

func (a *Adapter) CreateSession(_ context.Context, s *core.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *s
	a.sessions[s.TokenHash] = &copied
	return nil
}

func (a *Adapter) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (a *Adapter) GetSessionByID(_ context.Context, id string) (*core.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.sessions {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (a *Adapter) GetUserSessions(_ context.Context, userID string) ([]*core.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var sessions []*core.Session
	for _, s := range a.sessions {
		if s.UserID == userID {
			copied := *s
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

func (a *Adapter) UpdateSession(_ context.Context, s *core.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for hash, existing := range a.sessions {
		if existing.ID == s.ID {
			// Token rotation moves the record to its new hash key.
			if hash != s.TokenHash {
				delete(a.sessions, hash)
			}
			copied := *s
			a.sessions[s.TokenHash] = &copied
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (a *Adapter) DeleteSessionByID(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for hash, s := range a.sessions {
		if s.ID == id {
			delete(a.sessions, hash)
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (a *Adapter) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[tokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	delete(a.sessions, tokenHash)
	return nil
}

func (a *Adapter) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	count := 0
	for hash, s := range a.sessions {
		if s.UserID == userID {
			delete(a.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (a *Adapter) DeleteExpiredSessions(_ context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	count := 0
	for hash, s := range a.sessions {
		if s.ExpiresAt.Before(now) {
			delete(a.sessions, hash)
			count++
		}
	}
	return count, nil
}

// VerificationStorage

func (a *Adapter) CreateVerification(_ context.Context, v *core.Verification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *v
	a.verifications[v.ID] = &copied
	return nil
}

func (a *Adapter) GetVerificationByID(_ context.Context, id string) (*core.Verification, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.verifications[id]
	if !ok {
		return nil, core.ErrVerificationNotFound
	}
	copied := *v
	return &copied, nil
}

func (a *Adapter) UpdateVerification(_ context.Context, v *core.Verification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.verifications[v.ID]; !ok {
		return core.ErrVerificationNotFound
	}
	copied := *v
	a.verifications[v.ID] = &copied
	return nil
}

func (a *Adapter) DeleteVerification(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.verifications[id]; !ok {
		return core.ErrVerificationNotFound
	}
	delete(a.verifications, id)
	return nil
}

func (a *Adapter) DeleteExpiredVerifications(_ context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	count := 0
	for id, v := range a.verifications {
		if v.ExpiresAt.Before(now) {
			delete(a.verifications, id)
			count++
		}
	}
	return count, nil
}
