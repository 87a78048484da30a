package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gatehouse-auth/gatehouse/core"
)

// FakeSessionStorage is a test-only fake implementing core.SessionStorage.
// It stores sessions in a map and exposes error fields for behavior injection.
type FakeSessionStorage struct {
	sessions  map[string]*core.Session
	mu        sync.RWMutex
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func NewFakeSessionStorage() *FakeSessionStorage {
	return &FakeSessionStorage{
		sessions: make(map[string]*core.Session),
	}
}

func (f *FakeSessionStorage) CreateSession(_ context.Context, s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}

	copied := *s
	f.sessions[s.TokenHash] = &copied
	return nil
}

func (f *FakeSessionStorage) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *FakeSessionStorage) GetSessionByID(_ context.Context, id string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sessions {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (f *FakeSessionStorage) GetUserSessions(_ context.Context, userID string) ([]*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var sessions []*core.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			copied := *s
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

func (f *FakeSessionStorage) UpdateSession(_ context.Context, s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	// The token hash is the storage key; a rotated hash moves the record.
	for k, existing := range f.sessions {
		if existing.ID == s.ID {
			if k != s.TokenHash {
				delete(f.sessions, k)
			}
			copied := *s
			f.sessions[s.TokenHash] = &copied
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (f *FakeSessionStorage) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.sessions[tokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *FakeSessionStorage) DeleteSessionByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for k, s := range f.sessions {
		if s.ID == id {
			delete(f.sessions, k)
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (f *FakeSessionStorage) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for k, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, k)
			count++
		}
	}
	return count, nil
}

func (f *FakeSessionStorage) DeleteExpiredSessions(_ context.Context) (int, error) {
	panic("not implemented")
}

func (f *FakeSessionStorage) SessionCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

// FakeStorageProvider is a test-only fake implementing core.AuthStorage.
// It combines session, user, account, and verification storage fakes.
type FakeStorageProvider struct {
	*FakeSessionStorage
	users         map[string]*core.User
	accounts      map[string]*core.Account
	verifications map[string]*core.Verification
	nextID        int
}

func NewFakeStorageProvider() *FakeStorageProvider {
	return &FakeStorageProvider{
		FakeSessionStorage: NewFakeSessionStorage(),
		users:              make(map[string]*core.User),
		accounts:           make(map[string]*core.Account),
		verifications:      make(map[string]*core.Verification),
	}
}

// UserStorage implementation
func (f *FakeStorageProvider) CreateUser(_ context.Context, u *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("fake-user-%d", f.nextID)
	}
	if _, exists := f.users[u.ID]; exists {
		return core.ErrUserExists
	}
	f.users[u.ID] = u
	return nil
}

func (f *FakeStorageProvider) GetUserByID(_ context.Context, id string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, core.ErrUserNotFound
}

func (f *FakeStorageProvider) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (f *FakeStorageProvider) UpdateUser(_ context.Context, u *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[u.ID]; !exists {
		return core.ErrUserNotFound
	}
	f.users[u.ID] = u
	return nil
}

func (f *FakeStorageProvider) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[id]; !exists {
		return core.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

// AccountStorage implementation
func (f *FakeStorageProvider) CreateAccount(_ context.Context, a *core.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		f.nextID++
		a.ID = fmt.Sprintf("fake-account-%d", f.nextID)
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *FakeStorageProvider) GetAccountByID(_ context.Context, id string) (*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, errors.New("account not found")
}

func (f *FakeStorageProvider) GetAccountsByUserAndProvider(_ context.Context, userID, providerID string) ([]*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var accounts []*core.Account
	for _, a := range f.accounts {
		if a.UserID == userID && a.ProviderID == providerID {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

func (f *FakeStorageProvider) GetAccountByProvider(_ context.Context, providerID, accountID string) (*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, a := range f.accounts {
		if a.ProviderID == providerID && a.AccountID == accountID {
			return a, nil
		}
	}
	return nil, core.ErrAccountNotLinked
}

func (f *FakeStorageProvider) UpdateAccount(_ context.Context, a *core.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[a.ID]; !exists {
		return errors.New("account not found")
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *FakeStorageProvider) DeleteAccount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[id]; !exists {
		return errors.New("account not found")
	}
	delete(f.accounts, id)
	return nil
}

// VerificationStorage implementation
func (f *FakeStorageProvider) CreateVerification(_ context.Context, v *core.Verification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *v
	f.verifications[v.ID] = &copied
	return nil
}

func (f *FakeStorageProvider) GetVerificationByID(_ context.Context, id string) (*core.Verification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if v, ok := f.verifications[id]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, core.ErrVerificationNotFound
}

func (f *FakeStorageProvider) UpdateVerification(_ context.Context, v *core.Verification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.verifications[v.ID]; !exists {
		return core.ErrVerificationNotFound
	}
	copied := *v
	f.verifications[v.ID] = &copied
	return nil
}

func (f *FakeStorageProvider) DeleteVerification(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.verifications[id]; !exists {
		return core.ErrVerificationNotFound
	}
	delete(f.verifications, id)
	return nil
}

func (f *FakeStorageProvider) DeleteExpiredVerifications(_ context.Context) (int, error) {
	panic("not implemented")
}

func (f *FakeStorageProvider) VerificationCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.verifications)
}

// FakeCache is a test-only fake implementing core.Cache.
// It stores sessions in a map and exposes error fields for behavior injection.
type FakeCache struct {
	cache    map[string]*core.Session
	mu       sync.Mutex
	getErr   error
	setErr   error
	delErr   error
	clearErr error
	hits     int
	misses   int
}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		cache: make(map[string]*core.Session),
	}
}

func (f *FakeCache) Get(tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	s, ok := f.cache[tokenHash]
	if !ok {
		f.misses++
		return nil, core.ErrCacheNotFound
	}

	f.hits++
	return s, nil
}

func (f *FakeCache) Set(tokenHash string, session *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}

	f.cache[tokenHash] = session
	return nil
}

func (f *FakeCache) Delete(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.delErr != nil {
		return f.delErr
	}

	delete(f.cache, tokenHash)
	return nil
}

func (f *FakeCache) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.clearErr != nil {
		return f.clearErr
	}

	f.cache = make(map[string]*core.Session)
	return nil
}

// Test helper methods
func (f *FakeCache) SetGetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *FakeCache) SetSetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

func (f *FakeCache) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

// fakeFailingCache is a cache that always fails write operations.
type fakeFailingCache struct{}

func (f *fakeFailingCache) Get(tokenHash string) (*core.Session, error) {
	return nil, core.ErrCacheNotFound
}
func (f *fakeFailingCache) Set(tokenHash string, session *core.Session) error {
	return errors.New("cache set failed")
}
func (f *fakeFailingCache) Delete(tokenHash string) error {
	return errors.New("cache delete failed")
}
func (f *fakeFailingCache) Clear() error {
	return errors.New("cache clear failed")
}

// fakeSender records delivered challenges.
type fakeSender struct {
	mu    sync.Mutex
	sends []sentChallenge
	err   error
}

type sentChallenge struct {
	Identifier  string
	ChallengeID string
	Code        string
	Purpose     string
}

func (f *fakeSender) Send(_ context.Context, identifier, challengeID, code, purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentChallenge{
		Identifier:  identifier,
		ChallengeID: challengeID,
		Code:        code,
		Purpose:     purpose,
	})
	return nil
}

func (f *fakeSender) Last() (sentChallenge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sends) == 0 {
		return sentChallenge{}, false
	}
	return f.sends[len(f.sends)-1], true
}

func (f *fakeSender) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// fakeLimiter is an injectable rate limiter for auth service tests.
type fakeLimiter struct {
	mu       sync.Mutex
	allowErr error
	allows   []string
	resets   []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allows = append(f.allows, key)
	return f.allowErr
}

func (f *fakeLimiter) Reset(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, key)
	return nil
}

// fakeSecondFactor reports a fixed enrollment set and records Begin calls.
type fakeSecondFactor struct {
	enrolled    map[string]bool
	challengeID string
	beginCalls  int
}

func (f *fakeSecondFactor) ID() string { return "fake-factor" }

func (f *fakeSecondFactor) Enrolled(_ context.Context, userID string) (bool, error) {
	return f.enrolled[userID], nil
}

func (f *fakeSecondFactor) Begin(_ context.Context, user *core.User) (string, error) {
	f.beginCalls++
	return f.challengeID, nil
}
