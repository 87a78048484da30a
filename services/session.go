package services

import (
	"context"
	"time"

	"github.com/gatehouse-auth/gatehouse/core"
	"github.com/gatehouse-auth/gatehouse/pkg/crypto"
)

type SessionManager struct {
	config  core.SessionConfig
	storage core.SessionStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	nanoid  *crypto.NanoIDGenerator
}

// CreateSessionResult bundles a persisted session with its raw token.
type CreateSessionResult struct {
	Session *core.Session `json:"session"`
	Token   string        `json:"token"`
}

var _ core.SessionIssuer = (*SessionManager)(nil)

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage, cache core.Cache) *SessionManager {
	nanoid, _ := crypto.NewNanoID()
	return &SessionManager{config: config, storage: storage, cache: cache, nanoid: nanoid}
}

func (sm *SessionManager) Create(ctx context.Context, userID, ip, userAgent string) (*CreateSessionResult, error) {
	// Generate cryptographic material
	pair, err := crypto.GenerateHashedToken()
	if err != nil {
		return nil, err
	}

	sessionID, err := sm.nanoid.Generate()
	if err != nil {
		return nil, err
	}

	// Create session with timestamps and expiry
	now := time.Now()
	session := &core.Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: pair.Hash,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(sm.config.MaxAge),
	}

	// Persist session
	if err := sm.storage.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	// Cache session if caching is enabled (cache is non-nil)
	if sm.cache != nil {
		// We don't fail the request if caching fails
		_ = sm.cache.Set(pair.Hash, session)
	}

	return &CreateSessionResult{Session: session, Token: pair.Token}, nil
}

// Issue implements core.SessionIssuer for plugins completing their own
// verification step.
func (sm *SessionManager) Issue(ctx context.Context, userID, ip, userAgent string) (*core.Session, string, error) {
	result, err := sm.Create(ctx, userID, ip, userAgent)
	if err != nil {
		return nil, "", err
	}
	return result.Session, result.Token, nil
}

func (sm *SessionManager) Verify(ctx context.Context, token string) (*core.Session, error) {
	// Validate input
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	// Try cache first if caching is enabled
	if sm.cache != nil {
		if session, err := sm.cache.Get(tokenHash); err == nil && session != nil {
			// Cache hit - validate expiry
			if time.Now().After(session.ExpiresAt) {
				// Remove expired session from cache
				_ = sm.cache.Delete(tokenHash)
				return nil, core.ErrSessionExpired
			}
			return sm.renew(ctx, tokenHash, session)
		}
		// Cache miss - fall through to storage
	}

	// Get from storage
	session, err := sm.storage.GetSessionByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, core.ErrSessionNotFound
	}

	// Validate session hasn't expired
	if time.Now().After(session.ExpiresAt) {
		return nil, core.ErrSessionExpired
	}

	session, err = sm.renew(ctx, tokenHash, session)
	if err != nil {
		return nil, err
	}

	// Cache the session for future requests if caching is enabled
	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, session)
	}

	return session, nil
}

// renew applies the rolling-renewal policy: a session touched more than
// UpdateAge after its last update gets a fresh expiry of now+MaxAge.
// The input session is never mutated; it may be shared with concurrent
// verifications of the same token.
func (sm *SessionManager) renew(ctx context.Context, tokenHash string, session *core.Session) (*core.Session, error) {
	if sm.config.UpdateAge <= 0 {
		return session, nil
	}

	now := time.Now()
	if now.Sub(session.UpdatedAt) < sm.config.UpdateAge {
		return session, nil
	}

	renewed := *session
	renewed.UpdatedAt = now
	renewed.ExpiresAt = now.Add(sm.config.MaxAge)

	if err := sm.storage.UpdateSession(ctx, &renewed); err != nil {
		return nil, err
	}
	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, &renewed)
	}

	return &renewed, nil
}

// Refresh rotates the session token: the old token stops working and a new
// raw token is returned, with expiry pushed out to now+MaxAge.
func (sm *SessionManager) Refresh(ctx context.Context, token string) (*core.RefreshResult, error) {
	session, err := sm.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	oldHash := session.TokenHash

	pair, err := crypto.GenerateHashedToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.TokenHash = pair.Hash
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(sm.config.MaxAge)

	if err := sm.storage.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	if sm.cache != nil {
		_ = sm.cache.Delete(oldHash)
		_ = sm.cache.Set(pair.Hash, session)
	}

	return &core.RefreshResult{Session: session, Token: pair.Token}, nil
}

func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	// Validate input
	if token == "" {
		return core.ErrInvalidToken
	}

	// Hash token to find session
	tokenHash := crypto.HashToken(token)

	// Delete session from storage by hash
	err := sm.storage.DeleteSessionByHash(ctx, tokenHash)
	if err != nil {
		return err
	}

	// Remove from cache if caching is enabled
	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}

	return nil
}

func (sm *SessionManager) DestroyBySessionID(ctx context.Context, sessionID string) error {
	// Validate input
	if sessionID == "" {
		return core.ErrSessionNotFound
	}

	// Get session first to obtain tokenHash for cache invalidation
	if sm.cache != nil {
		session, err := sm.storage.GetSessionByID(ctx, sessionID)
		if err == nil && session != nil {
			// Remove from cache (ignore errors)
			_ = sm.cache.Delete(session.TokenHash)
		}
	}

	// Delete session from storage by ID
	return sm.storage.DeleteSessionByID(ctx, sessionID)
}

func (sm *SessionManager) DestroyAllUserSessions(ctx context.Context, userID string) (int, error) {
	// Validate input
	if userID == "" {
		return 0, core.ErrUserNotFound
	}

	// Delete all user sessions from storage
	count, err := sm.storage.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}

	// Clear entire cache when destroying all user sessions if caching is enabled
	// This is a conservative approach - we could be more selective but would need
	// to fetch all user sessions first, which defeats the performance benefit
	if sm.cache != nil && count > 0 {
		_ = sm.cache.Clear()
	}

	return count, nil
}

// ListUserSessions returns the user's sessions that have not yet expired.
func (sm *SessionManager) ListUserSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	if userID == "" {
		return nil, core.ErrUserNotFound
	}

	sessions, err := sm.storage.GetUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := sessions[:0]
	for _, s := range sessions {
		if s.ExpiresAt.After(now) {
			active = append(active, s)
		}
	}
	return active, nil
}

// CleanupExpired removes expired session rows. Intended to be run
// periodically by the embedding application.
func (sm *SessionManager) CleanupExpired(ctx context.Context) (int, error) {
	return sm.storage.DeleteExpiredSessions(ctx)
}
