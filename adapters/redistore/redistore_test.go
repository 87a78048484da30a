package redistore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-auth/gatehouse/core"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client), mr
}

func testSession(id, userID, tokenHash string) *core.Session {
	now := time.Now()
	return &core.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		IPAddress: "192.0.2.1",
		UserAgent: "test-agent",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Requirement: a stored session is retrievable by token hash and by
// session ID, with all fields intact.
func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", "user-1", "hash-1")
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	byHash, err := store.GetSessionByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetSessionByHash() error = %v", err)
	}
	if byHash.ID != "sess-1" || byHash.UserID != "user-1" {
		t.Errorf("GetSessionByHash() = %+v, want ID sess-1 user user-1", byHash)
	}
	if byHash.TokenHash != "hash-1" {
		t.Errorf("TokenHash = %q, want hash-1", byHash.TokenHash)
	}

	byID, err := store.GetSessionByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSessionByID() error = %v", err)
	}
	if byID.TokenHash != "hash-1" {
		t.Errorf("GetSessionByID() TokenHash = %q, want hash-1", byID.TokenHash)
	}
}

// Requirement: lookups for unknown tokens report the session-not-found
// sentinel, not a backend error.
func TestStoreNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSessionByHash(ctx, "nope"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("GetSessionByHash() error = %v, want %v", err, core.ErrSessionNotFound)
	}
	if _, err := store.GetSessionByID(ctx, "nope"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("GetSessionByID() error = %v, want %v", err, core.ErrSessionNotFound)
	}
}

// Requirement: sessions expire with their record; an already-expired
// session is rejected at write time.
func TestStoreExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	expired := testSession("sess-old", "user-1", "hash-old")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	if err := store.CreateSession(ctx, expired); !errors.Is(err, core.ErrSessionExpired) {
		t.Fatalf("CreateSession(expired) error = %v, want %v", err, core.ErrSessionExpired)
	}

	session := testSession("sess-1", "user-1", "hash-1")
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.GetSessionByHash(ctx, "hash-1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("GetSessionByHash() after TTL error = %v, want %v", err, core.ErrSessionNotFound)
	}
}

// Requirement: rotating the token re-keys the record so the old token no
// longer resolves while the session ID still does.
func TestStoreTokenRotation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", "user-1", "hash-old")
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	session.TokenHash = "hash-new"
	session.UpdatedAt = time.Now()
	if err := store.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	if _, err := store.GetSessionByHash(ctx, "hash-old"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("old hash error = %v, want %v", err, core.ErrSessionNotFound)
	}
	got, err := store.GetSessionByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSessionByID() error = %v", err)
	}
	if got.TokenHash != "hash-new" {
		t.Errorf("TokenHash = %q, want hash-new", got.TokenHash)
	}
}

// Requirement: a user's sessions can be listed and revoked in bulk.
func TestStoreUserSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i, hash := range []string{"hash-a", "hash-b"} {
		session := testSession("sess-"+hash, "user-1", hash)
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession(%d) error = %v", i, err)
		}
	}
	other := testSession("sess-other", "user-2", "hash-other")
	if err := store.CreateSession(ctx, other); err != nil {
		t.Fatalf("CreateSession(other) error = %v", err)
	}

	sessions, err := store.GetUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("GetUserSessions() returned %d sessions, want 2", len(sessions))
	}

	deleted, err := store.DeleteUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("DeleteUserSessions() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteUserSessions() = %d, want 2", deleted)
	}

	if _, err := store.GetSessionByHash(ctx, "hash-a"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("revoked session still resolves: %v", err)
	}
	if _, err := store.GetSessionByHash(ctx, "hash-other"); err != nil {
		t.Errorf("other user's session lost: %v", err)
	}
}

// Requirement: deleting by hash or ID removes every index entry.
func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", "user-1", "hash-1")
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := store.DeleteSessionByHash(ctx, "hash-1"); err != nil {
		t.Fatalf("DeleteSessionByHash() error = %v", err)
	}
	if _, err := store.GetSessionByID(ctx, "sess-1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("GetSessionByID() after delete error = %v, want %v", err, core.ErrSessionNotFound)
	}

	sessions, err := store.GetUserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserSessions() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("GetUserSessions() returned %d sessions, want 0", len(sessions))
	}

	if err := store.DeleteSessionByID(ctx, "sess-1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("DeleteSessionByID(missing) error = %v, want %v", err, core.ErrSessionNotFound)
	}
}
