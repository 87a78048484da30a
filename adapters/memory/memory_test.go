package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatehouse-auth/gatehouse/core"
)

// Requirement: user email uniqueness is enforced case-insensitively.
func TestAdapter_UserEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.CreateUser(ctx, &core.User{Email: "alice@example.com"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := store.CreateUser(ctx, &core.User{Email: "Alice@Example.com"}); !errors.Is(err, core.ErrUserExists) {
		t.Fatalf("CreateUser(duplicate) error = %v, want %v", err, core.ErrUserExists)
	}

	user, err := store.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", user.Email, "alice@example.com")
	}
}

// Requirement: stored records are isolated from later mutation of the caller's structs.
func TestAdapter_CopiesOnWriteAndRead(t *testing.T) {
	ctx := context.Background()
	store := New()

	user := &core.User{Email: "alice@example.com", Name: "Alice"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	user.Name = "Mallory"

	stored, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if stored.Name != "Alice" {
		t.Errorf("stored name = %q, want %q", stored.Name, "Alice")
	}

	stored.Name = "Eve"
	again, _ := store.GetUserByID(ctx, user.ID)
	if again.Name != "Alice" {
		t.Errorf("mutating a read leaked into storage: name = %q", again.Name)
	}
}

// Requirement: accounts resolve by provider subject for social sign-in.
func TestAdapter_GetAccountByProvider(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.CreateAccount(ctx, &core.Account{
		UserID:     "user-1",
		ProviderID: "google",
		AccountID:  "google-subject-1",
	}); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	acc, err := store.GetAccountByProvider(ctx, "google", "google-subject-1")
	if err != nil {
		t.Fatalf("GetAccountByProvider() error = %v", err)
	}
	if acc.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", acc.UserID, "user-1")
	}

	if _, err := store.GetAccountByProvider(ctx, "github", "google-subject-1"); !errors.Is(err, core.ErrAccountNotLinked) {
		t.Errorf("wrong provider error = %v, want %v", err, core.ErrAccountNotLinked)
	}
}

// Requirement: UpdateSession re-keys the record when the token hash rotates.
func TestAdapter_SessionRotation(t *testing.T) {
	ctx := context.Background()
	store := New()

	session := &core.Session{ID: "sess-1", UserID: "user-1", TokenHash: "hash-old", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	session.TokenHash = "hash-new"
	if err := store.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	if _, err := store.GetSessionByHash(ctx, "hash-old"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("old hash still resolves, error = %v", err)
	}
	got, err := store.GetSessionByHash(ctx, "hash-new")
	if err != nil {
		t.Fatalf("GetSessionByHash(new) error = %v", err)
	}
	if got.ID != "sess-1" {
		t.Errorf("session ID = %q, want %q", got.ID, "sess-1")
	}
}

// Requirement: expired sessions and verifications are swept with a count of removals.
func TestAdapter_ExpirySweeps(t *testing.T) {
	ctx := context.Background()
	store := New()

	_ = store.CreateSession(ctx, &core.Session{ID: "live", TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)})
	_ = store.CreateSession(ctx, &core.Session{ID: "dead", TokenHash: "h2", ExpiresAt: time.Now().Add(-time.Hour)})
	_ = store.CreateVerification(ctx, &core.Verification{ID: "v-live", ExpiresAt: time.Now().Add(time.Hour)})
	_ = store.CreateVerification(ctx, &core.Verification{ID: "v-dead", ExpiresAt: time.Now().Add(-time.Hour)})

	n, err := store.DeleteExpiredSessions(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpiredSessions() = (%d, %v), want (1, nil)", n, err)
	}
	n, err = store.DeleteExpiredVerifications(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpiredVerifications() = (%d, %v), want (1, nil)", n, err)
	}

	if _, err := store.GetSessionByHash(ctx, "h1"); err != nil {
		t.Errorf("live session swept: %v", err)
	}
	if _, err := store.GetVerificationByID(ctx, "v-live"); err != nil {
		t.Errorf("live verification swept: %v", err)
	}
}
