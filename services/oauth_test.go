package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gatehouse-auth/gatehouse/core"
)

func newTestOAuthStrategy(t *testing.T, storage *FakeStorageProvider, profile map[string]any) (*OAuthStrategy, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	strategy := NewOAuthStrategy(OAuthProviderConfig{
		ID:           "acme",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      server.URL + "/authorize",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
		RedirectURL:  "http://localhost/callback/acme",
	}, storage, []byte("0123456789abcdef0123456789abcdef"))
	return strategy, server
}

// Requirement: the state parameter is signed and expires; tampered or stale states are rejected.
func TestOAuthStrategy_State(t *testing.T) {
	storage := NewFakeStorageProvider()
	strategy, _ := newTestOAuthStrategy(t, storage, nil)

	url, state, err := strategy.AuthURL()
	if err != nil {
		t.Fatalf("AuthURL() error = %v", err)
	}
	if !strings.Contains(url, "state=") {
		t.Errorf("AuthURL() missing state parameter: %q", url)
	}

	if err := strategy.verifyState(state); err != nil {
		t.Errorf("verifyState() rejected a fresh state: %v", err)
	}

	tests := []struct {
		name  string
		state string
	}{
		{name: "empty state", state: ""},
		{name: "garbage state", state: "not-base64!!!"},
		{name: "tampered state", state: state[:len(state)-2] + "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := strategy.verifyState(tt.state); !errors.Is(err, core.ErrInvalidOAuthState) {
				t.Errorf("verifyState() error = %v, want %v", err, core.ErrInvalidOAuthState)
			}
		})
	}

	t.Run("expired state", func(t *testing.T) {
		strategy.nowFunc = func() time.Time { return time.Now().Add(oauthStateTTL + time.Minute) }
		defer func() { strategy.nowFunc = time.Now }()
		if err := strategy.verifyState(state); !errors.Is(err, core.ErrInvalidOAuthState) {
			t.Errorf("verifyState() error = %v, want %v", err, core.ErrInvalidOAuthState)
		}
	})
}

// Requirement: a first-time OAuth sign-in creates a user and a linked account;
// repeat sign-ins resolve the same user through the provider link.
func TestOAuthStrategy_Authenticate(t *testing.T) {
	ctx := context.Background()
	storage := NewFakeStorageProvider()
	strategy, _ := newTestOAuthStrategy(t, storage, map[string]any{
		"sub":     "provider-subject-1",
		"email":   "alice@example.com",
		"name":    "Alice",
		"picture": "https://cdn.example.com/alice.png",
	})

	_, state, err := strategy.AuthURL()
	if err != nil {
		t.Fatalf("AuthURL() error = %v", err)
	}

	user, err := strategy.Authenticate(ctx, core.Credential{Code: "auth-code", State: state})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("user email = %q, want %q", user.Email, "alice@example.com")
	}

	account, err := storage.GetAccountByProvider(ctx, "acme", "provider-subject-1")
	if err != nil {
		t.Fatalf("account not linked: %v", err)
	}
	if account.UserID != user.ID {
		t.Errorf("account.UserID = %q, want %q", account.UserID, user.ID)
	}

	// Second sign-in resolves the same user without creating another.
	_, state, _ = strategy.AuthURL()
	again, err := strategy.Authenticate(ctx, core.Credential{Code: "auth-code", State: state})
	if err != nil {
		t.Fatalf("second Authenticate() error = %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("second sign-in user = %q, want %q", again.ID, user.ID)
	}
}

// Requirement: an OAuth sign-in whose verified email matches an existing user
// links to that user instead of creating a duplicate.
func TestOAuthStrategy_LinksByEmail(t *testing.T) {
	ctx := context.Background()
	storage := NewFakeStorageProvider()

	existing := &core.User{Email: "alice@example.com"}
	if err := storage.CreateUser(ctx, existing); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	strategy, _ := newTestOAuthStrategy(t, storage, map[string]any{
		"sub":            "provider-subject-2",
		"email":          "alice@example.com",
		"email_verified": true,
	})

	_, state, _ := strategy.AuthURL()
	user, err := strategy.Authenticate(ctx, core.Credential{Code: "auth-code", State: state})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != existing.ID {
		t.Errorf("linked user = %q, want existing %q", user.ID, existing.ID)
	}

	account, err := storage.GetAccountByProvider(ctx, "acme", "provider-subject-2")
	if err != nil {
		t.Fatalf("account not linked: %v", err)
	}
	if account.UserID != existing.ID {
		t.Errorf("account.UserID = %q, want %q", account.UserID, existing.ID)
	}
}

// Requirement: a provider identity whose email the provider has NOT verified
// must not attach to an existing local account with that address.
func TestOAuthStrategy_RefusesUnverifiedEmailLink(t *testing.T) {
	ctx := context.Background()
	storage := NewFakeStorageProvider()

	victim := &core.User{Email: "victim@example.com"}
	if err := storage.CreateUser(ctx, victim); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	strategy, _ := newTestOAuthStrategy(t, storage, map[string]any{
		"sub":            "attacker-subject",
		"email":          "victim@example.com",
		"email_verified": false,
	})

	_, state, _ := strategy.AuthURL()
	_, err := strategy.Authenticate(ctx, core.Credential{Code: "auth-code", State: state})
	if !errors.Is(err, core.ErrAccountNotLinked) {
		t.Fatalf("Authenticate() error = %v, want %v", err, core.ErrAccountNotLinked)
	}

	// No provider account may have been created for the victim's user.
	if _, err := storage.GetAccountByProvider(ctx, "acme", "attacker-subject"); !errors.Is(err, core.ErrAccountNotLinked) {
		t.Error("unverified provider identity was linked")
	}
}

// Requirement: GitHub-shaped profiles (numeric id, avatar_url, login) map onto the account link.
func TestOAuthStrategy_GitHubProfileShape(t *testing.T) {
	ctx := context.Background()
	storage := NewFakeStorageProvider()
	strategy, _ := newTestOAuthStrategy(t, storage, map[string]any{
		"id":         12345,
		"login":      "alice",
		"email":      "alice@example.com",
		"avatar_url": "https://avatars.example.com/alice",
	})

	_, state, _ := strategy.AuthURL()
	user, err := strategy.Authenticate(ctx, core.Credential{Code: "auth-code", State: state})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.Name != "alice" {
		t.Errorf("user name = %q, want %q", user.Name, "alice")
	}
	if user.Image == nil || *user.Image != "https://avatars.example.com/alice" {
		t.Error("avatar_url not mapped to user image")
	}
	if _, err := storage.GetAccountByProvider(ctx, "acme", "12345"); err != nil {
		t.Errorf("numeric subject not linked: %v", err)
	}
}

// Requirement: Authenticate refuses to exchange a code without a valid state.
func TestOAuthStrategy_RejectsInvalidState(t *testing.T) {
	storage := NewFakeStorageProvider()
	strategy, _ := newTestOAuthStrategy(t, storage, nil)

	if _, err := strategy.Authenticate(context.Background(), core.Credential{
		Code:  "auth-code",
		State: "forged",
	}); !errors.Is(err, core.ErrInvalidOAuthState) {
		t.Fatalf("Authenticate() error = %v, want %v", err, core.ErrInvalidOAuthState)
	}
}
