package fiber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/gatehouse-auth/gatehouse/core"
)

// mockAuthProvider is a test fake implementing core.AuthProvider
type mockAuthProvider struct {
	signUpCalled bool
	signUpInput  core.SignUpInput
	signUpErr    error
	signUpResult *core.SignUpResult

	signInCalled bool
	signInInput  core.SignInInput
	signInErr    error
	signInResult *core.SignInResult

	signOutCalled bool
	signOutToken  string
	signOutErr    error

	getSessionToken string
	getSessionErr   error
	getSessionData  *core.SessionData

	refreshToken  string
	refreshErr    error
	refreshResult *core.RefreshResult

	verifyErr error
}

func (m *mockAuthProvider) SignUp(_ context.Context, input core.SignUpInput, _, _ string) (*core.SignUpResult, error) {
	m.signUpCalled = true
	m.signUpInput = input
	if m.signUpErr != nil {
		return nil, m.signUpErr
	}
	return m.signUpResult, nil
}

func (m *mockAuthProvider) SignIn(_ context.Context, input core.SignInInput, _, _ string) (*core.SignInResult, error) {
	m.signInCalled = true
	m.signInInput = input
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return m.signInResult, nil
}

func (m *mockAuthProvider) SignOut(_ context.Context, token string) error {
	m.signOutCalled = true
	m.signOutToken = token
	return m.signOutErr
}

func (m *mockAuthProvider) GetSession(_ context.Context, token string) (*core.SessionData, error) {
	m.getSessionToken = token
	if m.getSessionErr != nil {
		return nil, m.getSessionErr
	}
	return m.getSessionData, nil
}

func (m *mockAuthProvider) Refresh(_ context.Context, token string) (*core.RefreshResult, error) {
	m.refreshToken = token
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshResult, nil
}

func (m *mockAuthProvider) RequestEmailVerification(context.Context, string) error { return m.verifyErr }
func (m *mockAuthProvider) VerifyEmail(context.Context, string, string) error      { return m.verifyErr }
func (m *mockAuthProvider) RequestPasswordReset(context.Context, string) error     { return m.verifyErr }
func (m *mockAuthProvider) ResetPassword(context.Context, string, string, string) error {
	return m.verifyErr
}

func newTestApp(t *testing.T, mock *mockAuthProvider, extra ...core.Endpoint) *fiber.App {
	t.Helper()

	app := fiber.New()
	adapter := New(app)
	if err := adapter.RegisterRoutes(mock, "/api/auth", extra); err != nil {
		t.Fatalf("RegisterRoutes() error = %v", err)
	}
	return app
}

func sessionFixture() *core.SessionData {
	return &core.SessionData{
		User:    &core.User{ID: "user-1", Email: "alice@example.com"},
		Session: &core.Session{ID: "sess-1", UserID: "user-1"},
	}
}

// Requirement: a valid sign-up request returns 201 with the created user
// and reaches the auth provider with the parsed input.
func TestSignUpRoute(t *testing.T) {
	mock := &mockAuthProvider{
		signUpResult: &core.SignUpResult{
			User:  &core.User{ID: "user-1", Email: "alice@example.com"},
			Token: "raw-token",
		},
	}
	app := newTestApp(t, mock)

	body := `{"email":"alice@example.com","password":"hunter2secret","name":"Alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-up", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if !mock.signUpCalled {
		t.Fatal("SignUp was not called")
	}
	if mock.signUpInput.Email != "alice@example.com" {
		t.Errorf("SignUp email = %q, want alice@example.com", mock.signUpInput.Email)
	}
}

// Requirement: auth failures map to the right status codes.
func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid credentials", core.ErrInvalidCredentials, http.StatusUnauthorized},
		{"rate limited", core.ErrRateLimited, http.StatusTooManyRequests},
		{"duplicate user", core.ErrUserExists, http.StatusConflict},
		{"weak password", core.ErrPasswordTooShort, http.StatusBadRequest},
		{"unknown provider", core.ErrProviderNotFound, http.StatusBadRequest},
		{"backend failure", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockAuthProvider{signInErr: tt.err}
			app := newTestApp(t, mock)

			body := `{"email":"alice@example.com","password":"whatever"}`
			req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

// Requirement: a sign-in that needs a second factor returns 202 with the
// challenge reference and no session token.
func TestSignInTwoFactorPending(t *testing.T) {
	mock := &mockAuthProvider{
		signInResult: &core.SignInResult{
			User:              &core.User{ID: "user-1"},
			TwoFactorRequired: true,
			ChallengeID:       "challenge-1",
		},
	}
	app := newTestApp(t, mock)

	body := `{"email":"alice@example.com","password":"hunter2secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var result core.SignInResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ChallengeID != "challenge-1" || result.Token != "" {
		t.Errorf("result = %+v, want challenge-1 and no token", result)
	}
}

// Requirement: protected routes reject requests without a token and accept
// a Bearer token validated through the auth provider.
func TestProtectedRoutes(t *testing.T) {
	mock := &mockAuthProvider{getSessionData: sessionFixture()}
	app := newTestApp(t, mock)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no-token status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if mock.signOutCalled {
		t.Error("SignOut called without a token")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil)
	req.Header.Set("Authorization", "Bearer raw-token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("bearer status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if mock.signOutToken != "raw-token" {
		t.Errorf("SignOut token = %q, want raw-token", mock.signOutToken)
	}
}

// Requirement: a present Authorization header that is not a Bearer token is
// rejected with 401 instead of being silently treated as missing.
func TestMalformedAuthorizationHeader(t *testing.T) {
	mock := &mockAuthProvider{getSessionData: sessionFixture()}
	app := newTestApp(t, mock)

	for _, header := range []string{"Token raw-token", "Bearer", "raw-token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.Header.Set("Authorization", header)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		var payload map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("header %q status = %d, want %d", header, resp.StatusCode, http.StatusUnauthorized)
		}
		if payload["error"] != core.ErrInvalidAuthHeader.Error() {
			t.Errorf("header %q error = %q, want %q", header, payload["error"], core.ErrInvalidAuthHeader.Error())
		}
	}
	if mock.getSessionToken != "" {
		t.Errorf("GetSession was called with token %q, want no call", mock.getSessionToken)
	}
}

// Requirement: the session token is also accepted from the auth cookie.
func TestCookieToken(t *testing.T) {
	mock := &mockAuthProvider{getSessionData: sessionFixture()}
	app := newTestApp(t, mock)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if mock.getSessionToken != "cookie-token" {
		t.Errorf("GetSession token = %q, want cookie-token", mock.getSessionToken)
	}
}

// Requirement: strategy and plugin endpoints mount under the base path with
// their generic handlers wrapped; protected ones see the resolved session.
func TestExtraEndpoints(t *testing.T) {
	var sawSession *core.Session
	extra := []core.Endpoint{
		{
			Path:   "/ping",
			Method: http.MethodGet,
			Handler: func(rc *core.RequestContext) error {
				rc.Status = http.StatusTeapot
				rc.Result = map[string]string{"pong": "true"}
				return nil
			},
		},
		{
			Path:   "/whoami",
			Method: http.MethodGet,
			Handler: func(rc *core.RequestContext) error {
				sawSession = rc.Session
				rc.Result = map[string]string{"userId": rc.Session.UserID}
				return nil
			},
			Metadata: core.EndpointMetadata{Protected: true},
		},
	}

	mock := &mockAuthProvider{getSessionData: sessionFixture()}
	app := newTestApp(t, mock, extra...)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/ping", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("ping status = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated whoami status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer raw-token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("whoami status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if sawSession == nil || sawSession.UserID != "user-1" {
		t.Errorf("handler session = %+v, want user-1", sawSession)
	}
}
