package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/gatehouse-auth/gatehouse/core"
)

// OAuthProviderConfig describes one social provider. The preset
// constructors cover the common ones; any OAuth2 provider with a JSON
// user-info endpoint can be configured by hand.
type OAuthProviderConfig struct {
	ID           string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	RedirectURL  string
}

// GoogleProvider returns the provider config for Google sign-in.
func GoogleProvider(clientID, clientSecret, redirectURL string) OAuthProviderConfig {
	return OAuthProviderConfig{
		ID:           "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:       []string{"openid", "email", "profile"},
		RedirectURL:  redirectURL,
	}
}

// GitHubProvider returns the provider config for GitHub sign-in.
func GitHubProvider(clientID, clientSecret, redirectURL string) OAuthProviderConfig {
	return OAuthProviderConfig{
		ID:           "github",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		UserInfoURL:  "https://api.github.com/user",
		Scopes:       []string{"read:user", "user:email"},
		RedirectURL:  redirectURL,
	}
}

const oauthStateTTL = 10 * time.Minute

// OAuthStrategy signs users in through an external OAuth2 provider.
// The state parameter is HMAC-signed with the deployment secret, so no
// server-side state storage is needed.
type OAuthStrategy struct {
	provider OAuthProviderConfig
	oauth    *oauth2.Config
	db       core.AuthStorage
	secret   []byte
	nowFunc  func() time.Time
}

var (
	_ core.Strategy          = (*OAuthStrategy)(nil)
	_ core.StrategyEndpoints = (*OAuthStrategy)(nil)
)

func NewOAuthStrategy(provider OAuthProviderConfig, db core.AuthStorage, secret []byte) *OAuthStrategy {
	return &OAuthStrategy{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     provider.ClientID,
			ClientSecret: provider.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  provider.AuthURL,
				TokenURL: provider.TokenURL,
			},
			RedirectURL: provider.RedirectURL,
			Scopes:      provider.Scopes,
		},
		db:      db,
		secret:  secret,
		nowFunc: time.Now,
	}
}

func (s *OAuthStrategy) ID() string { return s.provider.ID }

// AuthURL returns the provider authorization URL and the signed state the
// client must send back with the callback code.
func (s *OAuthStrategy) AuthURL() (url, state string, err error) {
	state, err = s.newState()
	if err != nil {
		return "", "", err
	}
	return s.oauth.AuthCodeURL(state), state, nil
}

// Authenticate validates the state, exchanges the authorization code, and
// resolves (or creates) the linked user.
func (s *OAuthStrategy) Authenticate(ctx context.Context, cred core.Credential) (*core.User, error) {
	if err := s.verifyState(cred.State); err != nil {
		return nil, err
	}
	if cred.Code == "" {
		return nil, core.ErrInvalidCredentials
	}

	token, err := s.oauth.Exchange(ctx, cred.Code)
	if err != nil {
		return nil, fmt.Errorf("oauth code exchange failed: %w", err)
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if profile.Subject == "" {
		return nil, fmt.Errorf("provider %s returned no subject", s.provider.ID)
	}

	// Existing link wins
	account, err := s.db.GetAccountByProvider(ctx, s.provider.ID, profile.Subject)
	if err == nil && account != nil {
		s.storeTokens(ctx, account, token)
		return s.db.GetUserByID(ctx, account.UserID)
	}

	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	account = &core.Account{
		UserID:     user.ID,
		ProviderID: s.provider.ID,
		AccountID:  profile.Subject,
	}
	applyTokens(account, token)

	if err := s.db.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to link account: %w", err)
	}

	return user, nil
}

// Endpoints contributes the authorize-URL route and the callback route
// that completes the exchange.
func (s *OAuthStrategy) Endpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:    "/sign-in/" + s.provider.ID,
			Method:  "GET",
			Handler: s.handleAuthorize,
			Metadata: core.EndpointMetadata{
				OperationID: "oauthAuthorize:" + s.provider.ID,
				Description: "Begin OAuth sign-in with " + s.provider.ID,
			},
		},
		{
			Path:    "/callback/" + s.provider.ID,
			Method:  "POST",
			Handler: s.handleCallback,
			Metadata: core.EndpointMetadata{
				OperationID: "oauthCallback:" + s.provider.ID,
				Description: "Complete OAuth sign-in with " + s.provider.ID,
			},
		},
	}
}

func (s *OAuthStrategy) handleAuthorize(rc *core.RequestContext) error {
	url, state, err := s.AuthURL()
	if err != nil {
		return err
	}
	rc.Status = http.StatusOK
	rc.Result = map[string]string{"url": url, "state": state}
	return nil
}

func (s *OAuthStrategy) handleCallback(rc *core.RequestContext) error {
	var body struct {
		Code  string `json:"code"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(rc.Body, &body); err != nil {
		return core.ErrInvalidOAuthState
	}

	result, err := rc.Auth.SignIn(rc.Context, core.SignInInput{
		Provider: s.provider.ID,
		Code:     body.Code,
		State:    body.State,
	}, rc.IPAddress, rc.UserAgent)
	if err != nil {
		return err
	}

	rc.Status = http.StatusOK
	rc.Result = result
	return nil
}

// resolveUser auto-links by verified email, otherwise registers a new user.
func (s *OAuthStrategy) resolveUser(ctx context.Context, profile *oauthProfile) (*core.User, error) {
	if profile.Email != "" {
		user, err := s.db.GetUserByEmail(ctx, profile.Email)
		if err != nil && !errors.Is(err, core.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user != nil {
			// Attaching a provider identity to an existing local account
			// requires the provider to have verified the address. Otherwise
			// anyone who can register an arbitrary email with the provider
			// could sign in as the local user.
			if !profile.EmailVerified {
				return nil, core.ErrAccountNotLinked
			}
			return user, nil
		}
	}

	user := &core.User{
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		Name:          profile.Name,
	}
	if profile.Picture != "" {
		picture := profile.Picture
		user.Image = &picture
	}

	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// storeTokens refreshes the stored provider tokens. Best effort: sign-in
// succeeds even if the update fails.
func (s *OAuthStrategy) storeTokens(ctx context.Context, account *core.Account, token *oauth2.Token) {
	applyTokens(account, token)
	_ = s.db.UpdateAccount(ctx, account)
}

func applyTokens(account *core.Account, token *oauth2.Token) {
	if token.AccessToken != "" {
		access := token.AccessToken
		account.AccessToken = &access
	}
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		account.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		account.ExpiresAt = &expiry
	}
}

type oauthProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// fetchProfile retrieves the provider's user-info document with the token
// and maps the common claim spellings.
func (s *OAuthStrategy) fetchProfile(ctx context.Context, token *oauth2.Token) (*oauthProfile, error) {
	client := s.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.provider.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Sub           string          `json:"sub"`
		ID            json.RawMessage `json:"id"`
		Email         string          `json:"email"`
		EmailVerified bool            `json:"email_verified"`
		Name          string          `json:"name"`
		Login         string          `json:"login"`
		Picture       string          `json:"picture"`
		AvatarURL     string          `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid user info payload: %w", err)
	}

	profile := &oauthProfile{
		Subject:       raw.Sub,
		Email:         raw.Email,
		EmailVerified: raw.EmailVerified,
		Name:          raw.Name,
		Picture:       raw.Picture,
	}
	if profile.Subject == "" && len(raw.ID) > 0 {
		// GitHub uses a numeric id field
		profile.Subject = string(trimQuotes(raw.ID))
	}
	if profile.Name == "" {
		profile.Name = raw.Login
	}
	if profile.Picture == "" {
		profile.Picture = raw.AvatarURL
	}
	return profile, nil
}

func trimQuotes(raw json.RawMessage) []byte {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}

// newState builds nonce|expiry|HMAC, base64url encoded.
func (s *OAuthStrategy) newState() (string, error) {
	payload := make([]byte, 24)
	if _, err := rand.Read(payload[:16]); err != nil {
		return "", err
	}
	expiry := s.nowFunc().Add(oauthStateTTL).Unix()
	binary.BigEndian.PutUint64(payload[16:], uint64(expiry))

	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write(payload)
	signed := append(payload, mac.Sum(nil)...)

	return base64.RawURLEncoding.EncodeToString(signed), nil
}

func (s *OAuthStrategy) verifyState(state string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil || len(decoded) != 24+sha256.Size {
		return core.ErrInvalidOAuthState
	}

	payload, sig := decoded[:24], decoded[24:]

	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write(payload)
	if subtle.ConstantTimeCompare(sig, mac.Sum(nil)) != 1 {
		return core.ErrInvalidOAuthState
	}

	expiry := int64(binary.BigEndian.Uint64(payload[16:]))
	if s.nowFunc().Unix() > expiry {
		return core.ErrInvalidOAuthState
	}

	return nil
}
