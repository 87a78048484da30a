// Package jwtauth mints short-lived HS256 JWTs for holders of a valid
// session, so downstream services can verify requests without calling back
// into session storage.
package jwtauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse-auth/gatehouse/core"
)

const PluginID = "jwt"

type Config struct {
	// TTL bounds token lifetime. Tokens never outlive the session they
	// were minted from.
	TTL time.Duration

	Issuer   string
	Audience string
}

func DefaultConfig() Config {
	return Config{
		TTL:    5 * time.Minute,
		Issuer: "gatehouse",
	}
}

type Plugin struct {
	config Config
	secret []byte
	logger *slog.Logger
}

var _ core.Plugin = (*Plugin)(nil)

var ErrInvalidJWT = errors.New("invalid or expired jwt")

func New(config Config) *Plugin {
	defaults := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.Issuer == "" {
		config.Issuer = defaults.Issuer
	}
	return &Plugin{config: config}
}

func (p *Plugin) ID() string { return PluginID }

func (p *Plugin) Init(host core.PluginHost) error {
	secret := host.Secret()
	if len(secret) == 0 {
		return errors.New("jwt plugin requires a signing secret")
	}
	p.secret = secret
	p.logger = host.Logger()
	return nil
}

// Mint issues a token for the session's user. Expiry is capped at the
// session's own expiry so a revoked-soon session cannot outlive itself
// through its tokens.
func (p *Plugin) Mint(session *core.Session) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(p.config.TTL)
	if session.ExpiresAt.Before(expiry) {
		expiry = session.ExpiresAt
	}

	claims := jwt.RegisteredClaims{
		Subject:   session.UserID,
		Issuer:    p.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
		ID:        session.ID,
	}
	if p.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{p.config.Audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign jwt: %w", err)
	}
	return token, expiry, nil
}

// Validate parses and verifies a token minted by this plugin.
func (p *Plugin) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.config.Issuer),
		jwt.WithExpirationRequired(),
	}
	if p.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidJWT
	}
	return claims, nil
}

func (p *Plugin) Endpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:    "/token",
			Method:  "POST",
			Handler: p.handleToken,
			Metadata: core.EndpointMetadata{
				OperationID: "mintToken",
				Description: "Exchange a valid session for a short-lived JWT",
				Protected:   true,
			},
		},
	}
}

func (p *Plugin) handleToken(rc *core.RequestContext) error {
	token, expiry, err := p.Mint(rc.Session)
	if err != nil {
		return err
	}

	rc.Status = http.StatusOK
	rc.Result = map[string]interface{}{
		"token":     token,
		"expiresAt": expiry,
	}
	return nil
}
