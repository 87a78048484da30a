package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gatehouse-auth/gatehouse/core"
)

// ProviderEmailOTP is the strategy ID for one-time-code sign-in.
const ProviderEmailOTP = "email-otp"

// EmailOTPStrategy signs users in with a short-lived code delivered to
// their email address. It only works for existing users; unknown addresses
// are not revealed to the caller.
type EmailOTPStrategy struct {
	db            core.AuthStorage
	verifications *VerificationService
}

var (
	_ core.Strategy          = (*EmailOTPStrategy)(nil)
	_ core.StrategyEndpoints = (*EmailOTPStrategy)(nil)
)

func NewEmailOTPStrategy(db core.AuthStorage, verifications *VerificationService) *EmailOTPStrategy {
	return &EmailOTPStrategy{db: db, verifications: verifications}
}

func (s *EmailOTPStrategy) ID() string { return ProviderEmailOTP }

// Request issues a sign-in code for the given address. For unknown
// addresses it silently succeeds so the endpoint cannot be used to
// discover which emails are registered.
func (s *EmailOTPStrategy) Request(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return "", err
	}

	if _, err := s.db.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}

	challengeID, _, err := s.verifications.Issue(ctx, email, PurposeSignInOTP)
	if err != nil {
		return "", err
	}
	return challengeID, nil
}

// Authenticate redeems the challenge and resolves the user it was issued
// for. Any verification failure surfaces as invalid credentials except the
// attempt-budget error, which the caller may want to report distinctly.
func (s *EmailOTPStrategy) Authenticate(ctx context.Context, cred core.Credential) (*core.User, error) {
	if cred.ChallengeID == "" || cred.Code == "" {
		return nil, core.ErrInvalidCredentials
	}

	record, err := s.verifications.Consume(ctx, cred.ChallengeID, cred.Code, PurposeSignInOTP)
	if err != nil {
		if errors.Is(err, core.ErrTooManyAttempts) {
			return nil, err
		}
		return nil, core.ErrInvalidCredentials
	}

	user, err := s.db.GetUserByEmail(ctx, record.Identifier)
	if err != nil {
		return nil, core.ErrInvalidCredentials
	}
	return user, nil
}

func (s *EmailOTPStrategy) Endpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:    "/sign-in/otp/request",
			Method:  "POST",
			Handler: s.handleRequest,
			Metadata: core.EndpointMetadata{
				OperationID: "requestSignInCode",
				Description: "Send a one-time sign-in code to an email address",
			},
		},
	}
}

// handleRequest always answers 202 with whatever challenge ID was issued
// (empty for unknown addresses), so the response shape does not reveal
// whether the email is registered.
func (s *EmailOTPStrategy) handleRequest(rc *core.RequestContext) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(rc.Body, &body); err != nil {
		return core.ErrEmailRequired
	}

	challengeID, err := s.Request(rc.Context, body.Email)
	if err != nil {
		return err
	}

	rc.Status = http.StatusAccepted
	rc.Result = map[string]string{"challengeId": challengeID}
	return nil
}
