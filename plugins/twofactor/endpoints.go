package twofactor

import (
	"encoding/json"
	"net/http"

	"github.com/gatehouse-auth/gatehouse/core"
)

func (p *Plugin) Endpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:    "/two-factor/enroll",
			Method:  "POST",
			Handler: p.handleEnroll,
			Metadata: core.EndpointMetadata{
				OperationID: "twoFactorEnroll",
				Description: "Generate a TOTP secret and provisioning URI for the current user",
				Protected:   true,
			},
		},
		{
			Path:    "/two-factor/confirm",
			Method:  "POST",
			Handler: p.handleConfirm,
			Metadata: core.EndpointMetadata{
				OperationID: "twoFactorConfirm",
				Description: "Activate a pending TOTP enrollment with a current code",
				Protected:   true,
			},
		},
		{
			Path:    "/two-factor/verify",
			Method:  "POST",
			Handler: p.handleVerify,
			Metadata: core.EndpointMetadata{
				OperationID: "twoFactorVerify",
				Description: "Complete a pending login with an authenticator code",
			},
		},
		{
			Path:    "/two-factor/disable",
			Method:  "POST",
			Handler: p.handleDisable,
			Metadata: core.EndpointMetadata{
				OperationID: "twoFactorDisable",
				Description: "Remove the current user's TOTP enrollment",
				Protected:   true,
			},
		},
	}
}

func (p *Plugin) handleEnroll(rc *core.RequestContext) error {
	user, err := p.db.GetUserByID(rc.Context, rc.Session.UserID)
	if err != nil {
		return err
	}

	result, err := p.Enroll(rc.Context, user)
	if err != nil {
		return err
	}

	rc.Status = http.StatusOK
	rc.Result = result
	return nil
}

func (p *Plugin) handleConfirm(rc *core.RequestContext) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rc.Body, &body); err != nil {
		return core.ErrVerificationInvalid
	}

	if err := p.Confirm(rc.Context, rc.Session.UserID, body.Code); err != nil {
		return err
	}

	rc.Status = http.StatusOK
	rc.Result = map[string]bool{"enabled": true}
	return nil
}

func (p *Plugin) handleVerify(rc *core.RequestContext) error {
	var body struct {
		ChallengeID string `json:"challengeId"`
		Code        string `json:"code"`
	}
	if err := json.Unmarshal(rc.Body, &body); err != nil {
		return core.ErrVerificationInvalid
	}

	result, err := p.Verify(rc.Context, body.ChallengeID, body.Code, rc.IPAddress, rc.UserAgent)
	if err != nil {
		return err
	}

	rc.Status = http.StatusOK
	rc.Result = result
	return nil
}

func (p *Plugin) handleDisable(rc *core.RequestContext) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rc.Body, &body); err != nil {
		return core.ErrVerificationInvalid
	}

	if err := p.Disable(rc.Context, rc.Session.UserID, body.Code); err != nil {
		return err
	}

	rc.Status = http.StatusOK
	rc.Result = map[string]bool{"enabled": false}
	return nil
}
