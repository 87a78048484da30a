package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/gatehouse-auth/gatehouse/core"
)

type emailRequest struct {
	Email string `json:"email"`
}

type confirmRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

type resetPasswordRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// signup returns a handler for the sign-up endpoint
func (a *Adapter) signup(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.SignUpInput
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		result, err := auth.SignUp(c.Context(), input, c.IP(), c.Get(fiber.HeaderUserAgent))
		if err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusCreated).JSON(result)
	}
}

// signin returns a handler for the sign-in endpoint
func (a *Adapter) signin(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.SignInInput
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		result, err := auth.SignIn(c.Context(), input, c.IP(), c.Get(fiber.HeaderUserAgent))
		if err != nil {
			return handleAuthError(c, err)
		}

		if result.TwoFactorRequired {
			// No session yet; the client completes the login through the
			// second-factor verify endpoint.
			return c.Status(http.StatusAccepted).JSON(result)
		}
		return c.Status(http.StatusOK).JSON(result)
	}
}

// signout returns a handler for the sign-out endpoint
func (a *Adapter) signout(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return unauthorized(c, err)
		}
		if token == "" {
			return unauthorized(c, core.ErrMissingAuthHeader)
		}

		if err := auth.SignOut(c.Context(), token); err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusOK).JSON(map[string]string{
			"message": "signed out successfully",
		})
	}
}

// session returns a handler for the get-session endpoint
func (a *Adapter) session(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return unauthorized(c, err)
		}
		if token == "" {
			return unauthorized(c, core.ErrMissingAuthHeader)
		}

		data, err := auth.GetSession(c.Context(), token)
		if err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusOK).JSON(data)
	}
}

// refresh returns a handler for the token refresh endpoint
func (a *Adapter) refresh(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return unauthorized(c, err)
		}
		if token == "" {
			return unauthorized(c, core.ErrMissingAuthHeader)
		}

		result, err := auth.Refresh(c.Context(), token)
		if err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

func (a *Adapter) requestEmailVerification(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input emailRequest
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		if err := auth.RequestEmailVerification(c.Context(), input.Email); err != nil {
			return handleAuthError(c, err)
		}

		// 202 regardless of whether the address exists.
		return c.SendStatus(http.StatusAccepted)
	}
}

func (a *Adapter) verifyEmail(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input confirmRequest
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		if err := auth.VerifyEmail(c.Context(), input.ChallengeID, input.Code); err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusOK).JSON(map[string]string{
			"message": "email verified",
		})
	}
}

func (a *Adapter) requestPasswordReset(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input emailRequest
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		if err := auth.RequestPasswordReset(c.Context(), input.Email); err != nil {
			return handleAuthError(c, err)
		}

		return c.SendStatus(http.StatusAccepted)
	}
}

func (a *Adapter) resetPassword(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input resetPasswordRequest
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		err := auth.ResetPassword(c.Context(), input.ChallengeID, input.Code, input.NewPassword)
		if err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusOK).JSON(map[string]string{
			"message": "password updated",
		})
	}
}

// extractToken extracts the authentication token from the request.
// A present Authorization header must carry "Bearer <token>"; anything else
// is rejected rather than silently ignored. Without the header the
// auth_token cookie is consulted.
func extractToken(c fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader != "" {
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			return authHeader[7:], nil
		}
		return "", core.ErrInvalidAuthHeader
	}

	return c.Cookies("auth_token"), nil
}

func badRequest(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(map[string]string{
		"error": "invalid request body",
	})
}

func unauthorized(c fiber.Ctx, err error) error {
	return c.Status(http.StatusUnauthorized).JSON(map[string]string{
		"error": err.Error(),
	})
}

// handleAuthError maps authentication errors to appropriate HTTP responses
func handleAuthError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	return c.Status(status).JSON(map[string]string{
		"error": err.Error(),
	})
}

// mapErrorToStatus maps core error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrRateLimited),
		errors.Is(err, core.ErrTooManyAttempts):
		return http.StatusTooManyRequests

	case errors.Is(err, core.ErrUserExists):
		return http.StatusConflict

	case errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrInvalidAuthHeader),
		errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrInvalidOAuthState),
		errors.Is(err, core.ErrAccountNotLinked),
		errors.Is(err, core.ErrVerificationNotFound),
		errors.Is(err, core.ErrVerificationInvalid):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrEmailRequired),
		errors.Is(err, core.ErrPasswordRequired),
		errors.Is(err, core.ErrPasswordTooShort),
		errors.Is(err, core.ErrPasswordTooLong),
		errors.Is(err, core.ErrInvalidEmail),
		errors.Is(err, core.ErrProviderNotFound):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
