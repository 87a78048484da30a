package nethttp

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

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

func (a *Adapter) signup(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input core.SignUpInput
		if !decodeBody(w, r, &input) {
			return
		}

		result, err := auth.SignUp(r.Context(), input, remoteIP(r), r.UserAgent())
		if err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		writeJSON(w, http.StatusCreated, result)
	}
}

func (a *Adapter) signin(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input core.SignInInput
		if !decodeBody(w, r, &input) {
			return
		}

		result, err := auth.SignIn(r.Context(), input, remoteIP(r), r.UserAgent())
		if err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		if result.TwoFactorRequired {
			writeJSON(w, http.StatusAccepted, result)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (a *Adapter) signout(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, core.ErrMissingAuthHeader)
			return
		}

		if err := auth.SignOut(r.Context(), token); err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "signed out successfully"})
	}
}

func (a *Adapter) session(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, core.ErrMissingAuthHeader)
			return
		}

		data, err := auth.GetSession(r.Context(), token)
		if err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, data)
	}
}

func (a *Adapter) refresh(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, core.ErrMissingAuthHeader)
			return
		}

		result, err := auth.Refresh(r.Context(), token)
		if err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func (a *Adapter) requestEmailVerification(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input emailRequest
		if !decodeBody(w, r, &input) {
			return
		}

		if err := auth.RequestEmailVerification(r.Context(), input.Email); err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func (a *Adapter) verifyEmail(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input confirmRequest
		if !decodeBody(w, r, &input) {
			return
		}

		if err := auth.VerifyEmail(r.Context(), input.ChallengeID, input.Code); err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
	}
}

func (a *Adapter) requestPasswordReset(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input emailRequest
		if !decodeBody(w, r, &input) {
			return
		}

		if err := auth.RequestPasswordReset(r.Context(), input.Email); err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func (a *Adapter) resetPassword(auth core.AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input resetPasswordRequest
		if !decodeBody(w, r, &input) {
			return
		}

		err := auth.ResetPassword(r.Context(), input.ChallengeID, input.Code, input.NewPassword)
		if err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
	}
}

// extractToken checks the Authorization header first, then falls back to the
// auth cookie. A present header that is not "Bearer <token>" is rejected
// rather than silently ignored.
func extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			return authHeader[7:], nil
		}
		return "", core.ErrInvalidAuthHeader
	}

	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return "", nil
	}
	return cookie.Value, nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

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
