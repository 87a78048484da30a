// Package nethttp mounts the auth surface on a standard library
// *http.ServeMux using Go 1.22 method patterns. It exists for applications
// that do not run a web framework.
package nethttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gatehouse-auth/gatehouse/core"
)

type contextKey string

const (
	userKey    contextKey = "gatehouse.user"
	sessionKey contextKey = "gatehouse.session"
)

// Adapter mounts the auth surface on a ServeMux.
type Adapter struct {
	mux *http.ServeMux
}

var _ core.HTTPProvider = (*Adapter)(nil)

func New(mux *http.ServeMux) *Adapter {
	return &Adapter{mux: mux}
}

func (a *Adapter) RegisterRoutes(auth core.AuthProvider, basePath string, extra []core.Endpoint) error {
	basePath = strings.TrimSuffix(basePath, "/")
	protect := a.middleware(auth)

	a.mux.HandleFunc("POST "+basePath+"/sign-up", a.signup(auth))
	a.mux.HandleFunc("POST "+basePath+"/sign-in", a.signin(auth))
	a.mux.HandleFunc("POST "+basePath+"/refresh", a.refresh(auth))
	a.mux.HandleFunc("POST "+basePath+"/verify-email/request", a.requestEmailVerification(auth))
	a.mux.HandleFunc("POST "+basePath+"/verify-email/confirm", a.verifyEmail(auth))
	a.mux.HandleFunc("POST "+basePath+"/reset-password/request", a.requestPasswordReset(auth))
	a.mux.HandleFunc("POST "+basePath+"/reset-password/confirm", a.resetPassword(auth))

	a.mux.Handle("POST "+basePath+"/sign-out", protect(http.HandlerFunc(a.signout(auth))))
	a.mux.Handle("GET "+basePath+"/session", protect(http.HandlerFunc(a.session(auth))))

	for _, ep := range extra {
		if ep.Handler == nil {
			continue
		}
		pattern := ep.Method + " " + basePath + ep.Path
		handler := a.wrap(auth, ep)
		if ep.Metadata.Protected {
			a.mux.Handle(pattern, protect(handler))
		} else {
			a.mux.Handle(pattern, handler)
		}
	}

	return nil
}

// BuildProtectedMiddleware returns a func(http.Handler) http.Handler that
// validates the session token and stores user and session on the request
// context.
func (a *Adapter) BuildProtectedMiddleware(auth core.AuthProvider) interface{} {
	return a.middleware(auth)
}

func (a *Adapter) middleware(auth core.AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
				writeError(w, http.StatusUnauthorized, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, data.User)
			ctx = context.WithValue(ctx, sessionKey, data.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user stored by the protected
// middleware, or nil.
func UserFromContext(r *http.Request) *core.User {
	user, _ := r.Context().Value(userKey).(*core.User)
	return user
}

// SessionFromContext returns the session stored by the protected
// middleware, or nil.
func SessionFromContext(r *http.Request) *core.Session {
	session, _ := r.Context().Value(sessionKey).(*core.Session)
	return session
}

// wrap adapts a framework-agnostic endpoint handler.
func (a *Adapter) wrap(auth core.AuthProvider, ep core.Endpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("unreadable request body"))
			return
		}

		// Token extraction is best effort here; protected endpoints have
		// already been vetted by the middleware.
		token, _ := extractToken(r)

		rc := &core.RequestContext{
			Context:   r.Context(),
			Request:   r,
			Auth:      auth,
			Session:   SessionFromContext(r),
			Body:      body,
			Token:     token,
			IPAddress: remoteIP(r),
			UserAgent: r.UserAgent(),
		}

		if err := ep.Handler(rc); err != nil {
			writeError(w, mapErrorToStatus(err), err)
			return
		}

		status := rc.Status
		if status == 0 {
			status = http.StatusOK
		}
		if rc.Result == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, rc.Result)
	})
}
