package fiber

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/gatehouse-auth/gatehouse/core"
)

// Adapter mounts the auth surface on a Fiber application.
type Adapter struct {
	app *fiber.App
}

var _ core.HTTPProvider = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app}
}

// RegisterRoutes mounts the base endpoints with native handlers, then the
// strategy and plugin endpoints with generically wrapped handlers.
func (a *Adapter) RegisterRoutes(auth core.AuthProvider, basePath string, extra []core.Endpoint) error {
	api := a.app.Group(basePath)
	requireAuth := a.BuildProtectedMiddleware(auth).(fiber.Handler)

	// Public routes
	api.Post("/sign-up", a.signup(auth))
	api.Post("/sign-in", a.signin(auth))
	api.Post("/refresh", a.refresh(auth))
	api.Post("/verify-email/request", a.requestEmailVerification(auth))
	api.Post("/verify-email/confirm", a.verifyEmail(auth))
	api.Post("/reset-password/request", a.requestPasswordReset(auth))
	api.Post("/reset-password/confirm", a.resetPassword(auth))

	// Protected routes
	api.Post("/sign-out", a.signout(auth), requireAuth)
	api.Get("/session", a.session(auth), requireAuth)

	for _, ep := range extra {
		if ep.Handler == nil {
			continue
		}
		handler := a.wrap(auth, ep)
		if ep.Metadata.Protected {
			api.Add([]string{ep.Method}, ep.Path, handler, requireAuth)
		} else {
			api.Add([]string{ep.Method}, ep.Path, handler)
		}
	}

	return nil
}

// wrap adapts a framework-agnostic endpoint handler to a Fiber handler.
func (a *Adapter) wrap(auth core.AuthProvider, ep core.Endpoint) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Token extraction is best effort here; protected endpoints have
		// already been vetted by the middleware.
		token, _ := extractToken(c)
		rc := &core.RequestContext{
			Context:   c.Context(),
			Request:   c,
			Auth:      auth,
			Body:      c.Body(),
			Token:     token,
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}
		if session, ok := c.Locals("session").(*core.Session); ok {
			rc.Session = session
		}

		if err := ep.Handler(rc); err != nil {
			return handleAuthError(c, err)
		}

		status := rc.Status
		if status == 0 {
			status = http.StatusOK
		}
		if rc.Result == nil {
			return c.SendStatus(status)
		}
		return c.Status(status).JSON(rc.Result)
	}
}
