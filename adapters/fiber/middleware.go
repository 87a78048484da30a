package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/gatehouse-auth/gatehouse/core"
)

// BuildProtectedMiddleware creates a Fiber middleware that validates auth
// tokens and stores user/session data in the context for downstream handlers.
func (a *Adapter) BuildProtectedMiddleware(auth core.AuthProvider) interface{} {
	return fiber.Handler(func(c fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return unauthorized(c, err)
		}
		if token == "" {
			return unauthorized(c, core.ErrMissingAuthHeader)
		}

		data, err := auth.GetSession(c.Context(), token)
		if err != nil {
			return unauthorized(c, err)
		}

		// Store user and session in context for downstream handlers
		c.Locals("user", data.User)
		c.Locals("session", data.Session)

		return c.Next()
	})
}
