package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gustavoatec2-lang/havencomics/internal/pipeline"
)

// AdminAuth requires "Authorization: Bearer <token>". With no token
// configured every admin request is refused.
func AdminAuth(token string) fiber.Handler {
	expected := []byte(strings.TrimSpace(token))

	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return errorJSON(c, fiber.StatusForbidden, pipeline.KindAuthorization, "admin access is not configured")
		}

		provided, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		provided = strings.TrimSpace(provided)
		if !ok || provided == "" {
			return errorJSON(c, fiber.StatusUnauthorized, pipeline.KindAuthorization, "missing bearer token")
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			return errorJSON(c, fiber.StatusForbidden, pipeline.KindAuthorization, "invalid admin token")
		}
		return c.Next()
	}
}
