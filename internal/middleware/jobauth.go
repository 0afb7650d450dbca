package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// NewJobAuth guards the scheduler-triggered job endpoints with a bearer
// shared secret, compared in constant time. An empty configured secret
// disables the endpoints entirely rather than leaving them open.
func NewJobAuth(secret string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if secret == "" {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Job endpoints are disabled")
		}

		auth := c.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid bearer token")
		}

		return c.Next()
	}
}
