package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/pkg/response"
)

// PushVerifier checks the bearer token on push deliveries.
type PushVerifier interface {
	Enabled() bool
	Verify(authHeader string) error
}

// WorkerAuth guards push delivery routes. A disabled verifier lets every
// request through, which is only meant for local development.
func WorkerAuth(v PushVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v == nil || !v.Enabled() {
			log.Warn().Str("path", c.Path()).Msg("Worker push verification disabled")
			return c.Next()
		}
		if err := v.Verify(c.Get("Authorization")); err != nil {
			log.Error().Err(err).Str("path", c.Path()).Msg("Worker push token rejected")
			return response.Unauthorized(c, "Invalid worker identity token")
		}
		return c.Next()
	}
}
