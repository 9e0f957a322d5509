package relayapi

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/raffleport/relay/pkg/logx"
)

// APIKeyAuth gates mutating routes behind a static operator key passed in
// X-API-Key. The comparison is constant-time.
func APIKeyAuth(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get("X-API-Key")
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "UNAUTHORIZED",
				"message": "Missing or invalid API key",
			})
		}
		return c.Next()
	}
}

// IPAllowlist rejects requests from addresses outside the allowlist. An
// empty allowlist admits everyone.
func IPAllowlist(allowed []string) fiber.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		allowedSet[ip] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, ok := allowedSet[c.IP()]; !ok {
			logx.WithField("ip", c.IP()).Warn("relayapi: rejected request from unlisted address")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "FORBIDDEN",
				"message": "Address not allowed",
			})
		}
		return c.Next()
	}
}
