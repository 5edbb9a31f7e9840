package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/branchline/accounts/internal/auth"
)

// RegisterAuthRoutes wires registration and session endpoints. rateLimiter
// and idempotency may be nil.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, idempotency fiber.Handler) {
	r.Post("/registration", chain(idempotency, h.Register)...)
	r.Post("/login", chain(rateLimiter, h.Login)...)
	r.Post("/logout", h.Logout)
	r.Post("/refresh", h.Refresh)
}

func chain(mw, h fiber.Handler) []fiber.Handler {
	if mw == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{mw, h}
}
