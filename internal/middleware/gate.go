package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/branchline/accounts/internal/auth"
)

// Gate authenticates bearer access tokens and authorizes routes against a
// policy table.
type Gate struct {
	tokens   *auth.Tokens
	policies *auth.PolicyTable
	logger   *slog.Logger
}

// NewGate builds a gate.
func NewGate(tokens *auth.Tokens, policies *auth.PolicyTable, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, policies: policies, logger: logger}
}

// Authenticate requires a valid access token. A missing or malformed header
// is 401; a token that fails verification is 403.
func (g *Gate) Authenticate(c *fiber.Ctx) error {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	}
	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		g.logger.Debug("access token rejected", slog.String("path", c.Path()), slog.Any("error", err))
		return fiber.NewError(http.StatusForbidden, "Forbidden")
	}
	auth.SetRequestIdentity(c, claims)
	return c.Next()
}

// Authorize checks the caller against the policy registered for the matched
// route. Routes without a policy are denied.
func (g *Gate) Authorize(c *fiber.Ctx) error {
	route := c.Route()
	policy, ok := g.policies.Lookup(route.Method, route.Path)
	if !ok {
		g.logger.Warn("no policy for route", slog.String("method", route.Method), slog.String("route", route.Path))
		return fiber.NewError(http.StatusForbidden, "Forbidden")
	}
	err := auth.Authorize(auth.RequestIdentity(c), policy)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		return fiber.NewError(http.StatusForbidden, "Forbidden")
	}
	return c.Next()
}
