package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes registration, login, logout and refresh endpoints.
type Handler struct {
	svc     *Service
	cookies *CookieManager
	logger  *slog.Logger
}

func NewHandler(svc *Service, cookies *CookieManager, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, cookies: cookies, logger: logger}
}

// Register creates a customer account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegistrationInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	user, err := h.svc.Register(c.UserContext(), req)
	if err != nil {
		return mapError(err)
	}
	h.logger.Info("auth.register completed",
		slog.String("user_id", user.ID),
		slog.Int("status", http.StatusCreated),
	)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "New customer successfully created"})
}

// Login verifies credentials, binds the refresh cookie and returns the access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	session, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return mapError(err)
	}
	h.cookies.Bind(c, session.RefreshToken)
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": session.AccessToken})
}

// Logout revokes the refresh session and clears the cookie. Without a cookie
// there is nothing to do and the response is 204.
func (h *Handler) Logout(c *fiber.Ctx) error {
	err := h.svc.Logout(c.UserContext(), h.cookies.Read(c))
	if errors.Is(err, ErrNoSession) {
		return c.SendStatus(http.StatusNoContent)
	}
	if err != nil {
		return err
	}
	h.cookies.Clear(c)
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Cookie cleared"})
}

// Refresh issues a new access token from the refresh cookie.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	token, err := h.svc.Refresh(c.UserContext(), h.cookies.Read(c))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": token})
}

// mapError turns auth errors into client-safe responses. Unknown errors pass
// through to the application error handler as 500s.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, "All fields are required")
	case errors.Is(err, ErrPasswordInvalid):
		return fiber.NewError(http.StatusBadRequest, "Password must be between 1 and 72 bytes")
	case errors.Is(err, ErrDuplicate):
		return fiber.NewError(http.StatusBadRequest, "User already exists")
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, ErrAccountInactive):
		return fiber.NewError(http.StatusForbidden, "Account is inactive")
	case errors.Is(err, ErrUnauthenticated):
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrForbidden):
		return fiber.NewError(http.StatusForbidden, "Forbidden")
	case errors.Is(err, ErrCreation):
		return fiber.NewError(http.StatusInternalServerError, "User could not be created")
	default:
		return err
	}
}
