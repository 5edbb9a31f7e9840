package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/branchline/accounts/internal/auth"
	"github.com/branchline/accounts/internal/identity"
	"github.com/branchline/accounts/internal/middleware"
)

// ProfileHandler serves profile reads and edits for authenticated callers.
type ProfileHandler struct {
	svc *identity.Service
}

func NewProfileHandler(svc *identity.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// RegisterProfileRoutes mounts the profile endpoints under prefix+"/profile",
// each behind the gate with its policy recorded in policies.
func RegisterProfileRoutes(app *fiber.App, prefix string, h *ProfileHandler, gate *middleware.Gate, policies *auth.PolicyTable) {
	base := prefix + "/profile"
	guard := func(method, path string, policy auth.Policy, handler fiber.Handler) {
		policies.Set(method, base+path, policy)
		app.Add(method, base+path, gate.Authenticate, gate.Authorize, handler)
	}
	guard(fiber.MethodGet, "/view", auth.AnyRole(), h.View)
	guard(fiber.MethodPatch, "/update", auth.AnyRole(), h.Update)
	guard(fiber.MethodDelete, "/delete", auth.Allow(identity.RoleAdmin, identity.RoleOwner), h.Delete)
}

// View returns the caller's profile, or the one named by ?id=.
func (h *ProfileHandler) View(c *fiber.Ctx) error {
	user, err := h.svc.View(c.UserContext(), actor(c), c.Query("id"))
	if err != nil {
		return profileError(err)
	}
	return c.Status(http.StatusOK).JSON(user.Profile())
}

// Update applies the allow-listed fields in the body to the caller's
// profile, or the one named by ?id=.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	user, err := h.svc.Update(c.UserContext(), actor(c), c.Query("id"), fields)
	if err != nil {
		return profileError(err)
	}
	return c.Status(http.StatusOK).JSON(user.Profile())
}

// Delete removes the account named by the body's id.
func (h *ProfileHandler) Delete(c *fiber.Ctx) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := h.svc.Delete(c.UserContext(), actor(c), req.ID); err != nil {
		return profileError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "User successfully deleted"})
}

func actor(c *fiber.Ctx) identity.Actor {
	claims := auth.RequestIdentity(c)
	if claims == nil {
		return identity.Actor{}
	}
	return claims.Actor()
}

func profileError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidID):
		return fiber.NewError(http.StatusBadRequest, "Invalid User Id")
	case errors.Is(err, identity.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "User not found")
	case errors.Is(err, identity.ErrForbidden):
		return fiber.NewError(http.StatusForbidden, "Forbidden")
	case errors.Is(err, identity.ErrDuplicateEmail):
		return fiber.NewError(http.StatusBadRequest, "User already exists")
	case errors.Is(err, identity.ErrFieldNotAllowed),
		errors.Is(err, identity.ErrInvalidField),
		errors.Is(err, identity.ErrEmptyPatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
