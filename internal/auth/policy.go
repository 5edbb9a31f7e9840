package auth

import (
	"slices"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/branchline/accounts/internal/identity"
)

const identityLocalKey = "auth.identity"

// Policy lists the roles allowed to invoke a route.
type Policy struct {
	Roles []identity.Role
}

// Allow builds a policy admitting exactly roles.
func Allow(roles ...identity.Role) Policy {
	return Policy{Roles: roles}
}

// AnyRole admits every authenticated caller.
func AnyRole() Policy {
	return Allow(identity.Roles...)
}

// Permits reports whether role is admitted.
func (p Policy) Permits(role identity.Role) bool {
	return slices.Contains(p.Roles, role)
}

// Authorize decides whether claims satisfy policy. It has no side effects.
func Authorize(claims *Claims, policy Policy) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	if !policy.Permits(claims.Role) {
		return ErrForbidden
	}
	return nil
}

// PolicyTable maps "METHOD /path" route keys to policies.
type PolicyTable struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewPolicyTable returns an empty table. Routes absent from it are denied.
func NewPolicyTable() *PolicyTable {
	return &PolicyTable{policies: make(map[string]Policy)}
}

// PolicyKey formats the table key for a route.
func PolicyKey(method, path string) string {
	return method + " " + path
}

// Set registers policy for the route.
func (t *PolicyTable) Set(method, path string, policy Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policies[PolicyKey(method, path)] = policy
}

// Lookup returns the policy for a route. HEAD falls back to the GET policy.
func (t *PolicyTable) Lookup(method, path string) (Policy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.policies[PolicyKey(method, path)]
	if !ok && method == fiber.MethodHead {
		p, ok = t.policies[PolicyKey(fiber.MethodGet, path)]
	}
	return p, ok
}

// SetRequestIdentity attaches verified claims to the request.
func SetRequestIdentity(c *fiber.Ctx, claims *Claims) {
	c.Locals(identityLocalKey, claims)
}

// RequestIdentity returns the claims attached by SetRequestIdentity, or nil.
func RequestIdentity(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(identityLocalKey).(*Claims)
	return claims
}
