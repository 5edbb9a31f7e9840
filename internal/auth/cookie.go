package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionCookieName is the cookie carrying the refresh token.
const SessionCookieName = "jwt"

// CookieManager binds the refresh token to an HTTP-only cookie. Bind and
// Clear always emit identical attributes so clients treat them as the same
// cookie.
type CookieManager struct {
	maxAge time.Duration
	domain string
}

// NewCookieManager returns a manager whose cookies live for maxAge.
func NewCookieManager(maxAge time.Duration, domain string) *CookieManager {
	if maxAge <= 0 {
		maxAge = DefaultRefreshTTL
	}
	return &CookieManager{maxAge: maxAge, domain: domain}
}

func (m *CookieManager) cookie(value string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.domain,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	}
}

// Bind sets the session cookie to token.
func (m *CookieManager) Bind(c *fiber.Ctx, token string) {
	ck := m.cookie(token)
	ck.MaxAge = int(m.maxAge.Seconds())
	c.Cookie(ck)
}

// Read returns the session cookie value, or "" when absent.
func (m *CookieManager) Read(c *fiber.Ctx) string {
	return c.Cookies(SessionCookieName)
}

// Clear expires the session cookie. It returns false, and writes nothing,
// when the request carried no session cookie.
func (m *CookieManager) Clear(c *fiber.Ctx) bool {
	if m.Read(c) == "" {
		return false
	}
	ck := m.cookie("")
	ck.Expires = time.Unix(0, 0)
	c.Cookie(ck)
	return true
}
