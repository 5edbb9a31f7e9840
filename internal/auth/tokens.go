package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/branchline/accounts/internal/identity"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the payload carried by access and refresh tokens.
type Claims struct {
	Role identity.Role `json:"role"`
	Type string        `json:"typ"`
	jwt.RegisteredClaims
}

// Actor returns the identity the claims were issued for.
func (c *Claims) Actor() identity.Actor {
	return identity.Actor{ID: c.Subject, Role: c.Role}
}

// TokenConfig holds the signing material for both token classes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Tokens issues and verifies HS256 tokens. Access and refresh tokens use
// separate secrets and a distinct "typ" claim.
type Tokens struct {
	cfg TokenConfig
	now func() time.Time
}

// NewTokens validates cfg. A missing or shared secret is a startup error.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh token secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Tokens{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of t that reads time from now.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	c := *t
	c.now = now
	return &c
}

// RefreshTTL is the lifetime of refresh tokens and of the session cookie.
func (t *Tokens) RefreshTTL() time.Duration {
	return t.cfg.RefreshTTL
}

// IssueAccess signs a short-lived access token for user.
func (t *Tokens) IssueAccess(user identity.User) (string, *Claims, error) {
	return t.issue(user, tokenTypeAccess, t.cfg.AccessSecret, t.cfg.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for user. Each refresh token
// carries a unique ID so it can be revoked.
func (t *Tokens) IssueRefresh(user identity.User) (string, *Claims, error) {
	return t.issue(user, tokenTypeRefresh, t.cfg.RefreshSecret, t.cfg.RefreshTTL)
}

func (t *Tokens) issue(user identity.User, typ, secret string, ttl time.Duration) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		Role: user.Role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ == tokenTypeRefresh {
		claims.ID = uuid.NewString()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, claims, nil
}

// VerifyAccess validates an access token and returns its claims.
func (t *Tokens) VerifyAccess(token string) (*Claims, error) {
	return t.verify(token, tokenTypeAccess, t.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (t *Tokens) VerifyRefresh(token string) (*Claims, error) {
	claims, err := t.verify(token, tokenTypeRefresh, t.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}
	return claims, nil
}

// verify returns an error wrapping ErrTokenInvalid for any failure. The
// wrapped cause is for server logs only.
func (t *Tokens) verify(token, typ, secret string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrTokenInvalid)
	}
	return claims, nil
}
