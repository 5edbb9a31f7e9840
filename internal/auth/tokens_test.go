package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchline/accounts/internal/identity"
)

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "accounts-test",
	})
	require.NoError(t, err)
	return tokens
}

func testUser() identity.User {
	return identity.User{ID: uuid.NewString(), Email: "a@b.com", Role: identity.RoleCustomer, Status: identity.StatusActive}
}

func TestNewTokensValidatesSecrets(t *testing.T) {
	_, err := NewTokens(TokenConfig{AccessSecret: "a"})
	assert.Error(t, err)

	_, err = NewTokens(TokenConfig{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)

	tokens, err := NewTokens(TokenConfig{AccessSecret: "a", RefreshSecret: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRefreshTTL, tokens.RefreshTTL())
}

func TestIssueAndVerifyAccess(t *testing.T) {
	tokens := testTokens(t)
	user := testUser()
	now := time.Now()
	tokens = tokens.WithClock(func() time.Time { return now })

	signed, issued, err := tokens.IssueAccess(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultAccessTTL).Unix(), issued.ExpiresAt.Unix())
	assert.Empty(t, issued.ID)

	claims, err := tokens.VerifyAccess(signed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, identity.RoleCustomer, claims.Role)
	assert.Equal(t, identity.Actor{ID: user.ID, Role: identity.RoleCustomer}, claims.Actor())
}

func TestRefreshTokensCarryUniqueIDs(t *testing.T) {
	tokens := testTokens(t)
	user := testUser()

	first, firstClaims, err := tokens.IssueRefresh(user)
	require.NoError(t, err)
	_, secondClaims, err := tokens.IssueRefresh(user)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)

	claims, err := tokens.VerifyRefresh(first)
	require.NoError(t, err)
	assert.Equal(t, firstClaims.ID, claims.ID)
	assert.WithinDuration(t, time.Now().Add(DefaultRefreshTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	tokens := testTokens(t)
	user := testUser()

	access, _, err := tokens.IssueAccess(user)
	require.NoError(t, err)
	refresh, _, err := tokens.IssueRefresh(user)
	require.NoError(t, err)

	_, err = tokens.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = tokens.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := testTokens(t)
	issuedAt := time.Now().Add(-16 * time.Minute)

	signed, _, err := tokens.WithClock(func() time.Time { return issuedAt }).IssueAccess(testUser())
	require.NoError(t, err)

	_, err = tokens.VerifyAccess(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsForgedTokens(t *testing.T) {
	tokens := testTokens(t)
	user := testUser()
	valid := Claims{
		Role: identity.RoleAdmin,
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    "accounts-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, valid).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	_, err = tokens.VerifyAccess(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.VerifyAccess(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noExpiry := valid
	noExpiry.ExpiresAt = nil
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noExpiry).SignedString([]byte("access-secret"))
	require.NoError(t, err)
	_, err = tokens.VerifyAccess(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	unknownRole := valid
	unknownRole.Role = "superuser"
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, unknownRole).SignedString([]byte("access-secret"))
	require.NoError(t, err)
	_, err = tokens.VerifyAccess(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tokens.VerifyAccess("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
