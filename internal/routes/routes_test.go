package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/branchline/accounts/internal/auth"
	"github.com/branchline/accounts/internal/config"
	"github.com/branchline/accounts/internal/identity"
	"github.com/branchline/accounts/internal/logging"
	"github.com/branchline/accounts/internal/middleware"
)

type testEnv struct {
	app   *fiber.App
	users identity.Repository
}

func newTestEnv(t *testing.T, cache *redis.Client) testEnv {
	t.Helper()
	cfg := config.Config{
		AppEnv:             "test",
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		BcryptCost:         bcrypt.MinCost,
	}
	logger := logging.Discard()
	users := identity.NewMemoryRepository()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger, Users: users}))
	return testEnv{app: app, users: users}
}

func (e testEnv) seed(t *testing.T, email, password string, role identity.Role) identity.User {
	t.Helper()
	hash, err := auth.NewPasswordHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	user := identity.User{
		ID: uuid.NewString(), FirstName: "Seed", LastName: "User", Email: email,
		PasswordHash: hash, Role: role, Status: identity.StatusActive,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

type request struct {
	method string
	path   string
	body   string
	token  string
	cookie *http.Cookie
	header map[string]string
}

type response struct {
	status int
	body   string
	resp   *http.Response
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.body), &out))
	return out
}

func (e testEnv) do(t *testing.T, r request) response {
	t.Helper()
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if r.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.token)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: string(raw), resp: resp}
}

func (e testEnv) login(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	res := e.do(t, request{method: http.MethodPost, path: "/login", body: `{"email":"` + email + `","password":"` + password + `"}`})
	require.Equal(t, http.StatusOK, res.status, res.body)
	token, _ := res.json(t)["token"].(string)
	require.NotEmpty(t, token)
	for _, ck := range res.resp.Cookies() {
		if ck.Name == auth.SessionCookieName {
			return token, ck
		}
	}
	t.Fatal("login did not set the session cookie")
	return "", nil
}

func TestRegisterLoginViewProfile(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.do(t, request{method: http.MethodPost, path: "/registration", body: `{"firstname":"A","lastname":"B","email":"a@b.com","password":"secret1"}`})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	assert.Equal(t, "New customer successfully created", res.json(t)["message"])

	token, cookie := env.login(t, "a@b.com", "secret1")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	res = env.do(t, request{method: http.MethodGet, path: "/profile/view", token: token})
	require.Equal(t, http.StatusOK, res.status, res.body)
	profile := res.json(t)
	assert.Equal(t, "a@b.com", profile["email"])
	assert.NotContains(t, strings.ToLower(res.body), "password")

	for _, field := range []string{"createdAt", "updatedAt"} {
		raw, _ := profile[field].(string)
		stamp, err := time.Parse(time.RFC3339Nano, raw)
		require.NoError(t, err, field)
		assert.WithinDuration(t, time.Now(), stamp, time.Minute, field)
	}
}

func TestRegistrationFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@b.com", "secret1", identity.RoleCustomer)

	res := env.do(t, request{method: http.MethodPost, path: "/registration", body: `{"firstname":"A","email":"x@b.com","password":"p"}`})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, map[string]any{"message": "All fields are required", "isError": true}, res.json(t))

	res = env.do(t, request{method: http.MethodPost, path: "/registration", body: `{"firstname":"A","lastname":"B","email":"A@B.com","password":"p"}`})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "User already exists", res.json(t)["message"])
}

func TestLoginDoesNotRevealUnknownEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@b.com", "secret1", identity.RoleCustomer)

	unknown := env.do(t, request{method: http.MethodPost, path: "/login", body: `{"email":"nobody@b.com","password":"secret1"}`})
	wrong := env.do(t, request{method: http.MethodPost, path: "/login", body: `{"email":"a@b.com","password":"bad"}`})

	assert.Equal(t, http.StatusBadRequest, unknown.status)
	assert.Equal(t, wrong.status, unknown.status)
	assert.Equal(t, wrong.body, unknown.body)
	assert.Equal(t, "Invalid credentials", unknown.json(t)["message"])
}

func TestGateStatuses(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.do(t, request{method: http.MethodGet, path: "/profile/view"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, true, res.json(t)["isError"])

	res = env.do(t, request{method: http.MethodGet, path: "/profile/view", token: "garbage"})
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestProfileUpdateAllowList(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.seed(t, "a@b.com", "secret1", identity.RoleCustomer)
	other := env.seed(t, "c@d.com", "secret1", identity.RoleCustomer)
	token, _ := env.login(t, "a@b.com", "secret1")

	res := env.do(t, request{method: http.MethodPatch, path: "/profile/update", token: token, body: `{"firstname":"Grace","phone":"555"}`})
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "Grace", res.json(t)["firstname"])

	res = env.do(t, request{method: http.MethodPatch, path: "/profile/update", token: token, body: `{"role":"admin"}`})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.json(t)["message"], "role")

	res = env.do(t, request{method: http.MethodPatch, path: "/profile/update", token: token, body: `{"password":"x"}`})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = env.do(t, request{method: http.MethodPatch, path: "/profile/update?id=" + other.ID, token: token, body: `{"firstname":"X"}`})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = env.do(t, request{method: http.MethodGet, path: "/profile/view?id=" + other.ID, token: token})
	assert.Equal(t, http.StatusForbidden, res.status)

	stored, err := env.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleCustomer, stored.Role)
}

func TestAdminProfileOperations(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "admin@b.com", "secret1", identity.RoleAdmin)
	target := env.seed(t, "a@b.com", "secret1", identity.RoleCustomer)
	adminToken, _ := env.login(t, "admin@b.com", "secret1")
	customerToken, _ := env.login(t, "a@b.com", "secret1")

	res := env.do(t, request{method: http.MethodPatch, path: "/profile/update?id=" + target.ID, token: adminToken, body: `{"role":"staff"}`})
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "staff", res.json(t)["role"])

	res = env.do(t, request{method: http.MethodDelete, path: "/profile/delete", token: customerToken, body: `{"id":"` + target.ID + `"}`})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = env.do(t, request{method: http.MethodDelete, path: "/profile/delete", token: adminToken, body: `{"id":"nope"}`})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid User Id", res.json(t)["message"])

	res = env.do(t, request{method: http.MethodDelete, path: "/profile/delete", token: adminToken, body: `{"id":"` + target.ID + `"}`})
	assert.Equal(t, http.StatusOK, res.status)

	res = env.do(t, request{method: http.MethodGet, path: "/profile/view?id=" + target.ID, token: adminToken})
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "User not found", res.json(t)["message"])

	res = env.do(t, request{method: http.MethodGet, path: "/profile/view?id=bad", token: adminToken})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestOwnerAccountOutOfAdminReach(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.seed(t, "owner@b.com", "secret1", identity.RoleOwner)
	admin := env.seed(t, "admin@b.com", "secret1", identity.RoleAdmin)
	adminToken, _ := env.login(t, "admin@b.com", "secret1")
	ownerToken, _ := env.login(t, "owner@b.com", "secret1")

	res := env.do(t, request{method: http.MethodPatch, path: "/profile/update?id=" + owner.ID, token: adminToken, body: `{"role":"customer","status":"inactive"}`})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = env.do(t, request{method: http.MethodPatch, path: "/profile/update?id=" + owner.ID, token: adminToken, body: `{"email":"mine@b.com"}`})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = env.do(t, request{method: http.MethodDelete, path: "/profile/delete", token: adminToken, body: `{"id":"` + owner.ID + `"}`})
	assert.Equal(t, http.StatusForbidden, res.status)

	stored, err := env.users.FindByID(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleOwner, stored.Role)
	assert.Equal(t, identity.StatusActive, stored.Status)

	res = env.do(t, request{method: http.MethodPatch, path: "/profile/update?id=" + admin.ID, token: ownerToken, body: `{"status":"inactive"}`})
	assert.Equal(t, http.StatusOK, res.status)
}

func TestLogoutAndRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@b.com", "secret1", identity.RoleCustomer)
	_, cookie := env.login(t, "a@b.com", "secret1")

	res := env.do(t, request{method: http.MethodPost, path: "/refresh", cookie: cookie})
	require.Equal(t, http.StatusOK, res.status)
	assert.NotEmpty(t, res.json(t)["token"])

	res = env.do(t, request{method: http.MethodPost, path: "/logout", cookie: cookie})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Cookie cleared", res.json(t)["message"])

	res = env.do(t, request{method: http.MethodPost, path: "/logout"})
	assert.Equal(t, http.StatusNoContent, res.status)

	res = env.do(t, request{method: http.MethodPost, path: "/refresh", cookie: cookie})
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestLegacyPrefix(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.do(t, request{method: http.MethodPost, path: "/api/users/auth/registration", body: `{"firstname":"A","lastname":"B","email":"a@b.com","password":"secret1"}`})
	require.Equal(t, http.StatusCreated, res.status)

	res = env.do(t, request{method: http.MethodPost, path: "/api/users/auth/login", body: `{"email":"a@b.com","password":"secret1"}`})
	require.Equal(t, http.StatusOK, res.status)
	token, _ := res.json(t)["token"].(string)

	res = env.do(t, request{method: http.MethodGet, path: "/api/users/profile/view", token: token})
	assert.Equal(t, http.StatusOK, res.status)
}

func TestRedisBackedSessionsAndIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	env := newTestEnv(t, cache)

	reg := request{
		method: http.MethodPost,
		path:   "/registration",
		body:   `{"firstname":"A","lastname":"B","email":"a@b.com","password":"secret1"}`,
		header: map[string]string{"Idempotency-Key": "reg-1"},
	}
	first := env.do(t, reg)
	second := env.do(t, reg)
	assert.Equal(t, http.StatusCreated, first.status)
	assert.Equal(t, http.StatusCreated, second.status, "replayed, not a duplicate error")

	_, cookie := env.login(t, "a@b.com", "secret1")
	assert.NotEmpty(t, mr.Keys())

	res := env.do(t, request{method: http.MethodPost, path: "/logout", cookie: cookie})
	assert.Equal(t, http.StatusOK, res.status)
	res = env.do(t, request{method: http.MethodPost, path: "/refresh", cookie: cookie})
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, request{method: http.MethodPost, path: "/login", body: `{"email":"x@b.com","password":"p"}`})

	res := env.do(t, request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `"postgres":"memory"`)

	res = env.do(t, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `accounts_auth_events_total{event="login",outcome="invalid_credentials"} 1`)
}
