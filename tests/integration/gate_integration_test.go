package integration

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"

	"github.com/konghome/boardgate/internal/models"
	pkgauth "github.com/konghome/boardgate/pkg/auth"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() || os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	pkgauth.BcryptCost = bcrypt.MinCost

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// No docker available
		os.Stderr.WriteString("skipping integration tests: " + err.Error() + "\n")
		os.Exit(0)
	}
	testDB = db

	code := m.Run()
	_ = testDB.Teardown(ctx)
	os.Exit(code)
}

func newServer(t *testing.T) *TestServer {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	ts := NewTestServer(testDB)
	t.Cleanup(ts.Close)
	return ts
}

func loginToken(t *testing.T, ts *TestServer, userID, password string, headers map[string]string) string {
	t.Helper()
	resp, err := ts.Login(userID, password, headers)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, err := ExtractAccessToken(resp)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return token
}

func TestSignupLoginMe(t *testing.T) {
	ts := newServer(t)
	userID, password := TestUser("a")

	resp, err := ts.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"user_id":   userID,
		"password":  password,
		"user_name": "Alice",
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = ts.Login(userID, password, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, RefreshCookie(resp))
	token, err := ExtractAccessToken(resp)
	require.NoError(t, err)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", token, nil, nil)
	require.NoError(t, err)
	var me map[string]any
	require.NoError(t, ParseJSONResponse(resp, &me))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, userID, me["user_id"])
	assert.Equal(t, models.RoleUser, me["role"])
}

func TestLoginLockoutAndRecovery(t *testing.T) {
	ts := newServer(t)
	userID, password := TestUser("lock")
	_, err := SeedUser(context.Background(), testDB.DB, userID, password, models.RoleUser)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		resp, err := ts.Login(userID, "wrongPass999", nil)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	// Locked: even the right password is refused
	resp, err := ts.Login(userID, password, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "600", resp.Header.Get("Retry-After"))
	body, err := ParseError(resp)
	require.NoError(t, err)
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Contains(t, body.Message, "10 minute")

	ts.Clock.Advance(4*time.Minute + 30*time.Second)
	resp, err = ts.Login(userID, password, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "360", resp.Header.Get("Retry-After"))

	ts.Clock.Advance(6 * time.Minute)
	loginToken(t, ts, userID, password, nil)

	// Success reset the counter: a single failure no longer locks
	resp, err = ts.Login(userID, "wrongPass999", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBlockedIPRefusedWithValidToken(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()

	adminID, adminPass := TestUser("admin")
	_, err := SeedUser(ctx, testDB.DB, adminID, adminPass, models.RoleAdmin)
	require.NoError(t, err)
	userID, userPass := TestUser("u")
	_, err = SeedUser(ctx, testDB.DB, userID, userPass, models.RoleUser)
	require.NoError(t, err)

	adminToken := loginToken(t, ts, adminID, adminPass, FromIP("198.51.100.1"))
	userToken := loginToken(t, ts, userID, userPass, FromIP("203.0.113.7"))

	resp, err := ts.RequestWithAuth(http.MethodPost, "/api/admin/blocked-ips", adminToken,
		map[string]string{"ip": "203.0.113.7", "reason": "spam"}, FromIP("198.51.100.1"))
	require.NoError(t, err)
	var blocked models.BlockedIP
	require.NoError(t, ParseJSONResponse(resp, &blocked))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", userToken, nil, FromIP("203.0.113.7"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, err := ParseError(resp)
	require.NoError(t, err)
	assert.Equal(t, "ip_blocked", body.Reason)

	// Unknown paths are refused too, not 404
	resp, err = ts.Request(http.MethodGet, "/api/nowhere", nil, FromIP("203.0.113.7"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Same token from another address still works
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", userToken, nil, FromIP("203.0.113.8"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Duplicate block is a conflict
	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/blocked-ips", adminToken,
		map[string]string{"ip": "203.0.113.7"}, FromIP("198.51.100.1"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodDelete, "/api/admin/blocked-ips/"+strconv.FormatInt(blocked.ID, 10), adminToken, nil, FromIP("198.51.100.1"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", userToken, nil, FromIP("203.0.113.7"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBanTakesEffectOnNextRequest(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()

	adminID, adminPass := TestUser("admin")
	_, err := SeedUser(ctx, testDB.DB, adminID, adminPass, models.RoleAdmin)
	require.NoError(t, err)
	userID, userPass := TestUser("u")
	_, err = SeedUser(ctx, testDB.DB, userID, userPass, models.RoleUser)
	require.NoError(t, err)

	adminToken := loginToken(t, ts, adminID, adminPass, nil)
	userToken := loginToken(t, ts, userID, userPass, nil)

	resp, err := ts.RequestWithAuth(http.MethodPut, "/api/admin/users/"+userID+"/ban?reason=abuse", adminToken, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The unexpired token is refused without waiting for expiry
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", userToken, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, err := ParseError(resp)
	require.NoError(t, err)
	assert.Equal(t, "abuse", body.Reason)

	// Login with the right password reports the ban
	resp, err = ts.Login(userID, userPass, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, err = ParseError(resp)
	require.NoError(t, err)
	assert.Equal(t, "abuse", body.Reason)

	resp, err = ts.RequestWithAuth(http.MethodPut, "/api/admin/users/"+userID+"/unban", adminToken, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", userToken, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNonAdminRefusedFromAdminRoutes(t *testing.T) {
	ts := newServer(t)
	userID, userPass := TestUser("u")
	_, err := SeedUser(context.Background(), testDB.DB, userID, userPass, models.RoleUser)
	require.NoError(t, err)
	token := loginToken(t, ts, userID, userPass, nil)

	resp, err := ts.RequestWithAuth(http.MethodGet, "/api/admin/active-users", token, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = ts.Request(http.MethodGet, "/api/admin/active-users", nil, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActiveUsersCountsAuthenticatedRequests(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()

	adminID, adminPass := TestUser("admin")
	_, err := SeedUser(ctx, testDB.DB, adminID, adminPass, models.RoleAdmin)
	require.NoError(t, err)
	userID, userPass := TestUser("u")
	_, err = SeedUser(ctx, testDB.DB, userID, userPass, models.RoleUser)
	require.NoError(t, err)

	adminToken := loginToken(t, ts, adminID, adminPass, nil)
	userToken := loginToken(t, ts, userID, userPass, nil)

	resp, err := ts.RequestWithAuth(http.MethodGet, "/api/auth/me", userToken, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/admin/active-users", adminToken, nil, nil)
	require.NoError(t, err)
	var active struct {
		ActiveUsers int64 `json:"active_users"`
	}
	require.NoError(t, ParseJSONResponse(resp, &active))
	assert.Equal(t, int64(2), active.ActiveUsers)

	// The user goes quiet past the presence timeout
	ts.Clock.Advance(6 * time.Minute)
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/admin/active-users", adminToken, nil, nil)
	require.NoError(t, err)
	require.NoError(t, ParseJSONResponse(resp, &active))
	assert.Equal(t, int64(1), active.ActiveUsers)
}

func TestBoardCooldown(t *testing.T) {
	ts := newServer(t)
	userID, userPass := TestUser("poster")
	_, err := SeedUser(context.Background(), testDB.DB, userID, userPass, models.RoleUser)
	require.NoError(t, err)
	token := loginToken(t, ts, userID, userPass, nil)

	post := map[string]string{"title": "hello", "content": "first"}

	resp, err := ts.RequestWithAuth(http.MethodPost, "/api/boards", token, post, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/boards", token, post, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Anonymous listing passes the gate without a token
	resp, err = ts.Request(http.MethodGet, "/api/boards", nil, nil)
	require.NoError(t, err)
	var boards []models.Board
	require.NoError(t, ParseJSONResponse(resp, &boards))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, boards, 1)
}

func TestRefreshRereadsRole(t *testing.T) {
	ts := newServer(t)
	userID, userPass := TestUser("r")
	_, err := SeedUser(context.Background(), testDB.DB, userID, userPass, models.RoleUser)
	require.NoError(t, err)

	resp, err := ts.Login(userID, userPass, nil)
	require.NoError(t, err)
	cookie := RefreshCookie(resp)
	resp.Body.Close()
	require.NotNil(t, cookie)

	_, err = testDB.Pool.Exec(context.Background(), `UPDATE users SET role = 'ADMIN' WHERE user_id = $1`, userID)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/api/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err = ts.Server.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, err := ExtractAccessToken(resp)
	require.NoError(t, err)

	claims, err := ts.Tokens.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
