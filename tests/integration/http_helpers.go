package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/guard"
	"github.com/konghome/boardgate/internal/handlers"
	"github.com/konghome/boardgate/internal/middleware"
	"github.com/konghome/boardgate/internal/models"
	"github.com/konghome/boardgate/internal/routes"
	"github.com/konghome/boardgate/internal/services"
	pkghttp "github.com/konghome/boardgate/pkg/http"
	pkglogger "github.com/konghome/boardgate/pkg/logger"
)

const testJWTSecret = "test-secret-32-characters-long-for-testing"

// Clock is a settable time source shared by the guards and token manager.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server *httptest.Server
	DB     *TestDB
	Clock  *Clock

	// Dependency references for inspection in tests
	Tokens   *auth.TokenManager
	Attempts *guard.MemoryLoginAttempts
	Presence *guard.MemoryPresence
	Cooldown *guard.CooldownGuard
}

// NewTestServer assembles the production router over a real database with
// in-memory guards. Forwarded headers are trusted from loopback so tests
// can present any client address through X-Forwarded-For.
func NewTestServer(db *TestDB) *TestServer {
	logger := slog.New(slog.DiscardHandler)
	clock := NewClock()
	repos := InitializeRepositories(db.DB)

	tokenManager := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour, auth.WithClock(clock.Now))
	attempts := guard.NewMemoryLoginAttempts(guard.DefaultLockoutPolicy(), guard.WithClock(clock.Now))
	presence := guard.NewMemoryPresence(5*time.Minute, guard.WithClock(clock.Now))
	cooldown := guard.NewCooldownGuard(repos.Content, map[models.ActionType]time.Duration{
		models.ActionBoardPost: 30 * time.Second,
		models.ActionMessage:   10 * time.Second,
	}, true, guard.WithClock(clock.Now))

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := &pkghttp.IPConfig{
		TrustForwardedFor: true,
		TrustedProxies:    []string{"127.0.0.1", "::1"},
	}

	authService := services.NewAuthService(repos.Users, tokenManager, attempts, logger, auditLogger)
	ipRegistry := services.NewIPBlockRegistry(repos.BlockedIPs, logger)
	contentService := services.NewContentService(repos.Content, cooldown, logger)
	adminService := services.NewAdminService(repos.Users, presence, logger)

	gate := auth.NewGate(tokenManager, ipRegistry, repos.Users, presence, auth.GateConfig{
		Bypass: auth.DefaultBypassRules(),
		IP:     ipConfig,
	}, logger, auditLogger)

	router := routes.NewRouter(routes.Dependencies{
		Gate:           gate,
		Auth:           handlers.NewAuthHandler(authService, ipConfig, auth.CookieConfig{}, 7*24*time.Hour),
		Content:        handlers.NewContentHandler(contentService),
		Admin:          handlers.NewAdminHandler(adminService, ipRegistry, ipConfig, auditLogger),
		Health:         handlers.NewHealthHandler(map[string]handlers.Pinger{"database": db.DB}),
		IPConfig:       ipConfig,
		Env:            "test",
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: 1000},
		RequestTimeout: 30 * time.Second,
	}, logger)

	return &TestServer{
		Server:   httptest.NewServer(router),
		DB:       db,
		Clock:    clock,
		Tokens:   tokenManager,
		Attempts: attempts,
		Presence: presence,
		Cooldown: cooldown,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body any, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return ts.Server.Client().Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body any, headers map[string]string) (*http.Response, error) {
	all := map[string]string{"Authorization": "Bearer " + accessToken}
	for k, v := range headers {
		all[k] = v
	}
	return ts.Request(method, path, body, all)
}

// FromIP returns headers presenting ip as the client address.
func FromIP(ip string) map[string]string {
	return map[string]string{"X-Forwarded-For": ip}
}

// Login posts credentials and returns the response.
func (ts *TestServer) Login(userID, password string, headers map[string]string) (*http.Response, error) {
	return ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"user_id":  userID,
		"password": password,
	}, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractAccessToken reads the access token from a login or refresh response.
func ExtractAccessToken(resp *http.Response) (string, error) {
	var authResp services.AuthResponse
	if err := ParseJSONResponse(resp, &authResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return authResp.AccessToken, nil
}

// RefreshCookie returns the refresh token cookie set on resp, if any.
func RefreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.RefreshCookieName {
			return c
		}
	}
	return nil
}

// ParseError decodes the error body.
func ParseError(resp *http.Response) (pkghttp.ErrorResponse, error) {
	var errResp pkghttp.ErrorResponse
	err := ParseJSONResponse(resp, &errResp)
	return errResp, err
}
