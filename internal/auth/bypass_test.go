package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBypassRules_Match(t *testing.T) {
	rules := DefaultBypassRules()

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   bool
	}{
		{"health", "GET", "/health", "", true},
		{"api health", "GET", "/api/health", "", true},
		{"login", "POST", "/api/auth/login", "", true},
		{"login with stale token", "POST", "/api/auth/login", "Bearer old", true},
		{"signup", "POST", "/api/auth/signup", "", true},
		{"refresh", "POST", "/api/auth/refresh", "", true},
		{"check id", "GET", "/api/auth/check-id", "", true},
		{"me is gated", "GET", "/api/auth/me", "", false},
		{"uploads", "GET", "/uploads/a/b.png", "", true},
		{"asset suffix", "GET", "/main.3f2a.js", "", true},
		{"robots", "GET", "/robots.txt", "", true},
		{"api suffix is not an asset", "GET", "/api/boards/x.js", "Bearer t", false},
		{"anonymous board list", "GET", "/api/boards", "", true},
		{"anonymous board detail", "GET", "/api/boards/12", "", true},
		{"board list with token", "GET", "/api/boards", "Bearer t", false},
		{"board create", "POST", "/api/boards", "", false},
		{"lookalike prefix", "GET", "/api/boardsx", "", false},
		{"admin", "GET", "/api/admin/blocked-ips", "", false},
		{"messages", "POST", "/api/messages", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			assert.Equal(t, tt.want, rules.Match(req))
		})
	}
}

func TestBypassRules_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	assert.False(t, BypassRules{}.Match(req))
}
