package auth

import (
	"net/http"
	"strings"
)

// BypassRules lists requests that skip the gate entirely: no IP check, no
// token work, no identity attached.
type BypassRules struct {
	Exact    []string // whole path
	Prefixes []string // path prefix
	Suffixes []string // file extensions of static assets

	// AnonymousReads are GET path prefixes bypassed only when the request
	// carries no Authorization header at all. A request that does present a
	// token is verified like any other.
	AnonymousReads []string
}

// DefaultBypassRules returns the rule table for the board API.
func DefaultBypassRules() BypassRules {
	return BypassRules{
		Exact: []string{
			"/health",
			"/api/health",
			"/robots.txt",
			"/sitemap.xml",
			"/api/auth/login",
			"/api/auth/signup",
			"/api/auth/refresh",
			"/api/auth/logout",
			"/api/auth/check-id",
		},
		Prefixes: []string{
			"/uploads/",
			"/assets/",
			"/static/",
			"/favicon",
		},
		Suffixes: []string{
			".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp", ".woff", ".woff2",
		},
		AnonymousReads: []string{
			"/api/boards",
		},
	}
}

// Match reports whether r skips the gate.
func (b BypassRules) Match(r *http.Request) bool {
	path := r.URL.Path

	for _, p := range b.Exact {
		if path == p {
			return true
		}
	}
	for _, p := range b.Prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	// Suffix rules never apply under /api/ so an API route cannot be
	// smuggled past the gate as "/api/x.js".
	if !strings.HasPrefix(path, "/api/") {
		lower := strings.ToLower(path)
		for _, s := range b.Suffixes {
			if strings.HasSuffix(lower, s) {
				return true
			}
		}
	}

	if r.Method == http.MethodGet && r.Header.Get("Authorization") == "" {
		for _, p := range b.AnonymousReads {
			if path == p || strings.HasPrefix(path, p+"/") {
				return true
			}
		}
	}

	return false
}
