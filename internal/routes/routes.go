package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/handlers"
	"github.com/konghome/boardgate/internal/middleware"
	"github.com/konghome/boardgate/internal/models"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// Dependencies are the pieces the router is assembled from.
type Dependencies struct {
	Gate           *auth.Gate
	Auth           *handlers.AuthHandler
	Content        *handlers.ContentHandler
	Admin          *handlers.AdminHandler
	Health         *handlers.HealthHandler
	IPConfig       *pkghttp.IPConfig
	CORS           *middleware.CORSConfig
	Env            string
	LoginRateLimit middleware.RateLimitConfig
	RequestTimeout time.Duration
}

// NewRouter builds the full middleware stack. The gate wraps every route,
// including ones that end up 404, so an unknown path from a blocked address
// is still refused.
func NewRouter(d Dependencies, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecureLogger(logger, d.IPConfig, d.Env))
	router.Use(middleware.Recover(logger))
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: d.Env}))
	if d.CORS != nil {
		router.Use(middleware.CORS(d.CORS))
	}
	if d.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(d.RequestTimeout))
	}
	router.Use(d.Gate.Middleware)

	RegisterRoutes(router, d)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, d Dependencies) {
	loginLimit := middleware.RateLimitByIP(d.LoginRateLimit, d.IPConfig)

	router.Get("/health", d.Health.Health)
	router.Get("/api/health", d.Health.Health)

	router.Route("/api/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", d.Auth.Login)
		r.With(loginLimit).Post("/signup", d.Auth.Signup)
		r.Post("/refresh", d.Auth.Refresh)
		r.Post("/logout", d.Auth.Logout)
		r.Get("/check-id", d.Auth.CheckID)
		r.With(auth.RequireAuth).Get("/me", d.Auth.Me)
	})

	// Listing is public; the gate lets anonymous GETs through
	router.Get("/api/boards", d.Content.ListBoards)

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/api/boards", d.Content.CreateBoard)
		r.Post("/api/messages", d.Content.SendMessage)
	})

	router.Route("/api/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Get("/blocked-ips", d.Admin.ListBlockedIPs)
		r.Post("/blocked-ips", d.Admin.BlockIP)
		r.Delete("/blocked-ips/{id}", d.Admin.UnblockIP)
		r.Get("/active-users", d.Admin.ActiveUsers)
		r.Put("/users/{userId}/ban", d.Admin.BanUser)
		r.Put("/users/{userId}/unban", d.Admin.UnbanUser)
	})
}
