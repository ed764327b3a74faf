package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/models"
	"github.com/konghome/boardgate/internal/services"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.UserResponse, error)
	CheckUserID(ctx context.Context, userID string) (bool, error)
	Login(ctx context.Context, userID, password, ipAddress string) (*services.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service       AuthServiceInterface
	ipConfig      *pkghttp.IPConfig
	cookieConfig  auth.CookieConfig
	refreshMaxAge time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, cookieConfig auth.CookieConfig, refreshMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{
		service:       service,
		ipConfig:      ipConfig,
		cookieConfig:  cookieConfig,
		refreshMaxAge: refreshMaxAge,
	}
}

// SignupRequest represents the request body for signup
type SignupRequest struct {
	UserID   string `json:"user_id" validate:"required,min=3,max=50,alphanum"`
	Password string `json:"password" validate:"required"`
	UserName string `json:"user_name" validate:"required,max=50"`
	NickName string `json:"nick_name" validate:"max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CheckIDResponse reports whether a login id is taken
type CheckIDResponse struct {
	Exists bool `json:"exists"`
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), services.SignupInput{
		UserID:   req.UserID,
		Password: req.Password,
		UserName: req.UserName,
		NickName: req.NickName,
		Email:    req.Email,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "User ID is already taken")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// CheckID handles GET /api/auth/check-id?userId=
func (h *AuthHandler) CheckID(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		pkghttp.WriteBadRequest(w, "userId is required")
		return
	}

	exists, err := h.service.CheckUserID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CheckIDResponse{Exists: exists})
}

// Login handles POST /api/auth/login. The refresh token goes into an
// httpOnly cookie; the body carries the access token and profile.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	resp, err := h.service.Login(r.Context(), req.UserID, req.Password, ipAddress)
	if err != nil {
		var banned *models.BannedError
		if errors.As(err, &banned) {
			auth.ClearRefreshTokenCookie(w, h.cookieConfig)
		}
		writeServiceError(w, err)
		return
	}

	auth.SetRefreshTokenCookie(w, resp.RefreshToken, h.refreshMaxAge, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh using the refresh cookie
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := auth.GetRefreshTokenCookie(r)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Missing refresh token")
		return
	}

	resp, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		var banned *models.BannedError
		if errors.Is(err, models.ErrUnauthorized) || errors.As(err, &banned) {
			auth.ClearRefreshTokenCookie(w, h.cookieConfig)
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout. Tokens are self-expiring, so
// clearing the cookie is all there is to do.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearRefreshTokenCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.Me(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}
