package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/models"
	"github.com/konghome/boardgate/internal/services"
	pkghttp "github.com/konghome/boardgate/pkg/http"
	pkglogger "github.com/konghome/boardgate/pkg/logger"
)

// AdminServiceInterface defines the account moderation contract.
type AdminServiceInterface interface {
	ActiveUsers(ctx context.Context) (*services.ActiveUsersResponse, error)
	BanUser(ctx context.Context, actorID, target, reason string) error
	UnbanUser(ctx context.Context, actorID, target string) error
}

// IPBlockServiceInterface defines blocked-address management.
type IPBlockServiceInterface interface {
	Block(ctx context.Context, ip, reason string) (*models.BlockedIP, error)
	Unblock(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.BlockedIP, error)
}

// AdminHandler handles admin HTTP requests. Every route sits behind
// RequireRole(ADMIN).
type AdminHandler struct {
	service     AdminServiceInterface
	ipBlocks    IPBlockServiceInterface
	ipConfig    *pkghttp.IPConfig
	auditLogger *pkglogger.AuditLogger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, ipBlocks IPBlockServiceInterface, ipConfig *pkghttp.IPConfig, auditLogger *pkglogger.AuditLogger) *AdminHandler {
	return &AdminHandler{
		service:     service,
		ipBlocks:    ipBlocks,
		ipConfig:    ipConfig,
		auditLogger: auditLogger,
	}
}

// BlockIPRequest is the body of POST /api/admin/blocked-ips
type BlockIPRequest struct {
	IP     string `json:"ip" validate:"required,ip"`
	Reason string `json:"reason" validate:"max=255"`
}

// ListBlockedIPs handles GET /api/admin/blocked-ips
func (h *AdminHandler) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.ipBlocks.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, blocked)
}

// BlockIP handles POST /api/admin/blocked-ips
func (h *AdminHandler) BlockIP(w http.ResponseWriter, r *http.Request) {
	var req BlockIPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	blocked, err := h.ipBlocks.Block(r.Context(), req.IP, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.audit(r, "ip_blocked", map[string]string{"ip": blocked.IP, "reason": blocked.Reason})
	pkghttp.WriteJSON(w, http.StatusCreated, blocked)
}

// UnblockIP handles DELETE /api/admin/blocked-ips/{id}
func (h *AdminHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		pkghttp.WriteBadRequest(w, "Invalid id")
		return
	}

	if err := h.ipBlocks.Unblock(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	h.audit(r, "ip_unblocked", map[string]string{"id": strconv.FormatInt(id, 10)})
	w.WriteHeader(http.StatusNoContent)
}

// ActiveUsers handles GET /api/admin/active-users
func (h *AdminHandler) ActiveUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ActiveUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// BanUser handles PUT /api/admin/users/{userId}/ban?reason=
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	target := chi.URLParam(r, "userId")
	reason := r.URL.Query().Get("reason")

	if err := h.service.BanUser(r.Context(), actor.UserID, target, reason); err != nil {
		writeServiceError(w, err)
		return
	}

	h.audit(r, "user_banned", map[string]string{"target": target, "reason": reason})
	w.WriteHeader(http.StatusNoContent)
}

// UnbanUser handles PUT /api/admin/users/{userId}/unban
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	target := chi.URLParam(r, "userId")
	if err := h.service.UnbanUser(r.Context(), actor.UserID, target); err != nil {
		writeServiceError(w, err)
		return
	}

	h.audit(r, "user_unbanned", map[string]string{"target": target})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) audit(r *http.Request, eventType string, metadata map[string]string) {
	if h.auditLogger == nil {
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())
	h.auditLogger.LogAdminAction(r.Context(), eventType, actor.UserID, pkghttp.ExtractClientIP(r, h.ipConfig), metadata)
}
