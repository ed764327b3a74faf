package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/konghome/boardgate/internal/guard"
	"github.com/konghome/boardgate/internal/models"
	pkghttp "github.com/konghome/boardgate/pkg/http"
	"github.com/konghome/boardgate/pkg/logger"
)

// AccessVerifier verifies bearer tokens
type AccessVerifier interface {
	VerifyAccess(token string) (*models.TokenClaims, error)
}

// IPBlockChecker answers whether an address is blocked
type IPBlockChecker interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

// BanLookup reads ban state and role from the user store. It returns
// models.ErrNotFound for unknown identities.
type BanLookup interface {
	GetBanStatus(ctx context.Context, userID string) (*models.BanStatus, error)
}

const defaultBanLookupTimeout = 2 * time.Second

// GateConfig holds the gate's trust and timeout settings
type GateConfig struct {
	Bypass                BypassRules
	IP                    *pkghttp.IPConfig
	BanLookupTimeout      time.Duration
	IPBlockExemptPrefixes []string
}

// Gate is the request-boundary middleware. For each request it applies, in
// order: bypass rules, IP block, bearer verification, ban lookup, presence.
// Every rejection stops the pipeline before any handler runs.
type Gate struct {
	tokens   AccessVerifier
	ips      IPBlockChecker
	users    BanLookup
	presence guard.PresenceTracker
	cfg      GateConfig
	logger   *slog.Logger
	audit    *logger.AuditLogger
	lookups  singleflight.Group
}

func NewGate(tokens AccessVerifier, ips IPBlockChecker, users BanLookup, presence guard.PresenceTracker,
	cfg GateConfig, log *slog.Logger, audit *logger.AuditLogger) *Gate {
	if cfg.BanLookupTimeout <= 0 {
		cfg.BanLookupTimeout = defaultBanLookupTimeout
	}
	return &Gate{
		tokens:   tokens,
		ips:      ips,
		users:    users,
		presence: presence,
		cfg:      cfg,
		logger:   log,
		audit:    audit,
	}
}

// Middleware wraps next with the gate pipeline.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.Bypass.Match(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := pkghttp.ExtractClientIP(r, g.cfg.IP)

		if !g.ipExempt(r.URL.Path) {
			blocked, err := g.ips.IsBlocked(ctx, ip)
			if err != nil {
				g.logger.Error("ip block lookup failed", slog.String("ip", ip), slog.String("error", err.Error()))
				g.reject(r, ip, "", logger.ReasonLookupFailed)
				pkghttp.WriteServiceUnavailable(w, "unable to verify request origin")
				return
			}
			if blocked {
				g.reject(r, ip, "", logger.ReasonIPBlocked)
				pkghttp.WriteForbiddenWithReason(w, "access from this IP address is blocked", logger.ReasonIPBlocked)
				return
			}
		}

		token, present, ok := bearerToken(r)
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			g.reject(r, ip, "", logger.ReasonMalformedHeader)
			pkghttp.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := g.tokens.VerifyAccess(token)
		if err != nil {
			if errors.Is(err, models.ErrTokenExpired) {
				g.reject(r, ip, "", logger.ReasonTokenExpired)
				pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "access token has expired")
				return
			}
			g.reject(r, ip, "", logger.ReasonTokenInvalid)
			pkghttp.WriteUnauthorized(w, "invalid token")
			return
		}
		userID := claims.UserID()

		status, err := g.lookupBan(ctx, userID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			g.reject(r, ip, userID, logger.ReasonUnknownUser)
			pkghttp.WriteUnauthorized(w, "invalid token")
			return
		case err != nil:
			g.logger.Error("ban lookup failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			g.reject(r, ip, userID, logger.ReasonLookupFailed)
			pkghttp.WriteServiceUnavailable(w, "unable to verify account status")
			return
		case status.Banned:
			g.reject(r, ip, userID, logger.ReasonBanned)
			pkghttp.WriteForbiddenWithReason(w, "account is banned", status.BanReason)
			return
		}

		if err := g.presence.Touch(ctx, userID); err != nil {
			g.logger.Warn("presence update failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}

		id := models.Identity{UserID: userID, Role: status.Role}
		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

// lookupBan coalesces concurrent lookups for one identity. The shared lookup
// runs detached from any single request and is bounded by BanLookupTimeout;
// each caller additionally gives up at its own deadline. Either way a lookup
// that does not finish in time is an error, never a pass.
func (g *Gate) lookupBan(ctx context.Context, userID string) (*models.BanStatus, error) {
	ch := g.lookups.DoChan(userID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.BanLookupTimeout)
		defer cancel()
		return g.users.GetBanStatus(lctx, userID)
	})

	wait, cancel := context.WithTimeout(ctx, g.cfg.BanLookupTimeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		status, ok := res.Val.(*models.BanStatus)
		if !ok || status == nil {
			return nil, fmt.Errorf("%w: empty ban status", models.ErrUnavailable)
		}
		return status, nil
	case <-wait.Done():
		return nil, fmt.Errorf("%w: ban lookup: %v", models.ErrUnavailable, wait.Err())
	}
}

func (g *Gate) ipExempt(path string) bool {
	for _, p := range g.cfg.IPBlockExemptPrefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func (g *Gate) reject(r *http.Request, ip, userID, reason string) {
	if g.audit == nil {
		return
	}
	g.audit.LogGateRejection(r.Context(), logger.AuditEvent{
		EventType:     "request_rejected",
		UserID:        userID,
		IPAddress:     ip,
		UserAgent:     r.UserAgent(),
		Path:          r.URL.Path,
		FailureReason: reason,
	})
}

// bearerToken reports whether an Authorization header is present and, if so,
// whether it is a well-formed bearer credential.
func bearerToken(r *http.Request) (token string, present, ok bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true, false
	}
	token = strings.TrimSpace(rest)
	if token == "" {
		return "", true, false
	}
	return token, true, true
}
