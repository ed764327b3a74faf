package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/konghome/boardgate/internal/models"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// BlockedIPRepository persists IP blocks
type BlockedIPRepository interface {
	Exists(ctx context.Context, ip string) (bool, error)
	Create(ctx context.Context, ip, reason string) (*models.BlockedIP, error)
	DeleteByID(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.BlockedIP, error)
}

// IPBlockRegistry is the set of blocked client addresses. Blocks have no
// expiry; only an administrator removes them.
type IPBlockRegistry struct {
	repo   BlockedIPRepository
	logger *slog.Logger
}

func NewIPBlockRegistry(repo BlockedIPRepository, logger *slog.Logger) *IPBlockRegistry {
	return &IPBlockRegistry{repo: repo, logger: logger}
}

// IsBlocked errors are returned as-is; the gate treats them as "cannot verify".
// ip is looked up in canonical form; a string that does not parse is looked
// up verbatim.
func (s *IPBlockRegistry) IsBlocked(ctx context.Context, ip string) (bool, error) {
	if canonical, ok := pkghttp.CanonicalIP(ip); ok {
		ip = canonical
	}
	return s.repo.Exists(ctx, ip)
}

// Block adds ip in canonical form, so every spelling of one address is the
// same block. An address already present is models.ErrAlreadyBlocked,
// whether found by the pre-check or by the unique constraint on insert.
func (s *IPBlockRegistry) Block(ctx context.Context, ip, reason string) (*models.BlockedIP, error) {
	raw := strings.TrimSpace(ip)
	ip, ok := pkghttp.CanonicalIP(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an IP address", models.ErrBadRequest, raw)
	}

	exists, err := s.repo.Exists(ctx, ip)
	if err != nil {
		s.logger.Error("failed to check blocked ip", slog.String("ip", ip), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if exists {
		return nil, models.ErrAlreadyBlocked
	}

	blocked, err := s.repo.Create(ctx, ip, strings.TrimSpace(reason))
	if err != nil {
		if errors.Is(err, models.ErrAlreadyBlocked) {
			return nil, err
		}
		s.logger.Error("failed to block ip", slog.String("ip", ip), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("ip blocked", slog.String("ip", ip), slog.Int64("id", blocked.ID))
	return blocked, nil
}

// Unblock removes a block by id. An unknown id is a no-op.
func (s *IPBlockRegistry) Unblock(ctx context.Context, id int64) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.logger.Error("failed to unblock ip", slog.Int64("id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("ip unblocked", slog.Int64("id", id))
	return nil
}

func (s *IPBlockRegistry) List(ctx context.Context) ([]*models.BlockedIP, error) {
	blocked, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list blocked ips", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return blocked, nil
}
