package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/konghome/boardgate/internal/guard"
	"github.com/konghome/boardgate/internal/models"
	pkgauth "github.com/konghome/boardgate/pkg/auth"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	SetBan(ctx context.Context, userID, reason string) error
	ClearBan(ctx context.Context, userID string) error
	EnsureAdmin(ctx context.Context, user *models.User) (bool, error)
}

// ActiveUsersResponse is the presence count shown on the admin page.
type ActiveUsersResponse struct {
	ActiveUsers int64 `json:"active_users"`
}

// AdminService handles account bans, presence stats and admin bootstrap.
type AdminService struct {
	userRepo AdminUserRepository
	presence guard.PresenceTracker
	logger   *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(userRepo AdminUserRepository, presence guard.PresenceTracker, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo: userRepo,
		presence: presence,
		logger:   logger,
	}
}

// ActiveUsers counts identities seen within the presence window.
func (s *AdminService) ActiveUsers(ctx context.Context) (*ActiveUsersResponse, error) {
	n, err := s.presence.ActiveCount(ctx)
	if err != nil {
		s.logger.Error("failed to count active users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &ActiveUsersResponse{ActiveUsers: n}, nil
}

// BanUser bans target. The gate rejects the user's next request, so no token
// revocation is needed.
func (s *AdminService) BanUser(ctx context.Context, actorID, target, reason string) error {
	if target == actorID {
		return fmt.Errorf("%w: cannot ban yourself", models.ErrBadRequest)
	}
	if err := s.userRepo.SetBan(ctx, target, strings.TrimSpace(reason)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to ban user", slog.String("target", target), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("user banned", slog.String("target", target), slog.String("actor", actorID))
	return nil
}

// UnbanUser lifts a ban.
func (s *AdminService) UnbanUser(ctx context.Context, actorID, target string) error {
	if err := s.userRepo.ClearBan(ctx, target); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to unban user", slog.String("target", target), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.logger.Info("user unbanned", slog.String("target", target), slog.String("actor", actorID))
	return nil
}

// BootstrapAdmin creates the configured admin account on first start.
// An existing account with that id is left untouched.
func (s *AdminService) BootstrapAdmin(ctx context.Context, userID, password string) error {
	if userID == "" || password == "" {
		return nil
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	created, err := s.userRepo.EnsureAdmin(ctx, &models.User{
		UserID:       userID,
		PasswordHash: hash,
		UserName:     "Administrator",
		NickName:     "admin",
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		s.logger.Info("admin account created", slog.String("user_id", userID))
	}
	return nil
}
