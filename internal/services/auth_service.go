package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/guard"
	"github.com/konghome/boardgate/internal/models"
	pkgauth "github.com/konghome/boardgate/pkg/auth"
	pkglogger "github.com/konghome/boardgate/pkg/logger"
)

// UserRepository is the user store surface the auth flows need
type UserRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	ExistsByUserID(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// TokenIssuer mints and checks tokens
type TokenIssuer interface {
	IssueAccess(userID, role string) (string, error)
	IssueRefresh(userID string) (string, error)
	VerifyRefresh(token string) (*models.TokenClaims, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	tm          TokenIssuer
	attempts    guard.LoginAttemptGuard
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// AuthOption configures an AuthService
type AuthOption func(*AuthService)

// WithTimingDelay pads failed logins to a common duration.
func WithTimingDelay(td *auth.TimingDelay) AuthOption {
	return func(s *AuthService) { s.timing = td }
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, tm TokenIssuer, attempts guard.LoginAttemptGuard, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		repo:        repo,
		tm:          tm,
		attempts:    attempts,
		logger:      logger,
		auditLogger: auditLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	NickName  string `json:"nick_name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse is returned by login and refresh. RefreshToken travels in a
// cookie and is never serialized.
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"-"`
	User         *UserResponse `json:"user"`
}

// SignupInput carries a new account's fields
type SignupInput struct {
	UserID   string
	Password string
	UserName string
	NickName string
	Email    string
}

// Signup creates a USER account. A taken login id is models.ErrConflict.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*UserResponse, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.UserID == "" || in.UserName == "" {
		return nil, fmt.Errorf("%w: user id and name are required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	exists, err := s.repo.ExistsByUserID(ctx, in.UserID)
	if err != nil {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if exists {
		return nil, models.ErrConflict
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.Create(ctx, &models.User{
		UserID:       in.UserID,
		PasswordHash: hash,
		UserName:     in.UserName,
		NickName:     in.NickName,
		Email:        in.Email,
		Role:         models.RoleUser,
	})
	if err != nil {
		// lost a race with a concurrent signup for the same id
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user signed up", slog.String("user_id", user.UserID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: "signup",
		UserID:    user.UserID,
		Success:   true,
		Metadata:  map[string]string{"email": pkglogger.SanitizedEmail(user.Email)},
	})

	return userModelToResponse(user), nil
}

// CheckUserID reports whether a login id is already taken
func (s *AuthService) CheckUserID(ctx context.Context, userID string) (bool, error) {
	exists, err := s.repo.ExistsByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		s.logger.Error("failed to check user id", slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return exists, nil
}

// Login checks the lockout first, then credentials. Unknown ids and wrong
// passwords both count as failures against the presented id.
func (s *AuthService) Login(ctx context.Context, userID, password, ipAddress string) (*AuthResponse, error) {
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, models.ErrUnauthorized
	}

	blocked, err := s.attempts.IsBlocked(ctx, userID)
	if err != nil {
		s.logger.Error("lockout lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: lockout lookup", models.ErrUnavailable)
	}
	if blocked {
		minutes, err := s.attempts.RemainingMinutes(ctx, userID)
		if err != nil {
			s.logger.Error("lockout lookup failed", slog.String("user_id", userID), slog.Any("error", err))
			return nil, fmt.Errorf("%w: lockout lookup", models.ErrUnavailable)
		}
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ipAddress,
			FailureReason: pkglogger.ReasonLockedOut,
		})
		return nil, &models.RateLimitError{
			Kind:       models.RateLimitLockout,
			RetryAfter: time.Duration(minutes) * time.Minute,
		}
	}

	start := time.Now()
	user, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if user == nil || pkgauth.ComparePassword(user.PasswordHash, password) != nil {
		failure := s.recordFailure(ctx, userID, ipAddress)
		_ = s.timing.WaitFrom(ctx, start)
		return nil, failure
	}

	if err := s.attempts.RecordSuccess(ctx, userID); err != nil {
		s.logger.Warn("failed to reset login attempts", slog.String("user_id", userID), slog.Any("error", err))
	}

	if user.Banned {
		s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ipAddress,
			FailureReason: pkglogger.ReasonBanned,
		})
		return nil, &models.BannedError{UserID: userID, Reason: banReason(user)}
	}

	resp, err := s.issue(user, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.UserID))
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.UserID,
		IPAddress: ipAddress,
		Success:   true,
	})
	return resp, nil
}

func (s *AuthService) recordFailure(ctx context.Context, userID, ipAddress string) error {
	st, err := s.attempts.RecordFailure(ctx, userID)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.String("user_id", userID), slog.Any("error", err))
	}

	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		IPAddress:     ipAddress,
		FailureReason: pkglogger.ReasonBadCredentials,
		Metadata:      map[string]string{"failure_count": fmt.Sprint(st.FailureCount)},
	}
	if st.BlockedUntil != nil {
		event.Metadata["locked_until"] = st.BlockedUntil.UTC().Format(time.RFC3339)
	}
	s.auditLogger.LogAuthAttempt(ctx, event)

	return models.ErrUnauthorized
}

// Refresh exchanges a refresh token for a new access token. Role and ban
// state come from the user store, never from the token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, err
	}

	user, err := s.repo.GetByUserID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found for token refresh", slog.String("user_id", claims.UserID()))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Banned {
		return nil, &models.BannedError{UserID: user.UserID, Reason: banReason(user)}
	}

	resp, err := s.issue(user, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info("token refreshed", slog.String("user_id", user.UserID))
	return resp, nil
}

// Me returns the current user's profile
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return userModelToResponse(user), nil
}

func (s *AuthService) issue(user *models.User, withRefresh bool) (*AuthResponse, error) {
	accessToken, err := s.tm.IssueAccess(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &AuthResponse{AccessToken: accessToken, User: userModelToResponse(user)}
	if withRefresh {
		resp.RefreshToken, err = s.tm.IssueRefresh(user.UserID)
		if err != nil {
			s.logger.Error("failed to generate refresh token", slog.String("user_id", user.UserID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}
	return resp, nil
}

func banReason(user *models.User) string {
	if user.BanReason == nil {
		return ""
	}
	return *user.BanReason
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		UserID:    user.UserID,
		UserName:  user.UserName,
		NickName:  user.NickName,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
