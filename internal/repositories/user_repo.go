package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/konghome/boardgate/internal/database"
	"github.com/konghome/boardgate/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, user_id, password_hash, user_name, nick_name, email, role, banned, ban_reason, banned_at, created_at`

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.UserID, &user.PasswordHash, &user.UserName,
		&user.NickName, &user.Email, &user.Role, &user.Banned,
		&user.BanReason, &user.BannedAt, &user.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, userID))
}

func (r *UserRepository) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Create inserts a user. A duplicate login id is models.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (user_id, password_hash, user_name, nick_name, email, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.UserID, user.PasswordHash, user.UserName, user.NickName, user.Email, user.Role,
	))
}

// EnsureAdmin creates the user with role ADMIN unless the login id already
// exists. It reports whether a row was inserted.
func (r *UserRepository) EnsureAdmin(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (user_id, password_hash, user_name, nick_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query, user.UserID, user.PasswordHash, user.UserName, user.NickName, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to ensure admin user: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// GetBanStatus is the read-only lookup the request gate makes per request.
func (r *UserRepository) GetBanStatus(ctx context.Context, userID string) (*models.BanStatus, error) {
	var status models.BanStatus
	var reason *string

	err := r.db.Pool.QueryRow(ctx,
		`SELECT banned, ban_reason, role FROM users WHERE user_id = $1`, userID,
	).Scan(&status.Banned, &reason, &status.Role)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if reason != nil {
		status.BanReason = *reason
	}
	return &status, nil
}

// SetBan marks the user banned with reason.
func (r *UserRepository) SetBan(ctx context.Context, userID, reason string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET banned = TRUE, ban_reason = $2, banned_at = NOW() WHERE user_id = $1`,
		userID, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearBan lifts a ban. Unbanning a user who is not banned succeeds.
func (r *UserRepository) ClearBan(ctx context.Context, userID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET banned = FALSE, ban_reason = NULL, banned_at = NULL WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// existsTx is ExistsByUserID inside a caller's transaction.
func existsTx(ctx context.Context, tx pgx.Tx, userID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, err
}
