package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/konghome/boardgate/internal/database"
	"github.com/konghome/boardgate/internal/models"
)

// BlockedIPRepository stores administrator IP blocks
type BlockedIPRepository struct {
	db *database.DB
}

func NewBlockedIPRepository(db *database.DB) *BlockedIPRepository {
	return &BlockedIPRepository{db: db}
}

func (r *BlockedIPRepository) Exists(ctx context.Context, ip string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM blocked_ips WHERE ip = $1)`, ip).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check blocked ip: %w", err)
	}
	return exists, nil
}

// Create inserts a block. The UNIQUE(ip) constraint turns a concurrent
// duplicate into models.ErrAlreadyBlocked.
func (r *BlockedIPRepository) Create(ctx context.Context, ip, reason string) (*models.BlockedIP, error) {
	var b models.BlockedIP
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO blocked_ips (ip, reason) VALUES ($1, $2) RETURNING id, ip, reason, created_at`,
		ip, reason,
	).Scan(&b.ID, &b.IP, &b.Reason, &b.CreatedAt)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrConflict) {
			return nil, models.ErrAlreadyBlocked
		}
		return nil, fmt.Errorf("failed to block ip: %w", mapped)
	}
	return &b, nil
}

// DeleteByID removes a block. Deleting an unknown id is not an error.
func (r *BlockedIPRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM blocked_ips WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to unblock ip: %w", err)
	}
	return nil
}

// List returns all blocks, newest first.
func (r *BlockedIPRepository) List(ctx context.Context) ([]*models.BlockedIP, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, ip, reason, created_at FROM blocked_ips ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked ips: %w", err)
	}
	defer rows.Close()

	blocked := make([]*models.BlockedIP, 0)
	for rows.Next() {
		var b models.BlockedIP
		if err := rows.Scan(&b.ID, &b.IP, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blocked ip: %w", err)
		}
		blocked = append(blocked, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return blocked, nil
}
