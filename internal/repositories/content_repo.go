package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/konghome/boardgate/internal/database"
	"github.com/konghome/boardgate/internal/models"
)

// ContentRepository stores board posts and direct messages. It also answers
// "when did this user last post or send" for the cooldown guard.
type ContentRepository struct {
	db *database.DB
}

func NewContentRepository(db *database.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) CreateBoard(ctx context.Context, board *models.Board) (*models.Board, error) {
	var b models.Board
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO boards (user_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING board_no, user_id, title, content, created_at
	`, board.UserID, board.Title, board.Content).Scan(&b.BoardNo, &b.UserID, &b.Title, &b.Content, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", database.MapPostgresError(err))
	}
	return &b, nil
}

func (r *ContentRepository) ListBoards(ctx context.Context, limit, offset int) ([]*models.Board, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT board_no, user_id, title, content, created_at
		FROM boards ORDER BY board_no DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	boards := make([]*models.Board, 0)
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.BoardNo, &b.UserID, &b.Title, &b.Content, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return boards, nil
}

// SendMessage inserts a message after checking the receiver in the same
// transaction. An unknown receiver is models.ErrNotFound.
func (r *ContentRepository) SendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	var out models.Message

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		exists, err := existsTx(ctx, tx, msg.ReceiverID)
		if err != nil {
			return fmt.Errorf("failed to check receiver: %w", err)
		}
		if !exists {
			return fmt.Errorf("receiver %q: %w", msg.ReceiverID, models.ErrNotFound)
		}

		return tx.QueryRow(ctx, `
			INSERT INTO messages (sender_id, receiver_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, sender_id, receiver_id, content, is_read, sent_at
		`, msg.SenderID, msg.ReceiverID, msg.Content).Scan(
			&out.ID, &out.SenderID, &out.ReceiverID, &out.Content, &out.Read, &out.SentAt,
		)
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &out, nil
}

// LatestActionAt returns the newest timestamp for the action, or nil.
func (r *ContentRepository) LatestActionAt(ctx context.Context, userID string, action models.ActionType) (*time.Time, error) {
	var query string
	switch action {
	case models.ActionBoardPost:
		query = `SELECT created_at FROM boards WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`
	case models.ActionMessage:
		query = `SELECT sent_at FROM messages WHERE sender_id = $1 ORDER BY sent_at DESC LIMIT 1`
	default:
		return nil, fmt.Errorf("unknown action type %q", action)
	}

	var at time.Time
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&at)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last %s: %w", action, err)
	}
	return &at, nil
}
