package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/konghome/boardgate/internal/models"
)

// ContentRepository persists posts and messages
type ContentRepository interface {
	CreateBoard(ctx context.Context, board *models.Board) (*models.Board, error)
	ListBoards(ctx context.Context, limit, offset int) ([]*models.Board, error)
	SendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// CooldownChecker gates content creation per identity and action. Release
// is called when an action that passed Check was not stored.
type CooldownChecker interface {
	Check(ctx context.Context, userID string, action models.ActionType) error
	Release(userID string, action models.ActionType)
}

// ContentService creates board posts and messages behind the cooldown
type ContentService struct {
	repo     ContentRepository
	cooldown CooldownChecker
	logger   *slog.Logger
}

func NewContentService(repo ContentRepository, cooldown CooldownChecker, logger *slog.Logger) *ContentService {
	return &ContentService{repo: repo, cooldown: cooldown, logger: logger}
}

const (
	maxPageSize = 100
	// maxOffset keeps page*size from overflowing; pages past it are empty anyway.
	maxOffset = math.MaxInt32
)

func (s *ContentService) ListBoards(ctx context.Context, page, size int) ([]*models.Board, error) {
	if size <= 0 || size > maxPageSize {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	if page > maxOffset/size {
		page = maxOffset / size
	}
	boards, err := s.repo.ListBoards(ctx, size, page*size)
	if err != nil {
		s.logger.Error("failed to list boards", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return boards, nil
}

func (s *ContentService) CreateBoard(ctx context.Context, userID, title, content string) (*models.Board, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: title and content are required", models.ErrBadRequest)
	}

	if err := s.checkCooldown(ctx, userID, models.ActionBoardPost); err != nil {
		return nil, err
	}

	board, err := s.repo.CreateBoard(ctx, &models.Board{UserID: userID, Title: title, Content: content})
	if err != nil {
		s.cooldown.Release(userID, models.ActionBoardPost)
		s.logger.Error("failed to create board", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return board, nil
}

func (s *ContentService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: receiver and content are required", models.ErrBadRequest)
	}
	if receiverID == senderID {
		return nil, fmt.Errorf("%w: cannot message yourself", models.ErrBadRequest)
	}

	if err := s.checkCooldown(ctx, senderID, models.ActionMessage); err != nil {
		return nil, err
	}

	msg, err := s.repo.SendMessage(ctx, &models.Message{SenderID: senderID, ReceiverID: receiverID, Content: content})
	if err != nil {
		s.cooldown.Release(senderID, models.ActionMessage)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: receiver does not exist", models.ErrNotFound)
		}
		s.logger.Error("failed to send message", slog.String("sender_id", senderID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return msg, nil
}

// checkCooldown passes rate-limit errors through and turns anything else
// into an internal error; a failed lookup never lets the action through.
func (s *ContentService) checkCooldown(ctx context.Context, userID string, action models.ActionType) error {
	err := s.cooldown.Check(ctx, userID, action)
	if err == nil || errors.Is(err, models.ErrRateLimited) {
		return err
	}
	s.logger.Error("cooldown check failed",
		slog.String("user_id", userID),
		slog.String("action", string(action)),
		slog.Any("error", err),
	)
	return models.ErrInternalServer
}
