package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/models"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// ContentServiceInterface defines board and message operations
type ContentServiceInterface interface {
	ListBoards(ctx context.Context, page, size int) ([]*models.Board, error)
	CreateBoard(ctx context.Context, userID, title, content string) (*models.Board, error)
	SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
}

// ContentHandler serves boards and messages
type ContentHandler struct {
	service ContentServiceInterface
}

func NewContentHandler(service ContentServiceInterface) *ContentHandler {
	return &ContentHandler{service: service}
}

type CreateBoardRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,max=50"`
	Content    string `json:"content" validate:"required,max=2000"`
}

// ListBoards handles GET /api/boards?page=&size=
func (h *ContentHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	boards, err := h.service.ListBoards(r.Context(), page, size)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, boards)
}

// CreateBoard handles POST /api/boards
func (h *ContentHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateBoardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	board, err := h.service.CreateBoard(r.Context(), id.UserID, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, board)
}

// SendMessage handles POST /api/messages
func (h *ContentHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), id.UserID, req.ReceiverID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, msg)
}
