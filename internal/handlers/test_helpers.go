package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/konghome/boardgate/internal/auth"
	"github.com/konghome/boardgate/internal/models"
	"github.com/konghome/boardgate/internal/services"
	pkghttp "github.com/konghome/boardgate/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithIdentity attaches an authenticated identity as the gate would
func WithIdentity(req *http.Request, userID, role string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), models.Identity{UserID: userID, Role: role}))
}

// WithURLParams sets chi route params on the request
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignupFunc      func(ctx context.Context, in services.SignupInput) (*services.UserResponse, error)
	CheckUserIDFunc func(ctx context.Context, userID string) (bool, error)
	LoginFunc       func(ctx context.Context, userID, password, ipAddress string) (*services.AuthResponse, error)
	RefreshFunc     func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	MeFunc          func(ctx context.Context, userID string) (*services.UserResponse, error)
}

func (m *MockAuthService) Signup(ctx context.Context, in services.SignupInput) (*services.UserResponse, error) {
	if m.SignupFunc == nil {
		return nil, models.ErrConflict
	}
	return m.SignupFunc(ctx, in)
}

func (m *MockAuthService) CheckUserID(ctx context.Context, userID string) (bool, error) {
	if m.CheckUserIDFunc == nil {
		return false, nil
	}
	return m.CheckUserIDFunc(ctx, userID)
}

func (m *MockAuthService) Login(ctx context.Context, userID, password, ipAddress string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, userID, password, ipAddress)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.MeFunc(ctx, userID)
}

// MockContentService implements ContentServiceInterface for testing
type MockContentService struct {
	ListBoardsFunc  func(ctx context.Context, page, size int) ([]*models.Board, error)
	CreateBoardFunc func(ctx context.Context, userID, title, content string) (*models.Board, error)
	SendMessageFunc func(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
}

func (m *MockContentService) ListBoards(ctx context.Context, page, size int) ([]*models.Board, error) {
	if m.ListBoardsFunc == nil {
		return []*models.Board{}, nil
	}
	return m.ListBoardsFunc(ctx, page, size)
}

func (m *MockContentService) CreateBoard(ctx context.Context, userID, title, content string) (*models.Board, error) {
	if m.CreateBoardFunc == nil {
		return &models.Board{BoardNo: 1, UserID: userID, Title: title, Content: content}, nil
	}
	return m.CreateBoardFunc(ctx, userID, title, content)
}

func (m *MockContentService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	if m.SendMessageFunc == nil {
		return &models.Message{ID: 1, SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
	}
	return m.SendMessageFunc(ctx, senderID, receiverID, content)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ActiveUsersFunc func(ctx context.Context) (*services.ActiveUsersResponse, error)
	BanUserFunc     func(ctx context.Context, actorID, target, reason string) error
	UnbanUserFunc   func(ctx context.Context, actorID, target string) error
}

func (m *MockAdminService) ActiveUsers(ctx context.Context) (*services.ActiveUsersResponse, error) {
	if m.ActiveUsersFunc == nil {
		return &services.ActiveUsersResponse{}, nil
	}
	return m.ActiveUsersFunc(ctx)
}

func (m *MockAdminService) BanUser(ctx context.Context, actorID, target, reason string) error {
	if m.BanUserFunc == nil {
		return nil
	}
	return m.BanUserFunc(ctx, actorID, target, reason)
}

func (m *MockAdminService) UnbanUser(ctx context.Context, actorID, target string) error {
	if m.UnbanUserFunc == nil {
		return nil
	}
	return m.UnbanUserFunc(ctx, actorID, target)
}

// MockIPBlockService implements IPBlockServiceInterface for testing
type MockIPBlockService struct {
	BlockFunc   func(ctx context.Context, ip, reason string) (*models.BlockedIP, error)
	UnblockFunc func(ctx context.Context, id int64) error
	ListFunc    func(ctx context.Context) ([]*models.BlockedIP, error)
}

func (m *MockIPBlockService) Block(ctx context.Context, ip, reason string) (*models.BlockedIP, error) {
	if m.BlockFunc == nil {
		return &models.BlockedIP{ID: 1, IP: ip, Reason: reason}, nil
	}
	return m.BlockFunc(ctx, ip, reason)
}

func (m *MockIPBlockService) Unblock(ctx context.Context, id int64) error {
	if m.UnblockFunc == nil {
		return nil
	}
	return m.UnblockFunc(ctx, id)
}

func (m *MockIPBlockService) List(ctx context.Context) ([]*models.BlockedIP, error) {
	if m.ListFunc == nil {
		return []*models.BlockedIP{}, nil
	}
	return m.ListFunc(ctx)
}
