package services

import (
	"context"
	"time"

	"github.com/konghome/boardgate/internal/models"
	pkgauth "github.com/konghome/boardgate/pkg/auth"
)

// MockUserRepository implements UserRepository and AdminUserRepository for testing
type MockUserRepository struct {
	GetByUserIDFunc    func(ctx context.Context, userID string) (*models.User, error)
	ExistsByUserIDFunc func(ctx context.Context, userID string) (bool, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	SetBanFunc         func(ctx context.Context, userID, reason string) error
	ClearBanFunc       func(ctx context.Context, userID string) error
	EnsureAdminFunc    func(ctx context.Context, user *models.User) (bool, error)
}

func (m *MockUserRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	if m.ExistsByUserIDFunc != nil {
		return m.ExistsByUserIDFunc(ctx, userID)
	}
	return false, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SetBan(ctx context.Context, userID, reason string) error {
	if m.SetBanFunc != nil {
		return m.SetBanFunc(ctx, userID, reason)
	}
	return nil
}

func (m *MockUserRepository) ClearBan(ctx context.Context, userID string) error {
	if m.ClearBanFunc != nil {
		return m.ClearBanFunc(ctx, userID)
	}
	return nil
}

func (m *MockUserRepository) EnsureAdmin(ctx context.Context, user *models.User) (bool, error) {
	if m.EnsureAdminFunc != nil {
		return m.EnsureAdminFunc(ctx, user)
	}
	return true, nil
}

// MockBlockedIPRepository implements BlockedIPRepository for testing
type MockBlockedIPRepository struct {
	ExistsFunc     func(ctx context.Context, ip string) (bool, error)
	CreateFunc     func(ctx context.Context, ip, reason string) (*models.BlockedIP, error)
	DeleteByIDFunc func(ctx context.Context, id int64) error
	ListFunc       func(ctx context.Context) ([]*models.BlockedIP, error)
}

func (m *MockBlockedIPRepository) Exists(ctx context.Context, ip string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, ip)
	}
	return false, nil
}

func (m *MockBlockedIPRepository) Create(ctx context.Context, ip, reason string) (*models.BlockedIP, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ip, reason)
	}
	return &models.BlockedIP{ID: 1, IP: ip, Reason: reason, CreatedAt: time.Now()}, nil
}

func (m *MockBlockedIPRepository) DeleteByID(ctx context.Context, id int64) error {
	if m.DeleteByIDFunc != nil {
		return m.DeleteByIDFunc(ctx, id)
	}
	return nil
}

func (m *MockBlockedIPRepository) List(ctx context.Context) ([]*models.BlockedIP, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.BlockedIP{}, nil
}

// MockContentRepository implements ContentRepository for testing
type MockContentRepository struct {
	CreateBoardFunc func(ctx context.Context, board *models.Board) (*models.Board, error)
	ListBoardsFunc  func(ctx context.Context, limit, offset int) ([]*models.Board, error)
	SendMessageFunc func(ctx context.Context, msg *models.Message) (*models.Message, error)
}

func (m *MockContentRepository) CreateBoard(ctx context.Context, board *models.Board) (*models.Board, error) {
	if m.CreateBoardFunc != nil {
		return m.CreateBoardFunc(ctx, board)
	}
	b := *board
	b.BoardNo = 1
	b.CreatedAt = time.Now()
	return &b, nil
}

func (m *MockContentRepository) ListBoards(ctx context.Context, limit, offset int) ([]*models.Board, error) {
	if m.ListBoardsFunc != nil {
		return m.ListBoardsFunc(ctx, limit, offset)
	}
	return []*models.Board{}, nil
}

func (m *MockContentRepository) SendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, msg)
	}
	out := *msg
	out.ID = 1
	out.SentAt = time.Now()
	return &out, nil
}

// MockCooldown implements CooldownChecker for testing
type MockCooldown struct {
	CheckFunc   func(ctx context.Context, userID string, action models.ActionType) error
	ReleaseFunc func(userID string, action models.ActionType)
}

func (m *MockCooldown) Check(ctx context.Context, userID string, action models.ActionType) error {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, userID, action)
	}
	return nil
}

func (m *MockCooldown) Release(userID string, action models.ActionType) {
	if m.ReleaseFunc != nil {
		m.ReleaseFunc(userID, action)
	}
}

// MockPresence implements guard.PresenceTracker for testing
type MockPresence struct {
	TouchFunc       func(ctx context.Context, userID string) error
	ActiveCountFunc func(ctx context.Context) (int64, error)
}

func (m *MockPresence) Touch(ctx context.Context, userID string) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, userID)
	}
	return nil
}

func (m *MockPresence) ActiveCount(ctx context.Context) (int64, error) {
	if m.ActiveCountFunc != nil {
		return m.ActiveCountFunc(ctx)
	}
	return 0, nil
}

// NewTestUser creates a USER with the given password hashed
func NewTestUser(userID, password string) *models.User {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return &models.User{
		ID:           1,
		UserID:       userID,
		PasswordHash: hash,
		UserName:     "Test User",
		NickName:     userID,
		Email:        userID + "@example.com",
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
	}
}
