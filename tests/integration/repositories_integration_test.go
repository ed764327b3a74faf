package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konghome/boardgate/internal/models"
)

func TestUserRepository_BanLifecycle(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	repos := InitializeRepositories(testDB.DB)

	userID, password := TestUser("ban")
	_, err := SeedUser(ctx, testDB.DB, userID, password, models.RoleUser)
	require.NoError(t, err)

	status, err := repos.Users.GetBanStatus(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Banned)
	assert.Equal(t, models.RoleUser, status.Role)

	require.NoError(t, repos.Users.SetBan(ctx, userID, "spam"))
	status, err = repos.Users.GetBanStatus(ctx, userID)
	require.NoError(t, err)
	assert.True(t, status.Banned)
	assert.Equal(t, "spam", status.BanReason)

	require.NoError(t, repos.Users.ClearBan(ctx, userID))
	status, err = repos.Users.GetBanStatus(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Banned)
	assert.Empty(t, status.BanReason)

	assert.ErrorIs(t, repos.Users.SetBan(ctx, "nobody", "x"), models.ErrNotFound)
	_, err = repos.Users.GetBanStatus(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_DuplicateAndEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	repos := InitializeRepositories(testDB.DB)

	userID, password := TestUser("dup")
	_, err := SeedUser(ctx, testDB.DB, userID, password, models.RoleUser)
	require.NoError(t, err)

	_, err = repos.Users.Create(ctx, &models.User{UserID: userID, PasswordHash: "x", UserName: "dup"})
	assert.ErrorIs(t, err, models.ErrConflict)

	created, err := repos.Users.EnsureAdmin(ctx, &models.User{UserID: "root1", PasswordHash: "x", UserName: "root"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.Users.EnsureAdmin(ctx, &models.User{UserID: "root1", PasswordHash: "y", UserName: "root"})
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := repos.Users.GetByUserID(ctx, "root1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "x", admin.PasswordHash)
}

// Concurrent blocks of one address: exactly one wins.
func TestBlockedIPRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	repos := InitializeRepositories(testDB.DB)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.BlockedIPs.Create(ctx, "192.0.2.10", "race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, models.ErrAlreadyBlocked):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	list, err := repos.BlockedIPs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repos.BlockedIPs.DeleteByID(ctx, list[0].ID))
	require.NoError(t, repos.BlockedIPs.DeleteByID(ctx, list[0].ID))

	exists, err := repos.BlockedIPs.Exists(ctx, "192.0.2.10")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestContentRepository_LatestActionAt(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))
	repos := InitializeRepositories(testDB.DB)

	sender, pw := TestUser("s")
	receiver, _ := TestUser("r")
	_, err := SeedUser(ctx, testDB.DB, sender, pw, models.RoleUser)
	require.NoError(t, err)
	_, err = SeedUser(ctx, testDB.DB, receiver, pw, models.RoleUser)
	require.NoError(t, err)

	at, err := repos.Content.LatestActionAt(ctx, sender, models.ActionBoardPost)
	require.NoError(t, err)
	assert.Nil(t, at)

	board, err := repos.Content.CreateBoard(ctx, &models.Board{UserID: sender, Title: "t", Content: "c"})
	require.NoError(t, err)

	at, err = repos.Content.LatestActionAt(ctx, sender, models.ActionBoardPost)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.WithinDuration(t, board.CreatedAt, *at, 0)

	_, err = repos.Content.SendMessage(ctx, &models.Message{SenderID: sender, ReceiverID: "ghost", Content: "hi"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	msg, err := repos.Content.SendMessage(ctx, &models.Message{SenderID: sender, ReceiverID: receiver, Content: "hi"})
	require.NoError(t, err)
	assert.False(t, msg.Read)

	at, err = repos.Content.LatestActionAt(ctx, sender, models.ActionMessage)
	require.NoError(t, err)
	require.NotNil(t, at)
}
