package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konghome/boardgate/internal/models"
)

const testSecret = "test-secret-key-at-least-16"

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 30*time.Minute, 7*24*time.Hour)

	token, err := tm.IssueAccess("alice", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID())
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, models.TokenTypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_RefreshHasNoRole(t *testing.T) {
	tm := NewTokenManager(testSecret, 30*time.Minute, 7*24*time.Hour)

	token, err := tm.IssueRefresh("alice")
	require.NoError(t, err)

	claims, err := tm.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID())
	assert.Empty(t, claims.Role)
	assert.Equal(t, models.TokenTypeRefresh, claims.Type)
}

func TestTokenManager_UniqueJTI(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute, time.Hour)

	a, err := tm.IssueAccess("alice", models.RoleUser)
	require.NoError(t, err)
	b, err := tm.IssueAccess("alice", models.RoleUser)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenManager_ExpiredIsDistinguishable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tm := NewTokenManager(testSecret, 30*time.Minute, time.Hour, WithClock(clock))

	token, err := tm.IssueAccess("alice", models.RoleUser)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = tm.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
	assert.NotErrorIs(t, err, models.ErrTokenInvalid)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTokenManager_TamperedSignature(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute, time.Hour)
	token, err := tm.IssueAccess("alice", models.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = tm.Verify(tampered)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuer := NewTokenManager("another-secret-key-of-length", time.Minute, time.Hour)
	verifier := NewTokenManager(testSecret, time.Minute, time.Hour)

	token, err := issuer.IssueAccess("alice", models.RoleUser)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute, time.Hour)

	claims := &models.TokenClaims{
		Type: models.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Verify(none)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_RequiresExpiry(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute, time.Hour)

	claims := &models.TokenClaims{
		Type:             models.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_KindMismatch(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute, time.Hour)

	refresh, err := tm.IssueRefresh("alice")
	require.NoError(t, err)
	_, err = tm.VerifyAccess(refresh)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	access, err := tm.IssueAccess("alice", models.RoleUser)
	require.NoError(t, err)
	_, err = tm.VerifyRefresh(access)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_Garbage(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute, time.Hour)

	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := tm.Verify(tok)
		assert.True(t, errors.Is(err, models.ErrTokenInvalid), "token %q", tok)
	}
}
