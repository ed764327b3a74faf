package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/konghome/boardgate/internal/models"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
	parser             *jwt.Parser
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now for issuance and verification.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		tm.now = now
	}
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration, opts ...TokenOption) *TokenManager {
	tm := &TokenManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tm.now),
	)
	return tm
}

// AccessTokenExpiry is the lifetime of issued access tokens.
func (tm *TokenManager) AccessTokenExpiry() time.Duration {
	return tm.accessTokenExpiry
}

// RefreshTokenExpiry is the lifetime of issued refresh tokens.
func (tm *TokenManager) RefreshTokenExpiry() time.Duration {
	return tm.refreshTokenExpiry
}

// IssueAccess creates a short-lived access token carrying the role.
func (tm *TokenManager) IssueAccess(userID, role string) (string, error) {
	return tm.issue(models.TokenTypeAccess, userID, role, tm.accessTokenExpiry)
}

// IssueRefresh creates a long-lived refresh token. It has no role claim;
// the role is read from the user store whenever it is exchanged.
func (tm *TokenManager) IssueRefresh(userID string) (string, error) {
	return tm.issue(models.TokenTypeRefresh, userID, "", tm.refreshTokenExpiry)
}

func (tm *TokenManager) issue(kind, userID, role string, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type: kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return tokenString, nil
}

// Verify checks signature, expiry and structure. It never touches a store.
func (tm *TokenManager) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := tm.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", models.ErrTokenInvalid)
	}
	if claims.Type != models.TokenTypeAccess && claims.Type != models.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: unknown token type %q", models.ErrTokenInvalid, claims.Type)
	}

	return claims, nil
}

// VerifyAccess accepts only access tokens.
func (tm *TokenManager) VerifyAccess(tokenString string) (*models.TokenClaims, error) {
	return tm.verifyKind(tokenString, models.TokenTypeAccess)
}

// VerifyRefresh accepts only refresh tokens.
func (tm *TokenManager) VerifyRefresh(tokenString string) (*models.TokenClaims, error) {
	return tm.verifyKind(tokenString, models.TokenTypeRefresh)
}

func (tm *TokenManager) verifyKind(tokenString, kind string) (*models.TokenClaims, error) {
	claims, err := tm.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: %s token presented where %s expected", models.ErrTokenInvalid, claims.Type, kind)
	}
	return claims, nil
}
