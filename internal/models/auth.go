package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims is the payload of both token kinds. Role is empty on refresh tokens.
type TokenClaims struct {
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *TokenClaims) UserID() string {
	return c.Subject
}

// Identity is what the request gate attaches to an authenticated request.
type Identity struct {
	UserID string
	Role   string
}
