package models

import (
	"time"
)

// Roles stored on users. Values match the existing users table.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID           int64
	UserID       string // login id, unique
	PasswordHash string
	UserName     string
	NickName     string
	Email        string
	Role         string
	Banned       bool
	BanReason    *string
	BannedAt     *time.Time
	CreatedAt    time.Time
}

// BanStatus is the slice of a user the request gate reads on every
// authenticated request.
type BanStatus struct {
	Banned    bool
	BanReason string
	Role      string
}
