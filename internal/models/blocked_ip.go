package models

import "time"

// BlockedIP is an administrator-created block on a network address. No expiry.
type BlockedIP struct {
	ID        int64     `json:"id"`
	IP        string    `json:"ip"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
