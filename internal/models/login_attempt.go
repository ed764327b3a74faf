package models

import "time"

// LoginAttemptState is the per-identity lockout record after an update.
type LoginAttemptState struct {
	FailureCount int
	BlockedUntil *time.Time
}

// Locked reports whether the record is locked at now.
func (s LoginAttemptState) Locked(now time.Time) bool {
	return s.BlockedUntil != nil && now.Before(*s.BlockedUntil)
}
