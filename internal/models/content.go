package models

import "time"

// ActionType names a throttled content-creation action.
type ActionType string

const (
	ActionBoardPost ActionType = "board_post"
	ActionMessage   ActionType = "message"
)

type Board struct {
	BoardNo   int64     `json:"board_no"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	SentAt     time.Time `json:"sent_at"`
}
