package dto

import "time"

type SendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
}

type MessageResponse struct {
	ID         uint      `json:"id"`
	SenderID   uint      `json:"sender_id"`
	ReceiverID uint      `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	Timestamp  time.Time `json:"timestamp"`
}

type ConversationPartner struct {
	UserID          uint       `json:"user_id"`
	Username        string     `json:"username"`
	Role            string     `json:"role"`
	LastMessage     *string    `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`
	UnreadCount     int64      `json:"unread_count"`
	IsOnline        bool       `json:"is_online"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// UserSummary is the only user shape exposed by directory search.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
