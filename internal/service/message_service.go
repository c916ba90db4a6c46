package service

import (
	"context"

	"talentlink/internal/dto"
)

type MessageService interface {
	Send(ctx context.Context, senderID uint, r dto.SendMessageRequest) (*dto.MessageResponse, error)
	Conversation(ctx context.Context, userID, otherID uint, skip, limit int) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, userID, otherID uint) error
	Conversations(ctx context.Context, userID uint) ([]dto.ConversationPartner, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	SearchUsers(ctx context.Context, userID uint, query string, limit, offset int) ([]dto.UserSummary, error)
}

// Realtime is the live-connection side the message service pushes through.
// Deliver is fire-and-forget: offline users and dead sockets are not errors.
type Realtime interface {
	Deliver(userID uint, event any)
	IsOnline(userID uint) bool
}
