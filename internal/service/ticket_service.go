package service

import (
	"context"
	"time"
)

type TicketService interface {
	Issue(ctx context.Context, userID uint) (ticket string, ttl time.Duration, err error)
	// Redeem returns ok=false for unknown, expired and already redeemed
	// tickets alike.
	Redeem(ctx context.Context, ticket string) (userID uint, ok bool)
}
