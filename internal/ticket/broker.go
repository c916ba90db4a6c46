package ticket

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"talentlink/internal/observability/metrics"
)

const ticketBytes = 32

var ErrTicketCollision = errors.New("ticket: generated ticket already outstanding")

// Store holds outstanding tickets. Take must be atomic: of any number of
// concurrent Takes for one ticket at most one reports ok.
type Store interface {
	Put(ctx context.Context, ticket string, userID uint, ttl time.Duration) error
	Take(ctx context.Context, ticket string) (userID uint, ok bool, err error)
}

// Broker issues single-use websocket tickets bound to a user id.
type Broker struct {
	store Store
	ttl   time.Duration
}

func NewBroker(store Store, ttl time.Duration) *Broker {
	return &Broker{store: store, ttl: ttl}
}

func (b *Broker) TTL() time.Duration { return b.ttl }

func (b *Broker) Issue(ctx context.Context, userID uint) (string, time.Duration, error) {
	result := "success"
	defer func() {
		metrics.WSTicketsTotal.WithLabelValues("issue", result).Inc()
	}()

	buf := make([]byte, ticketBytes)
	if _, err := rand.Read(buf); err != nil {
		result = "failure"
		return "", 0, err
	}
	t := base64.RawURLEncoding.EncodeToString(buf)
	if err := b.store.Put(ctx, t, userID, b.ttl); err != nil {
		result = "failure"
		return "", 0, err
	}
	return t, b.ttl, nil
}

// Redeem consumes ticket. Unknown, expired, evicted and already redeemed
// tickets all yield ok=false.
func (b *Broker) Redeem(ctx context.Context, ticket string) (uint, bool) {
	if ticket == "" {
		metrics.WSTicketsTotal.WithLabelValues("redeem", "rejected").Inc()
		return 0, false
	}
	userID, ok, err := b.store.Take(ctx, ticket)
	if err != nil {
		slog.Error("ticket store take failed", "error", err)
		metrics.WSTicketsTotal.WithLabelValues("redeem", "failure").Inc()
		return 0, false
	}
	if !ok {
		metrics.WSTicketsTotal.WithLabelValues("redeem", "rejected").Inc()
		return 0, false
	}
	metrics.WSTicketsTotal.WithLabelValues("redeem", "success").Inc()
	return userID, true
}
