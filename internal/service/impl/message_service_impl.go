package impl

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"talentlink/internal/domain"
	"talentlink/internal/dto"
	"talentlink/internal/events"
	"talentlink/internal/observability/logging"
	"talentlink/internal/observability/metrics"
	"talentlink/internal/service"
	"talentlink/internal/store"
)

const (
	maxConversationLimit = 100
	maxSearchLimit       = 50
)

var (
	ErrMissingReceiver     = domain.Validation("receiver_id is required")
	ErrInvalidSearchPaging = domain.Validation("limit must be between 1 and 50 and offset >= 0")
)

type MessageServiceImpl struct {
	store    *store.Store
	realtime service.Realtime
	now      func() time.Time
}

func NewMessageServiceImpl(st *store.Store, rt service.Realtime) *MessageServiceImpl {
	if rt == nil {
		rt = noopRealtime{}
	}
	return &MessageServiceImpl{store: st, realtime: rt, now: time.Now}
}

func (s *MessageServiceImpl) Send(ctx context.Context, senderID uint, r dto.SendMessageRequest) (*dto.MessageResponse, error) {
	result := "success"
	defer func() {
		metrics.MessagesSentTotal.WithLabelValues(result).Inc()
	}()

	if r.ReceiverID == 0 {
		result = "invalid"
		return nil, ErrMissingReceiver
	}
	if n := utf8.RuneCountInString(r.Content); n == 0 || n > maxContentRunes {
		result = "invalid"
		return nil, domain.ErrInvalidContent
	}
	content := sanitizeContent(r.Content)
	if content == "" {
		result = "invalid"
		return nil, domain.ErrInvalidContent
	}
	if senderID == r.ReceiverID {
		result = "invalid"
		return nil, domain.ErrSelfMessage
	}

	if _, err := s.store.Users().GetByID(ctx, r.ReceiverID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			result = "not_found"
			return nil, domain.ErrRecipientNotFound
		}
		result = "failure"
		return nil, err
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: r.ReceiverID,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.Messages().Create(ctx, msg); err != nil {
		// The recipient can disappear between the lookup and the insert.
		if errors.Is(err, store.ErrMissingRef) {
			result = "not_found"
			return nil, domain.ErrRecipientNotFound
		}
		result = "failure"
		return nil, err
	}

	resp := messageResponse(msg)
	ev := events.NewMessageEvent(resp)
	s.realtime.Deliver(msg.ReceiverID, ev)
	s.realtime.Deliver(msg.SenderID, ev)

	logging.FromContext(ctx).Debug("message stored", "message_id", msg.ID, "sender_id", senderID, "receiver_id", msg.ReceiverID)
	return &resp, nil
}

// Conversation never touches is_read; acknowledging is MarkRead's job.
func (s *MessageServiceImpl) Conversation(ctx context.Context, userID, otherID uint, skip, limit int) ([]dto.MessageResponse, error) {
	if skip < 0 || limit < 1 || limit > maxConversationLimit {
		return nil, ErrInvalidPaging
	}
	msgs, err := s.store.Messages().Conversation(ctx, userID, otherID, skip, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageResponse(&msgs[i]))
	}
	return out, nil
}

func (s *MessageServiceImpl) MarkRead(ctx context.Context, userID, otherID uint) error {
	changed, err := s.store.Messages().MarkRead(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if changed > 0 {
		s.realtime.Deliver(otherID, events.MessagesReadEvent(userID, changed))
	}
	return nil
}

func (s *MessageServiceImpl) Conversations(ctx context.Context, userID uint) ([]dto.ConversationPartner, error) {
	lasts, err := s.store.Messages().LastPerPartner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lasts) == 0 {
		return []dto.ConversationPartner{}, nil
	}
	unread, err := s.store.Messages().UnreadBySender(ctx, userID)
	if err != nil {
		return nil, err
	}

	partnerIDs := make([]domain.UserID, 0, len(lasts))
	for _, m := range lasts {
		partnerIDs = append(partnerIDs, counterpart(m, userID))
	}
	users, err := s.store.Users().ListByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[domain.UserID]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	type row struct {
		partner dto.ConversationPartner
		lastID  domain.MessageID
	}
	rows := make([]row, 0, len(lasts))
	for _, m := range lasts {
		pid := counterpart(m, userID)
		u, ok := byID[pid]
		if !ok {
			continue
		}
		content := m.Content
		at := m.CreatedAt
		rows = append(rows, row{
			partner: dto.ConversationPartner{
				UserID:          u.ID,
				Username:        u.Username,
				Role:            string(u.Role),
				LastMessage:     &content,
				LastMessageTime: &at,
				UnreadCount:     unread[pid],
				IsOnline:        s.realtime.IsOnline(pid),
			},
			lastID: m.ID,
		})
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		if c := b.partner.LastMessageTime.Compare(*a.partner.LastMessageTime); c != 0 {
			return c
		}
		switch {
		case a.lastID > b.lastID:
			return -1
		case a.lastID < b.lastID:
			return 1
		}
		return 0
	})

	out := make([]dto.ConversationPartner, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.partner)
	}
	return out, nil
}

func (s *MessageServiceImpl) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.store.Messages().UnreadCount(ctx, userID)
}

func (s *MessageServiceImpl) SearchUsers(ctx context.Context, userID uint, query string, limit, offset int) ([]dto.UserSummary, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < minQueryRunes {
		return nil, domain.ErrQueryTooShort
	}
	if limit < 1 || limit > maxSearchLimit || offset < 0 {
		return nil, ErrInvalidSearchPaging
	}
	users, err := s.store.Users().Search(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, dto.UserSummary{ID: u.ID, Username: u.Username, Role: string(u.Role)})
	}
	return out, nil
}

func counterpart(m domain.Message, userID domain.UserID) domain.UserID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

func messageResponse(m *domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		Timestamp:  m.CreatedAt,
	}
}

type noopRealtime struct{}

func (noopRealtime) Deliver(uint, any)  {}
func (noopRealtime) IsOnline(uint) bool { return false }
