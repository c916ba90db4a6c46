package store

import (
	"context"
	"database/sql"

	"talentlink/internal/domain"

	"gorm.io/gorm"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	return translate(m.db.WithContext(ctx).Create(msg).Error)
}

// Conversation returns the messages exchanged between a and b, oldest first.
// Equal timestamps fall back to insertion order.
func (m *MessageStore) Conversation(ctx context.Context, a, b domain.UserID, skip, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	err := m.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at asc").
		Order("id asc").
		Offset(skip).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, translate(err)
	}
	return msgs, nil
}

// MarkRead flips is_read on unread messages from sender to receiver and
// reports how many rows changed.
func (m *MessageStore) MarkRead(ctx context.Context, receiver, sender domain.UserID) (int64, error) {
	res := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", sender, receiver, false).
		Update("is_read", true)
	return res.RowsAffected, translate(res.Error)
}

func (m *MessageStore) UnreadCount(ctx context.Context, receiver domain.UserID) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&domain.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiver, false).
		Count(&n).Error
	return n, translate(err)
}

// UnreadBySender groups the receiver's unread messages by sender.
func (m *MessageStore) UnreadBySender(ctx context.Context, receiver domain.UserID) (map[domain.UserID]int64, error) {
	var rows []struct {
		SenderID domain.UserID
		Unread   int64
	}
	err := m.db.WithContext(ctx).Model(&domain.Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND is_read = ?", receiver, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make(map[domain.UserID]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.Unread
	}
	return out, nil
}

const lastPerPartnerSQL = `
SELECT id FROM (
	SELECT id, ROW_NUMBER() OVER (
		PARTITION BY CASE WHEN sender_id = @uid THEN receiver_id ELSE sender_id END
		ORDER BY created_at DESC, id DESC
	) AS rn
	FROM messages
	WHERE sender_id = @uid OR receiver_id = @uid
) ranked
WHERE rn = 1`

// LastPerPartner returns, for each counterpart of userID, the latest message
// of the thread. Among messages sharing the latest timestamp the highest id
// wins, so the result is deterministic under timestamp collisions.
func (m *MessageStore) LastPerPartner(ctx context.Context, userID domain.UserID) ([]domain.Message, error) {
	var ids []domain.MessageID
	if err := m.db.WithContext(ctx).Raw(lastPerPartnerSQL, sql.Named("uid", userID)).Scan(&ids).Error; err != nil {
		return nil, translate(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []domain.Message
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, translate(err)
	}
	return msgs, nil
}
