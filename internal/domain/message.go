package domain

import "time"

// Message belongs to its sender and receiver; both ids are foreign keys into
// users. Sender and Receiver are only there to declare the constraints and
// are never loaded. IsRead moves false -> true through the explicit
// read-receipt path and nowhere else.
type Message struct {
	ID         MessageID `gorm:"primaryKey;autoIncrement" db:"id" json:"id"`
	SenderID   UserID    `gorm:"not null;index:ix_messages_pair,priority:1" db:"sender_id" json:"senderId"`
	ReceiverID UserID    `gorm:"not null;index:ix_messages_pair,priority:2;index:ix_messages_unread,priority:1" db:"receiver_id" json:"receiverId"`
	Content    string    `gorm:"type:text;not null" db:"content" json:"content"`
	IsRead     bool      `gorm:"not null;default:false;index:ix_messages_unread,priority:2" db:"is_read" json:"isRead"`
	CreatedAt  time.Time `gorm:"not null;index" db:"created_at" json:"createdAt"`

	Sender   *User `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Receiver *User `gorm:"foreignKey:ReceiverID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string { return "messages" }
