package events

import "talentlink/internal/dto"

const (
	TypeNewMessage   = "new_message"
	TypeMessagesRead = "messages_read"
)

// NewMessage is pushed to both participants after a message is stored.
type NewMessage struct {
	Type    string              `json:"type"`
	Message dto.MessageResponse `json:"message"`
}

func (e NewMessage) EventType() string { return e.Type }

func NewMessageEvent(m dto.MessageResponse) NewMessage {
	return NewMessage{Type: TypeNewMessage, Message: m}
}

// MessagesRead tells a sender that ReaderID acknowledged their messages.
type MessagesRead struct {
	Type     string `json:"type"`
	ReaderID uint   `json:"reader_id"`
	Count    int64  `json:"count"`
}

func (e MessagesRead) EventType() string { return e.Type }

func MessagesReadEvent(readerID uint, count int64) MessagesRead {
	return MessagesRead{Type: TypeMessagesRead, ReaderID: readerID, Count: count}
}
