package model

import (
	"strings"
	"time"

	"counseling-platform/internal/domain"
)

// MaxMessageLen bounds the text of a single chat message.
const MaxMessageLen = 5000

// DedupWindow is the fallback deduplication horizon for messages sent
// without a client message id: a second message with the same author and
// text inside this window is treated as the same logical send.
const DedupWindow = 2 * time.Second

// Message is one chat message. ClientMessageID is the client-supplied
// idempotency key; (SenderID, ClientMessageID) is unique in storage.
type Message struct {
	ID              int64
	ChatID          int64
	SenderID        int64
	Text            string
	ClientMessageID string
	CreatedAt       time.Time
}

// NewMessage validates and builds a message with a server-assigned timestamp.
func NewMessage(chatID, senderID int64, text, clientMessageID string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(text) > MaxMessageLen {
		return nil, domain.ErrMessageTooLong
	}
	if chatID <= 0 || senderID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Message{
		ChatID:          chatID,
		SenderID:        senderID,
		Text:            text,
		ClientMessageID: clientMessageID,
		CreatedAt:       time.Now(),
	}, nil
}
