package ws

import "time"

// Wire frames. Outbound frames are discriminated by "type", except the error
// frame which carries only "error" (+ optional "chat_expired").

type inboundFrame struct {
	Message         string `json:"message"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

type ackFrame struct {
	Type            string `json:"type"` // always "ack"
	Status          string `json:"status"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	MessageID       int64  `json:"message_id,omitempty"`
}

type messageFrame struct {
	Type            string    `json:"type"` // always "message"
	Message         string    `json:"message"`
	SenderID        int64     `json:"sender_id"`
	SenderUsername  string    `json:"sender_username"`
	IsUser          bool      `json:"is_user"`
	Timestamp       time.Time `json:"timestamp"`
	MessageID       int64     `json:"message_id"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
}

type statusFrame struct {
	Type         string `json:"type"` // always "chat_status_update"
	ChatID       int64  `json:"chat_id"`
	NewStatus    string `json:"new_status"`
	UserID       int64  `json:"user_id"`
	UserUsername string `json:"user_username"`
	CounsellorID *int64 `json:"counsellor_id,omitempty"`
}

type errorFrame struct {
	Error       string `json:"error"`
	ChatExpired bool   `json:"chat_expired,omitempty"`
}

const (
	ackStatusSent      = "sent"
	ackStatusDuplicate = "duplicate"
)
