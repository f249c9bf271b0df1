package model

import "time"

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

type MessageType string

const (
	TypeConsultation MessageType = "consultation"
	TypeGeneral      MessageType = "general"
	TypeEmergency    MessageType = "emergency"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

func ValidType(t MessageType) bool {
	switch t {
	case TypeConsultation, TypeGeneral, TypeEmergency:
		return true
	}
	return false
}

// EditWindow is how long after sending a message the sender may still
// change its content.
const EditWindow = 5 * time.Minute

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	RecipientID    string
	RecipientName  string
	Content        string
	Type           MessageType
	Status         Status
	IsEdited       bool
	EditedAt       *time.Time
	CreatedAt      time.Time
}

// Editable reports whether the message content may still be changed by
// the given user.
func (m Message) Editable(userID string, now time.Time) bool {
	if m.SenderID != userID {
		return false
	}
	return now.Sub(m.CreatedAt) <= EditWindow
}

// Conversation is a summary row for the conversation list: the latest
// message plus the unread count for the requesting user.
type Conversation struct {
	ConversationID string
	LastMessage    Message
	UnreadCount    int
}
