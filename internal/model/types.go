package model

// ContentType tags the payload kind of a message.
type ContentType int

const (
	ContentText  ContentType = 0
	ContentImage ContentType = 1
)

// Conversation represents a chat thread between two or more participants.
// The LastMessage* fields are a denormalized projection maintained by the
// send path and by the remote store's server timestamp assignment; nothing
// else writes them.
type Conversation struct {
	ID             string
	ParticipantIDs []string
	Group          bool
	Name           string // required when Group is true
	ImageURL       string

	LastMessageContent     string
	LastMessageSenderID    string
	LastMessageSenderName  string
	LastMessageSenderEmail string
	LastMessageTimestamp   int64 // unix millis, server-assigned; 0 = none yet
	LastMessageRead        bool
	LastMessageType        ContentType
}

// Message is one entry in a conversation timeline. The sender fields are a
// snapshot captured at send time and never re-resolved. Timestamp is assigned
// by the remote store; 0 means the server has not acknowledged yet and the
// message must be treated as "pending now".
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	SenderEmail    string
	Body           string // encoded on the wire, empty for images
	ImageURL       string // present only for ContentImage
	Type           ContentType
	Timestamp      int64 // unix millis, 0 = pending
	Read           bool
}

// Presence is the continuously overwritten per-user presence record.
type Presence struct {
	UserID         string
	DisplayName    string
	Email          string
	PhotoURL       string
	Online         bool
	LastOnline     int64 // unix millis
	PushToken      string
	TokenUpdatedAt int64 // unix millis
}
