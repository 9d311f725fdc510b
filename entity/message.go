package entity

import (
	"time"
)

// MessageStatus is the client-visible delivery state of a message.
type MessageStatus string

const (
	StatusSending MessageStatus = "SENDING"
	StatusSent    MessageStatus = "SENT"
	StatusError   MessageStatus = "ERROR"
	StatusRead    MessageStatus = "READ"
)

// CanTransition reports whether the status machine allows moving to next.
// SENDING advances to SENT or ERROR, SENT advances to READ, and ERROR may
// return to SENDING only through an explicit resend. READ is terminal.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	switch s {
	case StatusSending:
		return next == StatusSent || next == StatusError
	case StatusSent:
		return next == StatusRead
	case StatusError:
		return next == StatusSending
	}
	return false
}

// MessageType distinguishes plain text from image messages.
type MessageType string

const (
	TypeText  MessageType = "TEXT"
	TypeImage MessageType = "IMAGE"
)

// ReplyRef is a denormalized snapshot of the message being replied to.
// It is copied at send time, not a live pointer, so it survives deletion
// of the original message.
type ReplyRef struct {
	MessageID  string      `json:"message_id" bson:"message_id"`
	Text       string      `json:"text" bson:"text"`
	SenderID   string      `json:"sender_id" bson:"sender_id"`
	SenderName string      `json:"sender_name" bson:"sender_name"`
	Type       MessageType `json:"type" bson:"type"`
	ImageURL   string      `json:"image_url,omitempty" bson:"image_url,omitempty"`
}

// Message is a single message inside a conversation. A message starts its
// life as an optimistic placeholder (empty ID, ClientTempID set, status
// SENDING) and is replaced in place by the confirmed document once the
// store acknowledges it. ClientTempID is echoed back by the store so
// reconciling placeholder and confirmed message is an exact match.
type Message struct {
	ID             string        `json:"id" bson:"_id,omitempty"`
	ConversationID string        `json:"conversation_id" bson:"conversation_id"`
	Text           string        `json:"text" bson:"text"`
	SenderID       string        `json:"sender_id" bson:"sender_id"`
	SenderName     string        `json:"sender_name" bson:"sender_name"`
	SenderPhoto    string        `json:"sender_photo,omitempty" bson:"sender_photo,omitempty"`
	Timestamp      time.Time     `json:"timestamp" bson:"timestamp"`
	Status         MessageStatus `json:"status" bson:"status"`
	Read           bool          `json:"read" bson:"read"`
	Type           MessageType   `json:"type" bson:"type"`
	ImageURL       string        `json:"image_url,omitempty" bson:"image_url,omitempty"`
	ReplyTo        *ReplyRef     `json:"reply_to,omitempty" bson:"reply_to,omitempty"`
	ClientTempID   string        `json:"client_temp_id,omitempty" bson:"client_temp_id,omitempty"`
}

// Pending reports whether the message is still an optimistic placeholder
// (or a failed one) that the store has not confirmed.
func (m *Message) Pending() bool {
	return m.ID == "" && m.ClientTempID != ""
}

// Confirmed reports whether the message carries a store-assigned id.
func (m *Message) Confirmed() bool {
	return m.ID != ""
}

// NewPendingMessage builds the optimistic placeholder appended to the
// active message list before the store call settles.
func NewPendingMessage(tempID, conversationID, senderID, senderName, senderPhoto, text, imageURL string, replyTo *ReplyRef) Message {
	t := TypeText
	if imageURL != "" {
		t = TypeImage
	}
	return Message{
		ConversationID: conversationID,
		Text:           text,
		SenderID:       senderID,
		SenderName:     senderName,
		SenderPhoto:    senderPhoto,
		Timestamp:      time.Now(),
		Status:         StatusSending,
		Type:           t,
		ImageURL:       imageURL,
		ReplyTo:        replyTo,
		ClientTempID:   tempID,
	}
}

// SortMessages orders messages by effective timestamp, oldest first.
// The sort is stable and breaks timestamp ties by id, so a window that
// mixes client-clock and server timestamps keeps a deterministic order.
func SortMessages(msgs []Message) {
	// insertion sort keeps equal elements in arrival order; windows are
	// bounded by the subscription limit
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && messageBefore(msgs[j], msgs[j-1]); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}

func messageBefore(a, b Message) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID < b.ID
	}
	return a.Timestamp.Before(b.Timestamp)
}
