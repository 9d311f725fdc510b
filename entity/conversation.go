package entity

import (
	"time"
)

// LastMessage is the denormalized snapshot of a conversation's most recent
// message, kept on the conversation document so the inbox can render
// without a join against the messages collection.
type LastMessage struct {
	Text      string    `json:"text" bson:"text"`
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Conversation is a two-party messaging thread, optionally scoped to a
// business. Participants are stored as an ordered pair; PairKey is the
// sorted join of both ids and backs the uniqueness constraint for
// business conversations.
type Conversation struct {
	ID                string            `json:"id" bson:"_id,omitempty"`
	Participants      []string          `json:"participants" bson:"participants"`
	PairKey           string            `json:"-" bson:"pair_key"`
	ParticipantNames  map[string]string `json:"participant_names" bson:"participant_names"`
	ParticipantPhotos map[string]string `json:"participant_photos,omitempty" bson:"participant_photos,omitempty"`
	BusinessID        string            `json:"business_id,omitempty" bson:"business_id,omitempty"`
	BusinessName      string            `json:"business_name,omitempty" bson:"business_name,omitempty"`
	LastMessage       *LastMessage      `json:"last_message,omitempty" bson:"last_message,omitempty"`
	UnreadCount       map[string]int    `json:"unread_count" bson:"unread_count"`
	DeletedFor        map[string]bool   `json:"deleted_for,omitempty" bson:"deleted_for,omitempty"`
	CreatedAt         time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy. Snapshots handed out of a lock-guarded owner
// must not share the counter and flag maps with the original.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	if c.ParticipantNames != nil {
		out.ParticipantNames = make(map[string]string, len(c.ParticipantNames))
		for k, v := range c.ParticipantNames {
			out.ParticipantNames[k] = v
		}
	}
	if c.ParticipantPhotos != nil {
		out.ParticipantPhotos = make(map[string]string, len(c.ParticipantPhotos))
		for k, v := range c.ParticipantPhotos {
			out.ParticipantPhotos[k] = v
		}
	}
	if c.UnreadCount != nil {
		out.UnreadCount = make(map[string]int, len(c.UnreadCount))
		for k, v := range c.UnreadCount {
			out.UnreadCount[k] = v
		}
	}
	if c.DeletedFor != nil {
		out.DeletedFor = make(map[string]bool, len(c.DeletedFor))
		for k, v := range c.DeletedFor {
			out.DeletedFor[k] = v
		}
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// OtherParticipant returns the participant that is not userID, or "" when
// userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the unread counter for userID, clamped to zero.
func (c *Conversation) UnreadFor(userID string) int {
	n := c.UnreadCount[userID]
	if n < 0 {
		return 0
	}
	return n
}

// DeletedBy reports whether userID soft-deleted the conversation.
// The conversation still exists globally and for the other participant.
func (c *Conversation) DeletedBy(userID string) bool {
	return c.DeletedFor[userID]
}

// NameOf returns the display name recorded for a participant id.
func (c *Conversation) NameOf(userID string) string {
	return c.ParticipantNames[userID]
}
