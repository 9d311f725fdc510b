package entity

// NotificationData is the routing payload attached to every chat
// notification so a client can open the right conversation.
type NotificationData struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

// Notification is the payload handed to the notification gateway.
type Notification struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
}

// ChatNotification builds a chat-typed notification.
func ChatNotification(title, body, conversationID, messageID string) Notification {
	return Notification{
		Title: title,
		Body:  body,
		Data: NotificationData{
			Type:           "chat",
			ConversationID: conversationID,
			MessageID:      messageID,
		},
	}
}
