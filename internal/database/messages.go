package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BizLink/entity"
)

// SendMessage appends a message and updates the parent conversation in
// the same call: last_message snapshot, recipient unread counter bumped,
// updated_at refreshed server-side. The stored message supersedes the
// caller's optimistic timestamp with the store clock and echoes
// ClientTempID back so the sender can reconcile its placeholder.
func (m *MongoDB) SendMessage(ctx context.Context, msg entity.Message) (*entity.Message, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	conv, err := m.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(msg.SenderID) {
		return nil, entity.ErrPermissionDenied
	}

	stored := msg
	stored.ID = primitive.NewObjectID().Hex()
	stored.Timestamp = time.Now().UTC()
	stored.Status = entity.StatusSent
	stored.Read = false

	if _, err := db.Collection(messagesCollection).InsertOne(ctx, stored); err != nil {
		return nil, fmt.Errorf("mongodb insert message: %w", err)
	}

	recipient := conv.OtherParticipant(msg.SenderID)
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "last_message", Value: entity.LastMessage{
			Text:      stored.Text,
			SenderID:  stored.SenderID,
			Timestamp: stored.Timestamp,
		}}}},
		{Key: "$inc", Value: bson.D{{Key: "unread_count." + recipient, Value: 1}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	result, err := db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: msg.ConversationID}}, update)
	if err != nil {
		return nil, fmt.Errorf("mongodb update conversation on send: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, entity.ErrConversationNotFound
	}

	return &stored, nil
}

// MarkMessagesAsRead zeroes the user's unread counter and flips every
// unread inbound message of the conversation to READ.
func (m *MongoDB) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	result, err := db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: conversationID}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "unread_count." + userID, Value: 0}}},
			{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb zero unread counter: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrConversationNotFound
	}

	_, err = db.Collection(messagesCollection).UpdateMany(ctx,
		bson.D{
			{Key: "conversation_id", Value: conversationID},
			{Key: "sender_id", Value: bson.D{{Key: "$ne", Value: userID}}},
			{Key: "read", Value: false},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "read", Value: true},
			{Key: "status", Value: entity.StatusRead},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb mark messages read: %w", err)
	}

	return nil
}

// ListMessages returns the most recent limit messages of a conversation
// in ascending timestamp order.
func (m *MongoDB) ListMessages(ctx context.Context, conversationID string, limit int) ([]entity.Message, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)

	filter := bson.D{{Key: "conversation_id", Value: conversationID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []entity.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode messages: %w", err)
	}

	// newest-first query, oldest-first contract
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	entity.SortMessages(messages)

	return messages, nil
}
