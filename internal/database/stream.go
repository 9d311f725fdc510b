package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BizLink/entity"
	"BizLink/internal/lib/sl"
)

// ListenToMessages opens a live subscription on a conversation's message
// window. onUpdate receives the full, timestamp-sorted window of at most
// limit messages: once immediately after subscribing and again after
// every change. Cancellation is explicit: the caller must invoke the
// returned unsubscribe exactly once; dropping it leaks the change stream.
func (m *MongoDB) ListenToMessages(conversationID string, limit int, onUpdate func([]entity.Message), onError func(error)) (func(), error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}

	collection := connection.Database(m.database).Collection(messagesCollection)

	pipeline := []bson.D{
		{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "fullDocument.conversation_id", Value: conversationID}},
				bson.D{{Key: "operationType", Value: "delete"}},
			}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	streamCtx, cancel := context.WithCancel(m.ctx)
	stream, err := collection.Watch(streamCtx, pipeline, opts)
	if err != nil {
		cancel()
		m.disconnect(connection)
		return nil, fmt.Errorf("mongodb watch messages: %w", err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = stream.Close(context.Background())
			m.disconnect(connection)
		})
	}

	deliver := func() bool {
		messages, err := m.ListMessages(streamCtx, conversationID, limit)
		if err != nil {
			if streamCtx.Err() == nil && onError != nil {
				onError(err)
			}
			return false
		}
		onUpdate(messages)
		return true
	}

	go func() {
		if !deliver() {
			return
		}
		for stream.Next(streamCtx) {
			if !deliver() {
				return
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			m.log.Warn("message stream closed", sl.Err(err),
				slog.String("conversation_id", conversationID))
			if onError != nil {
				onError(err)
			}
		}
	}()

	return unsubscribe, nil
}
