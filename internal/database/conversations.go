package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BizLink/entity"
)

// PairKey derives the order-independent key for a participant pair. It
// backs the unique index that keeps business conversations deduplicated.
func PairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// BusinessConversationParams describes the find-or-create request for a
// conversation between a user and a business owner.
type BusinessConversationParams struct {
	UserA, NameA, PhotoA string
	UserB, NameB, PhotoB string
	BusinessID           string
	BusinessName         string
}

// UpsertBusinessConversation finds the conversation between the pair in
// the given business context or creates it in one atomic operation. The
// unique {pair_key, business_id} index makes concurrent upserts converge
// on a single document; the periodic sweep remains only as repair for
// documents that predate the index.
func (m *MongoDB) UpsertBusinessConversation(ctx context.Context, p BusinessConversationParams) (*entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	participants := []string{p.UserA, p.UserB}
	if participants[0] > participants[1] {
		participants[0], participants[1] = participants[1], participants[0]
	}

	now := time.Now().UTC()
	doc := entity.Conversation{
		ID:           primitive.NewObjectID().Hex(),
		Participants: participants,
		PairKey:      PairKey(p.UserA, p.UserB),
		ParticipantNames: map[string]string{
			p.UserA: p.NameA,
			p.UserB: p.NameB,
		},
		ParticipantPhotos: photoMap(p.UserA, p.PhotoA, p.UserB, p.PhotoB),
		BusinessID:        p.BusinessID,
		BusinessName:      p.BusinessName,
		UnreadCount: map[string]int{
			p.UserA: 0,
			p.UserB: 0,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	filter := bson.D{
		{Key: "pair_key", Value: doc.PairKey},
		{Key: "business_id", Value: p.BusinessID},
	}
	update := bson.D{{Key: "$setOnInsert", Value: doc}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result entity.Conversation
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("mongodb upsert business conversation: %w", err)
	}

	return &result, nil
}

// CreateConversationParams describes a direct (non-deduplicated)
// conversation create.
type CreateConversationParams struct {
	Participants      []string
	ParticipantNames  map[string]string
	ParticipantPhotos map[string]string
	BusinessID        string
	BusinessName      string
}

// CreateConversation writes a new conversation document.
func (m *MongoDB) CreateConversation(ctx context.Context, p CreateConversationParams) (*entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	participants := append([]string(nil), p.Participants...)
	if participants[0] > participants[1] {
		participants[0], participants[1] = participants[1], participants[0]
	}

	now := time.Now().UTC()
	unread := make(map[string]int, len(participants))
	for _, id := range participants {
		unread[id] = 0
	}

	doc := entity.Conversation{
		ID:                primitive.NewObjectID().Hex(),
		Participants:      participants,
		PairKey:           PairKey(participants[0], participants[1]),
		ParticipantNames:  p.ParticipantNames,
		ParticipantPhotos: p.ParticipantPhotos,
		BusinessID:        p.BusinessID,
		BusinessName:      p.BusinessName,
		UnreadCount:       unread,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if _, err := collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongodb insert conversation: %w", err)
	}

	return &doc, nil
}

// GetConversation loads one conversation by id.
func (m *MongoDB) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	var conv entity.Conversation
	err = collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrConversationNotFound
		}
		return nil, fmt.Errorf("mongodb find conversation: %w", err)
	}

	return &conv, nil
}

// ListConversations returns the user's inbox, newest activity first,
// excluding conversations the user soft-deleted.
func (m *MongoDB) ListConversations(ctx context.Context, userID string) ([]entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	filter := bson.D{
		{Key: "participants", Value: userID},
		{Key: "deleted_for." + userID, Value: bson.D{{Key: "$ne", Value: true}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []entity.Conversation
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("mongodb decode conversations: %w", err)
	}

	return conversations, nil
}

// DeleteConversation soft-deletes: the conversation disappears from
// userID's inbox but stays live for the other participant.
func (m *MongoDB) DeleteConversation(ctx context.Context, id, userID string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "deleted_for." + userID, Value: true}}},
		{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
	}
	result, err := collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("mongodb soft delete conversation: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrConversationNotFound
	}

	return nil
}

// FindDuplicateBusinessConversations groups business conversations by
// {pair_key, business_id} and returns every group holding more than one
// document, each group sorted oldest first.
func (m *MongoDB) FindDuplicateBusinessConversations(ctx context.Context) ([][]entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "business_id", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: 1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "pair_key", Value: "$pair_key"}, {Key: "business_id", Value: "$business_id"}}},
			{Key: "docs", Value: bson.D{{Key: "$push", Value: "$$ROOT"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate duplicates: %w", err)
	}
	defer cursor.Close(ctx)

	var groups [][]entity.Conversation
	for cursor.Next(ctx) {
		var group struct {
			Docs []entity.Conversation `bson:"docs"`
		}
		if err := cursor.Decode(&group); err != nil {
			continue
		}
		groups = append(groups, group.Docs)
	}

	return groups, nil
}

// MergeConversations applies a merge plan: messages of the dropped
// duplicates are re-pointed at the surviving conversation, the survivor
// absorbs the combined unread counters and freshest last message, and the
// duplicates are removed.
func (m *MongoDB) MergeConversations(ctx context.Context, plan MergePlan) error {
	if len(plan.DropIDs) == 0 {
		return nil
	}

	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	_, err = db.Collection(messagesCollection).UpdateMany(ctx,
		bson.D{{Key: "conversation_id", Value: bson.D{{Key: "$in", Value: plan.DropIDs}}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "conversation_id", Value: plan.KeepID}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb repoint merged messages: %w", err)
	}

	set := bson.D{{Key: "unread_count", Value: plan.UnreadCount}}
	if plan.LastMessage != nil {
		set = append(set, bson.E{Key: "last_message", Value: plan.LastMessage})
	}
	if len(plan.DeletedFor) > 0 {
		set = append(set, bson.E{Key: "deleted_for", Value: plan.DeletedFor})
	}
	_, err = db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: plan.KeepID}},
		bson.D{
			{Key: "$set", Value: set},
			{Key: "$currentDate", Value: bson.D{{Key: "updated_at", Value: true}}},
		},
	)
	if err != nil {
		return fmt.Errorf("mongodb update merge survivor: %w", err)
	}

	_, err = db.Collection(conversationsCollection).DeleteMany(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: plan.DropIDs}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb delete merged duplicates: %w", err)
	}

	return nil
}

func photoMap(userA, photoA, userB, photoB string) map[string]string {
	photos := map[string]string{}
	if photoA != "" {
		photos[userA] = photoA
	}
	if photoB != "" {
		photos[userB] = photoB
	}
	if len(photos) == 0 {
		return nil
	}
	return photos
}
