package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"BizLink/entity"
)

// CheckToken resolves an API token to the user it was issued for.
func (m *MongoDB) CheckToken(ctx context.Context, token string) (*entity.UserAuth, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(tokensCollection)
	filter := bson.D{{Key: "token", Value: token}}

	var user entity.UserAuth
	err = collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("token not found")
		}
		return nil, fmt.Errorf("mongodb find token: %w", err)
	}

	return &user, nil
}

// IssueToken creates a token for username, reusing an existing one so the
// call is idempotent.
func (m *MongoDB) IssueToken(ctx context.Context, username, name, photo string) (string, error) {
	connection, err := m.connect()
	if err != nil {
		return "", err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(tokensCollection)

	var existing entity.UserAuth
	err = collection.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&existing)
	if err == nil && existing.Token != "" {
		return existing.Token, nil
	}
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("mongodb find user token: %w", err)
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("uuid generation error: %w", err)
	}

	user := entity.UserAuth{
		Username: username,
		Name:     name,
		Photo:    photo,
		Token:    id.String(),
	}
	if _, err := collection.InsertOne(ctx, user); err != nil {
		return "", fmt.Errorf("mongodb insert token: %w", err)
	}

	return user.Token, nil
}
