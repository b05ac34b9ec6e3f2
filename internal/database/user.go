package repository

import (
	"TableWatch/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

// UpsertUser records a chat that talked to a provider bot.
// The creation time is written only once.
func (m *MongoDB) UpsertUser(ctx context.Context, user entity.User) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(usersCollection)
	filter := bson.D{{"provider", user.Provider}, {"chat_id", user.ChatID}}
	update := bson.D{
		{"$set", bson.D{
			{"username", user.Username},
			{"first_name", user.FirstName},
			{"blocked", user.Blocked},
			{"last_seen", time.Now()},
		}},
		{"$setOnInsert", bson.D{{"created_at", user.CreatedAt}}},
	}

	_, err = collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert error: %w", err)
	}
	return nil
}

// SetUserBlocked records whether a chat blocked the bot. /start clears the flag again.
func (m *MongoDB) SetUserBlocked(ctx context.Context, provider, chatID string, blocked bool) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(usersCollection)
	filter := bson.D{{"provider", provider}, {"chat_id", chatID}}
	update := bson.D{{"$set", bson.D{{"blocked", blocked}}}}

	if _, err = collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mongodb update error: %w", err)
	}
	return nil
}
