package repository

import (
	"TableWatch/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

func (m *MongoDB) CreateSubscription(ctx context.Context, sub *entity.Subscription) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(subscriptionsCollection)
	if _, err = collection.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("mongodb insert error: %w", err)
	}
	return nil
}

// CountActiveSubscriptions counts the active watches of a chat on every provider bot.
func (m *MongoDB) CountActiveSubscriptions(ctx context.Context, chatID string) (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(subscriptionsCollection)
	filter := bson.D{
		{"chat_id", chatID},
		{"status", entity.SubscriptionActive},
	}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongodb count error: %w", err)
	}
	return count, nil
}

// FindActiveSubscriptions returns every active watch of a provider, oldest first.
func (m *MongoDB) FindActiveSubscriptions(ctx context.Context, provider string) ([]entity.Subscription, error) {
	filter := bson.D{
		{"provider", provider},
		{"status", entity.SubscriptionActive},
	}
	return m.findSubscriptions(ctx, filter, options.Find().SetSort(bson.D{{"created_at", 1}}))
}

// FindExpiredSubscriptions returns active watches created before createdBefore
// or requested for a date before today.
func (m *MongoDB) FindExpiredSubscriptions(ctx context.Context, provider string, createdBefore time.Time, today string) ([]entity.Subscription, error) {
	filter := bson.D{
		{"provider", provider},
		{"status", entity.SubscriptionActive},
		{"$or", bson.A{
			bson.D{{"created_at", bson.D{{"$lt", createdBefore}}}},
			bson.D{{"criteria.date", bson.D{{"$lt", today}}}},
		}},
	}
	return m.findSubscriptions(ctx, filter, options.Find().SetSort(bson.D{{"created_at", 1}}))
}

// ListSubscriptions returns watches matching the filter, newest first.
func (m *MongoDB) ListSubscriptions(ctx context.Context, f entity.SubscriptionFilter) ([]entity.Subscription, error) {
	filter := bson.D{}
	if f.Provider != "" {
		filter = append(filter, bson.E{Key: "provider", Value: f.Provider})
	}
	if f.ChatID != "" {
		filter = append(filter, bson.E{Key: "chat_id", Value: f.ChatID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	opts := options.Find().SetSort(bson.D{{"created_at", -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return m.findSubscriptions(ctx, filter, opts)
}

func (m *MongoDB) findSubscriptions(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]entity.Subscription, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(subscriptionsCollection)
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.findError(err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	subs := make([]entity.Subscription, 0)
	if err = cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("mongodb decode error: %w", err)
	}
	return subs, nil
}

// ArchiveSubscription archives a watch only while it is still active.
// It reports false when another pass or the user got there first.
func (m *MongoDB) ArchiveSubscription(ctx context.Context, id string, reason entity.ArchiveReason) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(subscriptionsCollection)
	filter := bson.D{{"_id", id}, {"status", entity.SubscriptionActive}}
	update := bson.D{{"$set", bson.D{
		{"status", entity.SubscriptionArchived},
		{"archived_reason", reason},
		{"archived_at", time.Now()},
	}}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongodb update error: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

// RemoveSubscription archives an active watch on behalf of the chat that owns it.
// A nil subscription means it was not found, not owned by the chat, or already archived.
func (m *MongoDB) RemoveSubscription(ctx context.Context, provider, chatID, id string) (*entity.Subscription, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(subscriptionsCollection)
	filter := bson.D{
		{"_id", id},
		{"provider", provider},
		{"chat_id", chatID},
		{"status", entity.SubscriptionActive},
	}
	update := bson.D{{"$set", bson.D{
		{"status", entity.SubscriptionArchived},
		{"archived_reason", entity.ArchiveUserRemoved},
		{"archived_at", time.Now()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sub entity.Subscription
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&sub)
	if err != nil {
		return nil, m.findError(err)
	}
	return &sub, nil
}

// ArchiveChatSubscriptions archives every active watch of a chat and returns how many were archived.
func (m *MongoDB) ArchiveChatSubscriptions(ctx context.Context, provider, chatID string, reason entity.ArchiveReason) (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(subscriptionsCollection)
	filter := bson.D{
		{"provider", provider},
		{"chat_id", chatID},
		{"status", entity.SubscriptionActive},
	}
	update := bson.D{{"$set", bson.D{
		{"status", entity.SubscriptionArchived},
		{"archived_reason", reason},
		{"archived_at", time.Now()},
	}}}

	result, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("mongodb update error: %w", err)
	}
	return result.ModifiedCount, nil
}
