package repository

import (
	"TableWatch/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

type cachedRestaurant struct {
	Provider   string            `bson:"provider"`
	Query      string            `bson:"query"`
	Restaurant entity.Restaurant `bson:"restaurant"`
	CachedAt   time.Time         `bson:"cached_at"`
}

// GetCachedRestaurant returns a restaurant looked up with the same query after notBefore.
func (m *MongoDB) GetCachedRestaurant(ctx context.Context, provider, query string, notBefore time.Time) (*entity.Restaurant, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(restaurantsCollection)
	filter := bson.D{
		{"provider", provider},
		{"query", query},
		{"cached_at", bson.D{{"$gte", notBefore}}},
	}

	var doc cachedRestaurant
	err = collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, m.findError(err)
	}
	doc.Restaurant.CachedAt = doc.CachedAt
	return &doc.Restaurant, nil
}

func (m *MongoDB) SaveRestaurant(ctx context.Context, provider, query string, restaurant entity.Restaurant) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(restaurantsCollection)
	filter := bson.D{{"provider", provider}, {"query", query}}
	update := bson.D{{"$set", cachedRestaurant{
		Provider:   provider,
		Query:      query,
		Restaurant: restaurant,
		CachedAt:   time.Now(),
	}}}

	_, err = collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert error: %w", err)
	}
	return nil
}
