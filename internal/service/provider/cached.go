package provider

import (
	"context"
	"log/slog"
	"time"

	"TableWatch/entity"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/metrics"
)

// RestaurantCache stores lookup results per provider and normalized query.
type RestaurantCache interface {
	GetCachedRestaurant(ctx context.Context, provider, query string, notBefore time.Time) (*entity.Restaurant, error)
	SaveRestaurant(ctx context.Context, provider, query string, restaurant entity.Restaurant) error
}

// Cached serves restaurant lookups from the cache while they are fresh.
// Availability is never cached.
type Cached struct {
	Client
	cache RestaurantCache
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

func NewCached(client Client, cache RestaurantCache, ttl time.Duration, log *slog.Logger) *Cached {
	return &Cached{
		Client: client,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With(sl.Module("provider.cache"), slog.String("provider", client.Name())),
	}
}

func (c *Cached) RestaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error) {
	key := NormalizeQuery(query)

	cached, err := c.cache.GetCachedRestaurant(ctx, c.Name(), key, c.now().Add(-c.ttl))
	if err != nil {
		c.log.Warn("cache read", slog.String("query", key), sl.Err(err))
	}
	if cached != nil {
		metrics.IncRestaurantCache(c.Name(), "hit")
		return cached, nil
	}
	metrics.IncRestaurantCache(c.Name(), "miss")

	restaurant, err := c.Client.RestaurantDetails(ctx, query)
	if err != nil || restaurant == nil {
		return restaurant, err
	}
	if err = c.cache.SaveRestaurant(ctx, c.Name(), key, *restaurant); err != nil {
		c.log.Warn("cache write", slog.String("query", key), sl.Err(err))
	}
	return restaurant, nil
}
