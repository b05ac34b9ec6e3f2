package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"TableWatch/entity"
	"TableWatch/internal/lib/sl"
)

type Repository interface {
	CheckApiKey(key string) (string, error)
	GenerateApiKey(username string) (string, error)

	UpsertUser(ctx context.Context, user entity.User) error

	ListSubscriptions(ctx context.Context, f entity.SubscriptionFilter) ([]entity.Subscription, error)
	RemoveSubscription(ctx context.Context, provider, chatID, id string) (*entity.Subscription, error)
}

// Poller is the background availability poller of one provider.
type Poller interface {
	Provider() string
	ForcePoll() error
	Stop()
}

// EventSink receives subscription events, the websocket hub in production.
type EventSink interface {
	Broadcast(event entity.SubscriptionEvent)
}

type Core struct {
	repo    Repository
	events  EventSink
	pollers map[string]Poller
	authKey string
	keys    map[string]string
	mu      sync.RWMutex
	log     *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log:     log.With(sl.Module("core")),
		keys:    make(map[string]string),
		pollers: make(map[string]Poller),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}

func (c *Core) SetEventSink(events EventSink) {
	c.events = events
}

// AddPoller registers the poller of a provider for manual passes and shutdown.
func (c *Core) AddPoller(p Poller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollers[p.Provider()] = p
}

// Stop stops every registered poller.
func (c *Core) Stop() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, p := range c.pollers {
		p.Stop()
		c.log.Debug("poller stopped", slog.String("provider", name))
	}
}

func (c *Core) GenerateApiKey(username string) (string, error) {
	if c.repo == nil {
		return "", fmt.Errorf("repository is not set")
	}

	apiKey, err := c.repo.GenerateApiKey(username)
	if err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}

	c.mu.Lock()
	c.keys[apiKey] = username
	c.mu.Unlock()
	return apiKey, nil
}

func (c *Core) publish(t entity.EventType, sub entity.Subscription) {
	if c.events == nil {
		return
	}
	c.events.Broadcast(entity.NewSubscriptionEvent(t, sub))
}

// SubscriptionCreated is called by the chat engines.
func (c *Core) SubscriptionCreated(sub entity.Subscription) {
	c.publish(entity.EventCreated, sub)
}

// SubscriptionArchived is called by the pollers.
func (c *Core) SubscriptionArchived(sub entity.Subscription, reason entity.ArchiveReason) {
	switch reason {
	case entity.ArchiveFulfilled:
		c.publish(entity.EventFulfilled, sub)
	case entity.ArchiveExpired:
		c.publish(entity.EventExpired, sub)
	case entity.ArchiveUserRemoved:
		c.publish(entity.EventRemoved, sub)
	}
}
