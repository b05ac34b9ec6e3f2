package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"TableWatch/entity"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotActive       = errors.New("subscription is not active")
)

// RegisterUser records a chat that talked to a provider bot.
func (c *Core) RegisterUser(ctx context.Context, user entity.User) error {
	if c.repo == nil {
		return fmt.Errorf("repository is not set")
	}
	return c.repo.UpsertUser(ctx, user)
}

func (c *Core) ListSubscriptions(ctx context.Context, filter entity.SubscriptionFilter) ([]entity.Subscription, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("repository is not set")
	}
	subs, err := c.repo.ListSubscriptions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// RemoveSubscription archives an active watch of a chat with the user_removed reason.
// It returns ErrNotActive when the watch does not exist, belongs to another chat or is already archived.
func (c *Core) RemoveSubscription(ctx context.Context, req entity.SubscriptionRemoval) (*entity.Subscription, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("repository is not set")
	}
	sub, err := c.repo.RemoveSubscription(ctx, req.Provider, req.ChatID, req.ID)
	if err != nil {
		return nil, fmt.Errorf("remove subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrNotActive
	}

	c.log.With(
		slog.String("subscription_id", sub.ID),
		slog.String("provider", sub.Provider),
		slog.String("chat_id", sub.ChatID),
	).Info("subscription removed")
	c.publish(entity.EventRemoved, *sub)
	return sub, nil
}

// ForcePoll starts an extra poll pass of a provider.
func (c *Core) ForcePoll(provider string) error {
	c.mu.RLock()
	p, ok := c.pollers[provider]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return p.ForcePoll()
}
