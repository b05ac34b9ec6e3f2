package subscription

import (
	"context"

	"TableWatch/entity"
)

type Core interface {
	ListSubscriptions(ctx context.Context, filter entity.SubscriptionFilter) ([]entity.Subscription, error)
	RemoveSubscription(ctx context.Context, req entity.SubscriptionRemoval) (*entity.Subscription, error)
}
