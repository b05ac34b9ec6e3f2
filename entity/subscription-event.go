package entity

import "time"

type EventType string

const (
	EventCreated   EventType = "created"
	EventFulfilled EventType = "fulfilled"
	EventExpired   EventType = "expired"
	EventRemoved   EventType = "removed"
)

// SubscriptionEvent is pushed to admin websocket clients.
type SubscriptionEvent struct {
	Type         EventType    `json:"type"`
	Subscription Subscription `json:"subscription"`
	Time         time.Time    `json:"time"`
}

func NewSubscriptionEvent(t EventType, sub Subscription) SubscriptionEvent {
	return SubscriptionEvent{
		Type:         t,
		Subscription: sub,
		Time:         time.Now(),
	}
}
