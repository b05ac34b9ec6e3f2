package chat

import (
	"context"

	"TableWatch/entity"
)

// StepID is a unique identifier for a step within a registry.
type StepID string

// FieldName is a key of the collected reservation criteria.
type FieldName string

const (
	FieldRestaurant     FieldName = "restaurant"
	FieldRestaurantName FieldName = "restaurant_name"
	FieldDate           FieldName = "date"
	FieldTime           FieldName = "time"
	FieldPartySize      FieldName = "party_size"
	FieldArea           FieldName = "area"
)

// StepResult represents the outcome of handling user input in a step.
type StepResult struct {
	// Collected holds the parsed values to merge into the state.
	Collected map[FieldName]any
	// Rejected keeps the flow on the same step; the user has already been asked to retry.
	Rejected bool
	// Abort ends the whole flow; the user has already been told why.
	Abort bool
	Error error
}

// Step defines the interface for a single question of the reservation flow.
type Step interface {
	// ID returns the unique identifier for this step.
	ID() StepID

	// PreAction sends the step question and returns the reference of the sent prompt, if any.
	// It must not change the state.
	PreAction(ctx context.Context, m Messenger, state StepState) (MessageRef, error)

	// PostAction validates raw input for this step.
	PostAction(ctx context.Context, m Messenger, state StepState, input UserInput) StepResult
}

// AvailabilityChecker asks the provider whether the requested table is free.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, ref string, criteria entity.Criteria) (*entity.Availability, error)
	BookingLink(ref string, criteria entity.Criteria) string
}

// SubscriptionStore persists watches created at the end of a flow.
type SubscriptionStore interface {
	CountActiveSubscriptions(ctx context.Context, chatID string) (int64, error)
	CreateSubscription(ctx context.Context, sub *entity.Subscription) error
}

// EventListener is told about subscriptions created by the engine.
type EventListener interface {
	SubscriptionCreated(sub entity.Subscription)
}
