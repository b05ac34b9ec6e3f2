package entity

import (
	"net/http"

	"TableWatch/internal/lib/validate"
)

// SubscriptionFilter narrows a subscription listing. Empty fields match everything.
type SubscriptionFilter struct {
	Provider string             `json:"provider" validate:"omitempty,oneof=resy opentable"`
	ChatID   string             `json:"chat_id"`
	Status   SubscriptionStatus `json:"status" validate:"omitempty,oneof=active archived"`
	Limit    int64              `json:"limit" validate:"gte=0,lte=1000"`
}

// FilterFromQuery reads a filter from the request query string.
func FilterFromQuery(r *http.Request) (*SubscriptionFilter, error) {
	q := r.URL.Query()
	f := &SubscriptionFilter{
		Provider: q.Get("provider"),
		ChatID:   q.Get("chat_id"),
		Status:   SubscriptionStatus(q.Get("status")),
		Limit:    100,
	}
	if err := validate.Struct(f); err != nil {
		return nil, err
	}
	return f, nil
}
