package entity

import (
	"TableWatch/internal/lib/validate"
	"net/http"
)

// SubscriptionRemoval is the admin request to stop watching a subscription on behalf of a chat.
type SubscriptionRemoval struct {
	ID       string `json:"id" validate:"required,uuid"`
	Provider string `json:"provider" validate:"required,oneof=resy opentable"`
	ChatID   string `json:"chat_id" validate:"required"`
}

func (r *SubscriptionRemoval) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
