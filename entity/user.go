package entity

import (
	"time"
)

// User is a chat that talked to one of the provider bots.
type User struct {
	ChatID    string    `json:"chat_id" bson:"chat_id"`
	Provider  string    `json:"provider" bson:"provider"`
	Username  string    `json:"username" bson:"username"`
	FirstName string    `json:"first_name" bson:"first_name"`
	Blocked   bool      `json:"blocked" bson:"blocked"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	LastSeen  time.Time `json:"last_seen" bson:"last_seen"`
}

func NewUser(provider, chatID, username, firstName string) *User {
	now := time.Now()
	return &User{
		ChatID:    chatID,
		Provider:  provider,
		Username:  username,
		FirstName: firstName,
		CreatedAt: now,
		LastSeen:  now,
	}
}
