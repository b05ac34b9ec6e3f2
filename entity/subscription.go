package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionArchived SubscriptionStatus = "archived"
)

type ArchiveReason string

const (
	ArchiveFulfilled   ArchiveReason = "fulfilled"
	ArchiveExpired     ArchiveReason = "expired"
	ArchiveUserRemoved ArchiveReason = "user_removed"
	// the chat blocked the bot
	ArchiveChatBlocked ArchiveReason = "chat_blocked"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// AreaAny matches every seating area.
	AreaAny = "any"
)

// Criteria is the reservation request collected in the chat.
type Criteria struct {
	Restaurant     string `json:"restaurant" bson:"restaurant"`
	RestaurantName string `json:"restaurant_name" bson:"restaurant_name"`
	Date           string `json:"date" bson:"date"`
	Time           string `json:"time" bson:"time"`
	PartySize      int    `json:"party_size" bson:"party_size"`
	Area           string `json:"area" bson:"area"`
}

// GroupKey identifies subscriptions that can share one provider availability call.
func (c Criteria) GroupKey() string {
	return fmt.Sprintf("%s|%s|%d", c.Restaurant, c.Date, c.PartySize)
}

// ReservationTime returns the requested date and time in loc.
func (c Criteria) ReservationTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, c.Date+" "+c.Time, loc)
}

// Title is a short human readable name of the request.
func (c Criteria) Title() string {
	name := c.RestaurantName
	if name == "" {
		name = c.Restaurant
	}
	return name
}

// Subscription is a persisted watch on a reservation request that was not available.
type Subscription struct {
	ID             string             `json:"id" bson:"_id"`
	ChatID         string             `json:"chat_id" bson:"chat_id"`
	Provider       string             `json:"provider" bson:"provider"`
	Criteria       Criteria           `json:"criteria" bson:"criteria"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	Status         SubscriptionStatus `json:"status" bson:"status"`
	ArchivedReason ArchiveReason      `json:"archived_reason,omitempty" bson:"archived_reason,omitempty"`
	ArchivedAt     *time.Time         `json:"archived_at,omitempty" bson:"archived_at,omitempty"`
}

func NewSubscription(provider, chatID string, criteria Criteria, now time.Time) *Subscription {
	return &Subscription{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Provider:  provider,
		Criteria:  criteria,
		CreatedAt: now,
		Status:    SubscriptionActive,
	}
}

func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// ExpiredAt reports whether the watch is older than the window or its reservation time has passed.
func (s *Subscription) ExpiredAt(now time.Time, window time.Duration, loc *time.Location) bool {
	if window > 0 && now.Sub(s.CreatedAt) >= window {
		return true
	}
	at, err := s.Criteria.ReservationTime(loc)
	if err != nil {
		return false
	}
	return !at.After(now)
}

// AreaMatches reports whether a slot area satisfies the requested area.
func AreaMatches(requested, offered string) bool {
	if requested == "" || requested == AreaAny || offered == "" {
		return true
	}
	return strings.EqualFold(requested, offered)
}
