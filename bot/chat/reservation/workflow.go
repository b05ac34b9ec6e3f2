package reservation

import (
	"context"
	"time"

	"TableWatch/bot/chat"
	"TableWatch/entity"
)

// Step IDs
const (
	StepDetails   chat.StepID = "details"
	StepDate      chat.StepID = "date"
	StepTime      chat.StepID = "time"
	StepPartySize chat.StepID = "party_size"
	StepArea      chat.StepID = "area"
)

// RestaurantLookup finds a restaurant by name, slug or link.
// A nil restaurant with a nil error means nothing was found.
type RestaurantLookup interface {
	RestaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error)
}

// NewRegistry builds the reservation flow of one provider:
// details, date, time, party size and seating area.
func NewRegistry(provider string, vocab *Vocabulary, lookup RestaurantLookup, now Clock, loc *time.Location) *chat.Registry {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	cal := calendar{now: now, loc: loc}

	return chat.NewRegistry(provider,
		&DetailsStep{vocab: vocab, lookup: lookup},
		&DateStep{vocab: vocab, cal: cal},
		&TimeStep{vocab: vocab, cal: cal},
		&PartySizeStep{vocab: vocab},
		&AreaStep{vocab: vocab},
	)
}
