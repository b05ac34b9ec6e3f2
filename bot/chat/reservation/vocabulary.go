package reservation

import (
	"fmt"
	"html"
	"strings"

	"TableWatch/bot/chat"
	"TableWatch/entity"
)

// Area is one seating option a provider can offer.
type Area struct {
	Key     string
	Label   string
	Aliases []string
}

// Vocabulary holds every text a provider bot sends.
type Vocabulary struct {
	AskRestaurant       string
	RestaurantNotFound  string // query
	LookupFailed        string
	RestaurantConfirmed string // name

	AskDate       string
	InvalidDate   string // max days ahead
	DateConfirmed string // date

	AskTime       string
	InvalidTime   string
	TimePassed    string
	TimeConfirmed string // time

	AskPartySize       string
	InvalidPartySize   string // max party size
	PartySizeConfirmed string // party size

	AskArea       string
	InvalidArea   string
	AreaConfirmed string // area label

	// Scheduler notifications.
	Available string // summary, link
	Expired   string // summary

	// Chat commands.
	Welcome      string
	NoWatches    string
	WatchList    string // count
	WatchRemoved string // summary
	NotRemoved   string
	Cancelled    string
	NothingToDo  string

	Areas   []Area
	Phrases chat.Phrases
}

// AreaLabel returns the display label of an area key.
func (v *Vocabulary) AreaLabel(key string) string {
	for _, a := range v.Areas {
		if a.Key == key {
			return a.Label
		}
	}
	return key
}

// FindArea matches user text against area keys, labels and aliases.
func (v *Vocabulary) FindArea(text string) (Area, bool) {
	text = strings.TrimSpace(text)
	for _, a := range v.Areas {
		if strings.EqualFold(a.Key, text) || strings.EqualFold(a.Label, text) {
			return a, true
		}
		for _, alias := range a.Aliases {
			if strings.EqualFold(alias, text) {
				return a, true
			}
		}
	}
	return Area{}, false
}

// Describe renders criteria as one line of an HTML message.
func (v *Vocabulary) Describe(c entity.Criteria) string {
	return fmt.Sprintf("<b>%s</b>, %s at %s, %d guests, %s",
		html.EscapeString(c.Title()), c.Date, c.Time, c.PartySize, html.EscapeString(v.AreaLabel(c.Area)))
}

func commonTexts(v *Vocabulary) {
	v.AskDate = "📅 Which date? Pick one below or type it as <code>2025-03-17</code> or <code>17.03</code>."
	v.InvalidDate = "❌ I could not read that date. Use <code>2025-03-17</code> or <code>17.03</code>, from today up to %d days ahead."
	v.DateConfirmed = "✅ Date: %s"

	v.AskTime = "🕖 What time? Pick one below or type it as <code>19:30</code>."
	v.InvalidTime = "❌ I could not read that time. Use <code>19:30</code>."
	v.TimePassed = "❌ That time has already passed today. Pick a later one."
	v.TimeConfirmed = "✅ Time: %s"

	v.AskPartySize = "👥 How many guests?"
	v.InvalidPartySize = "❌ Send a number of guests from 1 to %d."
	v.PartySizeConfirmed = "✅ Guests: %d"

	v.AskArea = "🪑 Where would you like to sit?"
	v.InvalidArea = "❌ Pick one of the options below."
	v.AreaConfirmed = "✅ Seating: %s"

	v.Welcome = "👋 I watch restaurant tables for you.\n\n/watch start a new watch\n/list show your watches\n/cancel stop the current request"
	v.NoWatches = "You have no active watches. Send /watch to create one."
	v.WatchList = "👀 Active watches: %d"
	v.WatchRemoved = "🗑 Stopped watching %s"
	v.NotRemoved = "This watch is no longer active."
	v.Cancelled = "Request cancelled. Send /watch to start again."
	v.NothingToDo = "Send /watch to start a new request."

	v.Phrases = chat.Phrases{
		BookNow:         "🎉 A table is free right now: %s\n\n👉 <a href=\"%s\">Book it</a>",
		Registered:      "👀 Nothing free for %s yet. I will keep checking and message you as soon as a table opens.",
		Alternatives:    "Other free times that day: %s",
		CapacityReached: "⚠️ You already have %d active watches. Remove one with /list and try again.",
		Failure:         "😔 Something went wrong while checking the restaurant. Please try again later.",
		Describe:        v.Describe,
	}
}

// ResyVocabulary returns the texts of the Resy bot.
func ResyVocabulary() *Vocabulary {
	v := &Vocabulary{
		AskRestaurant:       "🍽 Which restaurant? Send its name or a resy.com link.",
		RestaurantNotFound:  "😕 I could not find \"%s\" on Resy. Send /watch to try another name.",
		LookupFailed:        "😔 Resy is not answering right now. Send /watch to try again later.",
		RestaurantConfirmed: "✅ Restaurant: %s",
		Available:           "🎉 A table opened up: %s\n\n👉 <a href=\"%s\">Book it on Resy</a>",
		Expired:             "⌛️ I gave up watching %s. Send /watch to start a new watch.",
		Areas: []Area{
			{Key: "indoor", Label: "Dining room", Aliases: []string{"inside", "indoors", "dining room"}},
			{Key: "outdoor", Label: "Patio", Aliases: []string{"outside", "outdoors", "terrace"}},
			{Key: "bar", Label: "Bar", Aliases: []string{"counter", "bar seat"}},
			{Key: entity.AreaAny, Label: "Anywhere", Aliases: []string{"any", "doesn't matter"}},
		},
	}
	commonTexts(v)
	return v
}

// OpenTableVocabulary returns the texts of the OpenTable bot.
func OpenTableVocabulary() *Vocabulary {
	v := &Vocabulary{
		AskRestaurant:       "🍽 Which restaurant? Send its name or an opentable.com link.",
		RestaurantNotFound:  "😕 I could not find \"%s\" on OpenTable. Send /watch to try another name.",
		LookupFailed:        "😔 OpenTable is not answering right now. Send /watch to try again later.",
		RestaurantConfirmed: "✅ Restaurant: %s",
		Available:           "🎉 A table opened up: %s\n\n👉 <a href=\"%s\">Book it on OpenTable</a>",
		Expired:             "⌛️ I gave up watching %s. Send /watch to start a new watch.",
		Areas: []Area{
			{Key: "indoor", Label: "Standard", Aliases: []string{"inside", "indoors", "standard"}},
			{Key: "outdoor", Label: "Outdoor", Aliases: []string{"outside", "outdoors", "terrace", "patio"}},
			{Key: "bar", Label: "Bar", Aliases: []string{"counter", "high top"}},
			{Key: entity.AreaAny, Label: "Anywhere", Aliases: []string{"any", "doesn't matter"}},
		},
	}
	commonTexts(v)
	return v
}
