package reservation

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"TableWatch/bot/chat"
	"TableWatch/entity"
)

const (
	// MaxDaysAhead is how far in the future a reservation may be requested.
	MaxDaysAhead  = 90
	MaxPartySize  = 20
	dateButtons   = 3
	partyButtons  = 8
	dayMonthInput = "02.01"
)

var (
	dateLayouts = []string{entity.DateLayout, "02.01.2006", "2.1.2006"}
	timeLayouts = []string{entity.TimeLayout, "15.04"}
	timeOptions = []string{"18:00", "18:30", "19:00", "19:30", "20:00", "20:30"}
)

// Clock returns the current time.
type Clock func() time.Time

// calendar answers date questions in the watch timezone.
type calendar struct {
	now Clock
	loc *time.Location
}

func (c calendar) today() time.Time {
	n := c.now().In(c.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc)
}

// DetailsStep resolves the restaurant through the provider.
type DetailsStep struct {
	vocab  *Vocabulary
	lookup RestaurantLookup
}

func (s *DetailsStep) ID() chat.StepID { return StepDetails }

func (s *DetailsStep) PreAction(ctx context.Context, m chat.Messenger, state chat.StepState) (chat.MessageRef, error) {
	return m.SendPrompt(state.ChatID, s.vocab.AskRestaurant, nil)
}

func (s *DetailsStep) PostAction(ctx context.Context, m chat.Messenger, state chat.StepState, input chat.UserInput) chat.StepResult {
	query := strings.TrimSpace(input.Value())
	if query == "" {
		_ = m.SendText(state.ChatID, s.vocab.AskRestaurant)
		return chat.StepResult{Rejected: true}
	}

	restaurant, err := s.lookup.RestaurantDetails(ctx, query)
	if err != nil {
		_ = m.SendText(state.ChatID, s.vocab.LookupFailed)
		return chat.StepResult{Abort: true}
	}
	if restaurant == nil {
		_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.RestaurantNotFound, html.EscapeString(query)))
		return chat.StepResult{Abort: true}
	}

	chat.RetractPrompt(ctx, m, state, StepDetails)
	_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.RestaurantConfirmed, html.EscapeString(restaurant.Name)))

	return chat.StepResult{
		Collected: map[chat.FieldName]any{
			chat.FieldRestaurant:     restaurant.Ref,
			chat.FieldRestaurantName: restaurant.Name,
		},
	}
}

// DateStep asks for the reservation date.
type DateStep struct {
	vocab *Vocabulary
	cal   calendar
}

func (s *DateStep) ID() chat.StepID { return StepDate }

func (s *DateStep) buttons() []chat.InlineButton {
	today := s.cal.today()
	buttons := make([]chat.InlineButton, 0, dateButtons)
	for i := 0; i < dateButtons; i++ {
		day := today.AddDate(0, 0, i)
		buttons = append(buttons, chat.InlineButton{
			Text: day.Format("Mon 02.01"),
			Data: day.Format(entity.DateLayout),
		})
	}
	return buttons
}

func (s *DateStep) PreAction(ctx context.Context, m chat.Messenger, state chat.StepState) (chat.MessageRef, error) {
	return m.SendPrompt(state.ChatID, s.vocab.AskDate, s.buttons())
}

func (s *DateStep) PostAction(ctx context.Context, m chat.Messenger, state chat.StepState, input chat.UserInput) chat.StepResult {
	date, ok := ParseDate(input.Value(), s.cal.today())
	if !ok {
		_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.InvalidDate, MaxDaysAhead))
		return chat.StepResult{Rejected: true}
	}

	chat.RetractPrompt(ctx, m, state, StepDate)
	_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.DateConfirmed, date))

	return chat.StepResult{
		Collected: map[chat.FieldName]any{chat.FieldDate: date},
	}
}

// TimeStep asks for the reservation time.
type TimeStep struct {
	vocab *Vocabulary
	cal   calendar
}

func (s *TimeStep) ID() chat.StepID { return StepTime }

func (s *TimeStep) PreAction(ctx context.Context, m chat.Messenger, state chat.StepState) (chat.MessageRef, error) {
	buttons := make([]chat.InlineButton, len(timeOptions))
	for i, t := range timeOptions {
		buttons[i] = chat.InlineButton{Text: t, Data: t}
	}
	return m.SendPrompt(state.ChatID, s.vocab.AskTime, buttons)
}

func (s *TimeStep) PostAction(ctx context.Context, m chat.Messenger, state chat.StepState, input chat.UserInput) chat.StepResult {
	hhmm, ok := ParseTime(input.Value())
	if !ok {
		_ = m.SendText(state.ChatID, s.vocab.InvalidTime)
		return chat.StepResult{Rejected: true}
	}

	// a time earlier today cannot be booked anymore
	if date := state.GetString(chat.FieldDate); date != "" {
		at, err := time.ParseInLocation(entity.DateLayout+" "+entity.TimeLayout, date+" "+hhmm, s.cal.loc)
		if err == nil && !at.After(s.cal.now()) {
			_ = m.SendText(state.ChatID, s.vocab.TimePassed)
			return chat.StepResult{Rejected: true}
		}
	}

	chat.RetractPrompt(ctx, m, state, StepTime)
	_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.TimeConfirmed, hhmm))

	return chat.StepResult{
		Collected: map[chat.FieldName]any{chat.FieldTime: hhmm},
	}
}

// PartySizeStep asks for the number of guests.
type PartySizeStep struct {
	vocab *Vocabulary
}

func (s *PartySizeStep) ID() chat.StepID { return StepPartySize }

func (s *PartySizeStep) PreAction(ctx context.Context, m chat.Messenger, state chat.StepState) (chat.MessageRef, error) {
	buttons := make([]chat.InlineButton, partyButtons)
	for i := range buttons {
		n := strconv.Itoa(i + 1)
		buttons[i] = chat.InlineButton{Text: n, Data: n}
	}
	return m.SendPrompt(state.ChatID, s.vocab.AskPartySize, buttons)
}

func (s *PartySizeStep) PostAction(ctx context.Context, m chat.Messenger, state chat.StepState, input chat.UserInput) chat.StepResult {
	size, ok := ParsePartySize(input.Value())
	if !ok {
		_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.InvalidPartySize, MaxPartySize))
		return chat.StepResult{Rejected: true}
	}

	chat.RetractPrompt(ctx, m, state, StepPartySize)
	_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.PartySizeConfirmed, size))

	return chat.StepResult{
		Collected: map[chat.FieldName]any{chat.FieldPartySize: size},
	}
}

// AreaStep asks for the seating area.
type AreaStep struct {
	vocab *Vocabulary
}

func (s *AreaStep) ID() chat.StepID { return StepArea }

func (s *AreaStep) buttons() []chat.InlineButton {
	buttons := make([]chat.InlineButton, len(s.vocab.Areas))
	for i, a := range s.vocab.Areas {
		buttons[i] = chat.InlineButton{Text: a.Label, Data: a.Key}
	}
	return buttons
}

func (s *AreaStep) PreAction(ctx context.Context, m chat.Messenger, state chat.StepState) (chat.MessageRef, error) {
	return m.SendPrompt(state.ChatID, s.vocab.AskArea, s.buttons())
}

func (s *AreaStep) PostAction(ctx context.Context, m chat.Messenger, state chat.StepState, input chat.UserInput) chat.StepResult {
	value := input.Value()
	if key := chat.MatchNumberToInline(value, s.buttons()); key != "" {
		value = key
	}

	area, ok := s.vocab.FindArea(value)
	if !ok {
		_, _ = m.SendPrompt(state.ChatID, s.vocab.InvalidArea, s.buttons())
		return chat.StepResult{Rejected: true}
	}

	chat.RetractPrompt(ctx, m, state, StepArea)
	_ = m.SendText(state.ChatID, fmt.Sprintf(s.vocab.AreaConfirmed, area.Label))

	return chat.StepResult{
		Collected: map[chat.FieldName]any{chat.FieldArea: area.Key},
	}
}

// ParseDate reads a date typed by the user and normalizes it to entity.DateLayout.
// Dates before today or more than MaxDaysAhead days after it are rejected.
func ParseDate(text string, today time.Time) (string, bool) {
	text = strings.TrimSpace(text)
	loc := today.Location()

	var date time.Time
	parsed := false
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, text, loc); err == nil {
			date, parsed = d, true
			break
		}
	}
	if !parsed {
		// day and month only: this year, or the next one when already past
		d, err := time.ParseInLocation(dayMonthInput, text, loc)
		if err != nil {
			return "", false
		}
		date = time.Date(today.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		if date.Before(today) {
			date = date.AddDate(1, 0, 0)
		}
	}

	if date.Before(today) || date.After(today.AddDate(0, 0, MaxDaysAhead)) {
		return "", false
	}
	return date.Format(entity.DateLayout), true
}

// ParseTime reads a time typed by the user and normalizes it to entity.TimeLayout.
func ParseTime(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format(entity.TimeLayout), true
		}
	}
	return "", false
}

// ParsePartySize reads a number of guests.
func ParsePartySize(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > MaxPartySize {
		return 0, false
	}
	return n, true
}
