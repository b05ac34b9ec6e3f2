package chat

import (
	"time"

	"TableWatch/entity"
)

// StepState represents the in-progress reservation request of one chat.
type StepState struct {
	ChatID    string                `json:"chat_id"`
	StepIndex int                   `json:"step_index"`
	Collected map[FieldName]any     `json:"collected"`
	Prompts   map[StepID]MessageRef `json:"prompts"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewStepState creates a new StepState with default values.
func NewStepState(chatID string) *StepState {
	return &StepState{
		ChatID:    chatID,
		Collected: make(map[FieldName]any),
		Prompts:   make(map[StepID]MessageRef),
		UpdatedAt: time.Now(),
	}
}

// clone returns a copy that shares nothing mutable with s.
func (s *StepState) clone() StepState {
	c := *s
	c.Collected = make(map[FieldName]any, len(s.Collected))
	for k, v := range s.Collected {
		c.Collected[k] = v
	}
	c.Prompts = make(map[StepID]MessageRef, len(s.Prompts))
	for k, v := range s.Prompts {
		c.Prompts[k] = v
	}
	return c
}

// GetString retrieves a string value from the collected data.
func (s StepState) GetString(key FieldName) string {
	if v, ok := s.Collected[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// GetInt retrieves an integer value from the collected data.
func (s StepState) GetInt(key FieldName) int {
	if v, ok := s.Collected[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case int32:
			return int(val)
		case int64:
			return int(val)
		case float64:
			return int(val)
		}
	}
	return 0
}

// Has reports whether a field was collected.
func (s StepState) Has(key FieldName) bool {
	_, ok := s.Collected[key]
	return ok
}

// Prompt returns the recorded prompt of a step.
func (s StepState) Prompt(id StepID) (MessageRef, bool) {
	ref, ok := s.Prompts[id]
	return ref, ok && ref != ""
}

// Criteria builds the reservation criteria from the collected data.
func (s StepState) Criteria() entity.Criteria {
	return entity.Criteria{
		Restaurant:     s.GetString(FieldRestaurant),
		RestaurantName: s.GetString(FieldRestaurantName),
		Date:           s.GetString(FieldDate),
		Time:           s.GetString(FieldTime),
		PartySize:      s.GetInt(FieldPartySize),
		Area:           s.GetString(FieldArea),
	}
}
