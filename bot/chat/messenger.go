package chat

// MessageRef is a transport identifier of a sent message.
type MessageRef string

// Messenger is the platform UI adapter interface.
type Messenger interface {
	SendText(chatID, text string) error
	// SendPrompt sends a question with optional inline options and returns its reference.
	SendPrompt(chatID, text string, buttons []InlineButton) (MessageRef, error)
	// Retract removes a previously sent prompt.
	Retract(chatID string, ref MessageRef) error
}

// InlineButton represents an inline button with callback data.
type InlineButton struct {
	Text string
	Data string
}

// UserInput represents a normalized event from the platform.
type UserInput struct {
	Text         string // Regular message text
	CallbackData string // Inline button payload
}

// Value returns the button payload if present, otherwise the typed text.
func (i UserInput) Value() string {
	if i.CallbackData != "" {
		return i.CallbackData
	}
	return i.Text
}
