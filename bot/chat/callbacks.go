package chat

import (
	"strings"
)

// Callback action constants
const (
	CallbackPrefix = "wf:"
	ActionSelect   = "select"
	ActionRemove   = "remove"
	ActionCancel   = "cancel"
)

// CallbackData represents parsed callback data.
type CallbackData struct {
	Action string
	Value  string
}

// ParseCallback parses a callback data string.
// Format: "wf:action:value" or "wf:action"
func ParseCallback(data string) *CallbackData {
	if !strings.HasPrefix(data, CallbackPrefix) {
		return nil
	}

	data = strings.TrimPrefix(data, CallbackPrefix)
	parts := strings.SplitN(data, ":", 2)

	cb := &CallbackData{
		Action: parts[0],
	}

	if len(parts) > 1 {
		cb.Value = parts[1]
	}

	return cb
}

// IsWorkflowCallback checks if the callback data is a workflow callback.
func IsWorkflowCallback(data string) bool {
	return strings.HasPrefix(data, CallbackPrefix)
}

// BuildCallback creates a callback data string.
func BuildCallback(action string, value ...string) string {
	if len(value) > 0 && value[0] != "" {
		return CallbackPrefix + action + ":" + value[0]
	}
	return CallbackPrefix + action
}

// IsSelect checks if the callback is a "select" action.
func (c *CallbackData) IsSelect() bool {
	return c.Action == ActionSelect
}

// IsRemove checks if the callback is a "remove" action.
func (c *CallbackData) IsRemove() bool {
	return c.Action == ActionRemove
}

// IsCancel checks if the callback is a "cancel" action.
func (c *CallbackData) IsCancel() bool {
	return c.Action == ActionCancel
}
