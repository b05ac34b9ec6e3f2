package chat

import (
	"context"
	"strconv"
	"strings"
)

// MatchNumberToInline converts a number string to the corresponding inline button data.
func MatchNumberToInline(text string, buttons []InlineButton) string {
	text = strings.TrimSpace(text)
	num, err := strconv.Atoi(text)
	if err != nil || num < 1 || num > len(buttons) {
		return ""
	}
	return buttons[num-1].Data
}

// RetractPrompt removes the recorded question of a step once it is answered.
// A failed retraction is not an error for the flow.
func RetractPrompt(_ context.Context, m Messenger, state StepState, id StepID) {
	ref, ok := state.Prompt(id)
	if !ok {
		return
	}
	_ = m.Retract(state.ChatID, ref)
}
