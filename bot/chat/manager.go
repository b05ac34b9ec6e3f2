package chat

import (
	"sync"
	"time"
)

// FlowManager owns the step state of every chat with a flow in progress.
// The state lives in process memory only: a restart drops unfinished flows,
// while subscriptions already created are kept by the store.
type FlowManager struct {
	mu     sync.Mutex
	states map[string]*StepState
}

func NewFlowManager() *FlowManager {
	return &FlowManager{states: make(map[string]*StepState)}
}

// Get returns a snapshot of the chat state, creating a default one if absent.
func (f *FlowManager) Get(chatID string) StepState {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.states[chatID]
	if !ok {
		st = NewStepState(chatID)
		f.states[chatID] = st
	}
	return st.clone()
}

// Exists reports whether the chat has a flow in progress.
func (f *FlowManager) Exists(chatID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.states[chatID]
	return ok
}

// Advance moves the chat to the next step. Unknown chats are ignored.
func (f *FlowManager) Advance(chatID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.states[chatID]
	if !ok {
		return
	}
	st.StepIndex++
	st.UpdatedAt = time.Now()
}

// Merge adds collected values and prompt references to the chat state.
// Existing keys are overwritten, none are removed.
func (f *FlowManager) Merge(chatID string, collected map[FieldName]any, prompts map[StepID]MessageRef) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.states[chatID]
	if !ok {
		st = NewStepState(chatID)
		f.states[chatID] = st
	}
	for k, v := range collected {
		st.Collected[k] = v
	}
	for k, v := range prompts {
		st.Prompts[k] = v
	}
	st.UpdatedAt = time.Now()
}

// Reset removes the chat state.
func (f *FlowManager) Reset(chatID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, chatID)
}

// Len returns the number of chats with a flow in progress.
func (f *FlowManager) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}
