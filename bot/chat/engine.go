package chat

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"TableWatch/entity"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/metrics"
)

const alternativesLimit = 3

// Phrases are the terminal messages of a flow.
type Phrases struct {
	BookNow         string // summary, link
	Registered      string // summary
	Alternatives    string // comma separated times
	CapacityReached string // limit
	Failure         string
	// Describe renders the collected criteria for the user.
	Describe func(c entity.Criteria) string
}

// Engine drives a chat through the registry steps and finishes the flow
// either with an immediate booking link or with a new subscription.
type Engine struct {
	registry         *Registry
	flows            *FlowManager
	checker          AvailabilityChecker
	store            SubscriptionStore
	phrases          Phrases
	maxSubscriptions int
	listener         EventListener
	locks            *keyedMutex
	now              func() time.Time
	log              *slog.Logger
}

// NewEngine creates a new chat engine.
func NewEngine(registry *Registry, flows *FlowManager, checker AvailabilityChecker, store SubscriptionStore, phrases Phrases, maxSubscriptions int, log *slog.Logger) *Engine {
	if phrases.Describe == nil {
		phrases.Describe = func(c entity.Criteria) string { return html.EscapeString(c.Title()) }
	}
	return &Engine{
		registry:         registry,
		flows:            flows,
		checker:          checker,
		store:            store,
		phrases:          phrases,
		maxSubscriptions: maxSubscriptions,
		locks:            newKeyedMutex(),
		now:              time.Now,
		log:              log.With(sl.Module("chat.engine"), slog.String("provider", registry.Provider())),
	}
}

// SetListener sets the listener for created subscriptions.
func (e *Engine) SetListener(l EventListener) {
	e.listener = l
}

// SetClock replaces the time source used for new subscriptions.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Provider returns the provider the engine collects requests for.
func (e *Engine) Provider() string {
	return e.registry.Provider()
}

// Start drops any flow in progress and asks the first question.
func (e *Engine) Start(ctx context.Context, m Messenger, chatID string) error {
	unlock := e.locks.lock(chatID)
	defer unlock()

	e.flows.Reset(chatID)
	state := e.flows.Get(chatID)

	step, ok := e.registry.At(0)
	if !ok {
		return fmt.Errorf("registry %s has no steps", e.registry.Provider())
	}
	e.log.Debug("starting flow", slog.String("chat_id", chatID))
	return e.enter(ctx, m, chatID, step, state)
}

// Cancel drops the flow in progress.
func (e *Engine) Cancel(chatID string) bool {
	unlock := e.locks.lock(chatID)
	defer unlock()

	existed := e.flows.Exists(chatID)
	e.flows.Reset(chatID)
	return existed
}

// InProgress reports whether the chat is in the middle of a flow.
func (e *Engine) InProgress(chatID string) bool {
	return e.flows.Exists(chatID)
}

// HandleStep feeds one user input into the current step of the chat.
func (e *Engine) HandleStep(ctx context.Context, m Messenger, chatID string, input UserInput) error {
	unlock := e.locks.lock(chatID)
	defer unlock()

	state := e.flows.Get(chatID)

	current, ok := e.registry.At(state.StepIndex)
	if !ok {
		// flow already finished
		return nil
	}

	result := current.PostAction(ctx, m, state, input)
	if result.Error != nil {
		e.log.Error("step error",
			slog.String("chat_id", chatID),
			slog.String("step_id", string(current.ID())),
			sl.Err(result.Error),
		)
		return result.Error
	}
	if result.Abort {
		e.log.Info("flow aborted",
			slog.String("chat_id", chatID),
			slog.String("step_id", string(current.ID())),
		)
		e.flows.Reset(chatID)
		metrics.IncFlow(e.Provider(), "aborted")
		return nil
	}
	if result.Rejected {
		return nil
	}

	e.flows.Merge(chatID, result.Collected, nil)

	next, ok := e.registry.At(state.StepIndex + 1)
	if !ok {
		return e.finishFlow(ctx, m, chatID)
	}

	// accepted input always moves the flow, even if the next question is lost
	e.flows.Advance(chatID)
	if err := e.enter(ctx, m, chatID, next, e.flows.Get(chatID)); err != nil {
		e.log.Error("next step prompt",
			slog.String("chat_id", chatID),
			slog.String("step_id", string(next.ID())),
			sl.Err(err),
		)
	}
	return nil
}

// enter asks the step question and records the prompt so it can be retracted later.
func (e *Engine) enter(ctx context.Context, m Messenger, chatID string, step Step, state StepState) error {
	ref, err := step.PreAction(ctx, m, state)
	if err != nil {
		return fmt.Errorf("entering step %s: %w", step.ID(), err)
	}
	if ref != "" {
		e.flows.Merge(chatID, nil, map[StepID]MessageRef{step.ID(): ref})
	}
	return nil
}

// finishFlow performs the first availability check and either answers with a booking link
// or registers a subscription. The chat state is cleared on every path.
func (e *Engine) finishFlow(ctx context.Context, m Messenger, chatID string) error {
	state := e.flows.Get(chatID)
	defer e.flows.Reset(chatID)

	criteria := state.Criteria()
	log := e.log.With(
		slog.String("chat_id", chatID),
		slog.String("restaurant", criteria.Restaurant),
		slog.String("date", criteria.Date),
		slog.String("time", criteria.Time),
	)
	summary := e.phrases.Describe(criteria)

	availability, err := e.checker.CheckAvailability(ctx, criteria.Restaurant, criteria)
	if err != nil {
		log.Error("availability check", sl.Err(err))
		metrics.IncFlow(e.Provider(), "failed")
		return m.SendText(chatID, e.phrases.Failure)
	}

	if _, ok := availability.Match(criteria); ok {
		log.Info("available at once")
		metrics.IncFlow(e.Provider(), "book_now")
		link := e.checker.BookingLink(criteria.Restaurant, criteria)
		return m.SendText(chatID, fmt.Sprintf(e.phrases.BookNow, summary, html.EscapeString(link)))
	}

	count, err := e.store.CountActiveSubscriptions(ctx, chatID)
	if err != nil {
		log.Error("count subscriptions", sl.Err(err))
		metrics.IncFlow(e.Provider(), "failed")
		return m.SendText(chatID, e.phrases.Failure)
	}
	if e.maxSubscriptions > 0 && count >= int64(e.maxSubscriptions) {
		log.Info("subscription limit reached", slog.Int64("active", count))
		metrics.IncFlow(e.Provider(), "capacity")
		return m.SendText(chatID, fmt.Sprintf(e.phrases.CapacityReached, e.maxSubscriptions))
	}

	sub := entity.NewSubscription(e.registry.Provider(), chatID, criteria, e.now())
	if err = e.store.CreateSubscription(ctx, sub); err != nil {
		log.Error("create subscription", sl.Err(err))
		metrics.IncFlow(e.Provider(), "failed")
		return m.SendText(chatID, e.phrases.Failure)
	}
	log.Info("subscription created", slog.String("subscription_id", sub.ID))
	metrics.IncFlow(e.Provider(), "subscribed")

	if e.listener != nil {
		e.listener.SubscriptionCreated(*sub)
	}

	text := fmt.Sprintf(e.phrases.Registered, summary)
	if alternatives := availability.Alternatives(criteria, alternativesLimit); len(alternatives) > 0 && e.phrases.Alternatives != "" {
		times := make([]string, len(alternatives))
		for i, s := range alternatives {
			times[i] = s.Time
		}
		text += "\n\n" + fmt.Sprintf(e.phrases.Alternatives, strings.Join(times, ", "))
	}
	return m.SendText(chatID, text)
}
