package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"TableWatch/entity"
)

const testChat = "100"

type recMessenger struct {
	mu        sync.Mutex
	texts     []string
	prompts   []string
	retracted []MessageRef
	next      int
	promptErr error
}

func (m *recMessenger) SendText(_, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *recMessenger) SendPrompt(_, text string, _ []InlineButton) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.promptErr != nil {
		return "", m.promptErr
	}
	m.next++
	m.prompts = append(m.prompts, text)
	return MessageRef(strconv.Itoa(m.next)), nil
}

func (m *recMessenger) Retract(_ string, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retracted = append(m.retracted, ref)
	return nil
}

func (m *recMessenger) textCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

func (m *recMessenger) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

// fieldStep stores the raw input under one field.
// "bad" is rejected, "abort" ends the flow, "err" fails the step.
type fieldStep struct {
	id    StepID
	field FieldName
	asInt bool
}

func (s *fieldStep) ID() StepID { return s.id }

func (s *fieldStep) PreAction(_ context.Context, m Messenger, state StepState) (MessageRef, error) {
	return m.SendPrompt(state.ChatID, "ask "+string(s.id), nil)
}

func (s *fieldStep) PostAction(ctx context.Context, m Messenger, state StepState, input UserInput) StepResult {
	switch input.Value() {
	case "bad":
		_ = m.SendText(state.ChatID, "try again")
		return StepResult{Rejected: true}
	case "abort":
		_ = m.SendText(state.ChatID, "not found")
		return StepResult{Abort: true}
	case "err":
		return StepResult{Error: errors.New("step failed")}
	}
	RetractPrompt(ctx, m, state, s.id)

	var value any = input.Value()
	if s.asInt {
		n, _ := strconv.Atoi(input.Value())
		value = n
	}
	return StepResult{Collected: map[FieldName]any{s.field: value}}
}

type stubChecker struct {
	availability *entity.Availability
	err          error
	calls        int
}

func (c *stubChecker) CheckAvailability(context.Context, string, entity.Criteria) (*entity.Availability, error) {
	c.calls++
	return c.availability, c.err
}

func (c *stubChecker) BookingLink(ref string, criteria entity.Criteria) string {
	return "https://book.example/" + ref + "?date=" + criteria.Date
}

type stubStore struct {
	mu        sync.Mutex
	active    int64
	created   []entity.Subscription
	countErr  error
	createErr error
}

func (s *stubStore) CountActiveSubscriptions(_ context.Context, chatID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.active
	for _, sub := range s.created {
		if sub.ChatID == chatID {
			count++
		}
	}
	return count, s.countErr
}

func (s *stubStore) CreateSubscription(_ context.Context, sub *entity.Subscription) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *sub)
	return nil
}

type recListener struct {
	created []entity.Subscription
}

func (l *recListener) SubscriptionCreated(sub entity.Subscription) {
	l.created = append(l.created, sub)
}

var testPhrases = Phrases{
	BookNow:         "book now: %s %s",
	Registered:      "watching %s",
	Alternatives:    "other times: %s",
	CapacityReached: "limit %d",
	Failure:         "failure",
}

func testRegistry() *Registry {
	return NewRegistry(entity.ProviderResy,
		&fieldStep{id: "details", field: FieldRestaurant},
		&fieldStep{id: "date", field: FieldDate},
		&fieldStep{id: "time", field: FieldTime},
		&fieldStep{id: "party_size", field: FieldPartySize, asInt: true},
		&fieldStep{id: "area", field: FieldArea},
	)
}

func newTestEngine(checker *stubChecker, store *stubStore) *Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(testRegistry(), NewFlowManager(), checker, store, testPhrases, 3, log)
	e.SetClock(func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) })
	return e
}

var validInputs = []string{"bistro-x", "2025-03-17", "19:30", "4", "outdoor"}

func feed(t *testing.T, e *Engine, m Messenger, inputs ...string) {
	t.Helper()
	for _, in := range inputs {
		if err := e.HandleStep(context.Background(), m, testChat, UserInput{Text: in}); err != nil {
			t.Fatalf("HandleStep(%q): %v", in, err)
		}
	}
}

func TestHandleStepMonotonicIndex(t *testing.T) {
	e := newTestEngine(&stubChecker{availability: &entity.Availability{}}, &stubStore{})
	m := &recMessenger{}

	if err := e.Start(context.Background(), m, testChat); err != nil {
		t.Fatal(err)
	}

	for i, in := range validInputs[:4] {
		feed(t, e, m, "bad")
		if got := e.flows.Get(testChat).StepIndex; got != i {
			t.Fatalf("after invalid input index = %d, want %d", got, i)
		}
		feed(t, e, m, in)
		if got := e.flows.Get(testChat).StepIndex; got != i+1 {
			t.Fatalf("after %q index = %d, want %d", in, got, i+1)
		}
	}

	feed(t, e, m, validInputs[4])
	if e.InProgress(testChat) {
		t.Fatal("state left after the flow finished")
	}
}

func TestStartRecordsPrompt(t *testing.T) {
	e := newTestEngine(&stubChecker{availability: &entity.Availability{}}, &stubStore{})
	m := &recMessenger{}

	if err := e.Start(context.Background(), m, testChat); err != nil {
		t.Fatal(err)
	}
	if ref, ok := e.flows.Get(testChat).Prompt("details"); !ok || ref != "1" {
		t.Fatalf("details prompt = %q, %v", ref, ok)
	}

	feed(t, e, m, "bistro-x")
	if len(m.retracted) != 1 || m.retracted[0] != "1" {
		t.Fatalf("retracted = %v, want [1]", m.retracted)
	}
	if ref, ok := e.flows.Get(testChat).Prompt("date"); !ok || ref != "2" {
		t.Fatalf("date prompt = %q, %v", ref, ok)
	}
}

func TestFinishFlowCreatesSubscription(t *testing.T) {
	checker := &stubChecker{availability: &entity.Availability{Slots: []entity.Slot{
		{Time: "18:00", Area: "outdoor"},
		{Time: "21:00", Area: "outdoor"},
		{Time: "19:30", Area: "bar"},
	}}}
	store := &stubStore{}
	listener := &recListener{}
	e := newTestEngine(checker, store)
	e.SetListener(listener)
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, testChat)
	feed(t, e, m, validInputs[:4]...)
	before := m.textCount()
	feed(t, e, m, validInputs[4])

	if len(store.created) != 1 {
		t.Fatalf("created %d subscriptions, want 1", len(store.created))
	}
	sub := store.created[0]
	want := entity.Criteria{Restaurant: "bistro-x", Date: "2025-03-17", Time: "19:30", PartySize: 4, Area: "outdoor"}
	if sub.Criteria != want {
		t.Errorf("criteria = %+v, want %+v", sub.Criteria, want)
	}
	if sub.Status != entity.SubscriptionActive || sub.ChatID != testChat || sub.Provider != entity.ProviderResy || sub.ID == "" {
		t.Errorf("subscription = %+v", sub)
	}
	if len(listener.created) != 1 {
		t.Errorf("listener got %d events, want 1", len(listener.created))
	}
	if got := m.textCount() - before; got != 1 {
		t.Errorf("sent %d terminal messages, want 1", got)
	}
	if text := m.lastText(); !strings.Contains(text, "watching") || !strings.Contains(text, "other times: 18:00, 21:00") {
		t.Errorf("terminal message = %q", text)
	}
	if e.InProgress(testChat) {
		t.Error("state left after the flow finished")
	}
}

func TestFinishFlowBookNow(t *testing.T) {
	checker := &stubChecker{availability: &entity.Availability{Slots: []entity.Slot{{Time: "19:30", Area: "outdoor"}}}}
	store := &stubStore{}
	e := newTestEngine(checker, store)
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, testChat)
	feed(t, e, m, validInputs[:4]...)
	before := m.textCount()
	feed(t, e, m, validInputs[4])

	if len(store.created) != 0 {
		t.Fatalf("created %d subscriptions, want 0", len(store.created))
	}
	if got := m.textCount() - before; got != 1 {
		t.Fatalf("sent %d messages, want 1", got)
	}
	if text := m.lastText(); !strings.Contains(text, "https://book.example/bistro-x?date=2025-03-17") {
		t.Errorf("book now message = %q", text)
	}
	if e.InProgress(testChat) {
		t.Error("state left after the flow finished")
	}
}

func TestFinishFlowCapacity(t *testing.T) {
	store := &stubStore{active: 3}
	e := newTestEngine(&stubChecker{availability: &entity.Availability{}}, store)
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, testChat)
	feed(t, e, m, validInputs...)

	if len(store.created) != 0 {
		t.Fatalf("created %d subscriptions over the limit", len(store.created))
	}
	if text := m.lastText(); text != "limit 3" {
		t.Errorf("capacity message = %q", text)
	}
	if e.InProgress(testChat) {
		t.Error("state left after the flow finished")
	}
}

func TestCapacityCountsEveryProvider(t *testing.T) {
	store := &stubStore{}
	checker := &stubChecker{availability: &entity.Availability{}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resy := NewEngine(testRegistry(), NewFlowManager(), checker, store, testPhrases, 3, log)
	openTable := NewEngine(NewRegistry(entity.ProviderOpenTable,
		&fieldStep{id: "details", field: FieldRestaurant},
		&fieldStep{id: "date", field: FieldDate},
		&fieldStep{id: "time", field: FieldTime},
		&fieldStep{id: "party_size", field: FieldPartySize, asInt: true},
		&fieldStep{id: "area", field: FieldArea},
	), NewFlowManager(), checker, store, testPhrases, 3, log)
	m := &recMessenger{}

	for i := 0; i < 2; i++ {
		_ = resy.Start(context.Background(), m, testChat)
		feed(t, resy, m, validInputs...)
	}
	_ = openTable.Start(context.Background(), m, testChat)
	feed(t, openTable, m, validInputs...)
	_ = openTable.Start(context.Background(), m, testChat)
	feed(t, openTable, m, validInputs...)

	if len(store.created) != 3 {
		t.Fatalf("created %d subscriptions, want 3", len(store.created))
	}
	if m.lastText() != "limit 3" {
		t.Fatalf("last message = %q, want the capacity message", m.lastText())
	}
}

func TestFinishFlowFailures(t *testing.T) {
	tests := []struct {
		name    string
		checker *stubChecker
		store   *stubStore
	}{
		{"provider", &stubChecker{err: errors.New("timeout")}, &stubStore{}},
		{"count", &stubChecker{availability: &entity.Availability{}}, &stubStore{countErr: errors.New("db down")}},
		{"create", &stubChecker{availability: &entity.Availability{}}, &stubStore{createErr: errors.New("db down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.checker, tt.store)
			m := &recMessenger{}

			_ = e.Start(context.Background(), m, testChat)
			feed(t, e, m, validInputs[:4]...)
			before := m.textCount()
			feed(t, e, m, validInputs[4])

			if len(tt.store.created) != 0 {
				t.Fatal("subscription created on failure")
			}
			if got := m.textCount() - before; got != 1 || m.lastText() != "failure" {
				t.Fatalf("messages = %d, last %q", got, m.lastText())
			}
			if e.InProgress(testChat) {
				t.Fatal("state left after failure")
			}
		})
	}
}

func TestAbortResetsState(t *testing.T) {
	checker := &stubChecker{}
	e := newTestEngine(checker, &stubStore{})
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, testChat)
	feed(t, e, m, "abort")

	if e.InProgress(testChat) {
		t.Fatal("state left after abort")
	}
	if m.textCount() != 1 {
		t.Fatalf("sent %d messages, want 1", m.textCount())
	}
	if checker.calls != 0 {
		t.Fatal("availability checked after abort")
	}
}

func TestStepErrorKeepsIndex(t *testing.T) {
	e := newTestEngine(&stubChecker{}, &stubStore{})
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, testChat)
	feed(t, e, m, "bistro-x")

	err := e.HandleStep(context.Background(), m, testChat, UserInput{Text: "err"})
	if err == nil {
		t.Fatal("step error not returned")
	}
	if got := e.flows.Get(testChat).StepIndex; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}
}

func TestLostPromptStillAdvances(t *testing.T) {
	e := newTestEngine(&stubChecker{availability: &entity.Availability{}}, &stubStore{})
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, testChat)

	m.promptErr = errors.New("too many requests")
	feed(t, e, m, "bistro-x")
	st := e.flows.Get(testChat)
	if st.StepIndex != 1 {
		t.Fatalf("index = %d, want 1", st.StepIndex)
	}
	if _, ok := st.Prompt("date"); ok {
		t.Fatal("prompt recorded although sending failed")
	}

	m.promptErr = nil
	feed(t, e, m, "2025-03-17")
	st = e.flows.Get(testChat)
	if st.GetString(FieldRestaurant) != "bistro-x" || st.GetString(FieldDate) != "2025-03-17" {
		t.Fatalf("collected = %v", st.Collected)
	}
	if st.StepIndex != 2 {
		t.Fatalf("index = %d, want 2", st.StepIndex)
	}
}

func TestCancel(t *testing.T) {
	e := newTestEngine(&stubChecker{}, &stubStore{})
	m := &recMessenger{}

	if e.Cancel(testChat) {
		t.Fatal("Cancel reported a flow that never started")
	}
	_ = e.Start(context.Background(), m, testChat)
	if !e.Cancel(testChat) || e.InProgress(testChat) {
		t.Fatal("Cancel kept the flow")
	}
}

func TestConcurrentHandleStepAccumulates(t *testing.T) {
	for run := 0; run < 20; run++ {
		e := newTestEngine(&stubChecker{availability: &entity.Availability{}}, &stubStore{})
		m := &recMessenger{}
		_ = e.Start(context.Background(), m, testChat)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = e.HandleStep(context.Background(), m, testChat, UserInput{Text: "4"})
			}()
		}
		wg.Wait()

		st := e.flows.Get(testChat)
		if st.StepIndex != 4 {
			t.Fatalf("run %d: index = %d, want 4", run, st.StepIndex)
		}
		for _, f := range []FieldName{FieldRestaurant, FieldDate, FieldTime, FieldPartySize} {
			if !st.Has(f) {
				t.Fatalf("run %d: field %s lost, collected %v", run, f, st.Collected)
			}
		}
	}
}
