package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"TableWatch/bot/chat"
	"TableWatch/bot/chat/reservation"
	"TableWatch/entity"
)

const chatID = "42"

var now = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type recMessenger struct {
	texts     []string
	prompts   []string
	retracted int
	next      int
}

func (m *recMessenger) SendText(_, text string) error {
	m.texts = append(m.texts, text)
	return nil
}

func (m *recMessenger) SendPrompt(_, text string, _ []chat.InlineButton) (chat.MessageRef, error) {
	m.next++
	m.prompts = append(m.prompts, text)
	return chat.MessageRef(strconv.Itoa(m.next)), nil
}

func (m *recMessenger) Retract(string, chat.MessageRef) error {
	m.retracted++
	return nil
}

func (m *recMessenger) lastPrompt() string {
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type lookup struct {
	err error
}

func (l lookup) RestaurantDetails(_ context.Context, query string) (*entity.Restaurant, error) {
	if l.err != nil {
		return nil, l.err
	}
	if query != "Bistro X" {
		return nil, nil
	}
	return &entity.Restaurant{Ref: "bistro-x", Provider: entity.ProviderResy, Name: "Bistro X"}, nil
}

type checker struct {
	slots []entity.Slot
}

func (c checker) CheckAvailability(context.Context, string, entity.Criteria) (*entity.Availability, error) {
	return &entity.Availability{Slots: c.slots}, nil
}

func (c checker) BookingLink(ref string, criteria entity.Criteria) string {
	return fmt.Sprintf("https://resy.com/cities/ny/venues/%s?date=%s&seats=%d", ref, criteria.Date, criteria.PartySize)
}

type store struct {
	created []entity.Subscription
}

func (s *store) CountActiveSubscriptions(context.Context, string) (int64, error) {
	return 0, nil
}

func (s *store) CreateSubscription(_ context.Context, sub *entity.Subscription) error {
	s.created = append(s.created, *sub)
	return nil
}

func newEngine(l reservation.RestaurantLookup, c checker, s *store) (*chat.Engine, *reservation.Vocabulary) {
	vocab := reservation.ResyVocabulary()
	registry := reservation.NewRegistry(entity.ProviderResy, vocab, l, func() time.Time { return now }, time.UTC)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return chat.NewEngine(registry, chat.NewFlowManager(), c, s, vocab.Phrases, 3, log), vocab
}

func send(t *testing.T, e *chat.Engine, m *recMessenger, text string) {
	t.Helper()
	if err := e.HandleStep(context.Background(), m, chatID, chat.UserInput{Text: text}); err != nil {
		t.Fatalf("HandleStep(%q): %v", text, err)
	}
}

func TestScenarioSubscribe(t *testing.T) {
	s := &store{}
	e, vocab := newEngine(lookup{}, checker{}, s)
	m := &recMessenger{}

	if err := e.Start(context.Background(), m, chatID); err != nil {
		t.Fatal(err)
	}
	if m.lastPrompt() != vocab.AskRestaurant {
		t.Fatalf("first prompt = %q", m.lastPrompt())
	}

	steps := []struct {
		input string
		next  string
	}{
		{"Bistro X", vocab.AskDate},
		{"2025-03-17", vocab.AskTime},
		{"19:30", vocab.AskPartySize},
		{"4", vocab.AskArea},
	}
	for _, st := range steps {
		send(t, e, m, st.input)
		if m.lastPrompt() != st.next {
			t.Fatalf("after %q prompt = %q, want %q", st.input, m.lastPrompt(), st.next)
		}
	}
	send(t, e, m, "outside")

	if len(s.created) != 1 {
		t.Fatalf("created %d subscriptions, want 1", len(s.created))
	}
	sub := s.created[0]
	want := entity.Criteria{
		Restaurant:     "bistro-x",
		RestaurantName: "Bistro X",
		Date:           "2025-03-17",
		Time:           "19:30",
		PartySize:      4,
		Area:           "outdoor",
	}
	if sub.Criteria != want {
		t.Errorf("criteria = %+v, want %+v", sub.Criteria, want)
	}
	if sub.Status != entity.SubscriptionActive {
		t.Errorf("status = %s", sub.Status)
	}
	if e.InProgress(chatID) {
		t.Error("state left after the flow finished")
	}
	if m.retracted != 5 {
		t.Errorf("retracted %d prompts, want 5", m.retracted)
	}
}

func TestScenarioBookNow(t *testing.T) {
	s := &store{}
	e, _ := newEngine(lookup{}, checker{slots: []entity.Slot{{Time: "19:30", Area: "outdoor"}}}, s)
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, chatID)
	for _, in := range []string{"Bistro X", "2025-03-17", "19:30", "4"} {
		send(t, e, m, in)
	}
	before := len(m.texts)
	send(t, e, m, "outside")

	if len(s.created) != 0 {
		t.Fatalf("created %d subscriptions, want 0", len(s.created))
	}
	// area confirmation and the booking link
	terminal := m.texts[before+1:]
	if len(terminal) != 1 {
		t.Fatalf("terminal messages = %v", terminal)
	}
	if !strings.Contains(terminal[0], `href="https://resy.com/cities/ny/venues/bistro-x?date=2025-03-17&amp;seats=4"`) {
		t.Errorf("book now message = %q", terminal[0])
	}
	if e.InProgress(chatID) {
		t.Error("state left after the flow finished")
	}
}

func TestDetailsAborts(t *testing.T) {
	tests := []struct {
		name   string
		lookup lookup
		input  string
		want   string
	}{
		{"not found", lookup{}, "Nowhere", `"Nowhere"`},
		{"markup in the query", lookup{}, "Tom <3 Jerry & co", `"Tom &lt;3 Jerry &amp; co"`},
		{"provider down", lookup{err: errors.New("timeout")}, "Bistro X", "not answering"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(tt.lookup, checker{}, &store{})
			m := &recMessenger{}

			_ = e.Start(context.Background(), m, chatID)
			send(t, e, m, tt.input)

			if e.InProgress(chatID) {
				t.Fatal("flow continues after a failed lookup")
			}
			if len(m.texts) != 1 || !strings.Contains(m.texts[0], tt.want) {
				t.Fatalf("messages = %v", m.texts)
			}
		})
	}
}

func TestInvalidInputIsRejected(t *testing.T) {
	e, vocab := newEngine(lookup{}, checker{}, &store{})
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, chatID)
	send(t, e, m, "Bistro X")

	send(t, e, m, "next tuesday")
	if m.lastPrompt() != vocab.AskDate {
		t.Fatalf("flow moved on after an invalid date: %q", m.lastPrompt())
	}
	send(t, e, m, "2025-03-10")

	// 09:00 is already over on the chosen day
	send(t, e, m, "09:00")
	if got := m.texts[len(m.texts)-1]; got != vocab.TimePassed {
		t.Fatalf("message = %q, want time passed", got)
	}
	send(t, e, m, "21:15")

	send(t, e, m, "25")
	if m.lastPrompt() != vocab.AskPartySize {
		t.Fatalf("flow moved on after an invalid party size: %q", m.lastPrompt())
	}
	send(t, e, m, "2")

	send(t, e, m, "kitchen")
	if m.lastPrompt() != vocab.InvalidArea {
		t.Fatalf("area was not asked again: %q", m.lastPrompt())
	}
	if !e.InProgress(chatID) {
		t.Fatal("flow ended on an invalid area")
	}
}

func TestAreaByNumber(t *testing.T) {
	s := &store{}
	e, _ := newEngine(lookup{}, checker{}, s)
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, chatID)
	for _, in := range []string{"Bistro X", "17.03", "19.30", "2", "3"} {
		send(t, e, m, in)
	}

	if len(s.created) != 1 {
		t.Fatalf("created %d subscriptions, want 1", len(s.created))
	}
	c := s.created[0].Criteria
	if c.Area != "bar" || c.Date != "2025-03-17" || c.Time != "19:30" || c.PartySize != 2 {
		t.Fatalf("criteria = %+v", c)
	}
}

func TestCallbackInput(t *testing.T) {
	s := &store{}
	e, _ := newEngine(lookup{}, checker{}, s)
	m := &recMessenger{}

	_ = e.Start(context.Background(), m, chatID)
	send(t, e, m, "Bistro X")
	for _, data := range []string{"2025-03-11", "20:00", "6", entity.AreaAny} {
		if err := e.HandleStep(context.Background(), m, chatID, chat.UserInput{CallbackData: data}); err != nil {
			t.Fatal(err)
		}
	}

	if len(s.created) != 1 || s.created[0].Criteria.Area != entity.AreaAny {
		t.Fatalf("created = %+v", s.created)
	}
}
