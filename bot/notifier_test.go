package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"TableWatch/bot/chat/reservation"
	"TableWatch/entity"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

type recSender struct {
	chatID string
	text   string
	err    error
}

func (r *recSender) SendText(chatID, text string) error {
	r.chatID, r.text = chatID, text
	return r.err
}

type recBlocks struct {
	blocked  []string
	archived []string
}

func (r *recBlocks) SetUserBlocked(_ context.Context, provider, chatID string, blocked bool) error {
	if blocked {
		r.blocked = append(r.blocked, provider+"/"+chatID)
	}
	return nil
}

func (r *recBlocks) ArchiveChatSubscriptions(_ context.Context, provider, chatID string, reason entity.ArchiveReason) (int64, error) {
	r.archived = append(r.archived, provider+"/"+chatID+"/"+string(reason))
	return 2, nil
}

func testSubscription() entity.Subscription {
	return entity.Subscription{
		ID:       "s1",
		ChatID:   "42",
		Provider: entity.ProviderResy,
		Criteria: entity.Criteria{
			Restaurant:     "carbone",
			RestaurantName: "Carbone",
			Date:           "2025-03-17",
			Time:           "19:30",
			PartySize:      4,
			Area:           "outdoor",
		},
	}
}

func TestNotifierTexts(t *testing.T) {
	sender := &recSender{}
	n := NewNotifier(entity.ProviderResy, sender, reservation.ResyVocabulary(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := n.NotifyAvailable(testSubscription(), "https://resy.com/x"); err != nil {
		t.Fatal(err)
	}
	if sender.chatID != "42" || !strings.Contains(sender.text, `href="https://resy.com/x"`) || !strings.Contains(sender.text, "<b>Carbone</b>, 2025-03-17 at 19:30, 4 guests, Patio") {
		t.Fatalf("available text = %q", sender.text)
	}

	if err := n.NotifyExpired(testSubscription()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sender.text, "gave up") || !strings.Contains(sender.text, "Carbone") {
		t.Fatalf("expired text = %q", sender.text)
	}
}

func TestNotifierEscapesMarkup(t *testing.T) {
	sender := &recSender{}
	n := NewNotifier(entity.ProviderResy, sender, reservation.ResyVocabulary(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	sub := testSubscription()
	sub.Criteria.RestaurantName = "Fish & <Chips>"
	if err := n.NotifyAvailable(sub, "https://resy.com/x?date=2025-03-17&seats=4"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sender.text, "<b>Fish &amp; &lt;Chips&gt;</b>") {
		t.Errorf("name not escaped: %q", sender.text)
	}
	if !strings.Contains(sender.text, `href="https://resy.com/x?date=2025-03-17&amp;seats=4"`) {
		t.Errorf("link not escaped: %q", sender.text)
	}
	if strings.Contains(sender.text, "<Chips>") {
		t.Errorf("raw markup left: %q", sender.text)
	}
}

func TestNotifierMarksBlockedChats(t *testing.T) {
	blocks := &recBlocks{}
	sender := &recSender{err: fmt.Errorf("send: %w", &tgbotapi.TelegramError{Code: 403, Description: "Forbidden: bot was blocked by the user"})}
	n := NewNotifier(entity.ProviderResy, sender, reservation.ResyVocabulary(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.SetBlockMarker(blocks)

	if err := n.NotifyAvailable(testSubscription(), "https://resy.com/x"); err == nil {
		t.Fatal("send error swallowed")
	}
	if len(blocks.blocked) != 1 || blocks.blocked[0] != "resy/42" {
		t.Fatalf("blocked = %v", blocks.blocked)
	}
	if len(blocks.archived) != 1 || blocks.archived[0] != "resy/42/chat_blocked" {
		t.Fatalf("archived = %v", blocks.archived)
	}

	sender.err = errors.New("network down")
	_ = n.NotifyExpired(testSubscription())
	if len(blocks.blocked) != 1 || len(blocks.archived) != 1 {
		t.Fatalf("transient error marked the chat blocked: %v %v", blocks.blocked, blocks.archived)
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("a_b (c).", false); got != `a\_b \(c\)\.` {
		t.Errorf("sanitize = %q", got)
	}
	if got := sanitize("[x](y)", true); got != "[x](y)" {
		t.Errorf("sanitize with links = %q", got)
	}
}
