package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"TableWatch/bot/chat/reservation"
	"TableWatch/entity"
	"TableWatch/internal/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// TextSender sends one formatted message to a chat.
type TextSender interface {
	SendText(chatID, text string) error
}

// BlockMarker remembers chats that blocked the bot and stops their watches.
type BlockMarker interface {
	SetUserBlocked(ctx context.Context, provider, chatID string, blocked bool) error
	ArchiveChatSubscriptions(ctx context.Context, provider, chatID string, reason entity.ArchiveReason) (int64, error)
}

// Notifier delivers poller messages with the texts of one provider.
type Notifier struct {
	provider string
	sender   TextSender
	vocab    *reservation.Vocabulary
	users    BlockMarker
	log      *slog.Logger
}

func NewNotifier(provider string, sender TextSender, vocab *reservation.Vocabulary, log *slog.Logger) *Notifier {
	return &Notifier{
		provider: provider,
		sender:   sender,
		vocab:    vocab,
		log:      log.With(sl.Module("notifier"), slog.String("provider", provider)),
	}
}

func (n *Notifier) SetBlockMarker(users BlockMarker) {
	n.users = users
}

func (n *Notifier) NotifyAvailable(sub entity.Subscription, link string) error {
	text := fmt.Sprintf(n.vocab.Available, n.vocab.Describe(sub.Criteria), html.EscapeString(link))
	return n.send(sub.ChatID, text)
}

func (n *Notifier) NotifyExpired(sub entity.Subscription) error {
	text := fmt.Sprintf(n.vocab.Expired, n.vocab.Describe(sub.Criteria))
	return n.send(sub.ChatID, text)
}

func (n *Notifier) send(chatID, text string) error {
	err := n.sender.SendText(chatID, text)
	if err != nil && isBlocked(err) && n.users != nil {
		n.blocked(chatID)
	}
	return err
}

// blocked marks the chat and archives its remaining watches so the poller stops checking them.
func (n *Notifier) blocked(chatID string) {
	log := n.log.With(slog.String("chat_id", chatID))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := n.users.SetUserBlocked(ctx, n.provider, chatID, true); err != nil {
		log.Warn("mark user blocked", sl.Err(err))
	}
	count, err := n.users.ArchiveChatSubscriptions(ctx, n.provider, chatID, entity.ArchiveChatBlocked)
	if err != nil {
		log.Warn("archive watches of blocked chat", sl.Err(err))
		return
	}
	log.Info("user blocked the bot", slog.Int64("archived", count))
}

func isBlocked(err error) bool {
	var tgErr *tgbotapi.TelegramError
	return errors.As(err, &tgErr) && tgErr.Code == http.StatusForbidden
}
