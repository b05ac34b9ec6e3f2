package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"TableWatch/internal/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

// KeyIssuer creates admin api keys.
type KeyIssuer interface {
	GenerateApiKey(username string) (string, error)
}

// TgBot is the admin bot: it receives log records and issues api keys to the admin.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	updater     *ext.Updater
	botUsername string
	adminId     int64
	keys        KeyIssuer
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetKeyIssuer(keys KeyIssuer) {
	t.keys = keys
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		// If an error is returned by a handler, log it and continue going.
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Warn("an error occurred while handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("key", t.handleKey))

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	// Idle, to keep updates coming in, and avoid bot stopping.
	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater == nil {
		return
	}
	if err := t.updater.Stop(); err != nil {
		t.log.Warn("stop updater", sl.Err(err))
	}
}

// handleKey answers the admin with an api key: "/key" for the admin itself, "/key name" for another user.
func (t *TgBot) handleKey(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveUser.Id != t.adminId {
		return nil
	}
	if t.keys == nil {
		t.plainResponse(ctx.EffectiveChat.Id, "key service is not available")
		return nil
	}

	username := "admin"
	if args := ctx.Args(); len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		username = strings.TrimSpace(args[1])
	}
	key, err := t.keys.GenerateApiKey(username)
	if err != nil {
		t.log.Error("generate api key", slog.String("username", username), sl.Err(err))
		t.plainResponse(ctx.EffectiveChat.Id, "failed to generate key")
		return nil
	}
	t.log.With(
		slog.String("username", username),
		sl.Secret("key", key),
	).Info("api key issued")
	t.plainResponse(ctx.EffectiveChat.Id, fmt.Sprintf("%s: %s", username, key))
	return nil
}

func (t *TgBot) SendMessage(msg string) {
	t.plainResponse(t.adminId, msg)
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text, false)

	if sanitized != "" {
		_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
			ParseMode: "MarkdownV2",
		})
		if err != nil {
			t.log.With(
				slog.Int64("id", chatId),
			).Warn("sending message", sl.Err(err))
			_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
			if err != nil {
				t.log.With(
					slog.Int64("id", chatId),
				).Error("sending safe message", sl.Err(err))
			}
		}
	} else {
		t.log.With(
			slog.Int64("id", chatId),
		).Debug("empty message")
	}
}

// sanitize escapes MarkdownV2 reserved characters.
func sanitize(input string, preserveLinks bool) string {
	reservedChars := "\\`_{}#+-.!|()[]*~>="
	if preserveLinks {
		reservedChars = "\\`_{}#+-.!|*~>="
	}

	var sb strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}
