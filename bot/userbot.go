package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"TableWatch/bot/chat"
	"TableWatch/bot/chat/reservation"
	"TableWatch/bot/chat/telegram"
	"TableWatch/entity"
	"TableWatch/impl/core"
	"TableWatch/internal/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
)

const handlerTimeout = 30 * time.Second

// Watches is the subscription side of the core used by the chat commands.
type Watches interface {
	RegisterUser(ctx context.Context, user entity.User) error
	ListSubscriptions(ctx context.Context, filter entity.SubscriptionFilter) ([]entity.Subscription, error)
	RemoveSubscription(ctx context.Context, req entity.SubscriptionRemoval) (*entity.Subscription, error)
}

// UserBot is the Telegram bot of one reservation provider.
type UserBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	updater     *ext.Updater
	botUsername string
	provider    string
	engine      *chat.Engine
	vocab       *reservation.Vocabulary
	watches     Watches
	messenger   *telegram.Messenger
}

// NewUserBot creates a new provider bot instance.
func NewUserBot(provider, botName, apiKey string, log *slog.Logger) (*UserBot, error) {
	bot := &UserBot{
		log:         log.With(sl.Module("userbot"), slog.String("provider", provider)),
		botUsername: botName,
		provider:    provider,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	bot.api = api
	bot.messenger = telegram.NewMessenger(api)

	return bot, nil
}

// SetEngine sets the reservation flow engine and the texts of the bot.
func (b *UserBot) SetEngine(engine *chat.Engine, vocab *reservation.Vocabulary) {
	b.engine = engine
	b.vocab = vocab
}

func (b *UserBot) SetWatches(watches Watches) {
	b.watches = watches
}

// Messenger returns the messenger bound to this bot, used by the poller notifications.
func (b *UserBot) Messenger() *telegram.Messenger {
	return b.messenger
}

// Start begins polling for updates and handling them.
func (b *UserBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(bot *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			b.log.Error("an error occurred while handling update", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	b.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", b.handleStart))
	dispatcher.AddHandler(handlers.NewCommand("watch", b.handleWatch))
	dispatcher.AddHandler(handlers.NewCommand("list", b.handleList))
	dispatcher.AddHandler(handlers.NewCommand("cancel", b.handleCancel))
	dispatcher.AddHandler(handlers.NewCallback(b.callbackFilter, b.handleCallback))
	dispatcher.AddHandler(handlers.NewMessage(message.Text, b.handleMessage))

	err := b.updater.StartPolling(b.api, &ext.PollingOpts{
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

	b.log.Info("user bot started", slog.String("username", b.botUsername))

	// Idle, to keep updates coming in
	b.updater.Idle()

	return nil
}

// Stop stops polling; Start returns after that.
func (b *UserBot) Stop() {
	if b.updater == nil {
		return
	}
	if err := b.updater.Stop(); err != nil {
		b.log.Warn("stop updater", sl.Err(err))
	}
}

func (b *UserBot) callbackFilter(cq *tgbotapi.CallbackQuery) bool {
	return chat.IsWorkflowCallback(cq.Data)
}

func chatID(ctx *ext.Context) string {
	return strconv.FormatInt(ctx.EffectiveChat.Id, 10)
}

// handleStart registers the chat and explains the commands.
func (b *UserBot) handleStart(_ *tgbotapi.Bot, ctx *ext.Context) error {
	id := chatID(ctx)
	if b.watches != nil && ctx.EffectiveUser != nil {
		user := entity.NewUser(b.provider, id, ctx.EffectiveUser.Username, ctx.EffectiveUser.FirstName)
		c, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := b.watches.RegisterUser(c, *user); err != nil {
			b.log.Warn("register user", slog.String("chat_id", id), sl.Err(err))
		}
	}
	return b.messenger.SendText(id, b.vocab.Welcome)
}

// handleWatch starts a new reservation request, dropping any unfinished one.
func (b *UserBot) handleWatch(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if b.engine == nil {
		b.log.Warn("engine not initialized")
		return nil
	}
	c, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	id := chatID(ctx)
	if err := b.engine.Start(c, b.messenger, id); err != nil {
		b.log.Error("failed to start flow", slog.String("chat_id", id), sl.Err(err))
		return err
	}
	return nil
}

func (b *UserBot) handleCancel(_ *tgbotapi.Bot, ctx *ext.Context) error {
	id := chatID(ctx)
	if b.engine == nil || !b.engine.Cancel(id) {
		return b.messenger.SendText(id, b.vocab.NothingToDo)
	}
	return b.messenger.SendText(id, b.vocab.Cancelled)
}

// handleList shows the active watches of the chat, each with a remove button.
func (b *UserBot) handleList(_ *tgbotapi.Bot, ctx *ext.Context) error {
	id := chatID(ctx)
	if b.watches == nil {
		return b.messenger.SendText(id, b.vocab.NoWatches)
	}
	c, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	subs, err := b.watches.ListSubscriptions(c, entity.SubscriptionFilter{
		Provider: b.provider,
		ChatID:   id,
		Status:   entity.SubscriptionActive,
	})
	if err != nil {
		b.log.Error("list subscriptions", slog.String("chat_id", id), sl.Err(err))
		return b.messenger.SendText(id, b.vocab.Phrases.Failure)
	}
	if len(subs) == 0 {
		return b.messenger.SendText(id, b.vocab.NoWatches)
	}

	if err = b.messenger.SendText(id, fmt.Sprintf(b.vocab.WatchList, len(subs))); err != nil {
		return err
	}
	for _, sub := range subs {
		buttons := []chat.InlineButton{{Text: "🗑 Remove", Data: sub.ID}}
		if err = b.messenger.SendActions(id, b.vocab.Describe(sub.Criteria), chat.ActionRemove, buttons); err != nil {
			return err
		}
	}
	return nil
}

// handleCallback routes inline button presses to the flow or to watch removal.
func (b *UserBot) handleCallback(bot *tgbotapi.Bot, ctx *ext.Context) error {
	_, _ = ctx.CallbackQuery.Answer(bot, nil)

	cb := chat.ParseCallback(ctx.CallbackQuery.Data)
	if cb == nil || b.engine == nil {
		return nil
	}
	id := chatID(ctx)
	c, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch {
	case cb.IsSelect():
		if !b.engine.InProgress(id) {
			return nil
		}
		err := b.engine.HandleStep(c, b.messenger, id, chat.UserInput{CallbackData: cb.Value})
		if err != nil {
			b.log.Error("flow callback error",
				slog.String("chat_id", id),
				slog.String("data", ctx.CallbackQuery.Data),
				sl.Err(err),
			)
		}
		return err
	case cb.IsRemove():
		return b.removeWatch(c, ctx, id, cb.Value)
	case cb.IsCancel():
		b.engine.Cancel(id)
		return b.messenger.SendText(id, b.vocab.Cancelled)
	}
	return nil
}

func (b *UserBot) removeWatch(c context.Context, ctx *ext.Context, chatID, subID string) error {
	if b.watches == nil {
		return nil
	}
	sub, err := b.watches.RemoveSubscription(c, entity.SubscriptionRemoval{
		ID:       subID,
		Provider: b.provider,
		ChatID:   chatID,
	})

	text := ""
	switch {
	case errors.Is(err, core.ErrNotActive):
		text = b.vocab.NotRemoved
	case err != nil:
		b.log.Error("remove subscription", slog.String("chat_id", chatID), sl.Err(err))
		return b.messenger.SendText(chatID, b.vocab.Phrases.Failure)
	default:
		text = fmt.Sprintf(b.vocab.WatchRemoved, b.vocab.Describe(sub.Criteria))
	}

	if ctx.EffectiveMessage != nil {
		return b.messenger.EditText(chatID, ctx.EffectiveMessage.MessageId, text)
	}
	return b.messenger.SendText(chatID, text)
}

// handleMessage feeds typed answers into the flow in progress.
func (b *UserBot) handleMessage(_ *tgbotapi.Bot, ctx *ext.Context) error {
	id := chatID(ctx)
	if b.engine == nil || !b.engine.InProgress(id) {
		return b.messenger.SendText(id, b.vocab.NothingToDo)
	}
	c, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	err := b.engine.HandleStep(c, b.messenger, id, chat.UserInput{Text: ctx.EffectiveMessage.Text})
	if err != nil {
		b.log.Error("flow message error", slog.String("chat_id", id), sl.Err(err))
	}
	return err
}
