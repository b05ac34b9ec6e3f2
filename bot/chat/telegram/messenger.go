package telegram

import (
	"strconv"

	"TableWatch/bot/chat"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// buttonsPerRow keeps option keyboards readable on phones.
const buttonsPerRow = 3

// TelegramAPI defines the Telegram bot methods needed by the messenger.
// This avoids importing the concrete bot type and prevents circular imports.
type TelegramAPI interface {
	SendMessage(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error)
	EditMessageText(text string, opts *tgbotapi.EditMessageTextOpts) (*tgbotapi.Message, bool, error)
	DeleteMessage(chatId int64, messageId int64, opts *tgbotapi.DeleteMessageOpts) (bool, error)
}

// Messenger implements chat.Messenger for Telegram using inline keyboards.
type Messenger struct {
	api TelegramAPI
}

// NewMessenger creates a new Telegram Messenger.
func NewMessenger(api TelegramAPI) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) SendText(chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}
	_, err = m.api.SendMessage(id, text, &tgbotapi.SendMessageOpts{
		ParseMode: "HTML",
		LinkPreviewOptions: &tgbotapi.LinkPreviewOptions{
			IsDisabled: true,
		},
	})
	return err
}

func (m *Messenger) SendPrompt(chatID, text string, buttons []chat.InlineButton) (chat.MessageRef, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", err
	}

	opts := &tgbotapi.SendMessageOpts{ParseMode: "HTML"}
	if len(buttons) > 0 {
		opts.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: keyboard(buttons, chat.ActionSelect),
		}
	}

	msg, err := m.api.SendMessage(id, text, opts)
	if err != nil {
		return "", err
	}
	return chat.MessageRef(strconv.FormatInt(msg.MessageId, 10)), nil
}

// SendActions sends a message whose buttons carry the given callback action.
func (m *Messenger) SendActions(chatID, text, action string, buttons []chat.InlineButton) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}
	_, err = m.api.SendMessage(id, text, &tgbotapi.SendMessageOpts{
		ParseMode: "HTML",
		ReplyMarkup: tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: keyboard(buttons, action),
		},
	})
	return err
}

// EditText replaces the text of a sent message and drops its keyboard.
func (m *Messenger) EditText(chatID string, messageID int64, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}
	_, _, err = m.api.EditMessageText(text, &tgbotapi.EditMessageTextOpts{
		ChatId:    id,
		MessageId: messageID,
		ParseMode: "HTML",
	})
	return err
}

func (m *Messenger) Retract(chatID string, ref chat.MessageRef) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}
	msgID, err := strconv.ParseInt(string(ref), 10, 64)
	if err != nil {
		return err
	}
	_, err = m.api.DeleteMessage(id, msgID, nil)
	return err
}

func keyboard(buttons []chat.InlineButton, action string) [][]tgbotapi.InlineKeyboardButton {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons)/buttonsPerRow+1)
	var row []tgbotapi.InlineKeyboardButton
	for _, btn := range buttons {
		row = append(row, tgbotapi.InlineKeyboardButton{
			Text:         btn.Text,
			CallbackData: chat.BuildCallback(action, btn.Data),
		})
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}
