// Package telegram binds the bot transport: the outbound adapter behind the
// channel.Client interface and the inbound update handlers.
package telegram

import (
	"fmt"
	"strconv"

	"gopkg.in/telebot.v3"
)

// answerUnique tags the inline answer buttons so callbacks can be routed.
const answerUnique = "ans"

// TelebotAdapter implements the channel.Client interface using the
// gopkg.in/telebot.v3 library. Chat IDs are the decimal form of the Telegram
// chat ID; message IDs double as prompt identifiers.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

func recipient(chatID string) (telebot.Recipient, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return telebot.ChatID(id), nil
}

// SendText delivers plain text and returns the message ID as the delivery
// handle.
func (tba *TelebotAdapter) SendText(chatID, text string) (string, error) {
	to, err := recipient(chatID)
	if err != nil {
		return "", err
	}
	msg, err := tba.bot.Send(to, text)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(msg.ID), nil
}

// SendPrompt delivers a question with one inline button per option and
// returns the message ID as the prompt identifier.
func (tba *TelebotAdapter) SendPrompt(chatID, question string, options []string) (string, error) {
	to, err := recipient(chatID)
	if err != nil {
		return "", err
	}

	markup := &telebot.ReplyMarkup{}
	row := make(telebot.Row, 0, len(options))
	for _, option := range options {
		row = append(row, markup.Data(option, answerUnique, option))
	}
	markup.Inline(row)

	msg, err := tba.bot.Send(to, question, markup)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(msg.ID), nil
}
