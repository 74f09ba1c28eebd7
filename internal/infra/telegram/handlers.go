package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"github.com/azrahudaya/remindcare/internal/app"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

const msgTooManyMessages = "Terlalu banyak pesan. Coba lagi sebentar. ⏳"

// RegisterHandlers wires inbound updates to the reply service: free text to
// HandleText, inline-button callbacks to HandleSelection.
func RegisterHandlers(
	ctx context.Context,
	b *telebot.Bot,
	replies *app.ReplyService,
	limiter *InboundLimiter,
	clock *timeutil.Clock,
	logger *logrus.Entry,
) {
	b.Handle(telebot.OnText, func(c telebot.Context) error {
		now := clock.Now()
		chatID := strconv.FormatInt(c.Chat().ID, 10)

		allowed, warn := limiter.Allow(chatID, now)
		if !allowed {
			if warn {
				return c.Send(msgTooManyMessages)
			}
			return nil
		}

		if err := replies.HandleText(ctx, chatID, c.Text(), now); err != nil {
			logger.WithField("chat_id", chatID).WithError(err).Error("Inbound text failed")
		}
		return nil
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		now := clock.Now()
		chatID := strconv.FormatInt(c.Chat().ID, 10)

		if allowed, _ := limiter.Allow(chatID, now); !allowed {
			return c.Respond()
		}

		// Callback data arrives as "\f<unique>|<payload>".
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		parts := strings.SplitN(data, "|", 2)
		if len(parts) != 2 || parts[0] != answerUnique {
			logger.WithFields(logrus.Fields{"chat_id": chatID, "data": data}).Warn("Unknown callback data")
			return c.Respond()
		}
		optionLabel := parts[1]

		promptID := ""
		if c.Callback().Message != nil {
			promptID = strconv.Itoa(c.Callback().Message.ID)
		}

		if err := replies.HandleSelection(ctx, chatID, promptID, optionLabel, now); err != nil {
			logger.WithField("chat_id", chatID).WithError(err).Error("Inbound selection failed")
		}
		return c.Respond()
	})
}
