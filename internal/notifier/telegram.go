package notifier

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramSender delivers listing messages through the Bot API with the
// feedback keyboard attached.
type TelegramSender struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegramSender creates a sender from a bot token.
func NewTelegramSender(token string, logger *zap.Logger) (*TelegramSender, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))
	return &TelegramSender{api: botAPI, logger: logger}, nil
}

func (s *TelegramSender) Send(_ context.Context, chatID int64, text string) (int64, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = FeedbackKeyboard()

	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return int64(sent.MessageID), nil
}

// FeedbackKeyboard is the inline keyboard attached to every delivered
// listing. Callback data format: "fb:<kind>".
func FeedbackKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👍", "fb:positive"),
			tgbotapi.NewInlineKeyboardButtonData("👎", "fb:negative"),
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Wrong", "fb:flag"),
		),
	)
}
