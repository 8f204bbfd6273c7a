// Package feedback runs the long-polling bot that turns reactions on
// delivered listings into stored feedback counters.
package feedback

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/repository"
)

// Bot listens for callback queries from the feedback keyboard.
type Bot struct {
	api    *tgbotapi.BotAPI
	repo   repository.FeedbackRepository
	logger *zap.Logger
}

var kinds = map[string]string{
	"positive": models.FeedbackPositive,
	"negative": models.FeedbackNegative,
	"flag":     models.FeedbackFlag,
}

func NewBot(token string, repo repository.FeedbackRepository, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}
	logger.Info("Feedback bot authorized", zap.String("username", botAPI.Self.UserName))
	return &Bot{api: botAPI, repo: repo, logger: logger}, nil
}

// Start begins listening for updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Feedback bot started, waiting for updates")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Feedback bot shutting down")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(ctx, update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	kind, ok := ParseCallback(query.Data)
	if !ok {
		b.logger.Warn("ignoring unknown callback data", zap.String("data", query.Data))
		b.answer(query.ID, "")
		return
	}
	if query.Message == nil {
		b.answer(query.ID, "")
		return
	}

	err := b.repo.RecordFeedback(ctx, int64(query.Message.MessageID), query.Message.Chat.ID, kind)
	if err != nil {
		b.logger.Error("failed to record feedback",
			zap.Int("message_id", query.Message.MessageID),
			zap.Int64("chat_id", query.Message.Chat.ID), zap.Error(err))
		b.answer(query.ID, "Something went wrong, try again")
		return
	}

	b.logger.Info("feedback recorded",
		zap.String("kind", kind),
		zap.Int("message_id", query.Message.MessageID),
		zap.Int64("chat_id", query.Message.Chat.ID))
	b.answer(query.ID, "Thanks for the feedback!")
}

func (b *Bot) answer(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("failed to send callback response", zap.Error(err))
	}
}

// ParseCallback maps "fb:<kind>" callback data to a stored feedback kind.
func ParseCallback(data string) (string, bool) {
	prefix, rest, found := strings.Cut(data, ":")
	if !found || prefix != "fb" {
		return "", false
	}
	kind, ok := kinds[rest]
	return kind, ok
}
