package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramNotifier delivers notifications to a single Telegram chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// TelegramConfig holds Telegram notifier configuration.
type TelegramConfig struct {
	Token  string
	ChatID int64
	Logger *zap.Logger
}

// NewTelegramNotifier authenticates the bot and returns a notifier.
func NewTelegramNotifier(cfg *TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id cannot be zero")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	cfg.Logger.Info("telegram-notifier-ready", zap.String("bot", api.Self.UserName))

	return &TelegramNotifier{
		api:    api,
		chatID: cfg.ChatID,
		logger: cfg.Logger,
	}, nil
}

// Notify sends one message to the configured chat.
func (n *TelegramNotifier) Notify(ctx context.Context, level Level, title, message string) error {
	prefix := ""
	switch level {
	case LevelWarn:
		prefix = "⚠️ "
	case LevelUrgent:
		prefix = "🚨 "
	}

	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("%s%s\n%s", prefix, title, message))

	_, err := n.api.Send(msg)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	n.logger.Debug("notification-sent",
		zap.String("level", level.String()),
		zap.String("title", title))

	return nil
}
