// Package notify delivers due-review reminders.
package notify

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// ErrNoChat is returned for users without a linked Telegram chat.
var ErrNoChat = errors.New("user has no telegram chat")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends reminders as Telegram messages.
type Telegram struct {
	api sender
	log *logger.Logger
}

// NewTelegram authorizes against the Bot API with token.
func NewTelegram(token string, baseLog *logger.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	log := baseLog.With("service", "TelegramNotifier")
	log.Info("authorized on telegram", "account", api.Self.UserName)
	return &Telegram{api: api, log: log}, nil
}

// SendReminders implements scheduler.Notifier.
func (t *Telegram) SendReminders(user models.User, count int) error {
	if user.TelegramID == nil {
		return ErrNoChat
	}
	// private chat IDs equal the Telegram user ID
	msg := tgbotapi.NewMessage(*user.TelegramID, reminderText(count))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", user.ID, err)
	}
	return nil
}

// Log writes reminders to the log. Used when no bot token is configured.
type Log struct {
	log *logger.Logger
}

func NewLog(baseLog *logger.Logger) *Log {
	return &Log{log: baseLog.With("service", "LogNotifier")}
}

func (l *Log) SendReminders(user models.User, count int) error {
	l.log.Info(reminderText(count), "user_id", user.ID)
	return nil
}

func reminderText(count int) string {
	noun := "concepts"
	if count == 1 {
		noun = "concept"
	}
	return fmt.Sprintf("You have %d %s due for review. A short session now keeps them fresh.", count, noun)
}
