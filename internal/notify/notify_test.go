package notify

import (
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestReminderText(t *testing.T) {
	if got := reminderText(1); !strings.Contains(got, "1 concept due") {
		t.Errorf("singular text = %q", got)
	}
	if got := reminderText(7); !strings.Contains(got, "7 concepts due") {
		t.Errorf("plural text = %q", got)
	}
}

func TestTelegramSendsToLinkedChat(t *testing.T) {
	fs := &fakeSender{}
	tg := &Telegram{api: fs, log: logger.NewNop()}
	chat := int64(555)

	if err := tg.SendReminders(models.User{ID: 1, TelegramID: &chat}, 3); err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
	if len(fs.sent) != 1 || fs.sent[0].ChatID != chat {
		t.Fatalf("sent = %+v, want one message to chat %d", fs.sent, chat)
	}
	if !strings.Contains(fs.sent[0].Text, "3 concepts") {
		t.Errorf("text = %q", fs.sent[0].Text)
	}
}

func TestTelegramWithoutChat(t *testing.T) {
	tg := &Telegram{api: &fakeSender{}, log: logger.NewNop()}
	if err := tg.SendReminders(models.User{ID: 1}, 3); !errors.Is(err, ErrNoChat) {
		t.Errorf("error = %v, want ErrNoChat", err)
	}
}

func TestTelegramSendFailure(t *testing.T) {
	fs := &fakeSender{err: errors.New("bot was blocked by the user")}
	tg := &Telegram{api: fs, log: logger.NewNop()}
	chat := int64(9)
	if err := tg.SendReminders(models.User{ID: 1, TelegramID: &chat}, 1); err == nil {
		t.Error("expected the send error to surface")
	}
}
