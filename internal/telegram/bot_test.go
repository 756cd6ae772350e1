package telegram

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

func TestNewBot_DefaultMode(t *testing.T) {
	tests := []struct {
		name string
		mode domain.Mode
		want domain.Mode
	}{
		{"empty", "", domain.ModeQuick},
		{"invalid", "turbo", domain.ModeQuick},
		{"deep", domain.ModeDeep, domain.ModeDeep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, _ := createTestBot(&TrackingAnswerService{}, BotConfig{DefaultMode: tt.mode})
			defer bot.rateLimiter.Stop()

			if bot.defaultMode != tt.want {
				t.Errorf("defaultMode = %q, want %q", bot.defaultMode, tt.want)
			}
		})
	}
}

func TestBot_HandleUpdateRecoversPanic(t *testing.T) {
	bot, _ := createTestBot(&TrackingAnswerService{}, BotConfig{})
	defer bot.rateLimiter.Stop()
	bot.answers = nil

	// nil-сервис паникует внутри обработчика, бот должен выжить
	bot.handleUpdate(context.Background(), tgbotapi.Update{Message: createTestMessage(1, "вопрос")})
}

func TestBot_StopWithoutStart(t *testing.T) {
	bot, _ := createTestBot(&TrackingAnswerService{}, BotConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := bot.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestBot_StopWaitsForHandlers(t *testing.T) {
	bot, _ := createTestBot(&TrackingAnswerService{}, BotConfig{})

	bot.wg.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bot.Stop(ctx); err == nil {
		t.Error("Stop() should time out while a handler is running")
	}
	bot.wg.Done()
}

func TestBot_SendWithoutSender(t *testing.T) {
	bot := newBot(BotConfig{}, nil, &TrackingAnswerService{}, nil, nil)
	defer bot.rateLimiter.Stop()

	if err := bot.Send(1, "text"); err != nil {
		t.Errorf("Send() error = %v", err)
	}
	bot.SendTyping(1)
}
