package telegram

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

const (
	startText = `Привет! Я ищу ответы в интернете.

Просто отправьте вопрос или используйте /help.`

	helpText = `<b>Доступные команды:</b>

/start - Приветствие
/help - Показать эту справку

<b>Режимы поиска:</b>
/quick вопрос - Быстрый поиск по сниппетам
/deep вопрос - Глубокий поиск с чтением страниц

Обычное сообщение обрабатывается в режиме по умолчанию.

<b>Примеры:</b>
• /quick что такое gRPC?
• /deep чем отличается Raft от Paxos`

	msgUnknownCommand = "Неизвестная команда. Используйте /help для справки."
	msgRateLimited    = "Слишком много запросов. Пожалуйста, подождите минуту."
	msgAnswerFailed   = "Не удалось получить ответ. Попробуйте позже."
	msgGenericError   = "Произошла ошибка. Попробуйте позже."
)

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	h.bot.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if !msg.IsCommand() {
		h.handleQuery(ctx, msg)
		return
	}

	switch msg.Command() {
	case "quick", "deep":
		h.handleQuery(ctx, msg)
	case "start":
		h.send(msg.Chat.ID, startText)
	case "help":
		h.send(msg.Chat.ID, helpText)
	default:
		h.send(msg.Chat.ID, msgUnknownCommand)
	}
}

func (h *Handler) handleQuery(ctx context.Context, msg *tgbotapi.Message) {
	key := rateLimitKey(msg.From.ID)
	if !h.bot.rateLimiter.Allow(key) {
		h.bot.logger.Warn("rate limit exceeded",
			zap.Int64("user_id", msg.From.ID),
			zap.Time("reset_at", h.bot.rateLimiter.ResetTime(key)),
		)
		h.bot.RecordRateLimitHit()
		h.send(msg.Chat.ID, msgRateLimited)
		return
	}

	question, mode := ParseQueryCommand(msg.Text, h.bot.defaultMode)

	h.bot.SendTyping(msg.Chat.ID)

	resp, err := h.bot.answers.Process(ctx, &domain.AnswerRequest{
		Question: question,
		Mode:     mode,
	})
	if err != nil {
		h.bot.logger.Info("question rejected",
			zap.Error(err),
			zap.Int64("user_id", msg.From.ID),
		)
		h.send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	if resp.Status == domain.StatusError {
		h.bot.logger.Warn("answer failed",
			zap.String("answer", resp.Answer),
			zap.Int64("user_id", msg.From.ID),
		)
		h.send(msg.Chat.ID, msgAnswerFailed)
		return
	}

	for _, part := range SplitMessage(FormatAnswer(resp), MaxMessageLength) {
		h.send(msg.Chat.ID, part)
	}
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.bot.Send(chatID, text); err != nil {
		h.bot.logger.Error("failed to send message", zap.Error(err))
	}
}

func rateLimitKey(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return "Пустой запрос. Введите ваш вопрос."
	case errors.Is(err, domain.ErrQuestionTooLong):
		return "Запрос слишком длинный. Максимум 1000 символов."
	case errors.Is(err, domain.ErrInvalidMode):
		return "Неизвестный режим поиска. Используйте /quick или /deep."
	case errors.Is(err, domain.ErrCanceled):
		return "Запрос занял слишком много времени. Попробуйте ещё раз."
	default:
		return msgGenericError
	}
}
