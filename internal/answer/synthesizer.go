package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder587/search-assistant/internal/domain"
	"github.com/kitbuilder587/search-assistant/internal/llm"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
)

const (
	QuickTemperature = 0.8
	DeepTemperature  = 0.9
	MaxTokens        = 800

	NoContextAnswer = "I couldn't find any relevant information to answer your question. Please try rephrasing it or ask something else."
)

type Config struct {
	Timeout time.Duration
	// RequestsPerMinute ограничивает исходящие вызовы LLM. 0 - без лимита.
	RequestsPerMinute int
}

type Synthesizer struct {
	llm     llm.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewSynthesizer(client llm.Client, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	return &Synthesizer{
		llm:     client,
		limiter: limiter,
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: m,
	}
}

// Answer всегда возвращает текст: ошибка провайдера превращается в
// "Error in <mode> search: <err>", пустой контекст - в NoContextAnswer.
func (s *Synthesizer) Answer(ctx context.Context, question, contextText string, mode domain.Mode) string {
	if strings.TrimSpace(contextText) == "" {
		s.logger.Info("no context, skipping llm", zap.String("mode", mode.String()))
		return NoContextAnswer
	}

	req := BuildRequest(question, contextText, mode)

	start := time.Now()
	text, err := s.complete(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordLLMRequest(mode.String(), status, time.Since(start))
	}

	if err != nil {
		s.logger.Error("llm call failed",
			zap.String("mode", mode.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Sprintf("Error in %s search: %v", mode, err)
	}

	s.logger.Debug("llm answered",
		zap.String("mode", mode.String()),
		zap.Int("answer_len", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return text
}

func (s *Synthesizer) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return s.llm.Complete(ctx, req)
}

// BuildRequest собирает сообщения и параметры сэмплирования под режим.
func BuildRequest(question, contextText string, mode domain.Mode) llm.CompletionRequest {
	if mode == domain.ModeDeep {
		return llm.NewCompletionRequest(deepSystemPrompt, deepUserPrompt(contextText, question), DeepTemperature, MaxTokens)
	}
	return llm.NewCompletionRequest(quickSystemPrompt, quickUserPrompt(contextText, question), QuickTemperature, MaxTokens)
}
