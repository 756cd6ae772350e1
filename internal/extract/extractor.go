package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/metrics"
)

type Config struct {
	Provider    string
	Timeout     time.Duration
	RenderDelay time.Duration
	MaxChars    int
}

type Extractor struct {
	provider Provider
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewExtractor(p Provider, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// отрицательная задержка отключает ожидание рендера
	switch {
	case cfg.RenderDelay == 0:
		cfg.RenderDelay = DefaultRenderDelay
	case cfg.RenderDelay < 0:
		cfg.RenderDelay = 0
	}
	if cfg.MaxChars <= 0 || cfg.MaxChars > DefaultMaxChars {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Provider == "" {
		cfg.Provider = "unknown"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		provider: p,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Fetch никогда не возвращает ошибку и не паникует наружу.
func (e *Extractor) Fetch(ctx context.Context, url string) (content Content) {
	start := time.Now()
	content = Content{URL: url}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked", zap.String("url", url), zap.Any("panic", r), zap.Stack("stack"))
			content = failed(url, fmt.Errorf("panic: %v", r))
		}
		if e.metrics != nil {
			status := "success"
			if !content.Succeeded {
				status = "error"
			}
			e.metrics.RecordExtraction(e.cfg.Provider, status, time.Since(start))
		}
	}()

	// Timeout уходит на загрузку, RenderDelay ждём сверху
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout+e.cfg.RenderDelay)
	defer cancel()

	page, err := e.provider.Extract(ctx, Request{
		URL:               url,
		Timeout:           e.cfg.Timeout,
		RenderDelay:       e.cfg.RenderDelay,
		FilterBoilerplate: true,
	})
	if err != nil {
		e.logger.Warn("extraction failed", zap.String("url", url), zap.Error(err))
		return failed(url, err)
	}

	text := pick(page)
	if text == "" {
		e.logger.Info("extraction returned empty page", zap.String("url", url))
		return failed(url, ErrEmptyPage)
	}

	content.Text = Truncate(text, e.cfg.MaxChars)
	content.Succeeded = true

	e.logger.Debug("extraction done",
		zap.String("url", url),
		zap.Int("chars", utf8.RuneCountInString(content.Text)),
		zap.Duration("duration", time.Since(start)),
	)
	return content
}

func pick(p *Page) string {
	if p == nil {
		return ""
	}
	if s := strings.TrimSpace(p.Filtered); s != "" {
		return s
	}
	return strings.TrimSpace(p.Raw)
}

func failed(url string, err error) Content {
	return Content{
		URL:       url,
		Text:      fmt.Sprintf("Crawl error for %s: %v", url, err),
		Succeeded: false,
	}
}

// Truncate обрезает по символам, а не по байтам.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
