package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/search-assistant/internal/domain"
	"github.com/kitbuilder587/search-assistant/internal/extract"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
	"github.com/kitbuilder587/search-assistant/internal/repository"
	"github.com/kitbuilder587/search-assistant/internal/search"
)

type Searcher interface {
	Search(ctx context.Context, query string) []search.SearchResult
}

type Extractor interface {
	Fetch(ctx context.Context, url string) extract.Content
}

type Synthesizer interface {
	Answer(ctx context.Context, question, contextText string, mode domain.Mode) string
}

type AnswerService interface {
	Process(ctx context.Context, req *domain.AnswerRequest) (*domain.AnswerResponse, error)
}

type AnswerConfig struct {
	RequestTimeout     time.Duration
	ExtractConcurrency int
	HistoryTimeout     time.Duration
	// Channel попадает в историю: http или telegram.
	Channel string
}

type AnswerServiceDeps struct {
	Searcher    Searcher
	Extractor   Extractor
	Synthesizer Synthesizer
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Config      AnswerConfig

	// опционально
	History repository.HistoryRepository
}

type answerService struct {
	searcher    Searcher
	extractor   Extractor
	synthesizer Synthesizer
	history     repository.HistoryRepository
	logger      *zap.Logger
	metrics     *metrics.Metrics
	config      AnswerConfig
}

func NewAnswerService(deps AnswerServiceDeps) AnswerService {
	if deps.Config.RequestTimeout == 0 {
		deps.Config.RequestTimeout = 120 * time.Second
	}
	if deps.Config.ExtractConcurrency <= 0 {
		deps.Config.ExtractConcurrency = search.DefaultMaxResults
	}
	if deps.Config.HistoryTimeout == 0 {
		deps.Config.HistoryTimeout = 5 * time.Second
	}
	if deps.Config.Channel == "" {
		deps.Config.Channel = domain.ChannelHTTP
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &answerService{
		searcher:    deps.Searcher,
		extractor:   deps.Extractor,
		synthesizer: deps.Synthesizer,
		history:     deps.History,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		config:      deps.Config,
	}
}

// Process возвращает ошибку только при невалидном запросе. Всё, что
// случилось после валидации, превращается в конверт со status=error.
func (s *answerService) Process(ctx context.Context, req *domain.AnswerRequest) (resp *domain.AnswerResponse, err error) {
	startTime := time.Now()

	if s.metrics != nil {
		s.metrics.IncRequestsInFlight()
		defer s.metrics.DecRequestsInFlight()
	}

	if req.Mode == "" {
		req.Mode = domain.ModeQuick
	}
	if err := req.Validate(); err != nil {
		if s.metrics != nil {
			mode := req.Mode.String()
			if !req.Mode.IsValid() {
				mode = "unknown"
			}
			s.metrics.RecordRequest(mode, "validation_error", time.Since(startTime))
		}
		return nil, err
	}
	req.Sanitize()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while answering",
				zap.Any("panic", r),
				zap.String("mode", req.Mode.String()),
				zap.Stack("stack"),
			)
			resp = domain.ErrorResponse(req.Mode, domain.ErrInternal)
			err = nil
		}
		s.finish(req, resp, startTime)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	s.logger.Info("processing question",
		zap.String("mode", req.Mode.String()),
		zap.Int("question_len", len(req.Question)),
	)

	var answerText string
	var results []search.SearchResult

	switch req.Mode {
	case domain.ModeDeep:
		answerText, results = s.deep(ctx, req.Question)
	default:
		answerText, results = s.quick(ctx, req.Question)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Warn("request aborted", zap.String("mode", req.Mode.String()), zap.Error(ctxErr))
		return domain.ErrorResponse(req.Mode, canceledError(ctxErr)), nil
	}

	return &domain.AnswerResponse{
		Answer:  answerText,
		Sources: toSourceRefs(results),
		Mode:    req.Mode,
		Status:  domain.StatusSuccess,
	}, nil
}

func (s *answerService) quick(ctx context.Context, question string) (string, []search.SearchResult) {
	results := s.searcher.Search(ctx, question)
	return s.synthesizer.Answer(ctx, question, BuildQuickContext(results), domain.ModeQuick), results
}

func (s *answerService) deep(ctx context.Context, question string) (string, []search.SearchResult) {
	results := s.searcher.Search(ctx, question)
	contents := s.extractAll(ctx, results)
	return s.synthesizer.Answer(ctx, question, BuildDeepContext(results, contents), domain.ModeDeep), results
}

// extractAll тянет страницы параллельно; contents[i] соответствует results[i].
func (s *answerService) extractAll(ctx context.Context, results []search.SearchResult) []extract.Content {
	contents := make([]extract.Content, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ExtractConcurrency)

	for i, r := range results {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("extractor panicked", zap.String("url", r.URL), zap.Any("panic", p))
					contents[i] = extract.Content{URL: r.URL}
				}
			}()
			contents[i] = s.extractor.Fetch(gctx, r.URL)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, c := range contents {
		if !c.Succeeded {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Info("some pages were not extracted, using snippets",
			zap.Int("failed", failed),
			zap.Int("total", len(contents)),
		)
	}

	return contents
}

func (s *answerService) finish(req *domain.AnswerRequest, resp *domain.AnswerResponse, startTime time.Time) {
	if resp == nil {
		return
	}
	duration := time.Since(startTime)

	if s.metrics != nil {
		s.metrics.RecordRequest(req.Mode.String(), string(resp.Status), duration)
	}

	s.logger.Info("question answered",
		zap.String("mode", req.Mode.String()),
		zap.String("status", string(resp.Status)),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("duration", duration),
	)

	if s.history == nil {
		return
	}

	entry := domain.NewHistoryEntry(req, resp, s.config.Channel, duration)
	go s.record(entry)
}

func (s *answerService) record(entry *domain.HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.HistoryTimeout)
	defer cancel()

	status := "success"
	if err := s.history.Record(ctx, entry); err != nil {
		status = "error"
		s.logger.Warn("failed to record history", zap.String("id", entry.ID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordHistoryWrite(status)
	}
}

// BuildQuickContext: одна строка "<title>: <snippet> (<url>)" на результат.
func BuildQuickContext(results []search.SearchResult) string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("%s: %s (%s)", r.Title, r.Snippet, r.URL)
	}
	return strings.Join(lines, "\n")
}

// BuildDeepContext: секция на результат, при неудачном извлечении - сниппет.
func BuildDeepContext(results []search.SearchResult, contents []extract.Content) string {
	sections := make([]string, len(results))
	for i, r := range results {
		body := r.Snippet
		if i < len(contents) && contents[i].Succeeded {
			body = contents[i].Text
		}
		sections[i] = fmt.Sprintf("## %s\nSource: %s\n\n%s\n\n", r.Title, r.URL, body)
	}
	return strings.Join(sections, "\n")
}

func toSourceRefs(results []search.SearchResult) []domain.SourceRef {
	refs := make([]domain.SourceRef, len(results))
	for i, r := range results {
		refs[i] = domain.SourceRef{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.URL,
		}
	}
	return refs
}

func canceledError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", domain.ErrCanceled)
	}
	return domain.ErrCanceled
}
