package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/cache"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
	"github.com/kitbuilder587/search-assistant/internal/retry"
)

const DefaultMaxResults = 3

type SearcherConfig struct {
	Provider   string
	MaxResults int
	Timeout    time.Duration // на одну попытку
	Retry      retry.Policy
	CacheTTL   time.Duration
}

// Searcher оборачивает провайдера политикой повторов, кешем и обрезкой выдачи.
// Ошибок наружу не отдаёт: после исчерпания попыток возвращает пустой список.
type Searcher struct {
	client  SearchClient
	cache   cache.Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     SearcherConfig
}

func NewSearcher(client SearchClient, cfg SearcherConfig, c cache.Cache, logger *zap.Logger, m *metrics.Metrics) *Searcher {
	// больше трёх результатов не отдаём никогда
	if cfg.MaxResults <= 0 || cfg.MaxResults > DefaultMaxResults {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = IsRetryable
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Provider == "" {
		cfg.Provider = "unknown"
	}
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Searcher{
		client:  client,
		cache:   c,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
	}
}

func (s *Searcher) Search(ctx context.Context, query string) []SearchResult {
	key := cacheKey(query)
	if results, ok := s.fromCache(ctx, key); ok {
		return results
	}

	start := time.Now()
	policy := s.cfg.Retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.logger.Debug("retrying search",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	resp, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (*SearchResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		resp, err := s.client.Search(attemptCtx, SearchRequest{
			Query:      query,
			MaxResults: s.cfg.MaxResults,
		})
		if err != nil {
			s.logger.Warn("search attempt failed",
				zap.String("provider", s.cfg.Provider),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", policy.MaxAttempts),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordSearchAttempt(s.cfg.Provider, "error")
			}
			return nil, err
		}

		s.logger.Debug("search attempt succeeded",
			zap.String("provider", s.cfg.Provider),
			zap.Int("attempt", attempt),
			zap.Int("results", len(resp.Results)),
		)
		if s.metrics != nil {
			s.metrics.RecordSearchAttempt(s.cfg.Provider, "success")
		}
		return resp, nil
	})

	if s.metrics != nil {
		s.metrics.RecordSearch(s.cfg.Provider, time.Since(start))
	}

	if err != nil {
		if errors.Is(err, ErrEmptyResults) {
			s.logger.Info("search returned no results", zap.String("query", query))
		} else {
			s.logger.Error("search failed, continuing without results",
				zap.String("provider", s.cfg.Provider),
				zap.Error(err),
			)
		}
		return []SearchResult{}
	}

	results := Truncate(resp.Results, s.cfg.MaxResults)
	if len(results) > 0 {
		s.toCache(ctx, key, results)
	}
	return results
}

// Truncate оставляет первые n результатов в порядке провайдера.
func Truncate(results []SearchResult, n int) []SearchResult {
	if len(results) > n {
		results = results[:n]
	}
	out := make([]SearchResult, len(results))
	copy(out, results)
	return out
}

func (s *Searcher) fromCache(ctx context.Context, key string) ([]SearchResult, bool) {
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
		return nil, false
	}

	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil || len(results) == 0 {
		return nil, false
	}

	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
	return Truncate(results, s.cfg.MaxResults), true
}

func (s *Searcher) toCache(ctx context.Context, key string, results []SearchResult) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, data, s.cfg.CacheTTL)
}

func cacheKey(query string) string {
	hash := sha256.Sum256([]byte(normalizeQuery(query)))
	return fmt.Sprintf("search:%x", hash[:8])
}

func normalizeQuery(q string) string {
	q = strings.ToLower(q)
	q = strings.TrimSpace(q)
	return strings.Join(strings.Fields(q), " ")
}
