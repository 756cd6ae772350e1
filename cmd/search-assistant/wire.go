package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/transport"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/answer"
	"github.com/kitbuilder587/search-assistant/internal/cache"
	memoryCache "github.com/kitbuilder587/search-assistant/internal/cache/memory"
	redisCache "github.com/kitbuilder587/search-assistant/internal/cache/redis"
	"github.com/kitbuilder587/search-assistant/internal/config"
	"github.com/kitbuilder587/search-assistant/internal/domain"
	"github.com/kitbuilder587/search-assistant/internal/extract"
	"github.com/kitbuilder587/search-assistant/internal/extract/crawl4ai"
	"github.com/kitbuilder587/search-assistant/internal/extract/readability"
	"github.com/kitbuilder587/search-assistant/internal/llm"
	"github.com/kitbuilder587/search-assistant/internal/llm/gigachat"
	llmMock "github.com/kitbuilder587/search-assistant/internal/llm/mock"
	"github.com/kitbuilder587/search-assistant/internal/llm/openai"
	"github.com/kitbuilder587/search-assistant/internal/llm/openrouter"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
	"github.com/kitbuilder587/search-assistant/internal/ratelimit"
	"github.com/kitbuilder587/search-assistant/internal/repository"
	"github.com/kitbuilder587/search-assistant/internal/repository/postgres"
	"github.com/kitbuilder587/search-assistant/internal/retry"
	"github.com/kitbuilder587/search-assistant/internal/search"
	searchMock "github.com/kitbuilder587/search-assistant/internal/search/mock"
	"github.com/kitbuilder587/search-assistant/internal/search/serper"
	"github.com/kitbuilder587/search-assistant/internal/search/tavily"
	"github.com/kitbuilder587/search-assistant/internal/server"
	"github.com/kitbuilder587/search-assistant/internal/service"
	"github.com/kitbuilder587/search-assistant/internal/telegram"
)

// initApp собирает зависимости руками; cleanup закрывает пулы и кеши
// в обратном порядке.
func initApp(cfg *config.Config, logger *zap.Logger) (*kratos.App, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}
	}

	m := metrics.New(nil)
	ctx := context.Background()

	c, closer, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	searcher := search.NewSearcher(newSearchClient(cfg.Search, logger), search.SearcherConfig{
		Provider:   cfg.Search.Provider,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    cfg.Search.AttemptTimeout,
		Retry: retry.Policy{
			MaxAttempts:     cfg.Search.MaxAttempts,
			InitialInterval: cfg.Search.RetryInitial,
			MaxInterval:     cfg.Search.RetryMax,
			Multiplier:      2,
		},
		CacheTTL: cfg.Cache.TTL,
	}, c, logger.Named("search"), m)

	extractor := extract.NewExtractor(newExtractProvider(cfg.Extract, logger), extract.Config{
		Provider:    cfg.Extract.Provider,
		Timeout:     cfg.Extract.Timeout,
		RenderDelay: cfg.Extract.RenderDelay,
		MaxChars:    cfg.Extract.MaxChars,
	}, logger.Named("extract"), m)

	llmClient, err := newLLMClient(cfg.LLM, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	synthesizer := answer.NewSynthesizer(llmClient, answer.Config{
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger.Named("answer"), m)

	var history repository.HistoryRepository
	if cfg.Database.URL != "" {
		db, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, closerFunc(func() error { db.Close(); return nil }))

		repo := postgres.NewHistoryRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ensure history schema: %w", err)
		}
		history = repo
	}

	answerDeps := func(channel string) service.AnswerServiceDeps {
		return service.AnswerServiceDeps{
			Searcher:    searcher,
			Extractor:   extractor,
			Synthesizer: synthesizer,
			Logger:      logger.Named("service"),
			Metrics:     m,
			History:     history,
			Config: service.AnswerConfig{
				RequestTimeout:     cfg.Request.Timeout,
				ExtractConcurrency: cfg.Extract.Concurrency,
				Channel:            channel,
			},
		}
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})
	closers = append(closers, closerFunc(func() error { limiter.Stop(); return nil }))

	klog := config.NewKratosLogger(logger.Named("kratos"))

	servers := []transport.Server{
		server.NewHTTPServer(server.Config{
			Addr:    cfg.HTTP.Addr,
			Timeout: cfg.HTTP.Timeout,
		}, server.Deps{
			Service:        service.NewAnswerService(answerDeps(domain.ChannelHTTP)),
			Limiter:        limiter,
			History:        history,
			Metrics:        m,
			MetricsHandler: metrics.Handler(),
			Logger:         logger.Named("http"),
			KratosLogger:   klog,
		}),
	}

	if cfg.Telegram.Token != "" {
		mode, _ := domain.ParseMode(cfg.Telegram.DefaultMode)
		bot, err := telegram.New(telegram.BotConfig{
			Token:             cfg.Telegram.Token,
			RequestsPerMinute: cfg.Telegram.RateLimitPerMinute,
			DefaultMode:       mode,
		}, service.NewAnswerService(answerDeps(domain.ChannelTelegram)), logger.Named("telegram"), m)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		servers = append(servers, bot)
	}

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(klog),
		kratos.Server(servers...),
	)

	return app, cleanup, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (cache.Cache, io.Closer, error) {
	switch cfg.Type {
	case "redis":
		c, err := redisCache.New(ctx, cfg.RedisURL, "search-assistant:", logger.Named("cache"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, c, nil
	case "none":
		return cache.Nop{}, nil, nil
	default:
		c := memoryCache.New()
		return c, c, nil
	}
}

func newSearchClient(cfg config.SearchConfig, logger *zap.Logger) search.SearchClient {
	switch cfg.Provider {
	case "tavily":
		return tavily.New(tavily.Config{
			APIKey:  cfg.TavilyAPIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.AttemptTimeout,
		}, logger.Named("tavily"))
	case "mock":
		return searchMock.New().WithResults([]search.SearchResult{
			{
				Title:   "Example Domain",
				Snippet: "This domain is for use in illustrative examples in documents.",
				URL:     "https://example.com",
			},
		})
	default:
		return serper.New(serper.Config{
			APIKey:  cfg.SerperAPIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.AttemptTimeout,
		}, logger.Named("serper"))
	}
}

func newExtractProvider(cfg config.ExtractConfig, logger *zap.Logger) extract.Provider {
	if cfg.Provider == "crawl4ai" {
		return crawl4ai.New(crawl4ai.Config{
			BaseURL:  cfg.Crawl4AIURL,
			APIToken: cfg.Crawl4AIToken,
			Timeout:  cfg.Timeout + cfg.RenderDelay,
		}, logger.Named("crawl4ai"))
	}
	return readability.New(readability.Config{
		InsecureTLS: cfg.InsecureTLS,
	}, logger.Named("readability"))
}

func newLLMClient(cfg config.LLMConfig, logger *zap.Logger) (llm.Client, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAI(openai.Config{
			Flavour: openai.FlavourOpenAI,
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.Timeout,
		}, logger.Named("openai"))
	case "openrouter":
		return openrouter.New(openrouter.Config{
			APIKey:  cfg.OpenRouter.APIKey,
			Model:   cfg.OpenRouter.Model,
			BaseURL: cfg.OpenRouter.BaseURL,
			Timeout: cfg.Timeout,
		}, logger.Named("openrouter")), nil
	case "gigachat":
		return gigachat.New(gigachat.Config{
			AuthKey:      cfg.GigaChat.AuthKey,
			ClientID:     cfg.GigaChat.ClientID,
			ClientSecret: cfg.GigaChat.ClientSecret,
			Scope:        cfg.GigaChat.Scope,
			AuthURL:      cfg.GigaChat.AuthURL,
			BaseURL:      cfg.GigaChat.BaseURL,
			Model:        cfg.GigaChat.Model,
			Timeout:      cfg.Timeout,
			InsecureTLS:  cfg.GigaChat.InsecureTLS,
		}, logger.Named("gigachat")), nil
	case "mock":
		return llmMock.New().WithResponse("This is a mock answer."), nil
	default:
		return newOpenAI(openai.Config{
			Flavour:    openai.FlavourAzure,
			APIKey:     cfg.Azure.APIKey,
			Endpoint:   cfg.Azure.Endpoint,
			APIVersion: cfg.Azure.APIVersion,
			Model:      cfg.Azure.Deployment,
			Timeout:    cfg.Timeout,
		}, logger.Named("azure"))
	}
}

// newOpenAI не даёт nil *openai.Client превратиться в не-nil интерфейс.
func newOpenAI(cfg openai.Config, logger *zap.Logger) (llm.Client, error) {
	c, err := openai.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Flavour, err)
	}
	return c, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
