package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

var (
	ErrMissingSearchKey      = errors.New("search provider API key is required")
	ErrUnknownSearchProvider = errors.New("unknown search provider")
	ErrMissingLLMCredentials = errors.New("LLM provider credentials are required")
	ErrUnknownLLMProvider    = errors.New("unknown LLM provider")
	ErrUnknownExtractor      = errors.New("unknown extract provider")
	ErrMissingCrawl4AIURL    = errors.New("CRAWL4AI_URL is required")
	ErrUnknownCacheType      = errors.New("unknown cache type")
	ErrMissingRedisURL       = errors.New("REDIS_URL is required for redis cache")
	ErrInvalidDefaultMode    = errors.New("invalid TELEGRAM_DEFAULT_MODE")
	ErrInvalidMaxResults     = errors.New("SEARCH_MAX_RESULTS must be between 1 and 3")
	ErrInvalidMaxChars       = errors.New("EXTRACT_MAX_CHARS must be between 1 and 2000")
)

// Верхние границы выдачи поиска и текста страницы.
const (
	maxSearchResults = 3
	maxExtractChars  = 2000
)

type Config struct {
	HTTP      HTTPConfig
	Search    SearchConfig
	Extract   ExtractConfig
	LLM       LLMConfig
	Request   RequestConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
}

type HTTPConfig struct {
	Addr    string
	Timeout time.Duration
}

type SearchConfig struct {
	Provider       string
	SerperAPIKey   string
	TavilyAPIKey   string
	BaseURL        string
	MaxResults     int
	AttemptTimeout time.Duration
	MaxAttempts    int
	RetryInitial   time.Duration
	RetryMax       time.Duration
}

type ExtractConfig struct {
	Provider      string
	Crawl4AIURL   string
	Crawl4AIToken string
	Timeout       time.Duration
	RenderDelay   time.Duration
	MaxChars      int
	Concurrency   int
	InsecureTLS   bool
}

type LLMConfig struct {
	Provider          string
	Timeout           time.Duration
	RequestsPerMinute int
	Azure             AzureConfig
	OpenAI            OpenAIConfig
	OpenRouter        OpenRouterConfig
	GigaChat          GigaChatConfig
}

type AzureConfig struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GigaChatConfig struct {
	AuthKey      string
	ClientID     string
	ClientSecret string
	Scope        string
	AuthURL      string
	BaseURL      string
	Model        string
	InsecureTLS  bool
}

type RequestConfig struct {
	Timeout time.Duration
}

type LogConfig struct {
	Level string
}

type CacheConfig struct {
	Type     string
	TTL      time.Duration
	RedisURL string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL string
}

type TelegramConfig struct {
	Token              string
	DefaultMode        string
	RateLimitPerMinute int
}

// Load читает переменные окружения. Если задан CONFIG_FILE, значения из
// YAML используются как умолчания под окружением.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		defaults, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		fileDefaults = defaults
		defer func() { fileDefaults = nil }()
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:    getEnvOrDefault("HTTP_ADDR", ":5000"),
			Timeout: seconds("HTTP_TIMEOUT_SEC", 150),
		},
		Search: SearchConfig{
			Provider:       strings.ToLower(getEnvOrDefault("SEARCH_PROVIDER", "serper")),
			SerperAPIKey:   getEnvOrDefault("SERPER_API_KEY", ""),
			TavilyAPIKey:   getEnvOrDefault("TAVILY_API_KEY", ""),
			BaseURL:        getEnvOrDefault("SEARCH_BASE_URL", ""),
			MaxResults:     getEnvIntOrDefault("SEARCH_MAX_RESULTS", 3),
			AttemptTimeout: seconds("SEARCH_TIMEOUT_SEC", 15),
			MaxAttempts:    getEnvIntOrDefault("SEARCH_MAX_ATTEMPTS", 3),
			RetryInitial:   millis("SEARCH_RETRY_INITIAL_MS", 200),
			RetryMax:       millis("SEARCH_RETRY_MAX_MS", 2000),
		},
		Extract: ExtractConfig{
			Provider:      strings.ToLower(getEnvOrDefault("EXTRACT_PROVIDER", "readability")),
			Crawl4AIURL:   getEnvOrDefault("CRAWL4AI_URL", ""),
			Crawl4AIToken: getEnvOrDefault("CRAWL4AI_API_TOKEN", ""),
			Timeout:       seconds("EXTRACT_TIMEOUT_SEC", 30),
			RenderDelay:   millis("EXTRACT_RENDER_DELAY_MS", 2000),
			MaxChars:      getEnvIntOrDefault("EXTRACT_MAX_CHARS", 2000),
			Concurrency:   getEnvIntOrDefault("EXTRACT_CONCURRENCY", 3),
			InsecureTLS:   getEnvBoolOrDefault("EXTRACT_INSECURE_TLS", false),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "azure")),
			Timeout:           seconds("LLM_TIMEOUT_SEC", 60),
			RequestsPerMinute: getEnvIntOrDefault("LLM_RPM", 0),
			Azure: AzureConfig{
				APIKey:     getEnvOrDefault("AZURE_OPENAI_KEY", ""),
				Endpoint:   getEnvOrDefault("AZURE_OPENAI_ENDPOINT", ""),
				Deployment: getEnvOrDefault("AZURE_OPENAI_DEPLOYMENT", ""),
				APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-06-01"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
				BaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
				Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey:  getEnvOrDefault("OPENROUTER_API_KEY", ""),
				Model:   getEnvOrDefault("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
				BaseURL: getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			},
			GigaChat: GigaChatConfig{
				AuthKey:      getEnvOrDefault("GIGACHAT_AUTH_KEY", ""),
				ClientID:     getEnvOrDefault("GIGACHAT_CLIENT_ID", ""),
				ClientSecret: getEnvOrDefault("GIGACHAT_CLIENT_SECRET", ""),
				Scope:        getEnvOrDefault("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				AuthURL:      getEnvOrDefault("GIGACHAT_AUTH_URL", "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"),
				BaseURL:      getEnvOrDefault("GIGACHAT_BASE_URL", "https://gigachat.devices.sberbank.ru/api/v1"),
				Model:        getEnvOrDefault("GIGACHAT_MODEL", "GigaChat"),
				InsecureTLS:  getEnvBoolOrDefault("GIGACHAT_INSECURE_TLS", false),
			},
		},
		Request: RequestConfig{
			Timeout: seconds("REQUEST_TIMEOUT_SEC", 120),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		Cache: CacheConfig{
			Type:     strings.ToLower(getEnvOrDefault("CACHE_TYPE", "memory")),
			TTL:      seconds("CACHE_TTL_SEC", 3600),
			RedisURL: getEnvOrDefault("REDIS_URL", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Telegram: TelegramConfig{
			Token:              getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
			DefaultMode:        getEnvOrDefault("TELEGRAM_DEFAULT_MODE", "quick"),
			RateLimitPerMinute: getEnvIntOrDefault("TELEGRAM_RATE_LIMIT_PER_MINUTE", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Search.Provider {
	case "serper":
		if c.Search.SerperAPIKey == "" {
			return fmt.Errorf("%w: SERPER_API_KEY", ErrMissingSearchKey)
		}
	case "tavily":
		if c.Search.TavilyAPIKey == "" {
			return fmt.Errorf("%w: TAVILY_API_KEY", ErrMissingSearchKey)
		}
	case "mock":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSearchProvider, c.Search.Provider)
	}

	if c.Search.MaxResults < 1 || c.Search.MaxResults > maxSearchResults {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxResults, c.Search.MaxResults)
	}

	if err := c.LLM.validate(); err != nil {
		return err
	}

	switch c.Extract.Provider {
	case "readability":
	case "crawl4ai":
		if c.Extract.Crawl4AIURL == "" {
			return ErrMissingCrawl4AIURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExtractor, c.Extract.Provider)
	}
	if c.Extract.MaxChars < 1 || c.Extract.MaxChars > maxExtractChars {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxChars, c.Extract.MaxChars)
	}

	switch c.Cache.Type {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return ErrMissingRedisURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCacheType, c.Cache.Type)
	}

	if c.Telegram.Token != "" {
		if _, err := domain.ParseMode(c.Telegram.DefaultMode); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDefaultMode, c.Telegram.DefaultMode)
		}
	}

	return nil
}

func (c *LLMConfig) validate() error {
	switch c.Provider {
	case "azure":
		if c.Azure.APIKey == "" || c.Azure.Endpoint == "" || c.Azure.Deployment == "" {
			return fmt.Errorf("%w: AZURE_OPENAI_KEY, AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT", ErrMissingLLMCredentials)
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingLLMCredentials)
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("%w: OPENROUTER_API_KEY", ErrMissingLLMCredentials)
		}
	case "gigachat":
		if c.GigaChat.AuthKey == "" && (c.GigaChat.ClientID == "" || c.GigaChat.ClientSecret == "") {
			return fmt.Errorf("%w: GIGACHAT_AUTH_KEY or GIGACHAT_CLIENT_ID/GIGACHAT_CLIENT_SECRET", ErrMissingLLMCredentials)
		}
	case "mock":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLLMProvider, c.Provider)
	}
	return nil
}

// fileDefaults заполняется из CONFIG_FILE на время Load.
var fileDefaults map[string]string

// loadFile читает плоский YAML: ключи - имена переменных окружения
// в любом регистре, значения - скаляры.
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := fileDefaults[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := getEnvOrDefault(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := getEnvOrDefault(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func seconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvIntOrDefault(key, defaultValue)) * time.Second
}

func millis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvIntOrDefault(key, defaultValue)) * time.Millisecond
}
