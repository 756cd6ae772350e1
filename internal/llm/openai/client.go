package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/llm"
)

const (
	FlavourAzure  = "azure"
	FlavourOpenAI = "openai"

	defaultAzureAPIVersion = "2024-06-01"
)

type Config struct {
	Flavour string
	APIKey  string
	// Endpoint и APIVersion используются для Azure, BaseURL - для OpenAI-совместимых API.
	Endpoint   string
	APIVersion string
	BaseURL    string
	// Model - имя модели или, для Azure, имя деплоймента.
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	api     sdk.Client
	model   string
	flavour string
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Flavour == "" {
		cfg.Flavour = FlavourAzure
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model or deployment is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	switch cfg.Flavour {
	case FlavourAzure:
		if cfg.Endpoint == "" {
			return nil, errors.New("openai: azure endpoint is required")
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = defaultAzureAPIVersion
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	case FlavourOpenAI:
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	default:
		return nil, fmt.Errorf("openai: unknown flavour %q", cfg.Flavour)
	}

	return &Client{
		api:     sdk.NewClient(opts...),
		model:   cfg.Model,
		flavour: cfg.Flavour,
		logger:  logger.With(zap.String("provider", cfg.Flavour)),
	}, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toMessages(req.Messages),
		Temperature: sdk.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		// старые версии Azure API не понимают max_completion_tokens
		if c.flavour == FlavourAzure {
			params.MaxTokens = sdk.Int(int64(req.MaxTokens))
		} else {
			params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.mapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}

	c.logger.Debug("chat completion done",
		zap.String("model", resp.Model),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", resp.Choices[0].FinishReason),
	)

	return resp.Choices[0].Message.Content, nil
}

func toMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

func (c *Client) mapError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", llm.ErrRequestFailed, err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.ErrAuthFailed
	case http.StatusTooManyRequests:
		return llm.ErrRateLimit
	default:
		c.logger.Error("chat completion failed",
			zap.Int("status", apiErr.StatusCode),
			zap.Error(err),
		)
		return fmt.Errorf("%w: status %d", llm.ErrRequestFailed, apiErr.StatusCode)
	}
}

var _ llm.Client = (*Client)(nil)
