package crawl4ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/extract"
)

type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client - провайдер поверх удалённого crawl4ai сервера (headless браузер).
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
	logger   *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11235"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type typedParams struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type crawlRequest struct {
	URLs          []string    `json:"urls"`
	BrowserConfig typedParams `json:"browser_config"`
	CrawlerConfig typedParams `json:"crawler_config"`
}

type crawlResponse struct {
	Success bool          `json:"success"`
	Results []crawlResult `json:"results"`
}

type crawlResult struct {
	URL          string        `json:"url"`
	Success      bool          `json:"success"`
	StatusCode   int           `json:"status_code"`
	ErrorMessage string        `json:"error_message"`
	Markdown     crawlMarkdown `json:"markdown"`
}

type crawlMarkdown struct {
	RawMarkdown string `json:"raw_markdown"`
	FitMarkdown string `json:"fit_markdown"`
}

func (c *Client) Extract(ctx context.Context, req extract.Request) (*extract.Page, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crawl", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrProviderDown, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("crawl4ai error response",
			zap.Int("status", resp.StatusCode),
			zap.String("url", req.URL),
		)
		return nil, fmt.Errorf("%w: crawl4ai status %d", extract.ErrProviderDown, resp.StatusCode)
	}

	var crawlResp crawlResponse
	if err := json.Unmarshal(respBody, &crawlResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", extract.ErrProviderDown, err)
	}

	if len(crawlResp.Results) == 0 {
		return nil, fmt.Errorf("%w: no results", extract.ErrFetchFailed)
	}

	r := crawlResp.Results[0]
	if !r.Success {
		return nil, fmt.Errorf("%w: %s", extract.ErrFetchFailed, r.ErrorMessage)
	}

	return &extract.Page{
		Filtered: r.Markdown.FitMarkdown,
		Raw:      r.Markdown.RawMarkdown,
	}, nil
}

func buildRequest(req extract.Request) crawlRequest {
	params := map[string]any{
		"cache_mode":               "bypass",
		"page_timeout":             req.Timeout.Milliseconds(),
		"delay_before_return_html": req.RenderDelay.Seconds(),
	}
	if req.FilterBoilerplate {
		params["markdown_generator"] = typedParams{
			Type: "DefaultMarkdownGenerator",
			Params: map[string]any{
				"content_filter": typedParams{
					Type:   "PruningContentFilter",
					Params: map[string]any{},
				},
			},
		}
	}

	return crawlRequest{
		URLs: []string{req.URL},
		BrowserConfig: typedParams{
			Type:   "BrowserConfig",
			Params: map[string]any{"headless": true},
		},
		CrawlerConfig: typedParams{
			Type:   "CrawlerRunConfig",
			Params: params,
		},
	}
}

var _ extract.Provider = (*Client)(nil)
