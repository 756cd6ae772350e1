package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/search"
)

const defaultBaseURL = "https://google.serper.dev"

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client ходит в Serper один раз за вызов, повторы делает search.Searcher.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
}

type serperResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	body, err := json.Marshal(serperRequest{Q: req.Query, Num: req.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, search.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, search.ErrRateLimit
	case http.StatusBadRequest:
		return nil, search.ErrInvalidRequest
	default:
		c.logger.Debug("serper error response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncateBody(respBody)),
		)
		return nil, fmt.Errorf("%w: status %d", search.ErrSearchFailed, resp.StatusCode)
	}

	var serperResp serperResponse
	if err := json.Unmarshal(respBody, &serperResp); err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrBadResponse, err)
	}

	if len(serperResp.Organic) == 0 {
		return nil, search.ErrEmptyResults
	}

	return toSearchResponse(req.Query, &serperResp), nil
}

func toSearchResponse(query string, resp *serperResponse) *search.SearchResponse {
	results := make([]search.SearchResult, len(resp.Organic))
	for i, r := range resp.Organic {
		results[i] = search.SearchResult{
			Title:   r.Title,
			Snippet: r.Snippet,
			URL:     r.Link,
		}
	}

	return &search.SearchResponse{
		Query:   query,
		Results: results,
	}
}

func truncateBody(b []byte) []byte {
	if len(b) > 512 {
		return b[:512]
	}
	return b
}

var _ search.SearchClient = (*Client)(nil)
