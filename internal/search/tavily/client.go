package tavily

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

type Config struct {
	APIKey      string
	BaseURL     string
	SearchDepth string
	Timeout     time.Duration
}

type Client struct {
	apiKey      string
	baseURL     string
	searchDepth string
	client      *http.Client
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		searchDepth: cfg.SearchDepth,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results,omitempty"`
	SearchDepth       string `json:"search_depth,omitempty"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query        string         `json:"query"`
	Results      []tavilyResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search делает одну попытку. Повторы и их бюджет живут в search.Searcher.
func (c *Client) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:       req.Query,
		MaxResults:  req.MaxResults,
		SearchDepth: c.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		var tavilyResp tavilyResponse
		if err := json.Unmarshal(respBody, &tavilyResp); err != nil {
			return nil, fmt.Errorf("%w: %v", search.ErrBadResponse, err)
		}

		if len(tavilyResp.Results) == 0 {
			return nil, search.ErrEmptyResults
		}

		c.logger.Debug("tavily search done",
			zap.Int("results", len(tavilyResp.Results)),
			zap.Float64("response_time", tavilyResp.ResponseTime),
		)
		return toSearchResponse(req.Query, &tavilyResp), nil

	case http.StatusUnauthorized:
		return nil, search.ErrUnauthorized

	case http.StatusTooManyRequests:
		return nil, search.ErrRateLimit

	case http.StatusBadRequest:
		return nil, search.ErrInvalidRequest

	default:
		return nil, fmt.Errorf("%w: status %d", search.ErrSearchFailed, resp.StatusCode)
	}
}

func toSearchResponse(query string, resp *tavilyResponse) *search.SearchResponse {
	results := make([]search.SearchResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = search.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		}
	}

	return &search.SearchResponse{
		Query:   query,
		Results: results,
	}
}

var _ search.SearchClient = (*Client)(nil)
