package search

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized   = errors.New("invalid API key")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrSearchFailed   = errors.New("search request failed")
	ErrEmptyResults   = errors.New("no results found")
	ErrBadResponse    = errors.New("malformed search response")
)

// SearchClient - один запрос к провайдеру поиска, без повторов.
type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

type SearchRequest struct {
	Query      string
	MaxResults int
}

type SearchResponse struct {
	Query   string
	Results []SearchResult
}

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// IsRetryable: транспортные ошибки и любые не-2xx повторяем,
// битый ответ и пустую выдачу - нет.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrBadResponse), errors.Is(err, ErrEmptyResults):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
