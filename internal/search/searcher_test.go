package search_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/cache/memory"
	"github.com/kitbuilder587/search-assistant/internal/retry"
	"github.com/kitbuilder587/search-assistant/internal/search"
	searchMock "github.com/kitbuilder587/search-assistant/internal/search/mock"
)

func fastRetry() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func results(n int) []search.SearchResult {
	out := make([]search.SearchResult, n)
	for i := range out {
		out[i] = search.SearchResult{
			Title:   fmt.Sprintf("Title %d", i+1),
			Snippet: fmt.Sprintf("Snippet %d", i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
		}
	}
	return out
}

func newSearcher(client search.SearchClient) *search.Searcher {
	return search.NewSearcher(client, search.SearcherConfig{
		Provider: "mock",
		Timeout:  time.Second,
		Retry:    fastRetry(),
	}, nil, zap.NewNop(), nil)
}

func TestSearcher_CapsAtThreeInRankOrder(t *testing.T) {
	client := searchMock.New().WithResults(results(10))

	got := newSearcher(client).Search(context.Background(), "rust ownership")

	if len(got) != 3 {
		t.Fatalf("Search() returned %d results, want 3", len(got))
	}
	for i, r := range got {
		want := fmt.Sprintf("https://example.com/%d", i+1)
		if r.URL != want {
			t.Errorf("result[%d].URL = %s, want %s", i, r.URL, want)
		}
	}
	if client.LastRequest.MaxResults != 3 {
		t.Errorf("provider MaxResults = %d, want 3", client.LastRequest.MaxResults)
	}
}

func TestSearcher_MaxResultsAboveCapIsClamped(t *testing.T) {
	client := searchMock.New().WithResults(results(10))
	s := search.NewSearcher(client, search.SearcherConfig{
		Provider:   "mock",
		MaxResults: 7,
		Retry:      fastRetry(),
	}, nil, zap.NewNop(), nil)

	got := s.Search(context.Background(), "q")

	if len(got) != search.DefaultMaxResults {
		t.Errorf("Search() returned %d results, want %d", len(got), search.DefaultMaxResults)
	}
	if client.LastRequest.MaxResults != search.DefaultMaxResults {
		t.Errorf("provider MaxResults = %d, want %d", client.LastRequest.MaxResults, search.DefaultMaxResults)
	}
}

func TestSearcher_SmallerMaxResultsKept(t *testing.T) {
	client := searchMock.New().WithResults(results(10))
	s := search.NewSearcher(client, search.SearcherConfig{
		Provider:   "mock",
		MaxResults: 2,
		Retry:      fastRetry(),
	}, nil, zap.NewNop(), nil)

	if got := s.Search(context.Background(), "q"); len(got) != 2 {
		t.Errorf("Search() returned %d results, want 2", len(got))
	}
}

func TestSearcher_FewerThanCap(t *testing.T) {
	client := searchMock.New().WithResults(results(2))

	got := newSearcher(client).Search(context.Background(), "q")

	if len(got) != 2 {
		t.Errorf("Search() returned %d results, want 2", len(got))
	}
}

func TestSearcher_RetriesThenSucceeds(t *testing.T) {
	client := searchMock.New().
		WithResults(results(3)).
		WithErrors(fmt.Errorf("%w: status 502", search.ErrSearchFailed), errors.New("tls: handshake failure"))

	got := newSearcher(client).Search(context.Background(), "q")

	if len(got) != 3 {
		t.Errorf("Search() returned %d results, want 3", len(got))
	}
	if client.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", client.Calls())
	}
}

func TestSearcher_FailOpenAfterExhaustion(t *testing.T) {
	client := searchMock.New().WithError(search.ErrUnauthorized)

	got := newSearcher(client).Search(context.Background(), "q")

	if got == nil || len(got) != 0 {
		t.Errorf("Search() = %v, want empty non-nil slice", got)
	}
	if client.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3 (attempt cap)", client.Calls())
	}
}

func TestSearcher_EmptyResultsNotRetried(t *testing.T) {
	client := searchMock.New()

	got := newSearcher(client).Search(context.Background(), "q")

	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
	if client.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", client.Calls())
	}
}

func TestSearcher_BadResponseNotRetried(t *testing.T) {
	client := searchMock.New().WithError(fmt.Errorf("%w: unexpected EOF", search.ErrBadResponse))

	newSearcher(client).Search(context.Background(), "q")

	if client.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", client.Calls())
	}
}

func TestSearcher_CanceledContextStopsRetries(t *testing.T) {
	client := searchMock.New().WithResults(results(3)).WithDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	got := newSearcher(client).Search(ctx, "q")

	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty after cancel", got)
	}
	if client.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", client.Calls())
	}
}

func TestSearcher_PerAttemptTimeoutIsRetried(t *testing.T) {
	client := searchMock.New().WithResults(results(1)).WithDelay(50 * time.Millisecond)

	s := search.NewSearcher(client, search.SearcherConfig{
		Provider: "mock",
		Timeout:  10 * time.Millisecond,
		Retry:    fastRetry(),
	}, nil, zap.NewNop(), nil)

	got := s.Search(context.Background(), "q")

	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
	if client.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", client.Calls())
	}
}

func TestSearcher_Cache(t *testing.T) {
	client := searchMock.New().WithResults(results(3))
	c := memory.New()
	defer c.Stop()

	s := search.NewSearcher(client, search.SearcherConfig{
		Provider: "mock",
		Retry:    fastRetry(),
		CacheTTL: time.Minute,
	}, c, zap.NewNop(), nil)

	first := s.Search(context.Background(), "Rust  Ownership")
	second := s.Search(context.Background(), "rust ownership ")

	if client.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1 (second served from cache)", client.Calls())
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("cached results differ: %v vs %v", first, second)
	}
}

func TestSearcher_FailuresNotCached(t *testing.T) {
	client := searchMock.New().WithErrors(search.ErrSearchFailed, search.ErrSearchFailed, search.ErrSearchFailed).
		WithResults(results(1))
	c := memory.New()
	defer c.Stop()

	s := search.NewSearcher(client, search.SearcherConfig{Provider: "mock", Retry: fastRetry()}, c, zap.NewNop(), nil)

	if got := s.Search(context.Background(), "q"); len(got) != 0 {
		t.Fatalf("first Search() = %v, want empty", got)
	}
	if got := s.Search(context.Background(), "q"); len(got) != 1 {
		t.Errorf("second Search() = %v, want 1 result", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{search.ErrSearchFailed, true},
		{search.ErrUnauthorized, true},
		{search.ErrRateLimit, true},
		{context.DeadlineExceeded, true},
		{errors.New("connection refused"), true},
		{search.ErrBadResponse, false},
		{search.ErrEmptyResults, false},
		{context.Canceled, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := search.IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
