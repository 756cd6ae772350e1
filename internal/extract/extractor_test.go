package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/extract"
	extractMock "github.com/kitbuilder587/search-assistant/internal/extract/mock"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
)

const pageURL = "https://example.com/a"

func newExtractor(p extract.Provider, cfg extract.Config) *extract.Extractor {
	return extract.NewExtractor(p, cfg, zap.NewNop(), nil)
}

func TestExtractor_Fetch(t *testing.T) {
	tests := []struct {
		name          string
		page          *extract.Page
		err           error
		wantSucceeded bool
		wantText      string
		wantPrefix    string
	}{
		{
			name:          "prefers filtered",
			page:          &extract.Page{Filtered: "clean text", Raw: "nav clean text footer"},
			wantSucceeded: true,
			wantText:      "clean text",
		},
		{
			name:          "falls back to raw",
			page:          &extract.Page{Filtered: "  \n", Raw: "raw text"},
			wantSucceeded: true,
			wantText:      "raw text",
		},
		{
			name:          "both empty",
			page:          &extract.Page{},
			wantSucceeded: false,
			wantPrefix:    "Crawl error for " + pageURL + ": ",
		},
		{
			name:          "provider error",
			err:           errors.New("connection reset"),
			wantSucceeded: false,
			wantText:      "Crawl error for " + pageURL + ": connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := extractMock.New()
			if tt.page != nil {
				p.WithPage(pageURL, tt.page)
			}
			if tt.err != nil {
				p.WithError(pageURL, tt.err)
			}

			got := newExtractor(p, extract.Config{}).Fetch(context.Background(), pageURL)

			if got.URL != pageURL {
				t.Errorf("URL = %q", got.URL)
			}
			if got.Succeeded != tt.wantSucceeded {
				t.Errorf("Succeeded = %v, want %v", got.Succeeded, tt.wantSucceeded)
			}
			if tt.wantText != "" && got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if tt.wantPrefix != "" && !strings.HasPrefix(got.Text, tt.wantPrefix) {
				t.Errorf("Text = %q, want prefix %q", got.Text, tt.wantPrefix)
			}
		})
	}
}

func TestExtractor_TruncatesToLimit(t *testing.T) {
	p := extractMock.New().WithText(pageURL, strings.Repeat("a", 5000))

	got := newExtractor(p, extract.Config{}).Fetch(context.Background(), pageURL)

	if !got.Succeeded {
		t.Fatalf("Succeeded = false: %s", got.Text)
	}
	if len(got.Text) != 2000 {
		t.Errorf("len(Text) = %d, want exactly 2000", len(got.Text))
	}
}

func TestExtractor_TruncatesByRunes(t *testing.T) {
	p := extractMock.New().WithText(pageURL, strings.Repeat("ж", 2500))

	got := newExtractor(p, extract.Config{}).Fetch(context.Background(), pageURL)

	if n := utf8.RuneCountInString(got.Text); n != 2000 {
		t.Errorf("rune count = %d, want 2000", n)
	}
	if !utf8.ValidString(got.Text) {
		t.Error("truncated text is not valid UTF-8")
	}
}

func TestExtractor_Timeout(t *testing.T) {
	p := extractMock.New().WithText(pageURL, "late").WithDelay(time.Second)

	start := time.Now()
	got := newExtractor(p, extract.Config{Timeout: 30 * time.Millisecond, RenderDelay: -1}).Fetch(context.Background(), pageURL)

	if got.Succeeded {
		t.Error("Succeeded = true, want false on timeout")
	}
	if !strings.Contains(got.Text, "Crawl error for "+pageURL) {
		t.Errorf("Text = %q", got.Text)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Fetch took %v, timeout not applied", time.Since(start))
	}
}

func TestExtractor_RenderDelayExtendsDeadline(t *testing.T) {
	// страница грузится быстрее Timeout, но вместе с RenderDelay дольше него
	p := extractMock.New().WithText(pageURL, "settled").WithDelay(250 * time.Millisecond)

	got := newExtractor(p, extract.Config{
		Timeout:     300 * time.Millisecond,
		RenderDelay: 100 * time.Millisecond,
	}).Fetch(context.Background(), pageURL)

	if !got.Succeeded {
		t.Fatalf("Succeeded = false: %s", got.Text)
	}
	if got.Text != "settled" {
		t.Errorf("Text = %q, want settled", got.Text)
	}
}

func TestExtractor_DeadlineIncludesRenderDelay(t *testing.T) {
	p := extractMock.New().WithText(pageURL, "late").WithDelay(time.Second)

	start := time.Now()
	got := newExtractor(p, extract.Config{
		Timeout:     30 * time.Millisecond,
		RenderDelay: 20 * time.Millisecond,
	}).Fetch(context.Background(), pageURL)

	if got.Succeeded {
		t.Error("Succeeded = true, want false after timeout plus render delay")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("Fetch took %v, want about 50ms", elapsed)
	}
}

func TestExtractor_MaxCharsNeverAboveBudget(t *testing.T) {
	p := extractMock.New().WithText(pageURL, strings.Repeat("b", 5000))

	got := newExtractor(p, extract.Config{MaxChars: 4000}).Fetch(context.Background(), pageURL)

	if n := utf8.RuneCountInString(got.Text); n != extract.DefaultMaxChars {
		t.Errorf("rune count = %d, want %d", n, extract.DefaultMaxChars)
	}
}

func TestExtractor_PanicIsContained(t *testing.T) {
	p := extractMock.New().WithPanic(pageURL)

	got := newExtractor(p, extract.Config{}).Fetch(context.Background(), pageURL)

	if got.Succeeded {
		t.Error("Succeeded = true after panic")
	}
	if !strings.HasPrefix(got.Text, "Crawl error for "+pageURL) {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestExtractor_PassesRequestSettings(t *testing.T) {
	p := extractMock.New().WithText(pageURL, "x")

	newExtractor(p, extract.Config{}).Fetch(context.Background(), pageURL)

	req := p.AllRequests[0]
	if req.Timeout != extract.DefaultTimeout || req.RenderDelay != extract.DefaultRenderDelay {
		t.Errorf("request = %+v, want 30s timeout and 2s render delay", req)
	}
	if !req.FilterBoilerplate {
		t.Error("FilterBoilerplate = false")
	}
}

func TestExtractor_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := extractMock.New().WithText(pageURL, "ok")

	e := extract.NewExtractor(p, extract.Config{Provider: "mock"}, zap.NewNop(), m)
	e.Fetch(context.Background(), pageURL)
	e.Fetch(context.Background(), "https://example.com/missing")

	if got := testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("mock", "success")); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("mock", "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"привет", 2, "пр"},
		{"", 3, ""},
	}

	for _, tt := range tests {
		if got := extract.Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
