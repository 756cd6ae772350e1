package answer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/answer"
	"github.com/kitbuilder587/search-assistant/internal/domain"
	"github.com/kitbuilder587/search-assistant/internal/llm"
	llmMock "github.com/kitbuilder587/search-assistant/internal/llm/mock"
	"github.com/kitbuilder587/search-assistant/internal/metrics"
)

func TestSynthesizer_Answer_Quick(t *testing.T) {
	client := llmMock.New().WithResponse("Ownership means one owner.")
	s := answer.NewSynthesizer(client, answer.Config{}, zap.NewNop(), nil)

	got := s.Answer(context.Background(), "rust ownership", "A: snippet (https://a)", domain.ModeQuick)

	if got != "Ownership means one owner." {
		t.Errorf("Answer() = %q", got)
	}
	if client.LastRequest.Temperature != 0.8 {
		t.Errorf("temperature = %v, want 0.8", client.LastRequest.Temperature)
	}
	if client.LastRequest.MaxTokens != 800 {
		t.Errorf("max tokens = %d, want 800", client.LastRequest.MaxTokens)
	}
	if client.LastSystem() != "You are a helpful assistant that answers using real-time search context." {
		t.Errorf("system = %q", client.LastSystem())
	}
	wantPrompt := "Context:\nA: snippet (https://a)\n\nQuestion: rust ownership"
	if client.LastPrompt() != wantPrompt {
		t.Errorf("prompt = %q, want %q", client.LastPrompt(), wantPrompt)
	}
}

func TestSynthesizer_Answer_Deep(t *testing.T) {
	client := llmMock.New()
	s := answer.NewSynthesizer(client, answer.Config{}, zap.NewNop(), nil)

	s.Answer(context.Background(), "q", "## T\nSource: u\n\nbody\n\n", domain.ModeDeep)

	if client.LastRequest.Temperature != 0.9 {
		t.Errorf("temperature = %v, want 0.9", client.LastRequest.Temperature)
	}
	if !strings.Contains(client.LastSystem(), "Provide citations with URLs") {
		t.Errorf("system = %q", client.LastSystem())
	}
	if !strings.HasPrefix(client.LastPrompt(), "Based on the following web content, answer the question. Include relevant citations.\n\nContent:\n## T") {
		t.Errorf("prompt = %q", client.LastPrompt())
	}
	if !strings.HasSuffix(client.LastPrompt(), "\n\nQuestion: q") {
		t.Errorf("prompt = %q", client.LastPrompt())
	}
}

func TestSynthesizer_Answer_ProviderError(t *testing.T) {
	tests := []struct {
		mode domain.Mode
		want string
	}{
		{domain.ModeQuick, "Error in quick search: rate limit exceeded"},
		{domain.ModeDeep, "Error in deep search: rate limit exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			client := llmMock.New().WithError(llm.ErrRateLimit)
			s := answer.NewSynthesizer(client, answer.Config{}, zap.NewNop(), nil)

			got := s.Answer(context.Background(), "q", "ctx", tt.mode)
			if got != tt.want {
				t.Errorf("Answer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthesizer_Answer_NoContext(t *testing.T) {
	client := llmMock.New()
	s := answer.NewSynthesizer(client, answer.Config{}, zap.NewNop(), nil)

	for _, ctxText := range []string{"", "   \n"} {
		got := s.Answer(context.Background(), "q", ctxText, domain.ModeQuick)
		if got != answer.NoContextAnswer {
			t.Errorf("Answer(%q) = %q, want NoContextAnswer", ctxText, got)
		}
	}
	if client.Calls() != 0 {
		t.Errorf("llm calls = %d, want 0", client.Calls())
	}
}

func TestSynthesizer_Answer_Timeout(t *testing.T) {
	client := llmMock.New().WithDelay(time.Second)
	s := answer.NewSynthesizer(client, answer.Config{Timeout: 20 * time.Millisecond}, zap.NewNop(), nil)

	got := s.Answer(context.Background(), "q", "ctx", domain.ModeQuick)

	if !strings.HasPrefix(got, "Error in quick search: ") {
		t.Errorf("Answer() = %q", got)
	}
	if !strings.Contains(got, context.DeadlineExceeded.Error()) {
		t.Errorf("Answer() = %q, want deadline error", got)
	}
}

func TestSynthesizer_RateLimited(t *testing.T) {
	client := llmMock.New()
	s := answer.NewSynthesizer(client, answer.Config{RequestsPerMinute: 1}, zap.NewNop(), nil)

	first := s.Answer(context.Background(), "q", "ctx", domain.ModeQuick)
	if strings.HasPrefix(first, "Error") {
		t.Fatalf("first Answer() = %q", first)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	second := s.Answer(ctx, "q", "ctx", domain.ModeQuick)
	if !strings.HasPrefix(second, "Error in quick search: rate limiter") {
		t.Errorf("second Answer() = %q", second)
	}
	if client.Calls() != 1 {
		t.Errorf("llm calls = %d, want 1", client.Calls())
	}
}

func TestSynthesizer_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	answer.NewSynthesizer(llmMock.New(), answer.Config{}, zap.NewNop(), m).
		Answer(context.Background(), "q", "ctx", domain.ModeDeep)
	answer.NewSynthesizer(llmMock.New().WithError(errors.New("x")), answer.Config{}, zap.NewNop(), m).
		Answer(context.Background(), "q", "ctx", domain.ModeQuick)

	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("deep", "success")); got != 1 {
		t.Errorf("deep success = %v", got)
	}
	if got := testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("quick", "error")); got != 1 {
		t.Errorf("quick error = %v", got)
	}
}
