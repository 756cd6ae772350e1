package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/search-assistant/internal/llm"
)

func TestClient_Complete(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		response   interface{}
		statusCode int
		wantErr    error
	}{
		{
			name: "successful completion",
			response: llm.ChatResponse{
				Choices: []llm.Choice{
					{Message: llm.Message{Role: "assistant", Content: "Test response"}},
				},
			},
			statusCode: http.StatusOK,
		},
		{
			name:       "unauthorized",
			response:   map[string]string{"error": "unauthorized"},
			statusCode: http.StatusUnauthorized,
			wantErr:    llm.ErrAuthFailed,
		},
		{
			name:       "rate limit",
			response:   map[string]string{"error": "rate limit"},
			statusCode: http.StatusTooManyRequests,
			wantErr:    llm.ErrRateLimit,
		},
		{
			name: "empty response",
			response: llm.ChatResponse{
				Choices: []llm.Choice{},
			},
			statusCode: http.StatusOK,
			wantErr:    llm.ErrEmptyResponse,
		},
		{
			name:       "error in body",
			response:   map[string]any{"error": map[string]any{"message": "model overloaded", "code": 502}},
			statusCode: http.StatusOK,
			wantErr:    llm.ErrRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "" {
					t.Error("missing authorization header")
				}

				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := New(Config{
				APIKey:  "test-key",
				BaseURL: server.URL,
				Timeout: 5 * time.Second,
			}, logger)

			result, err := client.Complete(context.Background(), llm.NewCompletionRequest("system", "prompt", 0.8, 800))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Complete() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Complete() unexpected error = %v", err)
			}

			if result != "Test response" {
				t.Errorf("Complete() = %q", result)
			}
		})
	}
}

func TestClient_Complete_SendsSamplingParams(t *testing.T) {
	var got llm.ChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(llm.ChatResponse{
			Choices: []llm.Choice{{Message: llm.Message{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL, Model: "test/model"}, zap.NewNop())
	if _, err := client.Complete(context.Background(), llm.NewCompletionRequest("s", "p", 0.9, 800)); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got.Model != "test/model" || got.Temperature != 0.9 || got.MaxTokens != 800 {
		t.Errorf("request = %+v", got)
	}
}
