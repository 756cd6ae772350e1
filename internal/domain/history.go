package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelHTTP     = "http"
	ChannelTelegram = "telegram"
)

// HistoryEntry - запись об обработанном запросе.
type HistoryEntry struct {
	ID         string      `json:"id"`
	Question   string      `json:"question"`
	Mode       Mode        `json:"mode"`
	Status     Status      `json:"status"`
	Answer     string      `json:"answer"`
	Sources    []SourceRef `json:"sources"`
	Channel    string      `json:"channel"`
	DurationMs int64       `json:"duration_ms"`
	CreatedAt  time.Time   `json:"created_at"`
}

func NewHistoryEntry(req *AnswerRequest, resp *AnswerResponse, channel string, duration time.Duration) *HistoryEntry {
	sources := resp.Sources
	if sources == nil {
		sources = []SourceRef{}
	}
	return &HistoryEntry{
		ID:         uuid.NewString(),
		Question:   req.Question,
		Mode:       resp.Mode,
		Status:     resp.Status,
		Answer:     resp.Answer,
		Sources:    sources,
		Channel:    channel,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
}
