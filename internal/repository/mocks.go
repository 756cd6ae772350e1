package repository

import (
	"context"
	"sync"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

type MockHistoryRepository struct {
	mu      sync.RWMutex
	entries []domain.HistoryEntry
	err     error
	// recorded сигналит о каждой записи, удобно ждать асинхронную запись в тестах
	recorded chan struct{}
}

func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{
		recorded: make(chan struct{}, 100),
	}
}

func (m *MockHistoryRepository) WithError(err error) *MockHistoryRepository {
	m.err = err
	return m
}

func (m *MockHistoryRepository) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	defer func() {
		select {
		case m.recorded <- struct{}{}:
		default:
		}
	}()

	if m.err != nil {
		return m.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockHistoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if m.err != nil {
		return nil, m.err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.HistoryEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Recorded - канал, в который пишется сигнал после каждого вызова Record.
func (m *MockHistoryRepository) Recorded() <-chan struct{} {
	return m.recorded
}

func (m *MockHistoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ HistoryRepository = (*MockHistoryRepository)(nil)
