package repository

import (
	"context"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

// HistoryRepository хранит журнал обработанных запросов.
type HistoryRepository interface {
	Record(ctx context.Context, entry *domain.HistoryEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}
