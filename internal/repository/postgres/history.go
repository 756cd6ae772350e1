package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS request_history (
    id          UUID PRIMARY KEY,
    question    TEXT NOT NULL,
    mode        TEXT NOT NULL,
    status      TEXT NOT NULL,
    answer      TEXT NOT NULL,
    sources     JSONB NOT NULL DEFAULT '[]'::jsonb,
    channel     TEXT NOT NULL DEFAULT 'http',
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS request_history_created_at_idx ON request_history (created_at DESC);
`

type HistoryRepo struct {
	db *DB
}

func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (r *HistoryRepo) Record(ctx context.Context, e *domain.HistoryEntry) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	query := `
        INSERT INTO request_history (id, question, mode, status, answer, sources, channel, duration_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err = r.db.Pool.Exec(ctx, query,
		e.ID,
		e.Question,
		e.Mode.String(),
		string(e.Status),
		e.Answer,
		sources,
		e.Channel,
		e.DurationMs,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	return nil
}

func (r *HistoryRepo) ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	query := `
        SELECT id::text, question, mode, status, answer, sources, channel, duration_ms, created_at
        FROM request_history
        ORDER BY created_at DESC
        LIMIT $1
    `

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e       domain.HistoryEntry
			mode    string
			status  string
			sources []byte
		)
		if err := rows.Scan(&e.ID, &e.Question, &mode, &status, &e.Answer, &sources, &e.Channel, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Mode = domain.Mode(mode)
		e.Status = domain.Status(status)
		if err := json.Unmarshal(sources, &e.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}
