package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kitbuilder587/search-assistant/internal/domain"
)

func TestMockHistoryRepository_ListRecent(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		limit     int
		wantCount int
		wantFirst string
	}{
		{"empty", 0, 10, 0, ""},
		{"fewer than limit", 3, 10, 3, "q3"},
		{"more than limit", 5, 2, 2, "q5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockHistoryRepository()
			ctx := context.Background()

			for i := 1; i <= tt.records; i++ {
				if err := repo.Record(ctx, &domain.HistoryEntry{Question: fmt.Sprintf("q%d", i)}); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}

			got, err := repo.ListRecent(ctx, tt.limit)
			if err != nil {
				t.Fatalf("ListRecent() error = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("ListRecent() len = %d, want %d", len(got), tt.wantCount)
			}
			if tt.wantFirst != "" && got[0].Question != tt.wantFirst {
				t.Errorf("first = %q, want newest %q", got[0].Question, tt.wantFirst)
			}
		})
	}
}

func TestMockHistoryRepository_Error(t *testing.T) {
	boom := errors.New("db down")
	repo := NewMockHistoryRepository().WithError(boom)

	if err := repo.Record(context.Background(), &domain.HistoryEntry{}); !errors.Is(err, boom) {
		t.Errorf("Record() error = %v", err)
	}
	<-repo.Recorded()

	if _, err := repo.ListRecent(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("ListRecent() error = %v", err)
	}
}
