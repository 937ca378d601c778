package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/jmoiron/sqlx"
)

// DefaultRecentSearches is the number of entries returned by Recent when no limit is given.
const DefaultRecentSearches = 5

// SearchEntry is a previously submitted search.
type SearchEntry struct {
	ID         string    `db:"id"`
	Sequence   int64     `db:"sequence"`
	Query      string    `db:"query"`
	SearchedAt time.Time `db:"searched_at"`
}

type SearchHistoryRepository struct {
	db *sqlx.DB
}

func NewSearchHistoryRepository(db *sqlx.DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

// Add records query as the most recent search. Repeating a query moves it to the front.
func (r *SearchHistoryRepository) Add(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("%w: search query is empty", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "search_history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO search_history (id, sequence, query, searched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (query) DO UPDATE SET sequence = excluded.sequence, searched_at = excluded.searched_at
	`, shared.GenerateID(), sequence, query, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit search: %w", err)
	}
	return nil
}

// Recent returns up to limit queries, newest first. A non-positive limit uses [DefaultRecentSearches].
func (r *SearchHistoryRepository) Recent(ctx context.Context, limit int) ([]SearchEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentSearches
	}

	entries := []SearchEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, sequence, query, searched_at FROM search_history
		ORDER BY sequence DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	return entries, nil
}

// Queries is Recent without the metadata.
func (r *SearchHistoryRepository) Queries(ctx context.Context, limit int) ([]string, error) {
	entries, err := r.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	queries := make([]string, len(entries))
	for i, e := range entries {
		queries[i] = e.Query
	}
	return queries, nil
}

func (r *SearchHistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM search_history"); err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}
