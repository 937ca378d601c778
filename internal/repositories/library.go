package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/jmoiron/sqlx"
)

type libraryRow struct {
	ID              string    `db:"id"`
	Title           string    `db:"title"`
	Artist          string    `db:"artist"`
	Thumbnail       string    `db:"thumbnail"`
	Duration        string    `db:"duration"`
	AudioURL        string    `db:"audio_url"`
	OriginalURL     string    `db:"original_url"`
	DurationSeconds int       `db:"duration_seconds"`
	AddedAt         time.Time `db:"added_at"`
	CachedAt        time.Time `db:"cached_at"`
}

func toRow(item models.LibraryItem, now time.Time) libraryRow {
	return libraryRow{
		ID:              item.ID,
		Title:           item.Title,
		Artist:          item.Artist,
		Thumbnail:       item.Thumbnail,
		Duration:        item.Duration,
		AudioURL:        item.AudioURL,
		OriginalURL:     item.OriginalURL,
		DurationSeconds: item.DurationSeconds,
		AddedAt:         item.AddedAt.UTC(),
		CachedAt:        now,
	}
}

func (r libraryRow) item() models.LibraryItem {
	return models.LibraryItem{
		ID:              r.ID,
		Title:           r.Title,
		Artist:          r.Artist,
		Thumbnail:       r.Thumbnail,
		Duration:        r.Duration,
		AudioURL:        r.AudioURL,
		OriginalURL:     r.OriginalURL,
		DurationSeconds: r.DurationSeconds,
		AddedAt:         r.AddedAt,
	}
}

const libraryColumns = `id, title, artist, thumbnail, duration, audio_url, original_url, duration_seconds, added_at, cached_at`

const upsertLibraryItem = `
	INSERT INTO library_items (` + libraryColumns + `)
	VALUES (:id, :title, :artist, :thumbnail, :duration, :audio_url, :original_url, :duration_seconds, :added_at, :cached_at)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		artist = excluded.artist,
		thumbnail = excluded.thumbnail,
		duration = excluded.duration,
		audio_url = excluded.audio_url,
		original_url = excluded.original_url,
		duration_seconds = excluded.duration_seconds,
		added_at = excluded.added_at,
		cached_at = excluded.cached_at
`

// LibraryRepository mirrors the backend library so it can be shown before the network answers.
type LibraryRepository struct {
	db *sqlx.DB
}

func NewLibraryRepository(db *sqlx.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// ReplaceAll swaps the cached library for items in a single transaction.
func (r *LibraryRepository) ReplaceAll(ctx context.Context, items []models.LibraryItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM library_items"); err != nil {
		return fmt.Errorf("failed to clear library cache: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, err := tx.NamedExecContext(ctx, upsertLibraryItem, toRow(item, now)); err != nil {
			return fmt.Errorf("failed to cache library item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit library cache: %w", err)
	}
	return nil
}

// Upsert inserts or refreshes a single item.
func (r *LibraryRepository) Upsert(ctx context.Context, item models.LibraryItem) error {
	if item.ID == "" {
		return fmt.Errorf("%w: library item id is required", shared.ErrInvalidArgument)
	}
	if _, err := r.db.NamedExecContext(ctx, upsertLibraryItem, toRow(item, time.Now().UTC())); err != nil {
		return fmt.Errorf("failed to cache library item %s: %w", item.ID, err)
	}
	return nil
}

// Delete removes an item. Missing ids are not an error.
func (r *LibraryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM library_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete library item %s: %w", id, err)
	}
	return nil
}

// List returns cached items newest first.
func (r *LibraryRepository) List(ctx context.Context) ([]models.LibraryItem, error) {
	var rows []libraryRow
	query := "SELECT " + libraryColumns + " FROM library_items ORDER BY added_at DESC, id ASC"
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query library cache: %w", err)
	}

	items := make([]models.LibraryItem, len(rows))
	for i, row := range rows {
		items[i] = row.item()
	}
	return items, nil
}

func (r *LibraryRepository) Get(ctx context.Context, id string) (*models.LibraryItem, error) {
	var row libraryRow
	query := "SELECT " + libraryColumns + " FROM library_items WHERE id = ?"
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
		}
		return nil, fmt.Errorf("failed to get library item: %w", err)
	}
	item := row.item()
	return &item, nil
}

// CachedAt reports when the cache was last written, or the zero time if it is empty.
func (r *LibraryRepository) CachedAt(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := r.db.GetContext(ctx, &at, "SELECT cached_at FROM library_items ORDER BY cached_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read cache age: %w", err)
	}
	return at, nil
}
