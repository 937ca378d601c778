package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search runs a query against the search API and records it in history.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if r.searcher == nil {
		return fmt.Errorf("%w: search service not initialized", shared.ErrServiceUnavailable)
	}

	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	r.logger.Info("searching", "query", query)
	resp, err := r.searcher.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if !cmd.Bool("no-history") {
		r.recordSearch(ctx, query)
	}

	return formatter.WriteSearch(r.output, f, resp)
}

// Preview lists catalogue tracks with preview clips and optionally plays one of them.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if r.previews == nil {
		return fmt.Errorf("%w: previews are disabled (set search.deezer_url)", shared.ErrServiceUnavailable)
	}

	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	pick := int(cmd.Int("play"))
	if pick < 0 {
		return fmt.Errorf("%w: --play must be a result number", shared.ErrInvalidFlag)
	}

	r.logger.Info("searching previews", "query", query)
	tracks, err := r.previews.SearchPreviews(ctx, query)
	if err != nil {
		return fmt.Errorf("preview search failed: %w", err)
	}

	if !cmd.Bool("no-history") {
		r.recordSearch(ctx, query)
	}

	if pick == 0 {
		return formatter.WritePreviews(r.output, f, query, tracks)
	}
	if pick > len(tracks) {
		return fmt.Errorf("%w: result %d of %d", shared.ErrInvalidFlag, pick, len(tracks))
	}

	track := tracks[pick-1]
	if !track.HasPreview() {
		return fmt.Errorf("%w: no preview available for %s", shared.ErrItemNotFound, track.DisplayTitle())
	}
	return r.playTrack(ctx, track)
}

func (r *Runner) recordSearch(ctx context.Context, query string) {
	h := r.history()
	if h == nil {
		return
	}
	if err := h.Add(ctx, query); err != nil {
		r.logger.Warn("failed to record search", "query", query, "error", err)
	}
}

// History prints or clears recent searches.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	h := r.history()
	if h == nil {
		return fmt.Errorf("%w: search history requires the database", shared.ErrServiceUnavailable)
	}

	if cmd.Bool("clear") {
		if err := h.Clear(ctx); err != nil {
			return err
		}
		r.writePlain("✓ Search history cleared\n")
		return nil
	}

	entries, err := h.Recent(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		r.writePlain("No recent searches\n")
		return nil
	}
	for i, e := range entries {
		r.writePlain("%2d. %s  (%s)\n", i+1, e.Query, e.SearchedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
