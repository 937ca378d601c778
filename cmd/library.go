package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/library"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryList prints saved audio, most recent first.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var items []models.LibraryItem
	if cmd.Bool("cached") {
		cache := r.libraryCache()
		if cache == nil {
			return fmt.Errorf("%w: library cache requires the database", shared.ErrServiceUnavailable)
		}
		if items, err = cache.List(ctx); err != nil {
			return err
		}
	} else {
		if err := r.requireSource(); err != nil {
			return err
		}
		if items, err = r.source.ListSaved(ctx); err != nil {
			return fmt.Errorf("failed to fetch library: %w", err)
		}
	}

	collection := library.NewCollection(items)
	r.logger.Debug("library loaded", "items", collection.Len(), "version", collection.Version())
	return formatter.WriteLibrary(r.output, f, collection.Recent(int(cmd.Int("limit"))))
}

// LibraryShow prints one saved item, falling back to the local cache when the backend is unreachable.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: item id", shared.ErrMissingArgument)
	}
	if err := r.requireSource(); err != nil {
		return err
	}

	item, err := r.source.GetSaved(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrItemNotFound) {
		r.logger.Warn("backend lookup failed, trying cache", "id", id, "error", err)
		if cache := r.libraryCache(); cache != nil {
			if cached, cerr := cache.Get(ctx, id); cerr == nil {
				item, err = cached, nil
			}
		}
	}
	if err != nil {
		return err
	}
	return r.writeJSON(item, cmd.Bool("pretty"))
}

// LibraryRefresh fetches the library and replaces the local cache.
func (r *Runner) LibraryRefresh(ctx context.Context, cmd *cli.Command) error {
	rec, err := r.reconciler()
	if err != nil {
		return err
	}
	if err := rec.Refresh(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Library refreshed: %d items\n", rec.Store().Snapshot().Collection.Len())
	return nil
}

// LibraryWatch loads the library, then follows the update channel until interrupted.
func (r *Runner) LibraryWatch(ctx context.Context, cmd *cli.Command) error {
	rec, err := r.reconciler()
	if err != nil {
		return err
	}

	ctx, stop := interrupted(ctx)
	defer stop()

	interval := r.config.Realtime.ResyncInterval
	if cmd.IsSet("resync") {
		interval = cmd.Duration("resync")
	}
	if err := rec.StartResync(ctx, interval); err != nil {
		return err
	}
	defer rec.Stop()

	updates, cancel := rec.Store().Subscribe()
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	r.writePlain("Watching library (Ctrl-C to stop)\n")
	var last library.Snapshot
	for {
		select {
		case err := <-done:
			return err
		case snap, ok := <-updates:
			if !ok {
				return <-done
			}
			r.printLibraryChange(last, snap)
			last = snap
		}
	}
}

func (r *Runner) printLibraryChange(prev, next library.Snapshot) {
	if next.Channel != prev.Channel {
		r.writePlain("[%s] channel %s\n", next.LastUpdated.Local().Format("15:04:05"), next.Channel)
	}
	if next.LastError != nil && next.LastError != prev.LastError {
		r.writePlain("[%s] error: %v\n", next.LastUpdated.Local().Format("15:04:05"), next.LastError)
	}
	if !next.Loaded || next.Collection.Version() == prev.Collection.Version() {
		return
	}

	for _, item := range next.Collection.Items() {
		if !prev.Collection.Has(item.ID) {
			r.writePlain("+ %s  %s\n", item.ID, item.DisplayTitle())
		}
	}
	for _, item := range prev.Collection.Items() {
		if !next.Collection.Has(item.ID) {
			r.writePlain("- %s  %s\n", item.ID, item.DisplayTitle())
		}
	}
	r.writePlain("  %d items\n", next.Collection.Len())
}

// LibraryExport writes the whole library to a file.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 4)
	defer close(progress)
	go r.logProgress(progress)

	n, err := r.engine.ExportLibrary(ctx, progress, f, cmd.String("output"))
	if err != nil {
		return err
	}
	r.writePlain("✓ Exported %d items\n", n)
	return nil
}

func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) {
	for u := range progress {
		r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
	}
}
