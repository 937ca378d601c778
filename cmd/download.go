package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Download saves library audio to disk and writes a manifest next to it.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}

	ctx, stop := interrupted(ctx)
	defer stop()

	items, err := r.source.ListSaved(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch library: %w", err)
	}

	if ids := cmd.StringSlice("id"); len(ids) > 0 {
		items = slices.DeleteFunc(items, func(item models.LibraryItem) bool {
			return !slices.Contains(ids, item.ID)
		})
		if len(items) == 0 {
			return fmt.Errorf("%w: none of %v", shared.ErrItemNotFound, ids)
		}
	}

	opts := tasks.BulkDownloadOpts{
		OutputDir:  r.config.Download.Dir,
		NumWorkers: r.config.Download.Workers,
		RateLimit:  r.config.Download.Rate,
		Overwrite:  cmd.Bool("overwrite"),
		Thumbnails: cmd.Bool("thumbnails"),
	}
	if cmd.IsSet("dir") {
		opts.OutputDir = cmd.String("dir")
	}
	if cmd.IsSet("workers") {
		opts.NumWorkers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("rate") {
		opts.RateLimit = cmd.Float("rate")
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range progress {
			if u.Total > 0 {
				r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
			} else {
				r.writePlain("%s\n", u.Message)
			}
		}
	}()

	result, err := r.engine.BulkDownload(ctx, progress, items, opts)
	close(progress)
	<-printed
	if result == nil {
		return err
	}

	r.writePlainHeader("Download complete")
	r.writePlain("Directory:  %s\n", result.OutputDirectory)
	r.writePlain("Downloaded: %d\n", result.Downloaded)
	r.writePlain("Skipped:    %d\n", result.Skipped)
	r.writePlain("Failed:     %d\n", result.Failed)
	r.writePlain("Manifest:   %s\n", result.ManifestPath)

	for _, res := range result.Results {
		if res.Error != nil {
			r.logger.Warn("download failed", "id", res.Item.ID, "error", res.Error)
		}
	}
	return err
}
