package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/playback"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// Convert asks the backend to convert a video URL and prints the resulting audio reference.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	videoURL := strings.TrimSpace(cmd.StringArg("url"))
	if videoURL == "" {
		return fmt.Errorf("%w: video url", shared.ErrMissingArgument)
	}
	if !isURL(videoURL) {
		return fmt.Errorf("%w: %q is not a URL", shared.ErrInvalidArgument, videoURL)
	}

	o, err := r.orchestrator()
	if err != nil {
		return err
	}
	defer o.Close(context.WithoutCancel(ctx))

	ctx, stop := interrupted(ctx)
	defer stop()

	meta := models.TrackMetadata{Title: cmd.String("title"), Author: cmd.String("artist")}
	r.writePlain("Converting %s...\n", videoURL)

	ref, err := o.ConvertAndResolve(ctx, videoURL, meta)
	if err != nil {
		return err
	}

	r.writePlain("✓ Converted\n")
	r.writePlain("Audio ID: %s\n", ref)
	r.writePlain("URL:      %s\n", r.source.DownloadURL(ref))
	return nil
}

// Play resolves target to a track, plays it and blocks until it finishes or Ctrl-C.
//
// target is either a saved item id or a video URL, which is converted first.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	target := strings.TrimSpace(cmd.StringArg("target"))
	if target == "" {
		return fmt.Errorf("%w: item id or video url", shared.ErrMissingArgument)
	}
	if err := r.requireSource(); err != nil {
		return err
	}

	track, err := r.resolveTrack(ctx, target, cmd.String("title"))
	if err != nil {
		return err
	}
	return r.playTrack(ctx, track)
}

// playTrack plays track and blocks until it finishes or Ctrl-C.
func (r *Runner) playTrack(ctx context.Context, track models.TrackRef) error {
	o, err := r.orchestrator()
	if err != nil {
		return err
	}
	defer o.Close(context.WithoutCancel(ctx))

	ctx, stop := interrupted(ctx)
	defer stop()

	updates, cancel := o.Subscribe()
	defer cancel()

	r.writePlain("▶ %s\n", track.DisplayTitle())
	if err := o.Play(ctx, track); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	return r.waitForPlayback(ctx, o, updates)
}

func (r *Runner) resolveTrack(ctx context.Context, target, title string) (models.TrackRef, error) {
	if isURL(target) {
		if title == "" {
			title = target
		}
		return models.VideoResult{ID: target, URL: target, Title: title}, nil
	}

	item, err := r.source.GetSaved(ctx, target)
	if err != nil {
		if cache := r.libraryCache(); cache != nil && !errors.Is(err, shared.ErrItemNotFound) {
			if cached, cerr := cache.Get(ctx, target); cerr == nil {
				r.logger.Warn("backend lookup failed, playing cached entry", "id", target, "error", err)
				return *cached, nil
			}
		}
		return nil, err
	}
	return *item, nil
}

// waitForPlayback returns once the slot goes idle or ctx is cancelled, stopping playback on cancel.
func (r *Runner) waitForPlayback(ctx context.Context, o *playback.Orchestrator, updates <-chan playback.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			r.writePlain("\n■ Stopped\n")
			return o.Stop(context.WithoutCancel(ctx))
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.State != playback.Idle {
				continue
			}
			if snap.LastError != nil {
				return snap.LastError
			}
			r.writePlain("■ Finished\n")
			return nil
		}
	}
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
