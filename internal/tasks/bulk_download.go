package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const manifestName = "manifest.json"

// BulkDownloadOpts contains configuration for offline downloads.
type BulkDownloadOpts struct {
	OutputDir  string  // Base output directory (default: tapedeck_download_{epoch})
	NumWorkers int     // Concurrent downloads (default: 3, max: 8)
	RateLimit  float64 // Requests per second (default: 2)
	Extension  string  // Audio file extension (default: .mp3)
	Overwrite  bool    // Re-download files that already exist
	Thumbnails bool    // Also save {id}.jpg cover art
}

func (o *BulkDownloadOpts) defaults() {
	if o.OutputDir == "" {
		o.OutputDir = fmt.Sprintf("tapedeck_download_%d", time.Now().Unix())
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = 3
	}
	if o.NumWorkers > 8 {
		o.NumWorkers = 8
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 2
	}
	if o.Extension == "" {
		o.Extension = ".mp3"
	}
}

// DownloadResult is the outcome for one item.
type DownloadResult struct {
	Item    models.LibraryItem
	File    string
	Bytes   int64
	Skipped bool
	Error   error
}

// BulkDownloadResult summarises a bulk download.
type BulkDownloadResult struct {
	Total           int
	Downloaded      int
	Skipped         int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []DownloadResult // In input order
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileName(id, ext string) string {
	return unsafeName.ReplaceAllString(id, "_") + ext
}

// BulkDownload saves items to disk for offline playback.
//
// Individual failures are recorded per item and do not stop the batch. Cancelling ctx stops scheduling new
// downloads; the manifest is still written for whatever completed.
func (e *Engine) BulkDownload(ctx context.Context, progress chan<- ProgressUpdate, items []models.LibraryItem, opts BulkDownloadOpts) (*BulkDownloadResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: audio source not initialized", shared.ErrServiceUnavailable)
	}
	opts.defaults()

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(items)
	result := &BulkDownloadResult{
		Total:           total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]DownloadResult, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	e.sendProgress(progress, downloadStartedUpdate(total))

	var (
		mu        sync.Mutex
		completed int
		ran       = make([]bool, total)
	)
	report := func(res DownloadResult) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		switch {
		case res.Error != nil:
			e.sendProgress(progress, downloadFailedUpdate(completed, total, res.Item, res.Error))
		case res.Skipped:
			e.sendProgress(progress, downloadSkippedUpdate(completed, total, res.Item))
		default:
			e.sendProgress(progress, downloadCompletedUpdate(completed, total, res.Item, res.Bytes))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumWorkers)

schedule:
	for i, item := range items {
		select {
		case <-gctx.Done():
			break schedule
		default:
		}

		g.Go(func() error {
			res := e.downloadOne(gctx, limiter, item, opts)
			result.Results[i] = res
			ran[i] = true
			report(res)
			return nil
		})
	}
	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	manifest := &formatter.DownloadManifest{Directory: opts.OutputDir, Total: total}
	for i, res := range result.Results {
		if !ran[i] {
			res = DownloadResult{Item: items[i], Error: context.Canceled}
			result.Results[i] = res
		}

		entry := formatter.ManifestEntry{ID: res.Item.ID, Title: res.Item.Title, Artist: res.Item.Artist, File: res.File, Bytes: res.Bytes, Skipped: res.Skipped}
		switch {
		case res.Error != nil:
			result.Failed++
			entry.Error = res.Error.Error()
		case res.Skipped:
			result.Skipped++
		default:
			result.Downloaded++
		}
		manifest.Items = append(manifest.Items, entry)
	}
	manifest.Downloaded, manifest.Skipped, manifest.Failed = result.Downloaded, result.Skipped, result.Failed

	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	e.sendProgress(progress, manifestUpdate(manifestPath))
	if err := formatter.WriteDownloadManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("download completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("bulk download finished",
		"downloaded", result.Downloaded, "skipped", result.Skipped, "failed", result.Failed, "dir", opts.OutputDir)
	return result, waitErr
}

func (e *Engine) downloadOne(ctx context.Context, limiter *rate.Limiter, item models.LibraryItem, opts BulkDownloadOpts) DownloadResult {
	res := DownloadResult{Item: item}
	if item.ID == "" {
		res.Error = fmt.Errorf("%w: library item has no id", shared.ErrInvalidArgument)
		return res
	}

	path := filepath.Join(opts.OutputDir, fileName(item.ID, opts.Extension))
	res.File = path

	if !opts.Overwrite {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			res.Skipped = true
			res.Bytes = info.Size()
			return res
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		res.Error = err
		return res
	}

	n, err := e.fetchTo(ctx, item.AudioRef(), path)
	if err != nil {
		res.Error = err
		return res
	}
	res.Bytes = n

	if opts.Thumbnails && item.Thumbnail != "" {
		e.saveThumbnail(ctx, item, filepath.Join(opts.OutputDir, fileName(item.ID, ".jpg")))
	}
	return res
}

// fetchTo streams ref into a temporary file next to path and renames it into place.
func (e *Engine) fetchTo(ctx context.Context, ref, path string) (int64, error) {
	body, _, err := e.source.FetchAudioStream(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write audio: %w", err)
	}
	if n == 0 {
		return 0, errors.New("backend returned an empty file")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move audio into place: %w", err)
	}
	return n, nil
}

func (e *Engine) saveThumbnail(ctx context.Context, item models.LibraryItem, path string) {
	data, err := formatter.DownloadImage(ctx, e.httpClient, item.Thumbnail)
	if err != nil {
		e.logger.Warn("failed to download thumbnail", "id", item.ID, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		e.logger.Warn("failed to save thumbnail", "id", item.ID, "error", err)
	}
}
