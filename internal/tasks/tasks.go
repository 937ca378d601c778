// package tasks implements bulk library operations against the conversion backend.
package tasks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Engine runs bulk operations against an audio source.
type Engine struct {
	source     services.AudioSource
	httpClient *http.Client
	logger     *log.Logger
}

// NewEngine creates an Engine. A nil logger writes to stderr.
func NewEngine(source services.AudioSource, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		source:     source,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "tasks"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ExportLibrary fetches the saved library and writes it to path in format f.
func (e *Engine) ExportLibrary(ctx context.Context, progress chan<- ProgressUpdate, f formatter.Format, path string) (int, error) {
	if e.source == nil {
		return 0, fmt.Errorf("%w: audio source not initialized", shared.ErrServiceUnavailable)
	}
	if path == "" {
		path = fmt.Sprintf("tapedeck_library_%d%s", time.Now().Unix(), f.Ext())
	}

	e.sendProgress(progress, fetchLibraryUpdate())
	items, err := e.source.ListSaved(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch library: %w", err)
	}

	e.sendProgress(progress, exportUpdate(len(items), path))
	if err := formatter.WriteLibraryFile(path, f, items); err != nil {
		return 0, err
	}
	e.logger.Info("library exported", "count", len(items), "path", path, "format", f)
	return len(items), nil
}
