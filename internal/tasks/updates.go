package tasks

import (
	"fmt"

	"github.com/desertthunder/tapedeck/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	FetchLibrary Phase = iota
	Download
	WriteManifest
	ExportLibrary
)

func (p Phase) String() string {
	switch p {
	case FetchLibrary:
		return "fetch_library"
	case Download:
		return "download"
	case WriteManifest:
		return "write_manifest"
	case ExportLibrary:
		return "export_library"
	default:
		return ""
	}
}

func fetchLibraryUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchLibrary, Step: 1, Total: 1, Message: "Fetching library..."}
}

func downloadStartedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{Phase: Download, Step: 0, Total: total, Message: fmt.Sprintf("Downloading %d items...", total)}
}

func downloadCompletedUpdate(step, total int, item models.LibraryItem, bytes int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d bytes)", step, total, item.DisplayTitle(), bytes),
	}
}

func downloadSkippedUpdate(step, total int, item models.LibraryItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] - %s (already downloaded)", step, total, item.DisplayTitle()),
	}
}

func downloadFailedUpdate(step, total int, item models.LibraryItem, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, item.DisplayTitle(), err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{Phase: WriteManifest, Step: 1, Total: 1, Message: fmt.Sprintf("Writing manifest to %s", path)}
}

func exportUpdate(count int, path string) ProgressUpdate {
	return ProgressUpdate{Phase: ExportLibrary, Step: 1, Total: 1, Message: fmt.Sprintf("Exporting %d items to %s", count, path)}
}
