package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestEntry describes one item of a bulk download.
type ManifestEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist,omitempty"`
	File    string `json:"file,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DownloadManifest summarises a bulk download so it can be resumed or audited.
type DownloadManifest struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Directory   string          `json:"directory"`
	Total       int             `json:"total"`
	Downloaded  int             `json:"downloaded"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	Items       []ManifestEntry `json:"items"`
}

// WriteDownloadManifest writes m as indented JSON to path.
func WriteDownloadManifest(m *DownloadManifest, path string) error {
	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now().UTC()
	}
	if m.Items == nil {
		m.Items = []ManifestEntry{}
	}

	data, err := MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
