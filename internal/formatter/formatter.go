// package formatter renders library and search results as text tables, CSV, Markdown and JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	Text     Format = "txt"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat accepts the format names used on the command line. Empty means [Text].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text", "table":
		return Text, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// Ext is the file extension used when the format is written to disk.
func (f Format) Ext() string {
	switch f {
	case CSV:
		return ".csv"
	case Markdown:
		return ".md"
	case JSON:
		return ".json"
	default:
		return ".txt"
	}
}

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func added(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func duration(label string, seconds int) string {
	if label != "" {
		return label
	}
	if seconds > 0 {
		return models.FormatSeconds(seconds)
	}
	return "-"
}

var header = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cell = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(headers...)
}

// LibraryToText renders items as a bordered table.
func LibraryToText(items []models.LibraryItem) []byte {
	if len(items) == 0 {
		return []byte("Library is empty\n")
	}

	t := newTable("#", "ID", "Title", "Artist", "Duration", "Added")
	for i, item := range items {
		t.Row(strconv.Itoa(i+1), item.ID, item.Title, item.Artist, duration(item.Duration, item.DurationSeconds), added(item.AddedAt))
	}
	return []byte(t.String() + "\n")
}

// LibraryToCSV converts items to CSV with columns: ID, Title, Artist, Duration, Seconds, Added, Source
func LibraryToCSV(items []models.LibraryItem) ([]byte, error) {
	records := make([][]string, 0, len(items))
	for _, item := range items {
		var at string
		if !item.AddedAt.IsZero() {
			at = item.AddedAt.UTC().Format(time.RFC3339)
		}
		records = append(records, []string{
			item.ID,
			item.Title,
			item.Artist,
			item.Duration,
			strconv.Itoa(item.DurationSeconds),
			at,
			item.OriginalURL,
		})
	}
	return writeCSV([]string{"ID", "Title", "Artist", "Duration", "Seconds", "Added", "Source"}, records)
}

// LibraryToMarkdown converts items to a numbered Markdown list under a heading.
func LibraryToMarkdown(items []models.LibraryItem) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Library\n\n")
	fmt.Fprintf(&buf, "**Items**: %d\n\n", len(items))
	for i, item := range items {
		title := item.Title
		if item.OriginalURL != "" {
			title = fmt.Sprintf("[%s](%s)", item.Title, item.OriginalURL)
		}
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, item.Artist, title, duration(item.Duration, item.DurationSeconds))
	}
	return buf.Bytes()
}

// SearchToText renders search results as a bordered table.
func SearchToText(resp *models.SearchResponse) []byte {
	if resp == nil || len(resp.Results) == 0 {
		return []byte("No results\n")
	}

	t := newTable("#", "Title", "Channel", "Duration", "Views", "URL")
	for i, r := range resp.Results {
		t.Row(strconv.Itoa(i+1), r.Title, r.Author, duration(r.Duration, r.DurationSeconds), views(r.Views), r.URL)
	}
	return []byte(fmt.Sprintf("Results for %q (%d)\n%s\n", resp.Query, resp.TotalResults, t.String()))
}

// SearchToCSV converts results to CSV with columns: ID, Title, Channel, Duration, Views, URL
func SearchToCSV(resp *models.SearchResponse) ([]byte, error) {
	var records [][]string
	if resp != nil {
		for _, r := range resp.Results {
			records = append(records, []string{r.ID, r.Title, r.Author, duration(r.Duration, r.DurationSeconds), views(r.Views), r.URL})
		}
	}
	return writeCSV([]string{"ID", "Title", "Channel", "Duration", "Views", "URL"}, records)
}

func SearchToMarkdown(resp *models.SearchResponse) []byte {
	var buf bytes.Buffer
	if resp == nil {
		resp = &models.SearchResponse{}
	}

	fmt.Fprintf(&buf, "# Search: %s\n\n", resp.Query)
	fmt.Fprintf(&buf, "**Results**: %d\n\n", len(resp.Results))
	for i, r := range resp.Results {
		fmt.Fprintf(&buf, "%d. [%s](%s) by %s [%s]\n", i+1, r.Title, r.URL, r.Author, duration(r.Duration, r.DurationSeconds))
	}
	return buf.Bytes()
}

func views(v string) string {
	if v == "" || v == "0" {
		return "-"
	}
	return v
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteLibrary writes items to w in the given format.
func WriteLibrary(w io.Writer, f Format, items []models.LibraryItem) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case CSV:
		data, err = LibraryToCSV(items)
	case Markdown:
		data = LibraryToMarkdown(items)
	case JSON:
		if items == nil {
			items = []models.LibraryItem{}
		}
		data, err = MarshalJSON(items, true)
		data = append(data, '\n')
	default:
		data = LibraryToText(items)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteSearch writes resp to w in the given format.
func WriteSearch(w io.Writer, f Format, resp *models.SearchResponse) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case CSV:
		data, err = SearchToCSV(resp)
	case Markdown:
		data = SearchToMarkdown(resp)
	case JSON:
		data, err = MarshalJSON(resp, true)
		data = append(data, '\n')
	default:
		data = SearchToText(resp)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteLibraryFile writes items to path, creating parent directories.
func WriteLibraryFile(path string, f Format, items []models.LibraryItem) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteLibrary(file, f, items); err != nil {
		return fmt.Errorf("failed to write library: %w", err)
	}
	return file.Close()
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}
