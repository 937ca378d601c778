package formatter

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/desertthunder/tapedeck/internal/models"
)

// PreviewsToText renders catalogue tracks as a bordered table. Tracks without a clip are marked.
func PreviewsToText(query string, tracks []models.PreviewTrack) []byte {
	if len(tracks) == 0 {
		return []byte("No results\n")
	}

	t := newTable("#", "Title", "Artist", "Album", "Duration", "Preview")
	for i, p := range tracks {
		t.Row(strconv.Itoa(i+1), p.Title, p.Artist, p.Album, duration("", p.DurationSeconds), clip(p))
	}
	return []byte(fmt.Sprintf("Previews for %q (%d)\n%s\n", query, len(tracks), t.String()))
}

func PreviewsToCSV(tracks []models.PreviewTrack) ([]byte, error) {
	records := make([][]string, 0, len(tracks))
	for _, p := range tracks {
		records = append(records, []string{p.ID, p.Title, p.Artist, p.Album, strconv.Itoa(p.DurationSeconds), p.Preview, p.Link})
	}
	return writeCSV([]string{"ID", "Title", "Artist", "Album", "Seconds", "Preview", "Link"}, records)
}

func PreviewsToMarkdown(query string, tracks []models.PreviewTrack) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Previews: %s\n\n", query)
	fmt.Fprintf(&buf, "**Results**: %d\n\n", len(tracks))
	for i, p := range tracks {
		title := p.Title
		if p.Link != "" {
			title = fmt.Sprintf("[%s](%s)", p.Title, p.Link)
		}
		fmt.Fprintf(&buf, "%d. %s - %s [%s] %s\n", i+1, p.Artist, title, duration("", p.DurationSeconds), clip(p))
	}
	return buf.Bytes()
}

// WritePreviews writes tracks to w in the given format.
func WritePreviews(w io.Writer, f Format, query string, tracks []models.PreviewTrack) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case CSV:
		data, err = PreviewsToCSV(tracks)
	case Markdown:
		data = PreviewsToMarkdown(query, tracks)
	case JSON:
		if tracks == nil {
			tracks = []models.PreviewTrack{}
		}
		data, err = MarshalJSON(tracks, true)
		data = append(data, '\n')
	default:
		data = PreviewsToText(query, tracks)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func clip(p models.PreviewTrack) string {
	if !p.HasPreview() {
		return "unavailable"
	}
	return "30s"
}
