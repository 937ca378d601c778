package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
)

var previews = []models.PreviewTrack{
	{ID: "1", Title: "One More Time", Artist: "Daft Punk", Album: "Discovery", DurationSeconds: 320,
		Preview: "https://cdn/1.mp3", Link: "https://www.deezer.com/track/1"},
	{ID: "2", Title: "Aerodynamic", Artist: "Daft Punk", Album: "Discovery", DurationSeconds: 212},
}

func TestPreviews(t *testing.T) {
	t.Run("PreviewsToText", func(t *testing.T) {
		output := string(PreviewsToText("daft", previews))
		for _, want := range []string{`Previews for "daft" (2)`, "One More Time", "5:20", "30s", "unavailable"} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q:\n%s", want, output)
			}
		}
		if got := string(PreviewsToText("x", nil)); got != "No results\n" {
			t.Errorf("unexpected empty output %q", got)
		}
	})

	t.Run("PreviewsToCSV", func(t *testing.T) {
		data, err := PreviewsToCSV(previews)
		if err != nil {
			t.Fatalf("PreviewsToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), "1,One More Time,Daft Punk,Discovery,320,https://cdn/1.mp3,https://www.deezer.com/track/1") {
			t.Errorf("CSV missing record, got: %s", data)
		}
	})

	t.Run("PreviewsToMarkdown", func(t *testing.T) {
		output := string(PreviewsToMarkdown("daft", previews))
		if !strings.Contains(output, "1. Daft Punk - [One More Time](https://www.deezer.com/track/1) [5:20] 30s") {
			t.Errorf("unexpected markdown: %s", output)
		}
		if !strings.Contains(output, "2. Daft Punk - Aerodynamic [3:32] unavailable") {
			t.Errorf("expected unavailable clip to be marked: %s", output)
		}
	})

	t.Run("WritePreviews JSON", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WritePreviews(&buf, JSON, "none", nil); err != nil {
			t.Fatalf("WritePreviews failed: %v", err)
		}
		var decoded []json.RawMessage
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || len(decoded) != 0 {
			t.Errorf("expected empty JSON array, got %s", buf.String())
		}
	})
}
