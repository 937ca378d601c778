package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/playback"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/urfave/cli/v3"
)

var savedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func saved(id, title string, age time.Duration) models.LibraryItem {
	return models.LibraryItem{
		ID:              id,
		Title:           title,
		Artist:          "Artist",
		Duration:        "3:00",
		DurationSeconds: 180,
		AddedAt:         savedAt.Add(-age),
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetup(t *testing.T) {
	t.Run("config writes template and refuses to overwrite", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := f.run("setup", "config", "--config", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Fatalf("expected generated config to load, got %v", err)
		}

		err := f.run("setup", "config", "--config", path)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := f.run("setup", "config", "--force", "--config", path); err != nil {
			t.Errorf("expected --force to overwrite, got %v", err)
		}
	})

	t.Run("database migrates and reports status", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "create_library") || !strings.Contains(out, "applied") {
			t.Errorf("expected applied migrations in output, got %q", out)
		}
		if strings.Contains(out, "pending") {
			t.Errorf("expected no pending migrations, got %q", out)
		}
	})

	t.Run("database rollback leaves newest pending", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("setup: %v", err)
		}
		f.output.Reset()
		if err := f.run("setup", "database", "--rollback"); err != nil {
			t.Fatalf("rollback: %v", err)
		}
		if !strings.Contains(f.output.String(), "pending") {
			t.Errorf("expected a pending migration after rollback, got %q", f.output.String())
		}
	})
}

func TestSearch(t *testing.T) {
	t.Run("prints results and records history", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.results = []models.VideoResult{{ID: "v1", Title: "Night Drive", Author: "Synth", URL: "https://youtu.be/v1"}}

		if err := f.run("search", "night drive"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), "Night Drive") {
			t.Errorf("expected result title in output, got %q", f.output.String())
		}

		f.output.Reset()
		if err := f.run("history"); err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(f.output.String(), "night drive") {
			t.Errorf("expected query in history, got %q", f.output.String())
		}
	})

	t.Run("no-history skips recording", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("search", "--no-history", "ambient"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		f.output.Reset()
		if err := f.run("history"); err != nil {
			t.Fatalf("history: %v", err)
		}
		if got := f.output.String(); got != "No recent searches\n" {
			t.Errorf("expected empty history, got %q", got)
		}
	})

	t.Run("csv format", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.results = []models.VideoResult{{ID: "v1", Title: "Song", URL: "https://youtu.be/v1"}}

		if err := f.run("search", "--format", "csv", "song"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(f.output.String(), "ID,Title") {
			t.Errorf("expected csv header, got %q", f.output.String())
		}
	})

	t.Run("missing query", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("search failure is returned", func(t *testing.T) {
		f := newFixture(t)
		f.searcher.err = shared.ErrServiceUnavailable
		if err := f.run("search", "x"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("history clear", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("search", "one"); err != nil {
			t.Fatalf("search: %v", err)
		}
		if err := f.run("history", "--clear"); err != nil {
			t.Fatalf("clear: %v", err)
		}
		f.output.Reset()
		if err := f.run("history", "--json"); err != nil {
			t.Fatalf("history: %v", err)
		}

		var entries []map[string]any
		if err := json.Unmarshal([]byte(f.output.String()), &entries); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", f.output.String(), err)
		}
		if len(entries) != 0 {
			t.Errorf("expected no entries after clear, got %d", len(entries))
		}
	})
}

func TestLibrary(t *testing.T) {
	t.Run("list survives malformed backend entries", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true,"audios":[
				{"_id":"good","title":"Kept Song","durationInSeconds":"n/a"},
				{"title":"Lost Song"}]}`))
		}))
		defer backend.Close()

		config := shared.DefaultConfig()
		config.Backend.BaseURL = backend.URL
		config.Database.Path = filepath.Join(t.TempDir(), "tapedeck.db")

		var output, logs bytes.Buffer
		runner := NewRunner(RunnerOpts{
			Config: config,
			Source: services.NewAudioService(config.Backend, nil),
			Output: &output,
		})
		defer runner.Close()
		runner.SetLogger(log.New(&logs))

		app := &cli.Command{Name: "tapedeck", Commands: runner.register()}
		if err := app.Run(context.Background(), []string{"tapedeck", "library", "list"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Kept Song") || strings.Contains(output.String(), "Lost Song") {
			t.Errorf("expected only the valid entry, got %q", output.String())
		}
		if !strings.Contains(logs.String(), "skipped=1") {
			t.Errorf("expected skipped entry to reach the runner's logger, got %q", logs.String())
		}
	})

	t.Run("list orders by recency and limits", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("old", "Old Song", time.Hour), saved("new", "New Song", 0))

		if err := f.run("library", "list", "--limit", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "New Song") || strings.Contains(out, "Old Song") {
			t.Errorf("expected only the newest item, got %q", out)
		}
	})

	t.Run("refresh fills the cache used by list --cached", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0), saved("b", "Beta", time.Minute))

		if err := f.run("library", "refresh"); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if !strings.Contains(f.output.String(), "2 items") {
			t.Errorf("expected item count, got %q", f.output.String())
		}

		f.source.ListErr = shared.ErrServiceUnavailable
		f.output.Reset()
		if err := f.run("library", "list", "--cached", "--format", "md"); err != nil {
			t.Fatalf("list --cached: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "**Items**: 2") || !strings.Contains(out, "Alpha") {
			t.Errorf("expected cached items, got %q", out)
		}
	})

	t.Run("list backend failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.ListErr = shared.ErrServiceUnavailable
		if err := f.run("library", "list"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("show", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))

		if err := f.run("library", "show", "a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var item models.LibraryItem
		if err := json.Unmarshal(f.output.Bytes(), &item); err != nil {
			t.Fatalf("expected JSON item, got %q: %v", f.output.String(), err)
		}
		if item.ID != "a" || item.Title != "Alpha" {
			t.Errorf("unexpected item %+v", item)
		}

		if err := f.run("library", "show", "zzz"); !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
	})

	t.Run("export writes file", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))
		path := filepath.Join(t.TempDir(), "library.csv")

		if err := f.run("library", "export", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(data), "Alpha") {
			t.Errorf("expected item in export, got %q", data)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("library", "list", "--format", "xml"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestConvert(t *testing.T) {
	t.Run("prints audio reference", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("convert", "--title", "Song", "https://youtu.be/abc"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, "audio-https://youtu.be/abc") {
			t.Errorf("expected audio id in output, got %q", out)
		}
		if got := f.source.Conversions(); len(got) != 1 || got[0] != "https://youtu.be/abc" {
			t.Errorf("expected one conversion, got %v", got)
		}
	})

	t.Run("rejects non-URL", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("convert", "not a url"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("conversion failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.ConvertFunc = func(ctx context.Context, videoURL string, meta models.TrackMetadata) (string, error) {
			return "", shared.ErrConversionFailed
		}

		err := f.run("convert", "https://youtu.be/abc")
		if playback.KindOf(err) != playback.KindConversion {
			t.Errorf("expected conversion error, got %v", err)
		}
	})
}

func TestPreview(t *testing.T) {
	tracks := []models.PreviewTrack{
		{ID: "1", Title: "Digital Love", Artist: "Daft Punk", DurationSeconds: 301, Preview: "https://cdn.test/1.mp3"},
		{ID: "2", Title: "Veridis Quo", Artist: "Daft Punk", DurationSeconds: 345},
	}

	t.Run("lists previews and records history", func(t *testing.T) {
		f := newFixture(t)
		f.previews.tracks = tracks

		if err := f.run("preview", "daft punk"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := f.output.String()
		for _, want := range []string{"Digital Love", "Veridis Quo", "unavailable"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got %q", want, out)
			}
		}
		if len(f.engine.Loads()) != 0 {
			t.Error("expected nothing to play without --play")
		}

		f.output.Reset()
		if err := f.run("history"); err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(f.output.String(), "daft punk") {
			t.Errorf("expected query in history, got %q", f.output.String())
		}
	})

	t.Run("plays the chosen clip without conversion", func(t *testing.T) {
		f := newFixture(t)
		f.previews.tracks = tracks

		go func() {
			waitUntil(t, func() bool { return f.engine.Last() != nil })
			f.engine.Last().Finish(nil)
		}()

		if err := f.run("preview", "--play", "1", "daft punk"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if loads := f.engine.Loads(); len(loads) != 1 || loads[0] != "https://cdn.test/1.mp3" {
			t.Errorf("expected clip url to be loaded, got %v", loads)
		}
		if len(f.source.Conversions()) != 0 {
			t.Error("expected no conversion for a preview")
		}
	})

	t.Run("track without clip", func(t *testing.T) {
		f := newFixture(t)
		f.previews.tracks = tracks

		err := f.run("preview", "--play", "2", "daft punk")
		if !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
		if len(f.engine.Loads()) != 0 {
			t.Error("expected nothing to be loaded")
		}
	})

	t.Run("result out of range", func(t *testing.T) {
		f := newFixture(t)
		f.previews.tracks = tracks

		if err := f.run("preview", "--play", "3", "daft punk"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("catalogue failure", func(t *testing.T) {
		f := newFixture(t)
		f.previews.err = shared.ErrAPIRequest

		if err := f.run("preview", "x"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t)
		f.runner.previews = nil

		if err := f.run("preview", "x"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("preview"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestPlay(t *testing.T) {
	t.Run("saved item plays until finished", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))

		go func() {
			waitUntil(t, func() bool { return f.engine.Last() != nil })
			f.engine.Last().Finish(nil)
		}()

		if err := f.run("play", "a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if loads := f.engine.Loads(); len(loads) != 1 || loads[0] != "fake://audio/a" {
			t.Errorf("expected saved audio to be loaded directly, got %v", loads)
		}
		if len(f.source.Conversions()) != 0 {
			t.Error("expected no conversion for saved audio")
		}
		if !strings.Contains(f.output.String(), "Finished") {
			t.Errorf("expected finished message, got %q", f.output.String())
		}
		if f.engine.Loaded() != 0 {
			t.Errorf("expected resource to be released, %d loaded", f.engine.Loaded())
		}
	})

	t.Run("URL converts first", func(t *testing.T) {
		f := newFixture(t)

		go func() {
			waitUntil(t, func() bool { return f.engine.Last() != nil })
			f.engine.Last().Finish(nil)
		}()

		if err := f.run("play", "https://youtu.be/xyz"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := f.source.Conversions(); len(got) != 1 {
			t.Errorf("expected one conversion, got %v", got)
		}
		if loads := f.engine.Loads(); len(loads) != 1 || loads[0] != "fake://audio/audio-https://youtu.be/xyz" {
			t.Errorf("unexpected loads %v", loads)
		}
	})

	t.Run("engine failure during playback is returned", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))

		go func() {
			waitUntil(t, func() bool { return f.engine.Last() != nil })
			f.engine.Last().Finish(errors.New("device lost"))
		}()

		err := f.run("play", "a")
		if playback.KindOf(err) != playback.KindPlayback {
			t.Errorf("expected playback error, got %v", err)
		}
	})

	t.Run("load failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))
		f.engine.LoadErr = errors.New("unsupported format")

		err := f.run("play", "a")
		if !errors.Is(err, shared.ErrPlaybackFailed) {
			t.Errorf("expected ErrPlaybackFailed, got %v", err)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("play", "nope"); !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
		if len(f.engine.Loads()) != 0 {
			t.Error("expected nothing to be loaded")
		}
	})
}

func TestDownload(t *testing.T) {
	t.Run("selected ids", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0), saved("b", "Beta", 0))
		dir := filepath.Join(t.TempDir(), "out")

		if err := f.run("download", "--dir", dir, "--rate", "100", "--id", "a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "a.mp3")); err != nil {
			t.Errorf("expected a.mp3: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "b.mp3")); !os.IsNotExist(err) {
			t.Errorf("expected b.mp3 to be skipped, got %v", err)
		}
		if !strings.Contains(f.output.String(), "Downloaded: 1") {
			t.Errorf("expected summary, got %q", f.output.String())
		}
	})

	t.Run("uses configured directory", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))

		if err := f.run("download"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(f.config.Download.Dir, "manifest.json")); err != nil {
			t.Errorf("expected manifest in configured directory: %v", err)
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		f := newFixture(t)
		f.source.SetItems(saved("a", "Alpha", 0))
		if err := f.run("download", "--id", "zzz"); !errors.Is(err, shared.ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
	})
}

func TestAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/echo":
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "missing", http.StatusNotFound)
		}
	}))
	defer server.Close()

	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.runner.api = services.NewAPIService(server.URL, server.Client())
		return f
	}

	t.Run("get pretty-prints JSON", func(t *testing.T) {
		f := setup(t)
		if err := f.run("api", "get", "/health"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), `"status": "ok"`) {
			t.Errorf("expected pretty JSON, got %q", f.output.String())
		}
	})

	t.Run("get --json prints compact JSON", func(t *testing.T) {
		f := setup(t)
		if err := f.run("api", "get", "--json", "/health"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := f.output.String(); got != "{\"status\":\"ok\"}\n" {
			t.Errorf("expected compact JSON, got %q", got)
		}
	})

	t.Run("non-2xx status", func(t *testing.T) {
		f := setup(t)
		if err := f.run("api", "get", "/nope"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("post validates JSON", func(t *testing.T) {
		f := setup(t)
		if err := f.run("api", "post", "--data", "{bad", "/echo"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := f.run("api", "post", "--data", `{"a":1}`, "/echo"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), `"a": 1`) {
			t.Errorf("expected echoed body, got %q", f.output.String())
		}
	})

	t.Run("delete with empty body", func(t *testing.T) {
		f := setup(t)
		if err := f.run("api", "delete", "/api/saved/a"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := f.output.String(); got != "204 OK\n" {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		f := setup(t)
		if err := f.run("api", "get"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
