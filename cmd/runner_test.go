package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	tu "github.com/desertthunder/tapedeck/internal/testing"
	"github.com/urfave/cli/v3"
)

type fakeSearcher struct {
	results []models.VideoResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResponse{Success: true, Query: query, TotalResults: len(f.results), Results: f.results}, nil
}

type fakePreviews struct {
	tracks  []models.PreviewTrack
	err     error
	queries []string
}

func (f *fakePreviews) SearchPreviews(ctx context.Context, query string) ([]models.PreviewTrack, error) {
	f.queries = append(f.queries, query)
	return f.tracks, f.err
}

type fixture struct {
	runner   *Runner
	output   *bytes.Buffer
	source   *tu.FakeAudioSource
	engine   *tu.FakeEngine
	channel  *tu.FakeChannel
	searcher *fakeSearcher
	previews *fakePreviews
	config   *shared.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "tapedeck.db")
	config.Download.Dir = filepath.Join(t.TempDir(), "downloads")

	f := &fixture{
		output:   &bytes.Buffer{},
		source:   &tu.FakeAudioSource{},
		engine:   tu.NewFakeEngine(),
		channel:  tu.NewFakeChannel(),
		searcher: &fakeSearcher{},
		previews: &fakePreviews{},
		config:   config,
	}
	f.runner = NewRunner(RunnerOpts{
		Config:   config,
		Source:   f.source,
		Searcher: f.searcher,
		Previews: f.previews,
		Player:   f.engine,
		Channel:  f.channel,
		Logger:   shared.NewLogger(&bytes.Buffer{}),
		Output:   f.output,
	})
	t.Cleanup(func() { f.runner.Close() })
	return f
}

// run executes args against a fresh command tree, as main does.
func (f *fixture) run(args ...string) error {
	app := &cli.Command{Name: "tapedeck", Commands: f.runner.register()}
	return app.Run(context.Background(), append([]string{"tapedeck"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			source := &tu.FakeAudioSource{}
			engine := tu.NewFakeEngine()
			api := &services.APIService{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Source:     source,
				Player:     engine,
				API:        api,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.source != source {
				t.Error("expected source to be set")
			}
			if runner.player != engine {
				t.Error("expected player to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.engine == nil {
				t.Error("expected task engine to be created")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := output.String(); got != "{\"key\":\"value\"}\n" {
				t.Errorf("expected compact JSON, got %q", got)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(map[string]any{"ch": make(chan int)}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s %d", "world", 42); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := output.String(); got != "Hello world 42" {
				t.Errorf("expected 'Hello world 42', got %q", got)
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("Next steps:")
			if got := output.String(); got != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", got)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		var names []string
		for _, c := range commands {
			names = append(names, c.Name)
		}
		for _, want := range []string{"setup", "search", "preview", "history", "library", "convert", "play", "download", "api", "tui"} {
			if !slices.Contains(names, want) {
				t.Errorf("expected %q command to be registered, got %v", want, names)
			}
		}
	})

	t.Run("database", func(t *testing.T) {
		t.Run("opens once and applies migrations", func(t *testing.T) {
			f := newFixture(t)

			db, err := f.runner.database()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			again, err := f.runner.database()
			if err != nil || again != db {
				t.Fatalf("expected the same handle, got %v (%v)", again, err)
			}

			var n int
			if err := db.Get(&n, "SELECT COUNT(*) FROM library_items"); err != nil {
				t.Errorf("expected library_items table to exist: %v", err)
			}
		})

		t.Run("unavailable database disables history", func(t *testing.T) {
			f := newFixture(t)
			f.config.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "x.db")

			if h := f.runner.history(); h != nil {
				t.Error("expected nil history when the database cannot be opened")
			}
		})
	})

	t.Run("orchestrator requires backend and engine", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		if _, err := runner.orchestrator(); err == nil {
			t.Error("expected error without an audio source")
		}

		runner = NewRunner(RunnerOpts{Source: &tu.FakeAudioSource{}})
		if _, err := runner.orchestrator(); err == nil {
			t.Error("expected error without a playback engine")
		}
	})
}
