package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/formatter"
	"github.com/desertthunder/tapedeck/internal/library"
	"github.com/desertthunder/tapedeck/internal/playback"
	"github.com/desertthunder/tapedeck/internal/player"
	"github.com/desertthunder/tapedeck/internal/realtime"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	source     services.AudioSource
	searcher   services.Searcher
	previews   services.PreviewSearcher
	api        *services.APIService
	player     player.Engine
	channel    realtime.Channel
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.Engine
	notifier   playback.Notifier
	db         *sqlx.DB
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB and Channel are opened from Config on first use when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	Source     services.AudioSource
	Searcher   services.Searcher
	Previews   services.PreviewSearcher
	API        *services.APIService
	Player     player.Engine
	Channel    realtime.Channel
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sqlx.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		source:     opts.Source,
		searcher:   opts.Searcher,
		previews:   opts.Previews,
		api:        opts.API,
		player:     opts.Player,
		channel:    opts.Channel,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
	r.SetLogger(opts.Logger)
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, searchCommand, previewCommand, historyCommand, libraryCommand, convertCommand,
		playCommand, downloadCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.engine = tasks.NewEngine(r.source, l)
	for _, svc := range []any{r.source, r.previews} {
		if s, ok := svc.(interface{ SetLogger(*log.Logger) }); ok {
			s.SetLogger(l.With("component", "services"))
		}
	}
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens the configured database and applies pending migrations.
func (r *Runner) database() (*sqlx.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	conn, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(conn, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = repositories.Open(conn)
	return r.db, nil
}

// history returns the search history store, or nil when the database is unavailable.
func (r *Runner) history() *repositories.SearchHistoryRepository {
	db, err := r.database()
	if err != nil {
		r.logger.Warn("search history unavailable", "error", err)
		return nil
	}
	return repositories.NewSearchHistoryRepository(db)
}

// libraryCache returns the local library cache, or nil when the database is unavailable.
func (r *Runner) libraryCache() *repositories.LibraryRepository {
	db, err := r.database()
	if err != nil {
		r.logger.Warn("library cache unavailable", "error", err)
		return nil
	}
	return repositories.NewLibraryRepository(db)
}

func (r *Runner) requireSource() error {
	if r.source == nil {
		return fmt.Errorf("%w: audio backend not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// orchestrator builds the playback orchestrator. Callers must Close it.
func (r *Runner) orchestrator() (*playback.Orchestrator, error) {
	if err := r.requireSource(); err != nil {
		return nil, err
	}
	if r.player == nil {
		return nil, fmt.Errorf("%w: playback engine not initialized", shared.ErrServiceUnavailable)
	}

	notifier := r.notifier
	if notifier == nil {
		notifier = playback.LogNotifier{Logger: r.logger}
	}
	return playback.New(r.source, r.player,
		playback.WithNotifier(notifier),
		playback.WithLogger(r.logger),
		playback.WithConversionTimeout(r.config.Backend.ConversionTimeout),
	), nil
}

// reconciler builds the library reconciler over the update channel and local cache.
func (r *Runner) reconciler() (*library.Reconciler, error) {
	if err := r.requireSource(); err != nil {
		return nil, err
	}

	ch := r.channel
	if ch == nil {
		var err error
		ch, err = realtime.New(r.config.Realtime,
			realtime.WithToken(r.config.Backend.Token),
			realtime.WithLogger(r.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create update channel: %w", err)
		}
	}

	opts := []library.Option{library.WithLogger(r.logger)}
	if cache := r.libraryCache(); cache != nil {
		opts = append(opts, library.WithCache(cache))
	}
	return library.NewReconciler(library.NewStore(), r.source, ch, opts...), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := formatter.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// interrupted returns a context cancelled by Ctrl-C or SIGTERM.
func interrupted(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
