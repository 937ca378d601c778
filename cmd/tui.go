package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
//
// The library reconciler runs in the background for the lifetime of the program.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/tapedeck-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	notifier := ui.NewNotifier()
	r.notifier = notifier

	o, err := r.orchestrator()
	if err != nil {
		return err
	}
	defer o.Close(context.WithoutCancel(ctx))

	rec, err := r.reconciler()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rec.StartResync(ctx, r.config.Realtime.ResyncInterval); err != nil {
		return err
	}
	defer rec.Stop()

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	deps := ui.Deps{
		Player:   o,
		Library:  rec,
		Searcher: r.searcher,
		Alerts:   notifier.Alerts(),
	}
	if h := r.history(); h != nil {
		deps.History = h
	}

	model := ui.NewModel(ctx, deps)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	cancel()
	if err := <-done; err != nil {
		r.logger.Warn("library reconciler stopped", "error", err)
	}
	return nil
}
