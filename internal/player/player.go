package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// ErrStopped is delivered on [Handle.Done] when playback ended because it was stopped.
var ErrStopped = errors.New("playback stopped")

// Engine loads audio URIs.
type Engine interface {
	Load(ctx context.Context, uri string) (Handle, error)
}

// Handle controls one loaded resource.
type Handle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
	Done() <-chan error
}

// ProcessEngine plays audio through an external command line player.
type ProcessEngine struct {
	command string
	args    []string
	logger  *log.Logger
}

var _ Engine = (*ProcessEngine)(nil)

// NewProcessEngine creates an engine for cfg.Command. mpv is used when no command is configured.
func NewProcessEngine(cfg shared.PlayerConfig, logger *log.Logger) *ProcessEngine {
	command, args := cfg.Command, cfg.Args
	if command == "" {
		command, args = "mpv", []string{"--no-video", "--really-quiet"}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ProcessEngine{command: command, args: args, logger: logger}
}

// Permission reports whether the player binary can be executed.
func (e *ProcessEngine) Permission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(e.command); err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrPermissionDenied, e.command, err)
	}
	return nil
}

// Load prepares a process for uri. Nothing runs until Play.
func (e *ProcessEngine) Load(ctx context.Context, uri string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", shared.ErrPlaybackFailed)
	}
	path, err := exec.LookPath(e.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPlaybackFailed, err)
	}

	args := append(append([]string{}, e.args...), uri)
	cmd := exec.Command(path, args...)
	e.logger.Debug("loaded", "command", e.command, "uri", uri)

	return &processHandle{cmd: cmd, done: make(chan error, 1), logger: e.logger}, nil
}

type processHandle struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	paused  bool
	stopped bool
	done    chan error
	logger  *log.Logger
}

// Play starts the process on first call and resumes it afterwards.
func (h *processHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return fmt.Errorf("%w: handle released", shared.ErrPlaybackFailed)
	}
	if !h.started {
		if err := h.cmd.Start(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrPlaybackFailed, err)
		}
		h.started = true
		go h.wait()
		return nil
	}
	if h.paused {
		if err := resume(h.cmd.Process); err != nil {
			return fmt.Errorf("%w: resume: %w", shared.ErrPlaybackFailed, err)
		}
		h.paused = false
	}
	return nil
}

func (h *processHandle) Pause(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.stopped {
		return shared.ErrNothingLoaded
	}
	if h.paused {
		return nil
	}
	if err := suspend(h.cmd.Process); err != nil {
		return fmt.Errorf("%w: pause: %w", shared.ErrPlaybackFailed, err)
	}
	h.paused = true
	return nil
}

// Stop kills the process. A handle that never started reports [ErrStopped] on Done straight away.
func (h *processHandle) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true
	if !h.started {
		h.done <- ErrStopped
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%w: stop: %w", shared.ErrPlaybackFailed, err)
	}
	return nil
}

func (h *processHandle) Unload(ctx context.Context) error {
	return h.Stop(ctx)
}

func (h *processHandle) Done() <-chan error { return h.done }

func (h *processHandle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	stopped := h.stopped
	h.stopped = true
	h.mu.Unlock()

	switch {
	case stopped:
		h.done <- ErrStopped
	case err != nil:
		h.logger.Warn("player exited", "err", err)
		h.done <- fmt.Errorf("%w: %w", shared.ErrPlaybackFailed, err)
	default:
		h.done <- nil
	}
}
