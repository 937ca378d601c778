package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// Kind classifies orchestrator failures.
type Kind int

const (
	KindConversion Kind = iota + 1
	KindTimeout
	KindPlayback
	KindPermission
	KindSuperseded
)

func (k Kind) String() string {
	switch k {
	case KindConversion:
		return "conversion"
	case KindTimeout:
		return "timeout"
	case KindPlayback:
		return "playback"
	case KindPermission:
		return "permission"
	case KindSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Title is the alert heading shown for failures of this kind.
func (k Kind) Title() string {
	switch k {
	case KindConversion:
		return "Conversion Failed"
	case KindTimeout:
		return "Conversion Timed Out"
	case KindPermission:
		return "Permission Denied"
	default:
		return "Playback Error"
	}
}

// Error is returned by every failing orchestrator operation.
type Error struct {
	Kind    Kind
	Op      string
	TrackID string
	Err     error
}

func (e *Error) Error() string {
	if e.TrackID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.TrackID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or 0 when err is not an [*Error].
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// conversionError classifies a failed conversion. Deadline errors become [KindTimeout].
func conversionError(trackID string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		if !errors.Is(err, shared.ErrConversionTimeout) {
			err = fmt.Errorf("%w: %w", shared.ErrConversionTimeout, err)
		}
		return &Error{Kind: KindTimeout, Op: "convert", TrackID: trackID, Err: err}
	}
	if !errors.Is(err, shared.ErrConversionFailed) {
		err = fmt.Errorf("%w: %w", shared.ErrConversionFailed, err)
	}
	return &Error{Kind: KindConversion, Op: "convert", TrackID: trackID, Err: err}
}

func superseded(op, trackID string) *Error {
	return &Error{Kind: KindSuperseded, Op: op, TrackID: trackID, Err: shared.ErrSuperseded}
}

// silent reports errors that are logged but never alerted.
func silent(err error) bool {
	return errors.Is(err, shared.ErrSuperseded) || errors.Is(err, context.Canceled)
}
