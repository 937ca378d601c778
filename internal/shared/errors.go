package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrItemNotFound       = fmt.Errorf("library item not found")

	// Conversion and playback errors
	ErrConversionFailed  = fmt.Errorf("conversion failed")
	ErrConversionTimeout = fmt.Errorf("conversion timed out")
	ErrPlaybackFailed    = fmt.Errorf("playback failed")
	ErrPermissionDenied  = fmt.Errorf("audio permission denied")
	ErrSuperseded        = fmt.Errorf("superseded by a newer request")
	ErrNothingLoaded     = fmt.Errorf("no track loaded")
	ErrClosed            = fmt.Errorf("player closed")

	// Real-time channel errors
	ErrChannelClosed = fmt.Errorf("update channel closed")
	ErrBadEvent      = fmt.Errorf("malformed channel event")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
