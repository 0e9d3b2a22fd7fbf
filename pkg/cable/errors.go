// ABOUTME: Sentinel errors for the cable engine
// ABOUTME: Callers match these with errors.Is
package cable

import "errors"

var (
	// ErrInvalidConfig is returned when a cable cannot be built from its configuration
	ErrInvalidConfig = errors.New("invalid cable configuration")

	// ErrTimerSource is returned when the periodic timer cannot be created or armed
	ErrTimerSource = errors.New("timer source unavailable")

	// ErrUnsupportedRate is returned for a sample rate outside the declared set
	ErrUnsupportedRate = errors.New("unsupported sample rate")

	// ErrFormatMismatch is returned when a copy call uses a format other than the advertised one
	ErrFormatMismatch = errors.New("stream format mismatch")

	// ErrFrameRange is returned when firstFrame/frameCount fall outside the transfer buffer
	ErrFrameRange = errors.New("frame range out of bounds")

	// ErrShortBuffer is returned when a caller buffer cannot hold the requested frames
	ErrShortBuffer = errors.New("caller buffer too short")
)
