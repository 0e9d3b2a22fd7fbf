// ABOUTME: Engine interface exposed to the host audio layer
// ABOUTME: Lifecycle hooks plus the two real-time copy entry points
package cable

import "github.com/Resonate-Protocol/vac-go/pkg/audio"

// Engine is the contract between a cable and the host that drives it.
// ClipOutput and ConvertInput are called from the host's mixing goroutine
// and never block or allocate on success.
type Engine interface {
	Start() error
	Stop() error
	ChangeFormat(rate int) error
	CurrentFramePosition() int

	ClipOutput(mix []byte, firstFrame, frameCount int, format audio.Format) error
	ConvertInput(dst []byte, firstFrame, frameCount int, format audio.Format) error
}

var _ Engine = (*Cable)(nil)
