// ABOUTME: Transfer buffer holding what is currently on the cable
// ABOUTME: Fixed-size interleaved float32 storage with bounds-checked byte-range copies
package cable

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// TransferBuffer is a fixed array of ChunkSize*ChunkCount stereo float32
// frames. Each sample is stored as one atomic 32-bit word holding its
// little-endian bit pattern, so the clip, convert and zeroing paths can
// overlap without a data race. A concurrent read may see a mix of old and
// new samples; it never sees a torn sample.
type TransferBuffer struct {
	words  []atomic.Uint32
	frames int
}

// NewTransferBuffer allocates a buffer for chunkCount chunks of chunkSize frames
func NewTransferBuffer(chunkSize, chunkCount int) (*TransferBuffer, error) {
	if chunkSize <= 0 || chunkCount <= 0 {
		return nil, fmt.Errorf("%w: buffer geometry %dx%d", ErrInvalidConfig, chunkSize, chunkCount)
	}
	const maxInt = int(^uint(0) >> 1)
	if chunkSize > maxInt/chunkCount/FrameBytes {
		return nil, fmt.Errorf("%w: buffer geometry %dx%d overflows", ErrInvalidConfig, chunkSize, chunkCount)
	}

	frames := chunkSize * chunkCount
	return &TransferBuffer{
		words:  make([]atomic.Uint32, frames*ChannelCount),
		frames: frames,
	}, nil
}

// Frames returns the capacity in frames
func (b *TransferBuffer) Frames() int {
	return b.frames
}

// Len returns the capacity in bytes
func (b *TransferBuffer) Len() int {
	return b.frames * FrameBytes
}

// Write copies frameCount frames from src into the buffer. The byte offset
// firstFrame*FrameBytes is used on both sides.
func (b *TransferBuffer) Write(src []byte, firstFrame, frameCount int) error {
	if err := b.checkRange(firstFrame, frameCount); err != nil {
		return err
	}
	off := firstFrame * FrameBytes
	n := frameCount * FrameBytes
	if len(src) < off+n {
		return fmt.Errorf("%w: source has %d bytes, need %d", ErrShortBuffer, len(src), off+n)
	}

	w := firstFrame * ChannelCount
	for i := off; i < off+n; i += SampleBytes {
		b.words[w].Store(binary.LittleEndian.Uint32(src[i:]))
		w++
	}
	return nil
}

// Read fills dst starting at its offset 0. When muted it writes
// frameCount frames of silence. Otherwise it copies frameCount frames
// starting at firstFrame in the buffer.
func (b *TransferBuffer) Read(dst []byte, firstFrame, frameCount int, muted bool) error {
	if err := b.checkRange(firstFrame, frameCount); err != nil {
		return err
	}
	n := frameCount * FrameBytes
	if len(dst) < n {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrShortBuffer, len(dst), n)
	}

	if muted {
		clear(dst[:n])
		return nil
	}

	w := firstFrame * ChannelCount
	for i := 0; i < n; i += SampleBytes {
		binary.LittleEndian.PutUint32(dst[i:], b.words[w].Load())
		w++
	}
	return nil
}

// Zero clears every sample in the buffer
func (b *TransferBuffer) Zero() {
	for i := range b.words {
		b.words[i].Store(0)
	}
}

func (b *TransferBuffer) checkRange(firstFrame, frameCount int) error {
	if firstFrame < 0 || frameCount < 0 || firstFrame > b.frames || frameCount > b.frames-firstFrame {
		return fmt.Errorf("%w: frames [%d, %d+%d) outside buffer of %d",
			ErrFrameRange, firstFrame, firstFrame, frameCount, b.frames)
	}
	return nil
}
