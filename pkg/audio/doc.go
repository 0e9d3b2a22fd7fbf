// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and float32 sample conversion functions
// Package audio provides the audio types shared by the cable engine and its endpoints.
//
// A virtual cable never leaves the float32 interleaved representation, so most
// helpers here convert between float32 samples and their little-endian byte
// encoding, or down to 16-bit PCM for sinks that need it.
//
// Example:
//
//	format := audio.Float32Stereo(48000)
//	buf := make([]byte, 512*format.FrameBytes())
//	audio.PutFloat32s(buf, samples)
package audio
