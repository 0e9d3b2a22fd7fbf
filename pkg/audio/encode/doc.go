// ABOUTME: Audio encoder package for the tap stream
// ABOUTME: Provides Encoder interface and implementations for PCM and Opus
// Package encode turns float32 cable audio into tap wire formats.
//
// Supports: 16-bit PCM, Opus (48 kHz, 20ms frames)
//
// Example:
//
//	encoder, err := encode.New(format)
//	data, err := encoder.Encode(samples)
package encode
