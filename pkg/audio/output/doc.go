// ABOUTME: Audio output package for monitoring and recording cables
// ABOUTME: Provides Output interface with oto, malgo, PortAudio and WAV backends
// Package output provides audio sinks for float32 samples.
//
// Playback backends: oto (default), malgo, and PortAudio (build with
// -tags portaudio). WAVRecorder writes 16-bit WAV files.
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(48000, 2)
//	err = out.Write(samples)
package output
