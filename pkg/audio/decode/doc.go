// ABOUTME: Audio decoder package for cable producers and tap listeners
// ABOUTME: Provides file sources, a test tone, and PCM/Opus packet decoders
// Package decode produces float32 audio.
//
// Sources feed a cable's producer side: MP3, FLAC, WAV and Ogg Vorbis files
// (looped at end of stream) and a sine test tone. Decoders turn tap payloads
// (16-bit PCM, Opus) back into samples.
//
// Example:
//
//	src, err := decode.Open("music.flac", 48000)
//	n, err := src.Read(samples)
package decode
