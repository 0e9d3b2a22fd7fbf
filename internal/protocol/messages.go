// ABOUTME: Tap protocol message type definitions
// ABOUTME: JSON control messages plus the binary audio frame layout
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Version is the tap protocol version
	Version = 1

	// Path is the websocket endpoint served by a tap
	Path = "/vac"

	// AudioFrameType tags binary audio frames
	AudioFrameType = 1

	// FrameHeaderSize is the type byte plus the 8-byte timestamp
	FrameHeaderSize = 1 + 8
)

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeStreamStart = "stream/start"
	TypeServerError = "server/error"
)

// Error codes carried in server/error
const (
	ErrorDuplicateClient = "duplicate_client_id"
	ErrorBadHello        = "bad_hello"
)

// ErrShortFrame is returned for binary frames smaller than the header
var ErrShortFrame = errors.New("binary frame too short")

// Message is the top-level wrapper for all control messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by a listener to open the session
type ClientHello struct {
	ClientID string   `json:"client_id"`
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Codecs   []string `json:"codecs,omitempty"`
}

// DeviceInfo identifies the device behind a tap
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello answers client/hello
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	Cable      string      `json:"cable"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// StreamStart announces the format of the frames that follow. It is sent
// again whenever the cable changes rate.
type StreamStart struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Cable      string `json:"cable"`
}

// ServerError is sent before the server closes a rejected connection
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodePayload re-decodes a generic payload into a typed struct
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// EncodeFrame builds [type:1][timestamp:8 big-endian][payload]
func EncodeFrame(timestamp int64, payload []byte) []byte {
	frame := make([]byte, FrameHeaderSize+len(payload))
	frame[0] = AudioFrameType
	binary.BigEndian.PutUint64(frame[1:FrameHeaderSize], uint64(timestamp))
	copy(frame[FrameHeaderSize:], payload)
	return frame
}

// DecodeFrame splits a binary frame. The payload aliases data.
func DecodeFrame(data []byte) (frameType byte, timestamp int64, payload []byte, err error) {
	if len(data) < FrameHeaderSize {
		return 0, 0, nil, fmt.Errorf("%d bytes: %w", len(data), ErrShortFrame)
	}
	frameType = data[0]
	timestamp = int64(binary.BigEndian.Uint64(data[1:FrameHeaderSize]))
	return frameType, timestamp, data[FrameHeaderSize:], nil
}
