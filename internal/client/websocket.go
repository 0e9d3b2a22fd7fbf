// ABOUTME: WebSocket client for cable taps
// ABOUTME: Handles connection, handshake, and routing of frames and format changes
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/vac-go/internal/protocol"
	"github.com/gorilla/websocket"
)

// ErrRejected is returned when the tap answers the hello with server/error
var ErrRejected = errors.New("rejected by tap")

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string
	ClientID   string
	Name       string
	Codecs     []string
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  protocol.ServerHello

	// Message channels
	Frames      chan Frame
	StreamStart chan Stream

	// State
	connected bool
	stream    uint64 // owned by readMessages
	ctx       context.Context
	cancel    context.CancelFunc
}

// Frame is one timestamped encoded payload
type Frame struct {
	Timestamp int64  // Microseconds, tap clock
	Data      []byte // Encoded audio
	Stream    uint64 // ID of the stream/start this frame belongs to, 0 before any
}

// Stream is a stream/start numbered in arrival order, starting at 1.
// Frames and starts travel on separate channels; Frame.Stream ties them back together.
type Stream struct {
	protocol.StreamStart
	ID uint64
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = protocol.Path
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		Frames:      make(chan Frame, 100),
		StreamStart: make(chan Stream, 4),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("[client] connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		Codecs:   c.config.Codecs,
	}

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		protocol.DecodePayload(msg.Payload, &serverErr)
		return fmt.Errorf("%s: %w", serverErr.Error, ErrRejected)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.hello = serverHello
	c.mu.Unlock()

	log.Printf("[client] handshake complete with %s (cable %s)", serverHello.Name, serverHello.Cable)
	return nil
}

// ServerHello returns the tap's hello
func (c *Client) ServerHello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("[client] read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage handles audio frames
func (c *Client) handleBinaryMessage(data []byte) {
	typ, timestamp, payload, err := protocol.DecodeFrame(data)
	if err != nil {
		log.Printf("[client] invalid binary message: %v", err)
		return
	}
	if typ != protocol.AudioFrameType {
		log.Printf("[client] unknown binary message type: %d", typ)
		return
	}

	select {
	case c.Frames <- Frame{Timestamp: timestamp, Data: payload, Stream: c.stream}:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[client] failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeStreamStart:
		var start protocol.StreamStart
		if err := protocol.DecodePayload(msg.Payload, &start); err != nil {
			log.Printf("[client] bad stream/start: %v", err)
			return
		}
		c.stream++
		select {
		case c.StreamStart <- Stream{StreamStart: start, ID: c.stream}:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		protocol.DecodePayload(msg.Payload, &serverErr)
		log.Printf("[client] server error: %s (%s)", serverErr.Error, serverErr.Message)

	default:
		log.Printf("[client] unknown message type: %s", msg.Type)
	}
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("[client] connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
