// ABOUTME: WebSocket tap streaming one cable's consumer side to listeners
// ABOUTME: Manages connections, handshake, per-client send queues and mDNS
package tap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/vac-go/internal/discovery"
	"github.com/Resonate-Protocol/vac-go/internal/protocol"
	"github.com/Resonate-Protocol/vac-go/internal/version"
	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeDeadline    = 10 * time.Second
	pingInterval     = 30 * time.Second
)

var (
	// ErrClosed is returned when the tap no longer accepts listeners
	ErrClosed = errors.New("tap closed")

	errDuplicateClient = errors.New("duplicate client id")
)

// Config holds tap configuration
type Config struct {
	Port       int
	Name       string
	Cable      string
	Codec      string // "opus" or "pcm"
	EnableMDNS bool
	Debug      bool

	// QueueDepth bounds both the block queue from the mixer and each
	// client's send queue
	QueueDepth int
}

// Server is a cable tap. It is a host.Consumer.
type Server struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex
	current   *protocol.StreamStart
	closed    bool

	clockStart time.Time
	mdns       *discovery.Manager

	blocks chan block
	stream *stream

	framesSent    atomic.Uint64
	blocksDropped atomic.Uint64

	stopChan  chan struct{}
	stopOnce  sync.Once
	encodeEnd chan struct{}
	wg        sync.WaitGroup
}

// Client is a connected listener
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan interface{}
	dropped  atomic.Uint64
}

// Dropped returns how many messages were discarded for this client
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// New creates a tap and starts its encoder goroutine
func New(config Config) (*Server, error) {
	switch config.Codec {
	case "":
		config.Codec = audio.CodecOpus
	case audio.CodecOpus, audio.CodecPCM:
	default:
		return nil, fmt.Errorf("unsupported tap codec %q", config.Codec)
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 64
	}
	if config.Name == "" {
		config.Name = version.ShortName + " " + config.Cable
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Listeners are native clients on the local network
				return true
			},
		},
		clients:    make(map[string]*Client),
		clockStart: time.Now(),
		blocks:     make(chan block, config.QueueDepth),
		stopChan:   make(chan struct{}),
		encodeEnd:  make(chan struct{}),
	}
	s.stream = newStream(config.Codec, s.emitStart, s.emitFrame)
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)

	go s.encodeLoop()
	return s, nil
}

// ID returns the server id sent in server/hello
func (s *Server) ID() string { return s.serverID }

// Handler returns the HTTP handler serving the tap endpoint
func (s *Server) Handler() http.Handler { return s.mux }

// Name identifies the tap as a cable consumer
func (s *Server) Name() string { return "tap:" + s.config.Cable }

// Consume queues a copy of one IO block. Full queues drop the block.
func (s *Server) Consume(samples []float32, sampleRate int) {
	select {
	case <-s.stopChan:
		return
	default:
	}

	b := block{
		samples:   append([]float32(nil), samples...),
		rate:      sampleRate,
		timestamp: s.getClockMicros(),
	}
	select {
	case s.blocks <- b:
	default:
		s.blocksDropped.Add(1)
	}
}

// Run listens on the configured port until ctx is done or Close is called
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tap listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Close is called
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.EnableMDNS {
		port := s.config.Port
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		s.mdns = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Cable:       s.config.Cable,
		})
		if err := s.mdns.Advertise(); err != nil {
			log.Printf("[tap] mDNS advertisement failed: %v", err)
		}
	}

	httpServer := &http.Server{Handler: s.mux}
	log.Printf("[tap] %s (ID: %s) serving cable %s on %s%s, codec %s",
		s.config.Name, s.serverID, s.config.Cable, ln.Addr(), protocol.Path, s.config.Codec)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case <-s.stopChan:
		serveErr = ErrClosed
	case err := <-errChan:
		serveErr = fmt.Errorf("tap http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[tap] http shutdown error: %v", err)
	}
	s.Close()

	if errors.Is(serveErr, ErrClosed) {
		return nil
	}
	return serveErr
}

// Close disconnects all listeners and stops the encoder
func (s *Server) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.encodeEnd

		if s.mdns != nil {
			s.mdns.Stop()
		}

		s.clientsMu.Lock()
		s.closed = true
		for _, c := range s.clients {
			c.Conn.Close()
		}
		s.clientsMu.Unlock()

		s.wg.Wait()
		log.Printf("[tap] %s stopped (%d frames sent, %d blocks dropped)",
			s.config.Name, s.framesSent.Load(), s.blocksDropped.Load())
	})
	return nil
}

// Clients returns the number of connected listeners
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// FramesSent returns the number of audio frames encoded and queued
func (s *Server) FramesSent() uint64 { return s.framesSent.Load() }

// BlocksDropped returns IO blocks lost because the encoder was behind
func (s *Server) BlocksDropped() uint64 { return s.blocksDropped.Load() }

func (s *Server) encodeLoop() {
	defer close(s.encodeEnd)
	defer s.stream.close()

	for {
		select {
		case <-s.stopChan:
			return
		case b := <-s.blocks:
			if err := s.stream.push(b); err != nil && s.config.Debug {
				log.Printf("[tap] encode: %v", err)
			}
		}
	}
}

// emitStart records the new stream format and tells every listener
func (s *Server) emitStart(start protocol.StreamStart) {
	start.Cable = s.config.Cable
	msg := protocol.Message{Type: protocol.TypeStreamStart, Payload: start}

	s.clientsMu.Lock()
	s.current = &start
	for _, c := range s.clients {
		s.enqueue(c, msg)
	}
	s.clientsMu.Unlock()

	log.Printf("[tap] stream/start %s %d Hz %d ch", start.Codec, start.SampleRate, start.Channels)
}

// emitFrame sends one encoded payload to every listener
func (s *Server) emitFrame(timestamp int64, payload []byte) {
	frame := protocol.EncodeFrame(timestamp, payload)
	s.framesSent.Add(1)

	s.clientsMu.RLock()
	for _, c := range s.clients {
		s.enqueue(c, frame)
	}
	s.clientsMu.RUnlock()
}

// enqueue must be called with clientsMu held
func (s *Server) enqueue(c *Client, msg interface{}) {
	select {
	case c.sendChan <- msg:
	default:
		c.dropped.Add(1)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.stopChan:
		http.Error(w, "tap closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[tap] websocket upgrade error: %v", err)
		return
	}

	if s.config.Debug {
		log.Printf("[tap] new connection from %s", r.RemoteAddr)
	}
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("[tap] rejecting connection: %v", err)
		writeError(conn, protocol.ErrorBadHello, err.Error())
		return
	}

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, s.config.QueueDepth),
	}

	if err := s.register(client); err != nil {
		if errors.Is(err, errDuplicateClient) {
			log.Printf("[tap] client ID %s already connected, rejecting duplicate", hello.ClientID)
			writeError(conn, protocol.ErrorDuplicateClient, "Client ID already connected")
		}
		return
	}
	log.Printf("[tap] client connected: %s (ID: %s)", client.Name, client.ID)

	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		log.Printf("[tap] client disconnected: %s (%d dropped)", client.Name, client.Dropped())
	}()

	// Listeners only speak during the handshake; reading detects the close
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.config.Debug {
				log.Printf("[tap] websocket error: %v", err)
			}
			return
		}
		if s.config.Debug {
			log.Printf("[tap] ignoring %d byte message from %s", len(data), client.Name)
		}
	}
}

// register adds the client and queues server/hello plus the current
// stream/start, so frames never precede the format announcement. The
// caller must start clientWriter when it succeeds.
func (s *Server) register(c *Client) error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, exists := s.clients[c.ID]; exists {
		return errDuplicateClient
	}
	s.clients[c.ID] = c
	s.wg.Add(1)

	s.enqueue(c, protocol.Message{
		Type: protocol.TypeServerHello,
		Payload: protocol.ServerHello{
			ServerID: s.serverID,
			Name:     s.config.Name,
			Version:  protocol.Version,
			Cable:    s.config.Cable,
			DeviceInfo: &protocol.DeviceInfo{
				ProductName:     version.Product,
				Manufacturer:    version.Manufacturer,
				SoftwareVersion: version.Version,
			},
		},
	})
	if s.current != nil {
		s.enqueue(c, protocol.Message{Type: protocol.TypeStreamStart, Payload: *s.current})
	}
	return nil
}

func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("reading hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("unmarshaling message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}
	if hello.ClientID == "" {
		return hello, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing name")
	}
	return hello, nil
}

func writeError(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Error: code, Message: message},
	})
}

// clientWriter sends queued messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			var err error
			switch v := msg.(type) {
			case []byte:
				err = client.Conn.WriteMessage(websocket.BinaryMessage, v)
			default:
				err = client.Conn.WriteJSON(v)
			}
			if err != nil {
				log.Printf("[tap] write to %s failed: %v", client.Name, err)
				client.Conn.Close()
				drain(client.sendChan)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				drain(client.sendChan)
				return
			}
		}
	}
}

// drain discards messages until the handler closes the channel
func drain(ch chan interface{}) {
	for range ch {
	}
}

// getClockMicros returns the tap clock in microseconds
func (s *Server) getClockMicros() int64 {
	return time.Since(s.clockStart).Microseconds()
}
