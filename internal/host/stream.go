// ABOUTME: Cable streams with client registries
// ABOUTME: The output stream's client count drives the cable's mute state
package host

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Direction of a stream as seen from the applications using the cable
type Direction int

const (
	// DirectionOutput is the side producers play into
	DirectionOutput Direction = iota
	// DirectionInput is the side consumers record from
	DirectionInput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// Stream tracks the clients attached to one side of a cable
type Stream struct {
	direction Direction

	mu      sync.RWMutex
	clients map[string]string // id -> display name
	count   atomic.Int64
}

// NewStream creates an empty stream
func NewStream(direction Direction) *Stream {
	return &Stream{
		direction: direction,
		clients:   make(map[string]string),
	}
}

// Direction returns the stream direction
func (s *Stream) Direction() Direction { return s.direction }

// Attach registers a client and returns its id
func (s *Stream) Attach(name string) string {
	id := uuid.New().String()

	s.mu.Lock()
	s.clients[id] = name
	s.count.Store(int64(len(s.clients)))
	s.mu.Unlock()

	return id
}

// Detach removes a client. It reports whether the id was attached.
func (s *Stream) Detach(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[id]; !ok {
		return false
	}
	delete(s.clients, id)
	s.count.Store(int64(len(s.clients)))
	return true
}

// Clients returns the number of attached clients without locking
func (s *Stream) Clients() int {
	return int(s.count.Load())
}

// ProducerClients lets an output stream serve as the cable's client counter
func (s *Stream) ProducerClients() int {
	return s.Clients()
}

// ClientNames returns the attached client names, sorted
func (s *Stream) ClientNames() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.clients))
	for _, name := range s.clients {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}
