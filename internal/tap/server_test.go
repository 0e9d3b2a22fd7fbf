// ABOUTME: Tests for the cable tap
// ABOUTME: Drives the websocket handshake, streaming and frame accumulation
package tap

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/vac-go/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTap(t *testing.T, codec string) (*Server, string) {
	t.Helper()

	s, err := New(Config{Cable: "SDR-RX", Codec: codec, QueueDepth: 32})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + protocol.Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendHello(t *testing.T, conn *websocket.Conn, id string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeClientHello,
		Payload: protocol.ClientHello{ClientID: id, Name: "listener " + id, Version: protocol.Version},
	}))
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestNewRejectsUnknownCodec(t *testing.T) {
	_, err := New(Config{Cable: "SDR-RX", Codec: "flac"})
	assert.Error(t, err)
}

func TestHandshakeAndStream(t *testing.T) {
	s, url := newTestTap(t, "pcm")
	conn := dial(t, url)
	sendHello(t, conn, "a")

	msg := readMessage(t, conn)
	require.Equal(t, protocol.TypeServerHello, msg.Type)
	var hello protocol.ServerHello
	require.NoError(t, protocol.DecodePayload(msg.Payload, &hello))
	assert.Equal(t, s.ID(), hello.ServerID)
	assert.Equal(t, "SDR-RX", hello.Cable)
	require.NotNil(t, hello.DeviceInfo)

	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = 0.5
	}
	s.Consume(samples, 48000)

	msg = readMessage(t, conn)
	require.Equal(t, protocol.TypeStreamStart, msg.Type)
	var start protocol.StreamStart
	require.NoError(t, protocol.DecodePayload(msg.Payload, &start))
	assert.Equal(t, protocol.StreamStart{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16, Cable: "SDR-RX"}, start)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	typ, _, payload, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.AudioFrameType), typ)
	assert.Len(t, payload, len(samples)*2)
	assert.Equal(t, 1, s.Clients())
}

func TestLateListenerGetsCurrentFormat(t *testing.T) {
	s, url := newTestTap(t, "pcm")

	first := dial(t, url)
	sendHello(t, first, "first")
	readMessage(t, first)

	s.Consume(make([]float32, 64), 44100)
	require.Equal(t, protocol.TypeStreamStart, readMessage(t, first).Type)

	late := dial(t, url)
	sendHello(t, late, "late")
	require.Equal(t, protocol.TypeServerHello, readMessage(t, late).Type)

	msg := readMessage(t, late)
	require.Equal(t, protocol.TypeStreamStart, msg.Type)
	var start protocol.StreamStart
	require.NoError(t, protocol.DecodePayload(msg.Payload, &start))
	assert.Equal(t, 44100, start.SampleRate)
}

func TestDuplicateClientRejected(t *testing.T) {
	_, url := newTestTap(t, "pcm")

	first := dial(t, url)
	sendHello(t, first, "same")
	require.Equal(t, protocol.TypeServerHello, readMessage(t, first).Type)

	second := dial(t, url)
	sendHello(t, second, "same")
	msg := readMessage(t, second)
	require.Equal(t, protocol.TypeServerError, msg.Type)

	var serverErr protocol.ServerError
	require.NoError(t, protocol.DecodePayload(msg.Payload, &serverErr))
	assert.Equal(t, protocol.ErrorDuplicateClient, serverErr.Error)
}

func TestBadHelloRejected(t *testing.T) {
	_, url := newTestTap(t, "pcm")

	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(protocol.Message{Type: "client/time", Payload: map[string]int{"t": 1}}))

	msg := readMessage(t, conn)
	require.Equal(t, protocol.TypeServerError, msg.Type)
	var serverErr protocol.ServerError
	require.NoError(t, protocol.DecodePayload(msg.Payload, &serverErr))
	assert.Equal(t, protocol.ErrorBadHello, serverErr.Error)
}

func TestCloseDisconnectsListeners(t *testing.T) {
	s, url := newTestTap(t, "pcm")

	conn := dial(t, url)
	sendHello(t, conn, "a")
	readMessage(t, conn)

	require.NoError(t, s.Close())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, s.Clients())
}

type capturedFrame struct {
	timestamp int64
	size      int
}

func TestStreamOpusAccumulatesWholeFrames(t *testing.T) {
	var starts []protocol.StreamStart
	var frames []capturedFrame
	st := newStream("opus",
		func(s protocol.StreamStart) { starts = append(starts, s) },
		func(ts int64, p []byte) { frames = append(frames, capturedFrame{ts, len(p)}) },
	)
	defer st.close()

	// 512-frame blocks; one 20ms opus frame is 960 frames
	for i := 0; i < 15; i++ {
		require.NoError(t, st.push(block{samples: make([]float32, 1024), rate: 48000, timestamp: int64(i) * 10_666}))
	}

	require.Len(t, starts, 1)
	assert.Equal(t, "opus", starts[0].Codec)
	require.Len(t, frames, 8)
	assert.Equal(t, int64(0), frames[0].timestamp)
	assert.Equal(t, int64(20_000), frames[1].timestamp)
	assert.Empty(t, st.pending)
}

func TestStreamFallsBackToPCMOffOpusRate(t *testing.T) {
	var starts []protocol.StreamStart
	var frames []capturedFrame
	st := newStream("opus",
		func(s protocol.StreamStart) { starts = append(starts, s) },
		func(ts int64, p []byte) { frames = append(frames, capturedFrame{ts, len(p)}) },
	)
	defer st.close()

	require.NoError(t, st.push(block{samples: make([]float32, 1024), rate: 44100, timestamp: 7}))
	require.NoError(t, st.push(block{samples: make([]float32, 1024), rate: 48000, timestamp: 8}))

	require.Len(t, starts, 2)
	assert.Equal(t, "pcm", starts[0].Codec)
	assert.Equal(t, 44100, starts[0].SampleRate)
	assert.Equal(t, "opus", starts[1].Codec)

	require.Len(t, frames, 1)
	assert.Equal(t, capturedFrame{timestamp: 7, size: 2048}, frames[0])
}
