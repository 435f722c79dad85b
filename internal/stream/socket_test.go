package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures delivered frames and the close notification.
type recordingSink struct {
	frames chan []byte
	closed chan error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		frames: make(chan []byte, 16),
		closed: make(chan error, 1),
	}
}

func (s *recordingSink) OnMessage(message []byte) { s.frames <- message }
func (s *recordingSink) OnClose(err error)        { s.closed <- err }

// echoServer upgrades each request and echoes text frames back until the
// client closes or closeAfter frames have been echoed.
func echoServer(t *testing.T, closeAfter int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		echoed := 0
		for {
			kind, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			require.NoError(t, conn.WriteMessage(kind, message))
			echoed++
			if closeAfter > 0 && echoed >= closeAfter {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWriteBeforeOpen(t *testing.T) {
	socket := NewSocket(newRecordingSink())
	assert.Equal(t, Closed, socket.State())
	assert.ErrorIs(t, socket.Write("hello"), ErrNotOpen)
}

func TestSessionLifecycle(t *testing.T) {
	server := echoServer(t, 0)
	sink := newRecordingSink()
	socket := NewSocket(sink)

	require.NoError(t, socket.Open(context.Background(), wsURL(server)))
	assert.Equal(t, Open, socket.State())

	require.NoError(t, socket.Write("ping-payload"))
	select {
	case frame := <-sink.frames:
		assert.Equal(t, "ping-payload", string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("Echo frame never arrived")
	}

	require.NoError(t, socket.Close())
	assert.Equal(t, Closed, socket.State())

	select {
	case err := <-sink.closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Sink was never notified of close")
	}

	assert.ErrorIs(t, socket.Write("after close"), ErrNotOpen)
}

func TestOpenTwice(t *testing.T) {
	server := echoServer(t, 0)
	socket := NewSocket(newRecordingSink())

	require.NoError(t, socket.Open(context.Background(), wsURL(server)))
	defer socket.Close()

	assert.Error(t, socket.Open(context.Background(), wsURL(server)))
}

func TestPeerClose(t *testing.T) {
	server := echoServer(t, 1)
	sink := newRecordingSink()
	socket := NewSocket(sink)

	require.NoError(t, socket.Open(context.Background(), wsURL(server)))
	require.NoError(t, socket.Write("only-frame"))

	select {
	case frame := <-sink.frames:
		assert.Equal(t, "only-frame", string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("Echo frame never arrived")
	}

	// A normal close from the peer winds the session down cleanly.
	select {
	case err := <-sink.closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Sink was never notified of peer close")
	}
	assert.Equal(t, Closed, socket.State())
}

func TestDialFailureLeavesClosed(t *testing.T) {
	socket := NewSocket(newRecordingSink())
	err := socket.Open(context.Background(), "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
	assert.Equal(t, Closed, socket.State())
}
