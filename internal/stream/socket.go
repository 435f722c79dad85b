// Package stream maintains one persistent bidirectional text-frame
// connection to the streaming service. Inbound frames are delivered to a
// caller-supplied sink; the read loop runs on its own goroutine until
// Close or a connection-level failure.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tda-gateway/internal/logger"
)

const (
	writeWait  = 2 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024 * 1024
)

// State is the connection lifecycle. Writes are accepted only in Open.
type State int

const (
	Closed State = iota
	Connecting
	Open
	Closing
)

var stateNames = map[State]string{
	Closed:     "closed",
	Connecting: "connecting",
	Open:       "open",
	Closing:    "closing",
}

func (s State) String() string { return stateNames[s] }

// ErrNotOpen is returned by Write when the session is not in the Open
// state.
var ErrNotOpen = errors.New("stream: session is not open")

// Sink receives inbound frames and the terminal close notification.
type Sink interface {
	OnMessage(message []byte)
	OnClose(err error)
}

// Socket is a single streaming session. Write and Close may be called
// from any goroutine; they are serialized against each other and
// against the read loop's teardown path by mu.
type Socket struct {
	sink Sink

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	done  chan struct{}
}

func NewSocket(sink Sink) *Socket {
	return &Socket{sink: sink, state: Closed}
}

// Open establishes the connection and begins the asynchronous read loop.
func (s *Socket) Open(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.state != Closed {
		s.mu.Unlock()
		return errors.New("stream: session already " + s.state.String())
	}
	s.state = Connecting
	s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()
		return err
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.mu.Lock()
	s.conn = conn
	s.state = Open
	s.done = make(chan struct{})
	s.mu.Unlock()

	logger.Info(ctx, "Streaming session open", "url", url)
	go s.readLoop()
	go s.pingLoop()
	return nil
}

// Write enqueues one text frame for transmission.
func (s *Socket) Write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Open {
		return ErrNotOpen
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close performs an orderly shutdown. After Close returns no further
// writes are accepted.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return nil
	}
	s.state = Closing
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	// Give the peer a moment to echo the close frame, then tear down.
	select {
	case <-done:
	case <-time.After(writeWait):
	}

	s.teardown(nil)
	return nil
}

// State reports the current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) readLoop() {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	defer close(done)
	for {
		kind, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.teardown(err)
				return
			}
			s.teardown(nil)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.sink.OnMessage(message)
	}
}

func (s *Socket) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != Open {
				s.mu.Unlock()
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// teardown marks the session closed exactly once and notifies the sink.
func (s *Socket) teardown(cause error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cause != nil {
		logger.Warn(context.Background(), "Streaming session failed", "error", cause)
	}
	s.sink.OnClose(cause)
}
