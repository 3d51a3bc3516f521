// Package wstransport adapts a gorilla/websocket connection into
// rpc.InputStream/rpc.OutputStream, so the Content-Length framed byte
// stream the core package speaks can ride over a WebSocket connection
// just as it would over a pipe or TCP socket: each Read drains the
// current inbound WebSocket message and blocks for the next one once
// exhausted; each Write sends one binary WebSocket message per call.
package wstransport

import (
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// upgrader accepts any origin; an endpoint kernel has no browser-origin
// policy of its own to enforce, so that decision is left to whatever
// HTTP middleware wraps Upgrade.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Stream is a duplex rpc.InputStream/rpc.OutputStream backed by a single
// *websocket.Conn. Reads and writes are each safe for the one reader
// goroutine / one writer goroutine gorilla/websocket itself assumes;
// FrameWriter's own mutex is what actually guarantees a single writer in
// the Dispatcher, so Stream adds no write lock of its own beyond the read
// buffer's.
type Stream struct {
	conn *websocket.Conn

	readMu  sync.Mutex
	pending []byte

	dead atomic.Bool
}

// Upgrade upgrades an incoming HTTP request to a WebSocket connection and
// wraps it as a Stream.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn}, nil
}

func (s *Stream) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for len(s.pending) == 0 {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.dead.Store(true)
			return 0, err
		}
		s.pending = data
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Stream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		s.dead.Store(true)
		return 0, err
	}
	return len(p), nil
}

func (s *Stream) Alive() bool { return !s.dead.Load() }

// Close closes the underlying connection.
func (s *Stream) Close() error {
	s.dead.Store(true)
	return s.conn.Close()
}

var _ io.ReadWriteCloser = (*Stream)(nil)
