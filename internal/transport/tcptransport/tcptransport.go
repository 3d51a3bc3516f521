// Package tcptransport runs a plain TCP accept loop that hands each
// connection to a caller-supplied handler, one Dispatcher per
// connection.
package tcptransport

import (
	"net"
	"sync/atomic"
)

// Conn adapts a net.Conn into rpc.InputStream and rpc.OutputStream.
type Conn struct {
	net.Conn
	dead atomic.Bool
}

func NewConn(c net.Conn) *Conn { return &Conn{Conn: c} }

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if err != nil {
		c.dead.Store(true)
	}
	return n, err
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if err != nil {
		c.dead.Store(true)
	}
	return n, err
}

func (c *Conn) Alive() bool { return !c.dead.Load() }

// Server accepts TCP connections on a fixed address and hands each one,
// wrapped as a *Conn, to Handle. It is multi-client: each accepted
// connection gets its own Conn and its own caller-managed Dispatcher,
// since a Dispatcher speaks to exactly one peer.
type Server struct {
	listener net.Listener
	Handle   func(*Conn)
}

// Listen starts listening on network/address (e.g. "tcp", "127.0.0.1:0")
// and returns a Server ready to Serve. The chosen address is available via
// Addr() once Listen returns, useful when binding to port 0.
func Listen(network, address string, handle func(*Conn)) (*Server, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &Server{listener: l, Handle: handle}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve blocks accepting connections until the listener is closed,
// spawning Handle(conn) in its own goroutine for each.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.Handle(NewConn(conn))
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}
