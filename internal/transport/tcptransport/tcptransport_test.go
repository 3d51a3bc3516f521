package tcptransport_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firi/rpcendpoint/internal/transport/tcptransport"
)

func TestServeEchoesToEachConnection(t *testing.T) {
	srv, err := tcptransport.Listen("tcp", "127.0.0.1:0", func(c *tcptransport.Conn) {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		c.Write(buf)
	})
	require.NoError(t, err)
	defer srv.Close()

	go srv.Serve()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)

		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)

		buf := make([]byte, 5)
		_, err = io.ReadFull(conn, buf)
		require.NoError(t, err)
		require.Equal(t, "hello", string(buf))

		conn.Close()
	}
}

func TestCloseStopsAcceptingNewConnections(t *testing.T) {
	srv, err := tcptransport.Listen("tcp", "127.0.0.1:0", func(c *tcptransport.Conn) {})
	require.NoError(t, err)

	addr := srv.Addr().String()
	go srv.Serve()
	require.NoError(t, srv.Close())

	time.Sleep(20 * time.Millisecond)
	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.Error(t, err)
}
