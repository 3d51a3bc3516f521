package main

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/firi/rpcendpoint/internal/daemon"
	"github.com/firi/rpcendpoint/internal/rpc"
	"github.com/firi/rpcendpoint/internal/rpcdemo"
)

// passiveEndpoint is the LocalEndpoint a one-shot client attaches: it
// never expects the daemon to call back with a request of its own and
// ignores one if it arrives (no response is sent), and prints
// notifications to stdout.
type passiveEndpoint struct{}

func (passiveEndpoint) OnRequest(req rpc.Request, msg rpc.TypedMessage) {}

func (passiveEndpoint) OnResponse(method string, resp rpc.Response, msg rpc.TypedMessage) {}

func (passiveEndpoint) Notify(n rpc.Notification, msg rpc.TypedMessage) {
	fmt.Printf("notification: %s %v\n", n.Method, msg)
}

var _ rpc.LocalEndpoint = passiveEndpoint{}

// dialDispatcher connects to the daemon's Unix socket for workDir and
// returns a running Dispatcher the caller must Stop when done.
func dialDispatcher() (*rpc.Dispatcher, net.Conn, error) {
	socketPath := daemon.GetSocketPath(workDir)
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to daemon socket %s (is \"rpcendpointctl serve\" running?): %w", socketPath, err)
	}

	d := rpc.NewDispatcher(rpc.Config{
		Catalog: rpcdemo.Catalog(),
		Local:   passiveEndpoint{},
	})
	stream := clientStream{conn}
	if err := d.Start(stream, stream); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return d, conn, nil
}

type clientStream struct{ net.Conn }

func (clientStream) Alive() bool { return true }

func parseParams(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parsing --params as JSON: %w", err)
	}
	return v, nil
}
