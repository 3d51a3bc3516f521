// Package daemon hosts one rpc.Dispatcher per accepted connection over a
// Unix domain socket, broadcasting a workspace-change notification to
// every live connection when a watched file changes, and shutting itself
// down after an idle period with no connections. The LocalEndpoint and
// MessageCatalog each connection serves are supplied by the caller.
package daemon

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/firi/rpcendpoint/internal/logger"
	"github.com/firi/rpcendpoint/internal/rpc"
)

// EndpointFactory builds a fresh LocalEndpoint (and its matching
// MessageCatalog) for each accepted connection. Most callers share one
// MessageCatalog across connections and build only a new LocalEndpoint
// per connection, since a LocalEndpoint is free to carry per-connection
// state. If the returned LocalEndpoint implements
// `SetDispatcher(*rpc.Dispatcher)`, the Daemon calls it once the
// connection's Dispatcher exists, resolving the circular reference a
// self-replying endpoint (like rpcdemo.Endpoint) needs.
type EndpointFactory func() (rpc.LocalEndpoint, rpc.MessageCatalog)

// Config configures a Daemon.
type Config struct {
	WorkDir     string
	NewEndpoint EndpointFactory
	IdleTimeout time.Duration // defaults to 30 minutes
	MaxWorkers  int

	// Metrics, if non-nil, is shared across every connection's Dispatcher.
	Metrics rpc.Metrics

	// RateLimit, if non-nil, bounds how fast each connection's WorkerPool
	// admits new jobs. See rpc.WithRateLimit.
	RateLimit *rate.Limiter
}

// Daemon is a long-lived process hosting any number of concurrent
// Dispatcher connections, one per client.
type Daemon struct {
	cfg     Config
	log     *logger.FileLogger
	watcher *FileWatcher

	listener net.Listener

	mu          sync.Mutex
	connections map[string]*rpc.Dispatcher
	idleTimer   *time.Timer
	shutdown    chan struct{}
	startTime   time.Time
}

// Run starts a Daemon for cfg and blocks until it shuts down (idle
// timeout, SIGTERM/SIGINT, or an unrecoverable startup error, which is
// returned).
func Run(cfg Config) error {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}

	d := &Daemon{
		cfg:         cfg,
		connections: make(map[string]*rpc.Dispatcher),
		shutdown:    make(chan struct{}),
		startTime:   time.Now(),
	}

	if err := TruncateLogFile(GetLogPath(cfg.WorkDir), 10*1024*1024); err != nil {
		return fmt.Errorf("truncating log: %w", err)
	}
	fileLog, err := logger.NewFileLogger(GetLogPath(cfg.WorkDir), rpc.LogInfo)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	d.log = fileLog
	defer fileLog.Close()

	lock, err := AcquireLock(cfg.WorkDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	listener, err := net.Listen("unix", lock.SocketPath())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", lock.SocketPath(), err)
	}
	d.listener = listener

	d.watcher, err = NewFileWatcher(cfg.WorkDir, d.onFilesChanged, d.log)
	if err != nil {
		d.log.Log(rpc.LogWarning, "file watcher disabled: "+err.Error())
	} else {
		defer d.watcher.Stop()
	}

	d.resetIdleTimer()
	d.setupSignalHandlers()

	go d.acceptConnections()
	d.log.Log(rpc.LogInfo, fmt.Sprintf("daemon listening on %s", lock.SocketPath()))

	<-d.shutdown
	d.log.Log(rpc.LogInfo, "daemon shutting down")
	listener.Close()
	d.stopAllConnections()
	return nil
}

// resetIdleTimer arms (or rearms) the idle shutdown countdown. It runs
// only while no connections are live: accepting a connection pauses it,
// and closing the last connection rearms it.
func (d *Daemon) resetIdleTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.cfg.IdleTimeout, func() {
		d.log.Log(rpc.LogInfo, "idle timeout reached")
		d.closeShutdown()
	})
}

// pauseIdleTimer stops the countdown while at least one connection is
// live.
func (d *Daemon) pauseIdleTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
}

func (d *Daemon) closeShutdown() {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}
}

func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		d.log.Log(rpc.LogInfo, fmt.Sprintf("received signal: %v", sig))
		d.closeShutdown()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.shutdown:
				return
			default:
				d.log.Log(rpc.LogWarning, "accept error: "+err.Error())
				continue
			}
		}
		d.pauseIdleTimer()
		go d.handleConnection(conn)
	}
}

type connStream struct{ net.Conn }

func (connStream) Alive() bool { return true }

func (d *Daemon) handleConnection(conn net.Conn) {
	connID := uuid.NewString()
	d.log.Log(rpc.LogInfo, "connection "+connID+" accepted")

	local, catalog := d.cfg.NewEndpoint()
	var poolOpts []rpc.WorkerPoolOption
	if d.cfg.RateLimit != nil {
		poolOpts = append(poolOpts, rpc.WithRateLimit(d.cfg.RateLimit))
	}
	dispatcher := rpc.NewDispatcher(rpc.Config{
		Catalog:     catalog,
		Local:       local,
		Log:         d.log,
		MaxWorkers:  d.cfg.MaxWorkers,
		Metrics:     d.cfg.Metrics,
		PoolOptions: poolOpts,
	})
	if setter, ok := local.(interface{ SetDispatcher(*rpc.Dispatcher) }); ok {
		setter.SetDispatcher(dispatcher)
	}

	d.mu.Lock()
	d.connections[connID] = dispatcher
	d.mu.Unlock()

	stream := connStream{conn}
	if err := dispatcher.Start(stream, stream); err != nil {
		d.log.Log(rpc.LogSevere, "connection "+connID+": "+err.Error())
		conn.Close()
		d.forgetConnection(connID)
		return
	}

	// Start returns immediately; block this goroutine until the
	// Dispatcher's own producer goroutine exits (peer disconnected or
	// framing died past recovery), so each connection is owned by one
	// goroutine for the life of its socket.
	<-dispatcher.Done()
	dispatcher.Stop()
	conn.Close()
	d.forgetConnection(connID)
	d.log.Log(rpc.LogInfo, "connection "+connID+" closed")
}

func (d *Daemon) forgetConnection(connID string) {
	d.mu.Lock()
	delete(d.connections, connID)
	empty := len(d.connections) == 0
	d.mu.Unlock()
	if empty {
		d.resetIdleTimer()
	}
}

func (d *Daemon) stopAllConnections() {
	d.mu.Lock()
	dispatchers := make([]*rpc.Dispatcher, 0, len(d.connections))
	for _, disp := range d.connections {
		dispatchers = append(dispatchers, disp)
	}
	d.mu.Unlock()

	for _, disp := range dispatchers {
		disp.Stop()
	}
}

// onFilesChanged broadcasts a workspace-change notification to every
// live connection.
func (d *Daemon) onFilesChanged(files []string) {
	d.log.Log(rpc.LogInfo, fmt.Sprintf("workspace changed: %d file(s)", len(files)))

	d.mu.Lock()
	dispatchers := make([]*rpc.Dispatcher, 0, len(d.connections))
	for _, disp := range d.connections {
		dispatchers = append(dispatchers, disp)
	}
	d.mu.Unlock()

	for _, disp := range dispatchers {
		_ = disp.SendNotification("workspace/didChangeWatchedFiles", map[string]any{"files": files})
	}
}
