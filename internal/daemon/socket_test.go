package daemon_test

import (
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firi/rpcendpoint/internal/daemon"
)

func TestGetSocketPathIsStableAndDistinct(t *testing.T) {
	a := daemon.GetSocketPath("/tmp/workdir-a")
	again := daemon.GetSocketPath("/tmp/workdir-a")
	b := daemon.GetSocketPath("/tmp/workdir-b")

	require.Equal(t, a, again)
	require.NotEqual(t, a, b)
	require.True(t, strings.HasSuffix(a, ".sock"))
}

func TestAcquireLockWritesLockAndReleaseRemovesIt(t *testing.T) {
	dir := t.TempDir()

	info, err := daemon.ReadLockFile(dir)
	require.NoError(t, err)
	require.Nil(t, info)

	lock, err := daemon.AcquireLock(dir)
	require.NoError(t, err)
	require.Equal(t, daemon.GetSocketPath(dir), lock.SocketPath())

	info, err = daemon.ReadLockFile(dir)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, os.Getpid(), info.PID)
	require.Equal(t, dir, info.WorkDir)
	require.NotZero(t, info.StartedAt)

	lock.Release()
	info, err = daemon.ReadLockFile(dir)
	require.NoError(t, err)
	require.Nil(t, info)
}

// writeLockFile plants a lock file describing an arbitrary daemon, the
// way a prior process would have left it behind.
func writeLockFile(t *testing.T, dir string, info daemon.LockInfo) {
	t.Helper()
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(daemon.GetLockPath(dir), data, 0644))
}

func TestAcquireLockEvictsDeadDaemon(t *testing.T) {
	dir := t.TempDir()
	writeLockFile(t, dir, daemon.LockInfo{
		PID:        999999999,
		SocketPath: daemon.GetSocketPath(dir),
		WorkDir:    dir,
	})

	lock, err := daemon.AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	info, err := daemon.ReadLockFile(dir)
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), info.PID)
}

func TestAcquireLockEvictsDaemonWhoseSocketIsGone(t *testing.T) {
	// The recorded process (this test binary) is alive, but nothing
	// listens on its socket, so the slot must be reclaimable. The
	// eviction SIGTERM goes to our own PID, so intercept it first.
	dir := t.TempDir()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)
	defer signal.Stop(sigs)

	writeLockFile(t, dir, daemon.LockInfo{
		PID:        os.Getpid(),
		SocketPath: daemon.GetSocketPath(dir),
		WorkDir:    dir,
		BuildTime:  time.Now().Add(time.Hour).Unix(),
	})

	lock, err := daemon.AcquireLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	select {
	case <-sigs:
	case <-time.After(time.Second):
		t.Fatal("expected the live-but-deaf daemon to be sent SIGTERM")
	}
}

func TestAcquireLockRefusesLiveDaemon(t *testing.T) {
	dir := t.TempDir()
	socketPath := daemon.GetSocketPath(dir)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	// BuildTime in the future so the probe can't dismiss the daemon as
	// built from an older binary.
	writeLockFile(t, dir, daemon.LockInfo{
		PID:        os.Getpid(),
		SocketPath: socketPath,
		WorkDir:    dir,
		BuildTime:  time.Now().Add(time.Hour).Unix(),
		StartedAt:  time.Now().Unix(),
	})

	_, err = daemon.AcquireLock(dir)
	require.ErrorIs(t, err, daemon.ErrDaemonRunning)
}

func TestTruncateLogFileKeepsWholeTailLines(t *testing.T) {
	dir := t.TempDir()
	logPath := dir + "/daemon.log"

	content := strings.Repeat("filler line\n", 100) + "TAIL_MARKER\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0644))

	require.NoError(t, daemon.TruncateLogFile(logPath, 500))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.True(t, len(data) < len(content))
	require.Contains(t, string(data), "TAIL_MARKER")

	// Every kept line after the truncation header must be intact.
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.True(t, strings.HasPrefix(lines[0], "=== log truncated"))
	for _, line := range lines[1 : len(lines)-1] {
		require.Equal(t, "filler line", line)
	}
}

func TestTruncateLogFileNoopUnderLimit(t *testing.T) {
	dir := t.TempDir()
	logPath := dir + "/daemon.log"
	require.NoError(t, os.WriteFile(logPath, []byte("small"), 0644))

	require.NoError(t, daemon.TruncateLogFile(logPath, 10*1024*1024))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Equal(t, "small", string(data))
}

func TestTruncateLogFileMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, daemon.TruncateLogFile(dir+"/missing.log", 10))
}

func TestGetLogPathIsScopedToWorkdir(t *testing.T) {
	a := daemon.GetLogPath("/tmp/workdir-a")
	b := daemon.GetLogPath("/tmp/workdir-b")
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "/tmp/workdir-a/"))
	require.True(t, strings.HasSuffix(a, "daemon.log"))
}
