package stdiotransport_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/firi/rpcendpoint/internal/transport/stdiotransport"
)

func TestStartProcessEchoesStdin(t *testing.T) {
	proc, err := stdiotransport.StartProcess("cat")
	if err != nil {
		t.Skipf("cat not available: %v", err)
	}

	n, err := proc.Out.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	buf := make([]byte, 6)
	_, err = io.ReadFull(proc.In, buf)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(buf))

	require.NoError(t, proc.Stop(0))
}

func TestStopKillsUnresponsiveProcess(t *testing.T) {
	proc, err := stdiotransport.StartProcess("sleep", "30")
	if err != nil {
		t.Skipf("sleep not available: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- proc.Stop(50 * time.Millisecond) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return within the grace-plus-kill window")
	}
}
