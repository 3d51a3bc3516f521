// Package stdiotransport implements rpc.InputStream/rpc.OutputStream
// over either the current process's own stdio or a spawned child
// process's stdio pipes.
package stdiotransport

import (
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"
)

// Stream wraps an io.Reader or io.Writer with liveness tracking so a
// closed/broken stdio pipe reports Alive() == false instead of the
// Dispatcher having to infer death from a read error.
type Stream struct {
	r    io.Reader
	w    io.Writer
	c    io.Closer
	dead atomic.Bool
}

// NewStdio wraps the current process's own stdin/stdout. This is the mode
// an endpoint embedded in an editor extension or CLI pipeline runs in.
func NewStdio() (*Stream, *Stream) {
	in := &Stream{r: os.Stdin}
	out := &Stream{w: os.Stdout}
	return in, out
}

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil {
		s.dead.Store(true)
	}
	return n, err
}

func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.dead.Store(true)
	}
	return n, err
}

func (s *Stream) Alive() bool { return !s.dead.Load() }

func (s *Stream) Close() error {
	s.dead.Store(true)
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// Process is a spawned child whose stdin/stdout serve as a duplex
// InputStream/OutputStream pair. Its stderr is inherited so the child's
// own diagnostics stay visible.
type Process struct {
	cmd *exec.Cmd
	In  *Stream
	Out *Stream
}

// StartProcess launches name with args, connecting its stdout to the
// returned Process's In stream and its stdin to Out.
func StartProcess(name string, args ...string) (*Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &Process{
		cmd: cmd,
		In:  &Stream{r: stdout, c: stdout},
		Out: &Stream{w: stdin, c: stdin},
	}, nil
}

// Stop closes the child's stdin pipe (often enough to let a well-behaved
// peer exit on its own) and waits up to grace for it to exit before
// killing it outright.
func (p *Process) Stop(grace time.Duration) error {
	p.In.Close()
	p.Out.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		return p.cmd.Process.Kill()
	}
}
