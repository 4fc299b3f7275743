// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// session is one live conversation with an external prover process.
// Implementations own the process exclusively; it is never shared.
type session interface {
	// send writes one line to the process's standard input.
	send(line string) error

	// recvUntil collects output lines until stop matches one, the context
	// expires, or the process exits. The second return is true when the
	// wait timed out.
	recvUntil(ctx context.Context, stop func(line string) bool) ([]string, bool)

	// memoryBytes samples the process resident set size, best effort.
	memoryBytes() int64

	// alive reports whether the process is still running.
	alive() bool

	// shutdown sends the backend's graceful quit command, waits up to
	// grace, then forcibly terminates. Safe to call more than once and in
	// any state.
	shutdown(quitCmd string, grace time.Duration)
}

// procSession wraps a spawned prover process: piped stdin, line-pumped
// stdout/stderr, and guaranteed release on every exit path.
type procSession struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	pid   int

	lines   chan string
	exited  chan struct{}
	closing chan struct{}

	sendMu  sync.Mutex
	downMu  sync.Mutex
	down    bool
	pumps   sync.WaitGroup
	waitErr error
}

// startProcess launches cmd with captured standard streams and begins
// pumping its output. On any setup failure the process is reaped before the
// error returns, so a half-started session never leaks.
func startProcess(cmd *exec.Cmd) (*procSession, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	s := &procSession{
		cmd:     cmd,
		stdin:   stdin,
		pid:     cmd.Process.Pid,
		lines:   make(chan string, 256),
		exited:  make(chan struct{}),
		closing: make(chan struct{}),
	}

	s.pumps.Add(2)
	go s.pump(stdout)
	go s.pump(stderr)

	go func() {
		s.pumps.Wait()
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	return s, nil
}

// pump scans r line by line into the shared line channel until EOF or the
// session starts closing.
func (s *procSession) pump(r io.Reader) {
	defer s.pumps.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-s.closing:
			return
		}
	}
}

func (s *procSession) send(line string) error {
	if !s.alive() {
		return fmt.Errorf("prover process (pid %d) has exited", s.pid)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return fmt.Errorf("writing to prover (pid %d): %w", s.pid, err)
	}
	return nil
}

func (s *procSession) recvUntil(ctx context.Context, stop func(line string) bool) ([]string, bool) {
	var out []string
	for {
		select {
		case <-ctx.Done():
			return out, true
		case line := <-s.lines:
			out = append(out, line)
			if stop(line) {
				return out, false
			}
		case <-s.exited:
			// Process gone; drain whatever was already buffered.
			for {
				select {
				case line := <-s.lines:
					out = append(out, line)
					if stop(line) {
						return out, false
					}
				default:
					return out, false
				}
			}
		}
	}
}

func (s *procSession) alive() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

func (s *procSession) shutdown(quitCmd string, grace time.Duration) {
	s.downMu.Lock()
	if s.down {
		s.downMu.Unlock()
		return
	}
	s.down = true
	s.downMu.Unlock()

	if s.alive() && quitCmd != "" {
		// Graceful path first; a write failure here just means we kill.
		_ = s.send(quitCmd)
	}
	_ = s.stdin.Close()

	select {
	case <-s.exited:
	case <-time.After(grace):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	}

	close(s.closing)

	// Kill guarantees exit; bound the reap anyway so shutdown can never hang.
	select {
	case <-s.exited:
	case <-time.After(5 * time.Second):
	}
}

func (s *procSession) memoryBytes() int64 {
	return readRSS(s.pid)
}

// readRSS parses VmRSS from /proc/<pid>/status. Returns 0 when the file is
// unavailable (non-Linux hosts, exited process).
func readRSS(pid int) int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
