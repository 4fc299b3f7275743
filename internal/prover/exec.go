// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// executor abstracts binary detection and process launch for testing.
type executor interface {
	// LookPath resolves the prover binary on PATH.
	LookPath(file string) (string, error)

	// Probe runs the binary with a version-style flag to confirm it is
	// operational. A non-zero exit or spawn failure means the capability is
	// unavailable, never a crash.
	Probe(ctx context.Context, name string, args ...string) error

	// Start launches the long-lived prover process with piped standard
	// streams and returns its session.
	Start(cfg startConfig) (session, error)
}

// startConfig describes one prover process launch.
type startConfig struct {
	name string
	args []string
	dir  string
	env  []string // extra KEY=value entries appended to the inherited environment
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Probe(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("probing %s: %w", name, err)
	}
	return nil
}

func (o *osExecutor) Start(cfg startConfig) (session, error) {
	cmd := exec.Command(cfg.name, cfg.args...)
	cmd.Dir = cfg.dir
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}
	return startProcess(cmd)
}

var defaultExec executor = &osExecutor{}

// detectBackend confirms the prover binary exists and responds to its
// version probe before any launch is attempted.
func detectBackend(ctx context.Context, exec executor, command string, probeArgs []string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", command, err)
	}
	if err := exec.Probe(ctx, command, probeArgs...); err != nil {
		return fmt.Errorf("%s not operational: %w", command, err)
	}
	return nil
}

// splitCommand separates a configured command line ("coqtop -quiet") into the
// binary name and its leading arguments, prepended to any configured args.
func splitCommand(command string, args []string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command, args
	}
	return fields[0], append(fields[1:], args...)
}

// isTimeout reports whether err came from an expired or cancelled context.
// Budget overruns are resource flags on results, never hard failures.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
