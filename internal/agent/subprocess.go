package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// ShellSubprocess is the default Subprocess implementation, expanding the
// command through the host shell so spec.md §4.8's $PROMPT-substituted
// template can use quoting, pipes, or redirection.
type ShellSubprocess struct {
	Shell     string
	ShellFlag string
}

// NewShellSubprocess creates a ShellSubprocess using /bin/sh -c, matching
// the reference corpus's exec.CommandContext invocation style.
func NewShellSubprocess() *ShellSubprocess {
	return &ShellSubprocess{Shell: "/bin/sh", ShellFlag: "-c"}
}

// Run spawns command under the shell, streaming combined stdout/stderr to
// onOutput line by line, and waits for exit. A non-zero exit is returned
// as an error, never retried.
func (s *ShellSubprocess) Run(ctx context.Context, command string, onOutput func(line string)) error {
	cmd := exec.CommandContext(ctx, s.Shell, s.ShellFlag, command)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("agent subprocess stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("agent subprocess start: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onOutput != nil {
			onOutput(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		onOutput(fmt.Sprintf("read error: %v", err))
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("agent subprocess exited: %w", err)
	}
	return nil
}
