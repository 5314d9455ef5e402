// Package cliagent runs one-shot chat CLIs (claude, codex) as subprocesses
// with captured output and guaranteed termination on timeout.
package cliagent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/sirupsen/logrus"

	"github.com/nikhilcodewing/assistant-bridge/internal/provider"
)

var log = logrus.WithField("component", "cliagent")

// Runner executes provider CLIs. The zero value is not usable; construct
// with NewRunner.
type Runner struct {
	timeout time.Duration

	// command builds the executable name and argv for a provider; swapped
	// out in tests.
	command func(p provider.Provider, prompt string) (string, []string, bool)
}

// NewRunner builds a runner with per-provider extra args taken from config.
func NewRunner(timeout time.Duration, extraArgs map[provider.Provider][]string) *Runner {
	return &Runner{
		timeout: timeout,
		command: func(p provider.Provider, prompt string) (string, []string, bool) {
			args, ok := p.Args(prompt, extraArgs[p])
			return p.String(), args, ok
		},
	}
}

// Available reports whether the provider's executable is on PATH. Never
// returns an error.
func (r *Runner) Available(p provider.Provider) bool {
	if !p.External() {
		return false
	}
	_, err := exec.LookPath(p.String())
	return err == nil
}

// Run invokes the provider's CLI with the composed prompt and returns the
// user-facing reply text. Every failure is converted to a descriptive
// string; Run never returns an error.
func (r *Runner) Run(ctx context.Context, p provider.Provider, prompt string) string {
	name, args, ok := r.command(p, prompt)
	if !ok {
		return fmt.Sprintf("Unsupported provider: %s", p)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	// Own process group so a timeout kill takes descendants with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logCmd := log.WithField("cmd", shellescape.QuoteCommand(append([]string{name}, args...)))
	logCmd.Debug("launching provider CLI")

	if err := cmd.Start(); err != nil {
		logCmd.WithError(err).Error("provider CLI failed to start")
		return fmt.Sprintf("Failed to start %s.", p)
	}

	err := cmd.Wait()

	if runCtx.Err() != nil {
		// Killed by timeout or caller cancellation; partial output is not
		// trustworthy and is discarded.
		logCmd.WithField("cause", runCtx.Err()).Warn("provider CLI terminated")
		return fmt.Sprintf("Request to %s timed out after %.0f seconds.", p, r.timeout.Seconds())
	}

	out := strings.TrimSpace(stdout.String())
	if err == nil && out != "" {
		return out
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		logCmd.WithField("stderr", msg).Warn("provider CLI reported an error")
		return fmt.Sprintf("Error from %s: %s", p, msg)
	}

	return fmt.Sprintf("No response received from %s.", p)
}
