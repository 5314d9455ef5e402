package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nikhilcodewing/assistant-bridge/internal/cliagent"
	"github.com/nikhilcodewing/assistant-bridge/internal/config"
	"github.com/nikhilcodewing/assistant-bridge/internal/copilot"
	"github.com/nikhilcodewing/assistant-bridge/internal/provider"
)

var log = logrus.WithField("component", "dispatcher")

// noResponseText is returned when the backend answered without any text
// content. It is a reply, not an error.
const noResponseText = "No response received."

// authRemediationText is returned for authentication failures against the
// copilot backend, whatever the underlying error text was.
const authRemediationText = "Copilot is not authenticated. Run `copilot` in a terminal, complete /login, and try again."

// SessionBackend is the capability the dispatcher needs from the long-lived
// copilot backend.
type SessionBackend interface {
	Start(ctx context.Context) error
	Available() bool
	CreateSession(ctx context.Context, model string) (BackendSession, error)
	Stop() error
}

// BackendSession is a single-request conversation handle.
type BackendSession interface {
	SendAndWait(ctx context.Context, prompt string) (copilot.Reply, error)
	Destroy() error
}

// CLIRunner runs one-shot subprocess providers.
type CLIRunner interface {
	Run(ctx context.Context, p provider.Provider, prompt string) string
	Available(p provider.Provider) bool
}

// Dispatcher routes each request to the configured backend and converts
// every failure into a user-facing string. Respond never returns an error.
type Dispatcher struct {
	cfg     *config.Config
	backend SessionBackend
	runner  CLIRunner

	closeOnce sync.Once
}

// New wires a dispatcher with the production backends.
func New(cfg *config.Config) *Dispatcher {
	runner := cliagent.NewRunner(cfg.RequestTimeout, map[provider.Provider][]string{
		provider.Claude: cfg.ClaudeArgs,
		provider.Codex:  cfg.CodexArgs,
	})
	return NewDispatcher(cfg, copilotBackend{copilot.NewClient(cfg.CopilotCommand)}, runner)
}

// NewDispatcher wires a dispatcher with explicit backends; used by New and
// by tests.
func NewDispatcher(cfg *config.Config, backend SessionBackend, runner CLIRunner) *Dispatcher {
	return &Dispatcher{cfg: cfg, backend: backend, runner: runner}
}

// Provider is the normalized effective provider.
func (d *Dispatcher) Provider() provider.Provider {
	return provider.Normalize(d.cfg.Provider)
}

// Respond answers one request. Cancellation of ctx is honored at every
// blocking step; the reply is always plain text.
func (d *Dispatcher) Respond(ctx context.Context, req Request) string {
	p := d.Provider()
	prompt := Compose(p, req)

	reqLog := log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"provider":   p.String(),
	})
	reqLog.WithField("prompt_chars", len(prompt)).Info("dispatching request")

	var reply string
	if p.External() {
		reply = d.runner.Run(ctx, p, prompt)
	} else {
		reply = d.respondCopilot(ctx, reqLog, prompt)
	}

	reqLog.WithField("reply_chars", len(reply)).Info("request finished")
	return reply
}

func (d *Dispatcher) respondCopilot(ctx context.Context, reqLog *logrus.Entry, prompt string) string {
	if err := d.backend.Start(ctx); err != nil {
		reqLog.WithError(err).Error("copilot backend unavailable")
		if copilot.IsAuthError(err) {
			return authRemediationText
		}
		return fmt.Sprintf("Error: %v", err)
	}

	started := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	session, err := d.backend.CreateSession(reqCtx, d.cfg.Model)
	if err != nil {
		reqLog.WithError(err).Error("session creation failed")
		return d.failureText(err, started)
	}
	defer func() {
		if err := session.Destroy(); err != nil {
			reqLog.WithError(err).Warn("session teardown failed")
		}
	}()

	reply, err := session.SendAndWait(reqCtx, prompt)
	if err != nil {
		reqLog.WithError(err).Error("send failed")
		return d.failureText(err, started)
	}
	if reply.Text == "" {
		return noResponseText
	}
	return reply.Text
}

// failureText maps a copilot-path error onto the reply taxonomy: timeout,
// authentication, generic.
func (d *Dispatcher) failureText(err error, started time.Time) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Request timed out after %.0f seconds.", time.Since(started).Seconds())
	}
	if copilot.IsAuthError(err) {
		return authRemediationText
	}
	return fmt.Sprintf("Error: %v", err)
}

// Available reports readiness of the effective provider without ever
// erroring.
func (d *Dispatcher) Available() bool {
	if p := d.Provider(); p.External() {
		return d.runner.Available(p)
	}
	return d.backend.Available()
}

// Close releases the copilot backend. Idempotent: the second and later
// calls return nil.
func (d *Dispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.backend.Stop()
	})
	return err
}

// copilotBackend adapts *copilot.Client to the SessionBackend interface.
type copilotBackend struct {
	client *copilot.Client
}

func (b copilotBackend) Start(ctx context.Context) error { return b.client.Start(ctx) }
func (b copilotBackend) Available() bool                 { return b.client.Available() }
func (b copilotBackend) Stop() error                     { return b.client.Stop() }

func (b copilotBackend) CreateSession(ctx context.Context, model string) (BackendSession, error) {
	session, err := b.client.CreateSession(ctx, model)
	if err != nil {
		return nil, err
	}
	return session, nil
}
