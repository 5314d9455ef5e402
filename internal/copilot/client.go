// Package copilot drives the GitHub Copilot CLI in server mode over
// JSON-RPC and exposes per-request chat sessions.
package copilot

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"sync"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "copilot")

const protocolVersion = 1

// serverArgs puts the CLI in stdio server mode.
var serverArgs = []string{"--server", "--stdio", "--log-level", "error"}

// Client owns the long-lived CLI server process. Start is called lazily by
// the dispatcher and is safe under concurrent use; the bridge keeps exactly
// one server alive for its lifetime.
type Client struct {
	command string

	mu       sync.Mutex
	started  bool
	stopped  bool
	process  *exec.Cmd
	conn     *rpcConn
	sessions map[string]*Session
}

// NewClient prepares a client for the given copilot executable. No process
// is spawned until Start.
func NewClient(command string) *Client {
	return &Client{
		command:  command,
		sessions: make(map[string]*Session),
	}
}

// Start spawns the CLI server and performs the protocol handshake. It is
// idempotent: once the server is up, subsequent calls return nil without
// side effects. A failure leaves the client startable again.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("copilot client is shut down")
	}
	if c.started {
		return nil
	}

	cmd := exec.Command(c.command, serverArgs...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return startError(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return startError(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return startError(err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.WithField("stream", "stderr").Debug(scanner.Text())
		}
	}()

	if err := cmd.Start(); err != nil {
		return startError(err)
	}

	conn := newRPCConn(stdin, stdout)
	conn.notify = c.dispatchEvent
	conn.start()

	if err := ping(ctx, conn); err != nil {
		conn.close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg("copilot server handshake failed").
			WithCause(err)
	}

	c.process = cmd
	c.conn = conn
	c.started = true
	log.WithField("command", c.command).Info("copilot server started")
	return nil
}

func startError(err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg("failed to start copilot server").
		WithCause(err)
}

func ping(ctx context.Context, conn *rpcConn) error {
	result, err := conn.call(ctx, "ping", map[string]any{
		"protocolVersion": protocolVersion,
	})
	if err != nil {
		return err
	}

	var pong struct {
		ProtocolVersion int `json:"protocolVersion"`
	}
	if err := json.Unmarshal(result, &pong); err != nil {
		return err
	}
	if pong.ProtocolVersion != protocolVersion {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("copilot server protocol version mismatch")
	}
	return nil
}

// Available reports whether the backend can serve requests. It never
// returns an error: a running server counts, otherwise the executable
// merely has to be on PATH.
func (c *Client) Available() bool {
	c.mu.Lock()
	started, stopped := c.started, c.stopped
	c.mu.Unlock()
	if stopped {
		return false
	}
	if started {
		return true
	}
	_, err := exec.LookPath(c.command)
	return err == nil
}

// CreateSession opens a fresh session for a single request. Streaming stays
// off; the bridge waits for complete answers.
func (c *Client) CreateSession(ctx context.Context, model string) (*Session, error) {
	c.mu.Lock()
	conn := c.conn
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("copilot client not started")
	}

	params := map[string]any{"streaming": false}
	if model != "" {
		params["model"] = model
	}

	result, err := conn.call(ctx, "session.create", params)
	if err != nil {
		return nil, err
	}

	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &created); err != nil {
		return nil, err
	}
	if created.SessionID == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("copilot server returned no session id")
	}

	session := &Session{
		id:     created.SessionID,
		conn:   conn,
		events: make(chan sessionEvent, 32),
	}

	c.mu.Lock()
	c.sessions[session.id] = session
	c.mu.Unlock()

	session.release = func() {
		c.mu.Lock()
		delete(c.sessions, session.id)
		c.mu.Unlock()
	}
	return session, nil
}

// dispatchEvent routes a session.event notification to its session.
func (c *Client) dispatchEvent(method string, params json.RawMessage) {
	if method != "session.event" {
		return
	}

	var event struct {
		SessionID string `json:"sessionId"`
		Type      string `json:"type"`
		Data      struct {
			Content string `json:"content"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(params, &event); err != nil {
		log.WithError(err).Warn("discarding malformed session event")
		return
	}

	c.mu.Lock()
	session := c.sessions[event.SessionID]
	c.mu.Unlock()
	if session == nil {
		return
	}

	select {
	case session.events <- sessionEvent{
		kind:    event.Type,
		content: event.Data.Content,
		message: event.Data.Message,
	}:
	default:
		log.WithField("session", event.SessionID).Warn("dropping session event, queue full")
	}
}

// Stop destroys outstanding sessions and terminates the server process.
// Safe to call repeatedly and before Start.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped || !c.started {
		c.stopped = true
		c.mu.Unlock()
		return nil
	}
	c.stopped = true

	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*Session)
	conn := c.conn
	process := c.process
	c.conn = nil
	c.process = nil
	c.started = false
	c.mu.Unlock()

	for _, s := range sessions {
		if err := s.Destroy(); err != nil {
			log.WithError(err).WithField("session", s.id).Warn("session teardown failed")
		}
	}

	if conn != nil {
		conn.close()
	}
	if process != nil {
		if err := process.Process.Kill(); err != nil && !strings.Contains(err.Error(), "already finished") {
			log.WithError(err).Warn("killing copilot server failed")
		}
		_ = process.Wait()
	}

	log.Info("copilot server stopped")
	return nil
}
