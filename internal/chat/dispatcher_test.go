package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nikhilcodewing/assistant-bridge/internal/config"
	"github.com/nikhilcodewing/assistant-bridge/internal/copilot"
	"github.com/nikhilcodewing/assistant-bridge/internal/provider"
)

type fakeSession struct {
	reply     copilot.Reply
	sendErr   error
	block     bool
	destroyed int
}

func (s *fakeSession) SendAndWait(ctx context.Context, prompt string) (copilot.Reply, error) {
	if s.block {
		<-ctx.Done()
		return copilot.Reply{}, ctx.Err()
	}
	return s.reply, s.sendErr
}

func (s *fakeSession) Destroy() error {
	s.destroyed++
	return nil
}

type fakeBackend struct {
	startErr  error
	createErr error
	session   *fakeSession
	stops     int
	stopErr   error
}

func (b *fakeBackend) Start(context.Context) error { return b.startErr }
func (b *fakeBackend) Available() bool             { return b.startErr == nil }
func (b *fakeBackend) Stop() error {
	b.stops++
	return b.stopErr
}

func (b *fakeBackend) CreateSession(context.Context, string) (BackendSession, error) {
	if b.createErr != nil {
		return nil, b.createErr
	}
	return b.session, nil
}

type fakeRunner struct {
	reply     string
	gotPrompt string
	gotProv   provider.Provider
	calls     int
	found     bool
}

func (r *fakeRunner) Run(_ context.Context, p provider.Provider, prompt string) string {
	r.calls++
	r.gotProv = p
	r.gotPrompt = prompt
	return r.reply
}

func (r *fakeRunner) Available(provider.Provider) bool { return r.found }

func testConfig(providerName string) *config.Config {
	return &config.Config{
		Provider:       providerName,
		Model:          "claude-sonnet-4.5",
		RequestTimeout: 5 * time.Second,
		CopilotCommand: "copilot",
	}
}

func TestRespondCopilotSuccessDestroysSession(t *testing.T) {
	session := &fakeSession{reply: copilot.Reply{Text: "the answer"}}
	backend := &fakeBackend{session: session}
	d := NewDispatcher(testConfig("copilot"), backend, &fakeRunner{})

	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.Equal(t, "the answer", got)
	require.Equal(t, 1, session.destroyed)
}

func TestRespondCopilotEmptyReplySentinel(t *testing.T) {
	session := &fakeSession{}
	d := NewDispatcher(testConfig("copilot"), &fakeBackend{session: session}, &fakeRunner{})

	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.Equal(t, "No response received.", got)
	require.Equal(t, 1, session.destroyed)
}

func TestRespondCopilotAuthErrorAnyCase(t *testing.T) {
	session := &fakeSession{sendErr: errors.New("request rejected: UnAuthorized token")}
	d := NewDispatcher(testConfig("copilot"), &fakeBackend{session: session}, &fakeRunner{})

	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.Equal(t, authRemediationText, got)
	require.Equal(t, 1, session.destroyed, "session must be destroyed on error paths too")
}

func TestRespondCopilotGenericError(t *testing.T) {
	session := &fakeSession{sendErr: errors.New("wire broke")}
	d := NewDispatcher(testConfig("copilot"), &fakeBackend{session: session}, &fakeRunner{})

	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.Equal(t, "Error: wire broke", got)
}

func TestRespondCopilotTimeout(t *testing.T) {
	cfg := testConfig("copilot")
	cfg.RequestTimeout = 50 * time.Millisecond
	session := &fakeSession{block: true}
	d := NewDispatcher(cfg, &fakeBackend{session: session}, &fakeRunner{})

	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.True(t, strings.HasPrefix(got, "Request timed out after"), "got %q", got)
	require.Equal(t, 1, session.destroyed)
}

func TestRespondCopilotStartFailure(t *testing.T) {
	d := NewDispatcher(testConfig("copilot"), &fakeBackend{startErr: errors.New("spawn failed")}, &fakeRunner{})
	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.Equal(t, "Error: spawn failed", got)
}

func TestRespondCopilotStartAuthFailure(t *testing.T) {
	d := NewDispatcher(testConfig("copilot"), &fakeBackend{startErr: errors.New("please login first")}, &fakeRunner{})
	got := d.Respond(context.Background(), Request{Prompt: "q"})
	require.Equal(t, authRemediationText, got)
}

func TestRespondExternalRoutesToRunner(t *testing.T) {
	runner := &fakeRunner{reply: "cli says hi"}
	d := NewDispatcher(testConfig("claude"), &fakeBackend{}, runner)

	got := d.Respond(context.Background(), Request{Prompt: "hi", Context: "ctx"})
	require.Equal(t, "cli says hi", got)
	require.Equal(t, provider.Claude, runner.gotProv)
	require.Equal(t, "Context:\nctx\n\nQuestion:\nhi", runner.gotPrompt)
}

func TestRespondUnknownProviderFallsBackToCopilot(t *testing.T) {
	session := &fakeSession{reply: copilot.Reply{Text: "primary"}}
	runner := &fakeRunner{reply: "cli"}
	d := NewDispatcher(testConfig("  Gemini "), &fakeBackend{session: session}, runner)

	require.Equal(t, "primary", d.Respond(context.Background(), Request{Prompt: "q"}))
	require.Zero(t, runner.calls)
}

func TestCloseIdempotent(t *testing.T) {
	backend := &fakeBackend{stopErr: errors.New("first stop failed")}
	d := NewDispatcher(testConfig("copilot"), backend, &fakeRunner{})

	require.Error(t, d.Close())
	require.NoError(t, d.Close())
	require.Equal(t, 1, backend.stops)
}

func TestAvailable(t *testing.T) {
	d := NewDispatcher(testConfig("copilot"), &fakeBackend{}, &fakeRunner{})
	require.True(t, d.Available())

	d = NewDispatcher(testConfig("claude"), &fakeBackend{}, &fakeRunner{found: true})
	require.True(t, d.Available())

	d = NewDispatcher(testConfig("codex"), &fakeBackend{}, &fakeRunner{})
	require.False(t, d.Available())
}
