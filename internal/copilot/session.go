package copilot

import (
	"context"
	"strings"
	"sync"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// Event types emitted by the server for a session.
const (
	eventAssistantMessage = "assistant.message"
	eventSessionIdle      = "session.idle"
	eventSessionError     = "session.error"
)

const destroyTimeout = 5 * time.Second

// Reply is the typed result of one exchange. Text may be empty when the
// server produced no assistant message.
type Reply struct {
	Text string
}

type sessionEvent struct {
	kind    string
	content string
	message string
}

// Session is a single-request conversation handle. It must be destroyed
// after use regardless of outcome.
type Session struct {
	id     string
	conn   *rpcConn
	events chan sessionEvent

	destroyOnce sync.Once
	destroyErr  error
	release     func()
}

// ID returns the server-assigned session identifier.
func (s *Session) ID() string {
	return s.id
}

// SendAndWait submits the prompt and blocks until the session goes idle,
// the server reports an error, or ctx expires. Assistant message events are
// accumulated into the reply text.
func (s *Session) SendAndWait(ctx context.Context, prompt string) (Reply, error) {
	if _, err := s.conn.call(ctx, "session.send", map[string]any{
		"sessionId": s.id,
		"prompt":    prompt,
	}); err != nil {
		return Reply{}, err
	}

	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case <-s.conn.done:
			return Reply{}, errbuilder.New().
				WithCode(errbuilder.CodeUnavailable).
				WithMsg("copilot server connection closed")
		case event := <-s.events:
			switch event.kind {
			case eventAssistantMessage:
				text.WriteString(event.content)
			case eventSessionIdle:
				return Reply{Text: strings.TrimSpace(text.String())}, nil
			case eventSessionError:
				return Reply{}, errbuilder.New().
					WithCode(codeForMessage(event.message)).
					WithMsg(event.message)
			}
		}
	}
}

// Destroy releases the session on the server. Idempotent; later calls
// return the first outcome.
func (s *Session) Destroy() error {
	s.destroyOnce.Do(func() {
		if s.release != nil {
			s.release()
		}

		ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
		defer cancel()
		_, err := s.conn.call(ctx, "session.destroy", map[string]any{
			"sessionId": s.id,
		})
		s.destroyErr = err
	})
	return s.destroyErr
}
