package chat

import (
	"fmt"
	"strings"

	"github.com/nikhilcodewing/assistant-bridge/internal/provider"
)

// desktopMarker is the shape the UI uses when it sends structured desktop
// context (active window, environment). Plain strings without it are treated
// as a working directory.
const desktopMarker = "[Active Focus]"

const desktopInstructions = `You are a desktop assistant. The user's active window and environment are described below. Keep answers concise and direct.

Behavior rules:
1) Answer only the current question.
2) Use the desktop context only where it is relevant.
3) When suggesting commands, put them in fenced code blocks.
4) Do not invent window titles or file paths that are not in the context.`

// Compose builds the composite prompt sent to the given provider.
func Compose(p provider.Provider, req Request) string {
	var text string
	if p.External() {
		text = composeExternal(p, req)
	} else {
		text = composeCopilot(req)
	}

	if req.ImageBase64 != "" {
		text += fmt.Sprintf("\n\n![User Screenshot](data:image/jpeg;base64,%s)", req.ImageBase64)
	}
	return text
}

func composeCopilot(req Request) string {
	if strings.Contains(req.Context, desktopMarker) {
		var b strings.Builder
		b.WriteString(desktopInstructions)
		b.WriteString("\n\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
		writeHistory(&b, req.History, provider.Copilot.HistoryWindow())
		fmt.Fprintf(&b, "\nCurrent question: %s", req.Prompt)
		return b.String()
	}
	if strings.TrimSpace(req.Context) != "" {
		return fmt.Sprintf("Working directory: %s\n\n%s", req.Context, req.Prompt)
	}
	return req.Prompt
}

// composeExternal always frames context with the plain Context/Question
// template. A desktop-shaped context additionally gets the bounded
// conversation excerpt between the two.
func composeExternal(p provider.Provider, req Request) string {
	if strings.TrimSpace(req.Context) == "" {
		return req.Prompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context:\n%s\n", req.Context)
	if strings.Contains(req.Context, desktopMarker) {
		writeHistory(&b, req.History, p.HistoryWindow())
	}
	fmt.Fprintf(&b, "\nQuestion:\n%s", req.Prompt)
	return b.String()
}

// writeHistory appends the trailing window of history, oldest first. The
// slice is only read, never reordered or truncated in place.
func writeHistory(b *strings.Builder, history []Message, window int) {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) == 0 {
		return
	}

	b.WriteString("\nConversation so far:\n")
	for _, msg := range history {
		fmt.Fprintf(b, "%s: %s\n", roleLabel(msg.Role), msg.Content)
	}
}

func roleLabel(r Role) string {
	switch r {
	case RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}
