// Package chat holds the conversation data model, the prompt composer, and
// the dispatcher that routes requests to a backend.
package chat

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the caller-supplied conversation history.
// Messages are read-only inputs; the bridge never mutates them.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request carries one question plus its optional enrichments.
type Request struct {
	// Prompt is the user's question.
	Prompt string
	// Context is optional active-window/environment text supplied by the UI.
	Context string
	// ImageBase64 is an optional base64-encoded JPEG screenshot.
	ImageBase64 string
	// History is the recent conversation, oldest first. Only a bounded
	// trailing window is ever included in a composed prompt.
	History []Message
}
