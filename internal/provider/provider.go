// Package provider defines the closed set of chat backends the bridge can
// dispatch to and the per-provider invocation conventions.
package provider

import "strings"

// Provider identifies a chat backend.
type Provider string

const (
	// Copilot is the long-lived SDK-managed session backend.
	Copilot Provider = "copilot"
	// Claude is invoked as a one-shot `claude -p "<prompt>"` subprocess.
	Claude Provider = "claude"
	// Codex is invoked as a one-shot `codex run "<prompt>"` subprocess.
	Codex Provider = "codex"
)

// Default is the provider used when the configured name is not recognized.
const Default = Copilot

// Normalize maps a free-text provider setting onto the closed set.
// Input is trimmed and lowercased; anything outside the set becomes Default.
func Normalize(name string) Provider {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case Copilot:
		return Copilot
	case Claude:
		return Claude
	case Codex:
		return Codex
	default:
		return Default
	}
}

// External reports whether the provider runs as a one-shot subprocess
// rather than through the long-lived session client.
func (p Provider) External() bool {
	return p == Claude || p == Codex
}

// HistoryWindow is the maximum number of trailing conversation messages
// included in a composed prompt for this provider.
func (p Provider) HistoryWindow() int {
	if p.External() {
		return 6
	}
	return 10
}

// Args returns the argument vector for the provider's CLI, with the composed
// prompt in the provider's expected position. Extra args come first so they
// cannot displace the prompt. Returns false for non-subprocess providers.
func (p Provider) Args(prompt string, extra []string) ([]string, bool) {
	switch p {
	case Claude:
		args := append([]string{}, extra...)
		return append(args, "-p", prompt), true
	case Codex:
		args := append([]string{"run"}, extra...)
		return append(args, prompt), true
	default:
		return nil, false
	}
}

func (p Provider) String() string {
	return string(p)
}
