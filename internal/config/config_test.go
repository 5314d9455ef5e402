package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	require.Equal(t, "copilot", cfg.Provider)
	require.Equal(t, "claude-sonnet-4.5", cfg.Model)
	require.Equal(t, 300*time.Second, cfg.RequestTimeout)
	require.Equal(t, "copilot", cfg.CopilotCommand)
	require.Equal(t, "wl-copy", cfg.ClipboardCommand)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
provider = "Claude"
model = "gpt-5"
request_timeout = "30s"
claude_args = ["--no-color", "--silent"]
`))
	require.NoError(t, err)

	require.Equal(t, "Claude", cfg.Provider)
	require.Equal(t, "gpt-5", cfg.Model)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, []string{"--no-color", "--silent"}, cfg.ClaudeArgs)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "provider = [unclosed"))
	require.Error(t, err)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assistant-bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
