// Package config loads bridge configuration from file and environment.
package config

import (
	"context"
	"errors"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment overrides, e.g.
	// ASSISTANT_BRIDGE_PROVIDER=claude.
	EnvPrefix = "ASSISTANT_BRIDGE"

	defaultRequestTimeout = 300 * time.Second
	defaultModel          = "claude-sonnet-4.5"
)

// Config holds all bridge settings. Zero values are filled by Load.
type Config struct {
	// Provider is the configured backend name, free text; normalized at
	// dispatch time.
	Provider string `mapstructure:"provider"`
	// Model is passed to the copilot session on creation.
	Model string `mapstructure:"model"`
	// RequestTimeout bounds a single backend invocation.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// CopilotCommand is the executable spawned in server mode.
	CopilotCommand string `mapstructure:"copilot_cmd"`
	// ClaudeArgs and CodexArgs are extra CLI args placed before the prompt.
	ClaudeArgs []string `mapstructure:"claude_args"`
	CodexArgs  []string `mapstructure:"codex_args"`

	// CommandExtractRegex optionally overrides heuristic command extraction
	// from answers. The first capture group is used when present.
	CommandExtractRegex string `mapstructure:"command_extract_regex"`
	// ClipboardCommand is run via `sh -c` to copy an answer.
	ClipboardCommand string `mapstructure:"clipboard_cmd"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "copilot")
	v.SetDefault("model", defaultModel)
	v.SetDefault("request_timeout", defaultRequestTimeout)
	v.SetDefault("copilot_cmd", "copilot")
	v.SetDefault("claude_args", []string{})
	v.SetDefault("codex_args", []string{})
	v.SetDefault("command_extract_regex", "")
	v.SetDefault("clipboard_cmd", "wl-copy")
}

// Load reads assistant-bridge.toml (if present) and environment overrides.
// A missing config file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("assistant-bridge")
		v.SetConfigType("toml")
		v.AddConfigPath("$HOME/.config/assistant-bridge")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	ctx := context.TODO()
	assert.Assert(ctx, cfg.Model != "", "model should not be empty")
	assert.Assert(ctx, cfg.RequestTimeout > 0, "request_timeout should be positive")
	assert.Assert(ctx, cfg.CopilotCommand != "", "copilot_cmd should not be empty")

	return cfg, nil
}

// Sample is a starter config, printed by the print-config command.
const Sample = `# ~/.config/assistant-bridge/assistant-bridge.toml
provider = "copilot" # copilot|claude|codex
model = "claude-sonnet-4.5"
request_timeout = "300s"
copilot_cmd = "copilot"
claude_args = ["--no-color"]
codex_args = []
clipboard_cmd = "wl-copy"
`
