package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nikhilcodewing/assistant-bridge/internal/chat"
	"github.com/nikhilcodewing/assistant-bridge/internal/cliagent"
	"github.com/nikhilcodewing/assistant-bridge/internal/config"
	"github.com/nikhilcodewing/assistant-bridge/internal/provider"
)

const version = "0.1.0"

var (
	flagConfig    string
	flagProvider  string
	flagContext   string
	flagImage     string
	flagHistory   string
	flagCopy      bool
	flagPrintCmds bool
	flagVerbose   bool
	loadedConfig  *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "assistant-bridge",
		Short: "Bridge between a desktop assistant UI and AI chat CLIs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			viper.SetEnvPrefix(config.EnvPrefix)
			viper.AutomaticEnv()

			logrus.SetFormatter(&logrus.JSONFormatter{})
			logrus.SetLevel(logrus.WarnLevel)
			if flagVerbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if flagProvider != "" {
				cfg.Provider = flagProvider
			}
			loadedConfig = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to assistant-bridge.toml")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "override configured provider (copilot|claude|codex)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	askCmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send one prompt to the configured backend and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	askCmd.Flags().StringVar(&flagContext, "context", "", "active window / environment context")
	askCmd.Flags().StringVar(&flagImage, "image", "", "path to a JPEG screenshot to attach")
	askCmd.Flags().StringVar(&flagHistory, "history", "", "path to a JSON file with recent messages")
	askCmd.Flags().BoolVar(&flagCopy, "copy", false, "copy the reply to the clipboard")
	askCmd.Flags().BoolVar(&flagPrintCmds, "commands", false, "also print commands extracted from the reply")
	rootCmd.AddCommand(askCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Report which backends are available",
		Run: func(cmd *cobra.Command, args []string) {
			runner := cliagent.NewRunner(loadedConfig.RequestTimeout, nil)
			for _, p := range []provider.Provider{provider.Claude, provider.Codex} {
				fmt.Printf("%-8s %s\n", p, availability(runner.Available(p)))
			}
			_, err := exec.LookPath(loadedConfig.CopilotCommand)
			fmt.Printf("%-8s %s\n", provider.Copilot, availability(err == nil))
			fmt.Printf("\neffective provider: %s\n", provider.Normalize(loadedConfig.Provider))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "print-config",
		Short: "Print a sample assistant-bridge.toml",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(config.Sample)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "not found"
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := chat.Request{
		Prompt:  strings.Join(args, " "),
		Context: flagContext,
	}

	if flagImage != "" {
		data, err := os.ReadFile(flagImage)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		req.ImageBase64 = base64.StdEncoding.EncodeToString(data)
	}

	if flagHistory != "" {
		history, err := loadHistory(flagHistory)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		req.History = history
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := chat.New(loadedConfig)
	defer dispatcher.Close()

	reply := dispatcher.Respond(ctx, req)
	fmt.Println(reply)

	if flagPrintCmds {
		extractor, err := chat.NewExtractor(loadedConfig.CommandExtractRegex)
		if err != nil {
			return fmt.Errorf("command_extract_regex: %w", err)
		}
		for _, command := range extractor.Commands(reply) {
			fmt.Printf("command: %s\n", command)
		}
	}

	if flagCopy {
		if err := copyToClipboard(loadedConfig.ClipboardCommand, reply); err != nil {
			return err
		}
	}
	return nil
}

func loadHistory(path string) ([]chat.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var history []chat.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func copyToClipboard(clipboardCmd, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	cmd := exec.Command("sh", "-c", clipboardCmd)
	cmd.Stdin = strings.NewReader(content)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("clipboard command failed").
			WithCause(fmt.Errorf("err=%w out=%s", err, strings.TrimSpace(string(output))))
	}
	return nil
}
