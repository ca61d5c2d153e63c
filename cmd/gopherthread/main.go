package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gopherthread/internal/config"
	"github.com/user/gopherthread/internal/tokens"
	"github.com/user/gopherthread/pkg/assistant"
	"github.com/user/gopherthread/pkg/assistant/goopenai"
	"github.com/user/gopherthread/pkg/assistant/openai"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "gopherthread",
	Short:         "Talk to an OpenAI assistant over a persistent thread",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newBackend picks the client implementation named by cfg.Backend.
func newBackend(cfg *config.Config) (assistant.Backend, error) {
	ac, err := cfg.AssistantConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sdk":
		return goopenai.New(ac), nil
	case "http", "":
		return openai.New(ac), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// newSession validates cfg and builds a fresh session with its token counter.
// The counter is nil when max_message_tokens is zero.
func newSession(cfg *config.Config) (*assistant.Session, *tokens.Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.API.AssistantID == "" {
		return nil, nil, fmt.Errorf("no assistant configured: set api.assistant_id or OPENAI_ASSISTANT_ID")
	}
	if cfg.API.APIKey == "" {
		slog.Warn("no API key configured, requests will be unauthenticated")
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	policy, err := cfg.PollPolicy()
	if err != nil {
		return nil, nil, err
	}

	var counter *tokens.Counter
	if cfg.MaxMessageTokens > 0 {
		counter, err = tokens.New(cfg.TokenizerModel, cfg.MaxMessageTokens)
		if err != nil {
			return nil, nil, fmt.Errorf("create token counter: %w", err)
		}
	}

	session := assistant.NewSession(backend, cfg.API.AssistantID,
		assistant.WithPollPolicy(policy),
		assistant.WithLogger(slog.Default()),
	)
	slog.Debug("session created",
		"session_id", session.ID(),
		"backend", cfg.Backend,
		"base_url", cfg.API.BaseURL,
		"poll_interval", policy.Interval,
		"poll_timeout", policy.Timeout,
	)
	return session, counter, nil
}
