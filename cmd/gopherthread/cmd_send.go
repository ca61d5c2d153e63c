package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gopherthread/internal/input"
	"github.com/user/gopherthread/internal/tokens"
	"github.com/user/gopherthread/pkg/assistant"
)

var (
	sendFile string
	sendURL  string
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "read the message from a file")
	sendCmd.Flags().StringVar(&sendURL, "url", "", "send the content of a web page, converted to markdown")
}

var sendCmd = &cobra.Command{
	Use:   "send [message...]",
	Short: "Send one or more messages on a new thread",
	Long: `Send messages to the configured assistant and print each reply.

Each argument is sent in order on the same thread. Use "-" to read a single
message from stdin, or --file / --url instead of arguments.`,
	Example: `  gopherthread send "Hello, how are you?" "Can you tell me a joke?"
  echo "Summarise this" | gopherthread send -
  gopherthread send --url https://go.dev/doc/effective_go`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		messages, err := collectMessages(ctx, args, sendFile, sendURL, os.Stdin)
		if err != nil {
			return err
		}

		session, counter, err := newSession(cfg)
		if err != nil {
			return err
		}

		return sendAll(ctx, session, counter, messages, os.Stdout)
	},
}

// sendAll echoes and sends each message in order, stopping at the first error.
func sendAll(ctx context.Context, session *assistant.Session, counter *tokens.Counter, messages []string, out io.Writer) error {
	for _, msg := range messages {
		printInfo(out, "Message to AI: %s", msg)
		if err := exchange(ctx, session, counter, msg, out); err != nil {
			return err
		}
	}
	return nil
}

// collectMessages resolves the messages to send from exactly one source.
func collectMessages(ctx context.Context, args []string, file, url string, stdin io.Reader) ([]string, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, file != "", url != ""} {
		if set {
			sources++
		}
	}
	if sources == 0 {
		return nil, fmt.Errorf("no message given: pass arguments, \"-\", --file or --url")
	}
	if sources > 1 {
		return nil, fmt.Errorf("use only one of arguments, --file or --url")
	}

	switch {
	case file != "":
		msg, err := input.File(file)
		if err != nil {
			return nil, err
		}
		return []string{msg}, nil
	case url != "":
		msg, err := input.NewPageFetcher().Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return []string{msg}, nil
	case len(args) == 1 && args[0] == "-":
		msg, err := input.Reader(stdin)
		if err != nil {
			return nil, err
		}
		return []string{msg}, nil
	}

	messages := input.Args(args)
	if len(messages) == 0 {
		return nil, input.ErrEmpty
	}
	return messages, nil
}
