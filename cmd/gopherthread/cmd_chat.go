package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gopherthread/internal/tokens"
	"github.com/user/gopherthread/pkg/assistant"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the configured assistant.

Every line is sent on the same thread. Commands:
  /new     start a new thread
  /thread  show the current thread and run ids
  /status  show the status of the latest run
  /reply   fetch the latest message again (useful after a timeout)
  /quit    exit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		session, counter, err := newSession(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return chatLoop(ctx, session, counter, os.Stdin, os.Stdout)
	},
}

// chatLoop reads lines from in until EOF, /quit, or ctx is done.
func chatLoop(ctx context.Context, session *assistant.Session, counter *tokens.Counter, in io.Reader, out io.Writer) error {
	printInfo(out, "Session %s. Type /quit to exit or /new to start over.", session.ID())

	lines := readLines(ctx, in)
	for {
		fmt.Fprint(out, "You: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			if err := session.Reset(ctx); err != nil {
				return nil
			}
			printInfo(out, "Started a new thread.")
		case "/thread":
			threadID, runID := session.ThreadID(), session.RunID()
			if threadID == "" {
				printInfo(out, "No thread yet.")
				continue
			}
			printInfo(out, "thread: %s\nrun:    %s", threadID, runID)
		case "/status":
			status, err := session.RunStatus(ctx)
			if err != nil {
				printError(out, err)
				continue
			}
			printInfo(out, "run status: %s", status)
		case "/reply":
			reply, err := session.LatestReply(ctx)
			if err != nil {
				printError(out, err)
				continue
			}
			printReply(out, reply)
		default:
			if err := exchange(ctx, session, counter, line, out); err != nil {
				if ctx.Err() != nil {
					fmt.Fprintln(out)
					return nil
				}
				printError(out, err)
			}
		}
	}
}

// readLines scans in on its own goroutine so a blocked read does not hold up
// shutdown.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
