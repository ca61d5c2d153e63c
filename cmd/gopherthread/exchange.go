package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/user/gopherthread/internal/tokens"
	"github.com/user/gopherthread/pkg/assistant"
)

// exchange sends one message and prints the reply. A timeout prints the
// timeout reply and is not an error.
func exchange(ctx context.Context, session *assistant.Session, counter *tokens.Counter, text string, out io.Writer) error {
	if counter != nil {
		n, err := counter.Check(text)
		if err != nil {
			return err
		}
		slog.Debug("message tokens", "session_id", session.ID(), "tokens", n, "limit", counter.Limit())
	}

	reply, err := session.SendMessage(ctx, text)
	if errors.Is(err, assistant.ErrTimeout) {
		printTimeout(out)
		return nil
	}
	if err != nil {
		return err
	}
	printReply(out, reply)
	return nil
}
