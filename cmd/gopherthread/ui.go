package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/user/gopherthread/pkg/assistant"
)

var (
	replyLabel   = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// printReply writes a reply in the "AI Response: <text>" form.
func printReply(w io.Writer, reply string) {
	replyLabel.Fprint(w, "AI Response: ")
	fmt.Fprintln(w, reply)
}

func printTimeout(w io.Writer) {
	warningColor.Fprintln(w, assistant.TimeoutReply)
}

func printInfo(w io.Writer, format string, args ...any) {
	infoColor.Fprintf(w, format+"\n", args...)
}

// printError writes err with a short hint for the failures a user can act on.
func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "Error: %v\n", err)

	var statusErr *assistant.HTTPStatusError
	var netErr *assistant.NetworkError
	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == 401:
		warningColor.Fprintln(w, "Check api.api_key or OPENAI_API_KEY.")
	case errors.As(err, &statusErr) && statusErr.StatusCode == 404:
		warningColor.Fprintln(w, "Check api.assistant_id; the thread may also have been deleted.")
	case errors.As(err, &netErr):
		warningColor.Fprintln(w, "Check api.base_url and your network connection.")
	}
}
