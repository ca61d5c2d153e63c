package assistant

import (
	"context"
	"time"
)

// Backend defines the remote operations a Session drives.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing, and report failures with the error
// types in this package.
type Backend interface {
	// CreateThreadAndRun creates a thread seeded with one user message and
	// starts a run of the assistant on it.
	CreateThreadAndRun(ctx context.Context, assistantID, message string) (*Run, error)

	// CreateMessage appends a user message to an existing thread.
	CreateMessage(ctx context.Context, threadID, message string) (*Message, error)

	// CreateRun starts a run of the assistant on an existing thread.
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)

	// RetrieveRun fetches the current state of a run.
	RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)

	// ListMessages returns the thread's messages, newest first.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)

	// CancelRun asks the service to stop an in-flight run.
	CancelRun(ctx context.Context, threadID, runID string) (*Run, error)
}

// Config holds common configuration for Backend implementations.
type Config struct {
	BaseURL           string
	APIKey            string
	OrgID             string
	AssistantsVersion string
	// StatusMethod is the HTTP verb used to fetch a run. Empty means GET.
	StatusMethod   string
	RequestTimeout time.Duration
}

// DefaultBaseURL is the public service endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultAssistantsVersion is sent in the OpenAI-Beta header.
const DefaultAssistantsVersion = "v2"
