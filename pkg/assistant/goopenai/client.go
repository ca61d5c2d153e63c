// Package goopenai implements assistant.Backend on top of the
// github.com/sashabaranov/go-openai SDK. Run retrieval always uses GET here;
// use the openai package when the backend expects the POST form.
package goopenai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/user/gopherthread/pkg/assistant"
)

// Client adapts an *openai.Client to assistant.Backend.
type Client struct {
	client *openai.Client
}

// New creates a go-openai backed client with the given configuration.
func New(config *assistant.Config) *Client {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	if config.AssistantsVersion != "" {
		cfg.AssistantVersion = config.AssistantsVersion
	}
	cfg.OrgID = config.OrgID
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{client: openai.NewClientWithConfig(cfg)}
}

// CreateThreadAndRun creates a thread seeded with message and starts a run.
func (c *Client) CreateThreadAndRun(ctx context.Context, assistantID, message string) (*assistant.Run, error) {
	run, err := c.client.CreateThreadAndRun(ctx, openai.CreateThreadAndRunRequest{
		RunRequest: openai.RunRequest{AssistantID: assistantID},
		Thread: openai.ThreadRequest{
			Messages: []openai.ThreadMessage{
				{Role: openai.ThreadMessageRoleUser, Content: message},
			},
		},
	})
	if err != nil {
		return nil, classify(ctx, "create thread and run", err)
	}
	return convertRun(run), nil
}

// CreateMessage appends a user message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, message string) (*assistant.Message, error) {
	msg, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: message,
	})
	if err != nil {
		return nil, classify(ctx, "append message", err)
	}
	converted := convertMessage(msg)
	return &converted, nil
}

// CreateRun starts a run of the assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*assistant.Run, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return nil, classify(ctx, "create run", err)
	}
	return convertRun(run), nil
}

// RetrieveRun fetches a run.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, classify(ctx, "retrieve run", err)
	}
	return convertRun(run), nil
}

// ListMessages returns the thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]assistant.Message, error) {
	order := "desc"
	list, err := c.client.ListMessage(ctx, threadID, nil, &order, nil, nil, nil)
	if err != nil {
		return nil, classify(ctx, "list messages", err)
	}
	messages := make([]assistant.Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		messages = append(messages, convertMessage(m))
	}
	return messages, nil
}

// CancelRun asks the service to cancel an in-flight run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	run, err := c.client.CancelRun(ctx, threadID, runID)
	if err != nil {
		return nil, classify(ctx, "cancel run", err)
	}
	return convertRun(run), nil
}

// classify maps SDK errors onto the assistant error types.
func classify(ctx context.Context, op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &assistant.HTTPStatusError{Op: op, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &assistant.HTTPStatusError{Op: op, StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &assistant.MalformedResponseError{Op: op, Reason: "parsing response", Err: err}
	}
	return &assistant.NetworkError{Op: op, Err: err}
}

func convertRun(run openai.Run) *assistant.Run {
	out := &assistant.Run{
		ID:          run.ID,
		ThreadID:    run.ThreadID,
		AssistantID: run.AssistantID,
		Status:      assistant.RunStatus(run.Status),
		CreatedAt:   run.CreatedAt,
	}
	if run.LastError != nil {
		out.LastError = &assistant.RunError{
			Code:    string(run.LastError.Code),
			Message: run.LastError.Message,
		}
	}
	return out
}

func convertMessage(m openai.Message) assistant.Message {
	out := assistant.Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		Role:      m.Role,
		CreatedAt: int64(m.CreatedAt),
	}
	if m.RunID != nil {
		out.RunID = *m.RunID
	}
	for _, part := range m.Content {
		converted := assistant.ContentPart{Type: part.Type}
		if part.Text != nil {
			converted.Text = &assistant.TextPart{Value: part.Text.Value}
		}
		out.Content = append(out.Content, converted)
	}
	return out
}

var _ assistant.Backend = (*Client)(nil)
