package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/gopherthread/pkg/assistant"
)

// Client implements the assistant.Backend interface for the OpenAI
// Assistants REST API.
type Client struct {
	config     *assistant.Config
	httpClient *http.Client
}

// New creates a new Assistants API client with the given configuration.
func New(config *assistant.Config) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// threadMessage is a user message in request bodies.
type threadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// createThreadAndRunRequest is the POST /threads/runs request body.
type createThreadAndRunRequest struct {
	AssistantID string `json:"assistant_id"`
	Thread      struct {
		Messages []threadMessage `json:"messages"`
	} `json:"thread"`
}

// createRunRequest is the POST /threads/{id}/runs request body.
type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

// messageList is the GET /threads/{id}/messages response body.
type messageList struct {
	Data []assistant.Message `json:"data"`
}

// errorResponse is the error envelope the API returns with non-2xx statuses.
type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// CreateThreadAndRun creates a thread seeded with message and starts a run.
func (c *Client) CreateThreadAndRun(ctx context.Context, assistantID, message string) (*assistant.Run, error) {
	reqBody := createThreadAndRunRequest{AssistantID: assistantID}
	reqBody.Thread.Messages = []threadMessage{{Role: assistant.RoleUser, Content: message}}

	var run assistant.Run
	if err := c.do(ctx, "create thread and run", http.MethodPost, "/threads/runs", reqBody, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// CreateMessage appends a user message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, message string) (*assistant.Message, error) {
	reqBody := threadMessage{Role: assistant.RoleUser, Content: message}

	var msg assistant.Message
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if err := c.do(ctx, "append message", http.MethodPost, path, reqBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateRun starts a run of the assistant on a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*assistant.Run, error) {
	var run assistant.Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs"
	if err := c.do(ctx, "create run", http.MethodPost, path, createRunRequest{AssistantID: assistantID}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RetrieveRun fetches a run using the configured status method.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	method := strings.ToUpper(c.config.StatusMethod)
	if method == "" {
		method = http.MethodGet
	}

	var run assistant.Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, "retrieve run", method, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListMessages returns the thread's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]assistant.Message, error) {
	var list messageList
	path := "/threads/" + url.PathEscape(threadID) + "/messages?order=desc"
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// CancelRun asks the service to cancel an in-flight run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	var run assistant.Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID) + "/cancel"
	if err := c.do(ctx, "cancel run", http.MethodPost, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// do sends one request and decodes a 2xx JSON response into out.
// A nil reqBody sends no body.
func (c *Client) do(ctx context.Context, op, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("%s: marshaling request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = assistant.DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	version := c.config.AssistantsVersion
	if version == "" {
		version = assistant.DefaultAssistantsVersion
	}
	req.Header.Set("OpenAI-Beta", "assistants="+version)
	if c.config.OrgID != "" {
		req.Header.Set("OpenAI-Organization", c.config.OrgID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &assistant.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &assistant.NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &assistant.HTTPStatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			statusErr.Message = apiErr.Error.Message
		}
		return statusErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &assistant.MalformedResponseError{Op: op, Reason: "parsing response", Err: err}
	}
	return nil
}

var _ assistant.Backend = (*Client)(nil)
