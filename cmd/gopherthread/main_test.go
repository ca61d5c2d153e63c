package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gopherthread/internal/config"
	"github.com/user/gopherthread/internal/input"
	"github.com/user/gopherthread/pkg/assistant"
	"github.com/user/gopherthread/pkg/assistant/goopenai"
	"github.com/user/gopherthread/pkg/assistant/openai"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// echoService is a minimal Assistants service whose assistant echoes the last
// user message. When stuck is set, runs never leave in_progress.
type echoService struct {
	mu    sync.Mutex
	last  string
	runs  int
	stuck bool
}

func (e *echoService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/runs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Thread struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			} `json:"thread"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Thread.Messages) > 0 {
			e.setLast(body.Thread.Messages[0].Content)
		}
		e.writeRun(w, "queued")
	})
	mux.HandleFunc("POST /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		e.setLast(body.Content)
		json.NewEncoder(w).Encode(map[string]any{"id": "msg_user", "role": "user", "content": []any{}})
	})
	mux.HandleFunc("POST /v1/threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		e.writeRun(w, "queued")
	})
	mux.HandleFunc("GET /v1/threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		status := "completed"
		if e.stuck {
			status = "in_progress"
		}
		e.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"id": r.PathValue("run"), "thread_id": r.PathValue("thread"), "status": status})
	})
	mux.HandleFunc("GET /v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		last := e.last
		e.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{
			"id":      "msg_reply",
			"role":    "assistant",
			"content": []map[string]any{{"type": "text", "text": map[string]any{"value": "echo: " + last, "annotations": []any{}}}},
		}}})
	})
	return mux
}

func (e *echoService) setLast(s string) {
	e.mu.Lock()
	e.last = s
	e.mu.Unlock()
}

func (e *echoService) writeRun(w http.ResponseWriter, status string) {
	e.mu.Lock()
	e.runs++
	id := fmt.Sprintf("run_%d", e.runs)
	e.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]any{"id": id, "thread_id": "thread_1", "status": status})
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cfg.API.BaseURL = serverURL + "/v1"
	cfg.API.APIKey = "sk-test"
	cfg.API.AssistantID = "asst_test"
	cfg.Poll.Interval = "5ms"
	cfg.Poll.Timeout = "100ms"
	cfg.MaxMessageTokens = 0
	return cfg
}

func TestNewBackend(t *testing.T) {
	cfg := testConfig(t, "http://localhost")

	backend, err := newBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, backend)

	cfg.Backend = "sdk"
	backend, err = newBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &goopenai.Client{}, backend)

	cfg.Backend = "grpc"
	_, err = newBackend(cfg)
	assert.Error(t, err)
}

func TestNewSessionRequiresAssistant(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.API.AssistantID = ""

	_, _, err := newSession(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant")
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.Poll.Timeout = "never"

	_, _, err := newSession(cfg)
	assert.Error(t, err)
}

func TestChatLoop(t *testing.T) {
	for _, backend := range []string{"http", "sdk"} {
		t.Run(backend, func(t *testing.T) {
			server := httptest.NewServer((&echoService{}).handler())
			defer server.Close()

			cfg := testConfig(t, server.URL)
			cfg.Backend = backend
			session, counter, err := newSession(cfg)
			require.NoError(t, err)

			in := strings.NewReader("hello\n/thread\n\nagain\n/status\n/quit\nignored\n")
			var out bytes.Buffer
			require.NoError(t, chatLoop(context.Background(), session, counter, in, &out))

			got := out.String()
			assert.Contains(t, got, "AI Response: echo: hello")
			assert.Contains(t, got, "AI Response: echo: again")
			assert.Contains(t, got, "thread: thread_1")
			assert.Contains(t, got, "run status: completed")
			assert.NotContains(t, got, "ignored")
			assert.Equal(t, "thread_1", session.ThreadID())
		})
	}
}

func TestChatLoopNewThread(t *testing.T) {
	service := &echoService{}
	server := httptest.NewServer(service.handler())
	defer server.Close()

	session, counter, err := newSession(testConfig(t, server.URL))
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader("hello\n/new\n/thread\n")
	require.NoError(t, chatLoop(context.Background(), session, counter, in, &out))

	assert.Contains(t, out.String(), "Started a new thread.")
	assert.Contains(t, out.String(), "No thread yet.")
	assert.Empty(t, session.ThreadID())
}

func TestChatLoopReportsErrorsAndContinues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	session, counter, err := newSession(testConfig(t, server.URL))
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader("hello\n/reply\n")
	require.NoError(t, chatLoop(context.Background(), session, counter, in, &out))

	got := out.String()
	assert.Contains(t, got, "Incorrect API key provided")
	assert.Contains(t, got, "Check api.api_key")
	// /reply on a session without a run reports the state error.
	assert.Contains(t, got, "no active thread")
}

func TestChatLoopStopsOnCancel(t *testing.T) {
	session, counter, err := newSession(testConfig(t, "http://localhost"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns keeps the scanner blocked.
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	assert.NoError(t, chatLoop(ctx, session, counter, pr, &out))
}

func TestExchangeTimeout(t *testing.T) {
	server := httptest.NewServer((&echoService{stuck: true}).handler())
	defer server.Close()

	session, counter, err := newSession(testConfig(t, server.URL))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, exchange(context.Background(), session, counter, "hello", &out))
	assert.Equal(t, assistant.TimeoutReply+"\n", out.String())
}

func TestSendAllEchoesEachMessage(t *testing.T) {
	server := httptest.NewServer((&echoService{}).handler())
	defer server.Close()

	session, counter, err := newSession(testConfig(t, server.URL))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, sendAll(context.Background(), session, counter, []string{"first", "second"}, &out))

	want := []string{
		"Message to AI: first",
		"AI Response: echo: first",
		"Message to AI: second",
		"AI Response: echo: second",
	}
	got := out.String()
	pos := 0
	for _, line := range want {
		i := strings.Index(got[pos:], line)
		require.GreaterOrEqual(t, i, 0, "missing %q after offset %d in %q", line, pos, got)
		pos += i + len(line)
	}
}

func TestCollectMessages(t *testing.T) {
	ctx := context.Background()

	got, err := collectMessages(ctx, []string{"Hello, how are you?", "Can you tell me a joke?"}, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello, how are you?", "Can you tell me a joke?"}, got)

	got, err = collectMessages(ctx, []string{"-"}, "", "", strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"from stdin"}, got)

	path := filepath.Join(t.TempDir(), "msg.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0600))
	got, err = collectMessages(ctx, nil, path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from file"}, got)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Title</h1></body></html>`))
	}))
	defer page.Close()
	got, err = collectMessages(ctx, nil, "", page.URL, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Title")

	_, err = collectMessages(ctx, nil, "", "", nil)
	assert.Error(t, err)

	_, err = collectMessages(ctx, []string{"hi"}, path, "", nil)
	assert.Error(t, err)

	_, err = collectMessages(ctx, []string{"  "}, "", "", nil)
	assert.ErrorIs(t, err, input.ErrEmpty)
}
