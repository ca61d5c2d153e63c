package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Session is one conversation with an assistant. The first message creates a
// thread and a run together; each later message is appended to that thread
// and answered by a new run. Exchanges on a session are serialized.
type Session struct {
	backend     Backend
	assistantID string
	policy      *PollPolicy
	logger      *slog.Logger
	id          string

	// exchange serializes SendMessage and the other public operations.
	exchange *semaphore.Weighted

	mu       sync.Mutex
	threadID string
	runID    string
}

// Option configures a Session.
type Option func(*Session)

// WithPollPolicy overrides DefaultPollPolicy.
func WithPollPolicy(p *PollPolicy) Option {
	return func(s *Session) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithLogger sets the logger used for session tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates a fresh session talking to assistantID through backend.
func NewSession(backend Backend, assistantID string, opts ...Option) *Session {
	s := &Session{
		backend:     backend,
		assistantID: assistantID,
		policy:      DefaultPollPolicy(),
		logger:      slog.Default(),
		id:          uuid.New().String(),
		exchange:    semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// ID returns the session's local identifier. It only appears in logs.
func (s *Session) ID() string { return s.id }

// ThreadID returns the remote thread id, or "" for a fresh session.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// RunID returns the most recent run id, or "" for a fresh session.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *Session) ids() (threadID, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID, s.runID
}

func (s *Session) setIDs(threadID, runID string) {
	s.mu.Lock()
	s.threadID = threadID
	s.runID = runID
	s.mu.Unlock()
}

// Reset forgets the current thread so the next message starts a new one.
// The remote thread is left as is.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.exchange.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.exchange.Release(1)
	s.setIDs("", "")
	return nil
}

// SendMessage sends text to the assistant and returns its reply. It returns
// ErrTimeout if the run is still unfinished when the poll timeout elapses.
// On any error before a new run is started the session is left unchanged.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	if err := s.exchange.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.exchange.Release(1)

	threadID, runID := s.ids()
	if runID == "" {
		if err := s.startThread(ctx, text); err != nil {
			return "", err
		}
	} else {
		if err := s.continueThread(ctx, threadID, text); err != nil {
			return "", err
		}
	}

	if err := s.awaitRun(ctx); err != nil {
		if errors.Is(err, ErrTimeout) {
			s.logger.Warn("run timed out", "thread_id", s.ThreadID(), "run_id", s.RunID(), "timeout", s.policy.Timeout)
			if s.policy.CancelOnTimeout {
				s.cancelRun(ctx)
			}
		}
		return "", err
	}
	return s.latestReply(ctx)
}

// RunStatus fetches the status of the session's most recent run.
func (s *Session) RunStatus(ctx context.Context) (RunStatus, error) {
	if err := s.exchange.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.exchange.Release(1)

	run, err := s.retrieveRun(ctx)
	if err != nil {
		return "", err
	}
	return run.Status, nil
}

// LatestReply returns the text of the newest message in the session's thread.
func (s *Session) LatestReply(ctx context.Context) (string, error) {
	if err := s.exchange.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.exchange.Release(1)
	return s.latestReply(ctx)
}

func (s *Session) startThread(ctx context.Context, text string) error {
	run, err := s.backend.CreateThreadAndRun(ctx, s.assistantID, text)
	if err != nil {
		return err
	}
	if run == nil || run.ID == "" || run.ThreadID == "" {
		return &MalformedResponseError{Op: "create thread and run", Reason: "missing run or thread id"}
	}
	s.setIDs(run.ThreadID, run.ID)
	s.logger.Info("thread created", "thread_id", run.ThreadID, "run_id", run.ID)
	return nil
}

func (s *Session) continueThread(ctx context.Context, threadID, text string) error {
	if threadID == "" {
		return &InvalidSessionStateError{Op: "append message"}
	}
	if _, err := s.backend.CreateMessage(ctx, threadID, text); err != nil {
		return err
	}
	run, err := s.backend.CreateRun(ctx, threadID, s.assistantID)
	if err != nil {
		return err
	}
	if run == nil || run.ID == "" {
		return &MalformedResponseError{Op: "create run", Reason: "missing run id"}
	}
	s.setIDs(threadID, run.ID)
	s.logger.Debug("run created", "thread_id", threadID, "run_id", run.ID)
	return nil
}

// awaitRun polls until the run completes, fails, or the poll timeout elapses.
// The timeout is a deadline on the whole loop, status requests included.
func (s *Session) awaitRun(ctx context.Context) error {
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	for {
		run, err := s.retrieveRun(pollCtx)
		if err != nil {
			return pollError(ctx, err)
		}
		s.logger.Debug("run status", "run_id", run.ID, "status", run.Status, "elapsed", time.Since(start))

		if run.Status == RunStatusCompleted {
			return nil
		}
		if run.Status.Failed() {
			failed := &RunFailedError{RunID: run.ID, Status: run.Status}
			if run.LastError != nil {
				failed.Code = run.LastError.Code
				failed.Message = run.LastError.Message
			}
			return failed
		}

		if err := s.policy.Wait(pollCtx); err != nil {
			return pollError(ctx, err)
		}
		if s.policy.Expired(start) {
			return ErrTimeout
		}
	}
}

// pollError maps the poll deadline to ErrTimeout. Errors from the caller's
// own context pass through.
func pollError(ctx context.Context, err error) error {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func (s *Session) retrieveRun(ctx context.Context) (*Run, error) {
	threadID, runID := s.ids()
	if threadID == "" || runID == "" {
		return nil, &InvalidSessionStateError{Op: "check run status"}
	}
	run, err := s.backend.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, &MalformedResponseError{Op: "retrieve run", Reason: "empty run"}
	}
	return run, nil
}

// latestReply assumes the backend lists messages newest first.
func (s *Session) latestReply(ctx context.Context) (string, error) {
	threadID, runID := s.ids()
	if threadID == "" || runID == "" {
		return "", &InvalidSessionStateError{Op: "fetch reply"}
	}
	messages, err := s.backend.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", &MalformedResponseError{Op: "list messages", Reason: "thread has no messages"}
	}
	latest := messages[0]
	if len(latest.Content) == 0 {
		return "", &MalformedResponseError{Op: "list messages", Reason: fmt.Sprintf("message %s has no content", latest.ID)}
	}
	part := latest.Content[0]
	if part.Text == nil {
		return "", &MalformedResponseError{Op: "list messages", Reason: fmt.Sprintf("message %s starts with %q content, not text", latest.ID, part.Type)}
	}
	return part.Text.Value, nil
}

func (s *Session) cancelRun(ctx context.Context) {
	threadID, runID := s.ids()
	if _, err := s.backend.CancelRun(ctx, threadID, runID); err != nil {
		s.logger.Warn("failed to cancel timed out run", "thread_id", threadID, "run_id", runID, "error", err)
		return
	}
	s.logger.Info("cancelled timed out run", "thread_id", threadID, "run_id", runID)
}
