package assistant

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by Session.SendMessage when the run does not reach
// completed within the poll timeout. It is an expected outcome.
var ErrTimeout = errors.New("run did not complete before timeout")

// TimeoutReply is the text shown to a user in place of a reply when
// SendMessage returns ErrTimeout.
const TimeoutReply = "Response timed out..."

// NetworkError reports a transport failure: the request never produced an
// HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	Op         string
	StatusCode int
	// Message is the service's error message when the body carried one.
	Message string
	Body    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: API error (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Op, e.StatusCode, e.Body)
}

// MalformedResponseError reports a response body that did not parse or was
// missing a field the client depends on.
type MalformedResponseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// InvalidSessionStateError reports an operation that needs an active thread
// and run invoked on a fresh session.
type InvalidSessionStateError struct {
	Op string
}

func (e *InvalidSessionStateError) Error() string {
	return fmt.Sprintf("%s: session has no active thread and run", e.Op)
}

// RunFailedError reports a run that stopped in a non-success terminal status.
type RunFailedError struct {
	RunID   string
	Status  RunStatus
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("run %s ended with status %s: %s (%s)", e.RunID, e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
}
