package assistant

// RunStatus is the lifecycle state of a run as reported by the service.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Failed reports whether the run has stopped without completing.
// requires_action counts as failed: this client never submits tool outputs,
// so such a run can only sit until it expires.
func (s RunStatus) Failed() bool {
	switch s {
	case RunStatusFailed, RunStatusCancelled, RunStatusExpired,
		RunStatusIncomplete, RunStatusRequiresAction:
		return true
	}
	return false
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentTypeText is the content part type carrying a text value.
const ContentTypeText = "text"

// Run is one assistant invocation against a thread.
type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id,omitempty"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error,omitempty"`
	CreatedAt   int64     `json:"created_at,omitempty"`
}

// RunError is the service's explanation for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is a role-tagged entry in a thread.
type Message struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id,omitempty"`
	RunID     string        `json:"run_id,omitempty"`
	Role      string        `json:"role"`
	CreatedAt int64         `json:"created_at"`
	Content   []ContentPart `json:"content"`
}

// ContentPart is one typed piece of a message's content.
type ContentPart struct {
	Type string    `json:"type"`
	Text *TextPart `json:"text,omitempty"`
}

// TextPart holds the value of a text content part.
type TextPart struct {
	Value string `json:"value"`
}
