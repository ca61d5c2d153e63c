// Package tokens counts tokens in outgoing messages and enforces an optional
// per-message ceiling.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// LimitError reports a message longer than the configured ceiling.
type LimitError struct {
	Tokens int
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("message is %d tokens, limit is %d", e.Tokens, e.Limit)
}

// Counter counts tokens with the encoding of a given model.
type Counter struct {
	tokenizer *tiktoken.Tiktoken
	limit     int
}

// New creates a Counter for model. Unknown models fall back to cl100k_base.
// A limit of zero disables Check.
func New(model string, limit int) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Counter{tokenizer: enc, limit: limit}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}

// Check returns the token count of text and a *LimitError if it exceeds the
// limit.
func (c *Counter) Check(text string) (int, error) {
	n := c.Count(text)
	if c.limit > 0 && n > c.limit {
		return n, &LimitError{Tokens: n, Limit: c.limit}
	}
	return n, nil
}

// Limit returns the configured ceiling, zero when disabled.
func (c *Counter) Limit() int { return c.limit }
