package assistant

import (
	"context"
	"fmt"
	"time"
)

// PollPolicy controls how a Session waits for a run to finish.
type PollPolicy struct {
	Interval time.Duration
	Timeout  time.Duration
	// CancelOnTimeout makes the session ask the service to cancel a run it
	// gave up on, so the next message can be appended to the thread.
	CancelOnTimeout bool
}

// DefaultPollPolicy returns a PollPolicy polling every second for at most
// ten seconds.
func DefaultPollPolicy() *PollPolicy {
	return &PollPolicy{
		Interval: 1 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Validate checks that both durations are positive.
func (p *PollPolicy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", p.Interval)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %v", p.Timeout)
	}
	return nil
}

// Expired reports whether the time since start has reached the timeout.
func (p *PollPolicy) Expired(start time.Time) bool {
	return time.Since(start) >= p.Timeout
}

// Wait sleeps for one interval, returning early with the context's error if
// ctx is done first.
func (p *PollPolicy) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
