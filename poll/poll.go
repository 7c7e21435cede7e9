// Package poll drives repeated status checks against an asynchronous
// platform job until it reaches a terminal state, a timeout elapses, or
// the context is cancelled. It is shared by the bulk and metadata
// clients, which use disjoint state vocabularies; the poller only sees
// the Status predicates.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Status is one immutable snapshot of a remote job.
type Status interface {
	// JobRef is the platform-assigned job identifier.
	JobRef() string
	// StateName is the raw state for error reporting and progress display.
	StateName() string
	Terminal() bool
	Succeeded() bool
	Aborted() bool
}

// Config tunes one polling loop. A Config carries no state between
// Poll calls and may be reused freely.
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Backoff multiplies the delay after every check, clamped to MaxDelay.
	Backoff float64
	// Timeout bounds the whole wait. non-positive means unlimited.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Backoff:      1.5,
	}
}

type JobFailedError struct {
	JobID    string
	State    string
	Attempts int
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed after %d status checks", e.JobID, e.Attempts)
}

type JobAbortedError struct {
	JobID    string
	Attempts int
}

func (e *JobAbortedError) Error() string {
	return fmt.Sprintf("job %s was aborted after %d status checks", e.JobID, e.Attempts)
}

type TimeoutError struct {
	JobID    string
	Timeout  time.Duration
	State    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete within %s (state %s, %d status checks)",
		e.JobID, e.Timeout, e.State, e.Attempts)
}

// Poll fetches the job status repeatedly until it is terminal.
// onProgress, when non-nil, runs after every fetch; it is a side
// effect only and must not be relied on for control flow. The caller
// cancels an in-progress wait through ctx; the remote job keeps
// running regardless.
func (c Config) Poll(
	ctx context.Context,
	fetch func(ctx context.Context) (Status, error),
	onProgress func(Status),
) (Status, error) {
	start := time.Now()
	delay := c.InitialDelay
	attempts := 0

	for {
		attempts++

		status, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		if onProgress != nil {
			onProgress(status)
		}

		if status.Terminal() {
			switch {
			case status.Succeeded():
				return status, nil
			case status.Aborted():
				return status, &JobAbortedError{JobID: status.JobRef(), Attempts: attempts}
			default:
				return status, &JobFailedError{
					JobID:    status.JobRef(),
					State:    status.StateName(),
					Attempts: attempts,
				}
			}
		}

		if c.Timeout > 0 && time.Since(start) >= c.Timeout {
			return status, &TimeoutError{
				JobID:    status.JobRef(),
				Timeout:  c.Timeout,
				State:    status.StateName(),
				Attempts: attempts,
			}
		}

		if err := sleep(ctx, delay); err != nil {
			return status, err
		}

		delay = time.Duration(float64(delay) * c.Backoff)
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
