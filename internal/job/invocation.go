package job

import (
	"context"
	"time"
)

// Outcome is the final state of a job invocation.
type Outcome string

const (
	Success    Outcome = "success"
	Failure    Outcome = "failure"
	TimedOut   Outcome = "timed_out"
	SpawnError Outcome = "spawn_error"
	// Dropped marks a job that was accepted for an event but never started,
	// because the queue was full or the daemon was shutting down.
	Dropped Outcome = "dropped"
)

// Invocation is one external process run for one detected event.
type Invocation struct {
	ID          string
	Job         string
	Definition  string
	EventID     string
	EntityID    string
	Command     []string
	Environment map[string]string
	Dir         string
	Timeout     time.Duration

	StartedAt  time.Time
	EndedAt    time.Time
	ExitStatus *int
	Outcome    Outcome
	Output     string
	Err        error
}

// Duration returns how long the process ran, zero if it never started.
func (inv *Invocation) Duration() time.Duration {
	if inv.StartedAt.IsZero() || inv.EndedAt.IsZero() {
		return 0
	}
	return inv.EndedAt.Sub(inv.StartedAt)
}

// Future resolves once its invocation has an outcome.
type Future struct {
	inv  *Invocation
	done chan struct{}
}

func newFuture(inv *Invocation) *Future {
	return &Future{inv: inv, done: make(chan struct{})}
}

// Done is closed when the outcome is recorded.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the outcome is recorded or ctx is done.
func (f *Future) Wait(ctx context.Context) (*Invocation, error) {
	select {
	case <-f.done:
		return f.inv, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve() { close(f.done) }
