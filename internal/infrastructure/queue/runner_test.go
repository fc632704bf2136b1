package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

const testKind ports.TaskKind = "test_task"

var discardLogger = zerolog.Nop()

// recorder counts handler attempts and terminal hook calls, failing the
// first failures attempts.
type recorder struct {
	mu       sync.Mutex
	failures int
	attempts int
	hookErr  error
	hooked   bool
	done     chan struct{}
}

func newRecorder(failures int) *recorder {
	return &recorder{failures: failures, done: make(chan struct{})}
}

func (r *recorder) handle(_ context.Context, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.attempts <= r.failures {
		return fmt.Errorf("attempt %d: %w", r.attempts, domain.ErrExternalTransient)
	}
	close(r.done)
	return nil
}

func (r *recorder) hook(_ context.Context, _ any, lastErr error) {
	r.mu.Lock()
	r.hooked = true
	r.hookErr = lastErr
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not reach a terminal outcome in time")
	}
}

func (r *recorder) snapshot() (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts, r.hooked, r.hookErr
}

func startRunner(t *testing.T, rec *recorder, policy RetryPolicy) *Runner {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runner := NewRunner(2, discardLogger)
	runner.Register(testKind, policy, rec.handle, rec.hook)
	runner.Start(ctx)
	return runner
}

func TestRunner_SucceedsFirstAttempt(t *testing.T) {
	rec := newRecorder(0)
	runner := startRunner(t, rec, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	runner.Enqueue(testKind, "payload")
	rec.wait(t)

	attempts, hooked, _ := rec.snapshot()
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if hooked {
		t.Error("hook must not run on success")
	}
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	rec := newRecorder(2)
	runner := startRunner(t, rec, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	runner.Enqueue(testKind, "payload")
	rec.wait(t)

	attempts, hooked, _ := rec.snapshot()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if hooked {
		t.Error("hook must not run when a retry succeeds")
	}
}

func TestRunner_ExhaustionRunsHookWithLastError(t *testing.T) {
	rec := newRecorder(10)
	runner := startRunner(t, rec, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	runner.Enqueue(testKind, "payload")
	rec.wait(t)

	attempts, hooked, hookErr := rec.snapshot()
	if attempts != 3 {
		t.Errorf("expected exactly MaxAttempts attempts, got %d", attempts)
	}
	if !hooked {
		t.Fatal("hook must run on exhaustion")
	}
	if !errors.Is(hookErr, domain.ErrExternalTransient) {
		t.Errorf("hook must receive the last error, got %v", hookErr)
	}
	if hookErr == nil || hookErr.Error() != "attempt 3: "+domain.ErrExternalTransient.Error() {
		t.Errorf("hook must receive the final attempt's error, got %v", hookErr)
	}
}

func TestRunner_ConflictIsTerminalImmediately(t *testing.T) {
	rec := newRecorder(0)
	conflict := fmt.Errorf("duplicate person: %w", domain.ErrExternalConflict)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	attempts := 0
	runner := NewRunner(1, discardLogger)
	runner.Register(testKind, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func(_ context.Context, _ any) error {
			attempts++
			return conflict
		},
		rec.hook,
	)
	runner.Start(ctx)

	runner.Enqueue(testKind, "payload")
	rec.wait(t)

	if attempts != 1 {
		t.Errorf("conflict must not be retried, got %d attempts", attempts)
	}
	_, hooked, hookErr := rec.snapshot()
	if !hooked {
		t.Fatal("hook must run on a terminal conflict")
	}
	if !errors.Is(hookErr, domain.ErrExternalConflict) {
		t.Errorf("hook must receive the conflict error, got %v", hookErr)
	}
}

func TestRunner_UnregisteredKindIsDropped(t *testing.T) {
	rec := newRecorder(0)
	runner := startRunner(t, rec, RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})

	runner.Enqueue(ports.TaskKind("unknown"), "payload")
	runner.Enqueue(testKind, "payload")
	rec.wait(t)

	attempts, _, _ := rec.snapshot()
	if attempts != 1 {
		t.Errorf("unknown kind must be dropped, got %d attempts", attempts)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := p.Backoff(tc.attempt); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}
