package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvill/identity-service/internal/api/metrics"
	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Handler executes one attempt of a task. Returning an error triggers a
// retry unless the error wraps domain.ErrExternalConflict, which is terminal
// immediately.
type Handler func(ctx context.Context, payload any) error

// TerminalHook runs once when a task exhausts its attempts (or fast-fails on
// a semantic conflict), receiving the last error observed.
type TerminalHook func(ctx context.Context, payload any, lastErr error)

// RetryPolicy bounds the attempts of a task kind. The delay before attempt
// n+1 is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Backoff returns the delay to wait after the given 1-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

type registration struct {
	policy  RetryPolicy
	handler Handler
	hook    TerminalHook
}

type task struct {
	kind    ports.TaskKind
	payload any
}

// Runner executes named tasks on a fixed pool of workers with bounded
// automatic retry and exponential backoff. Handlers must tolerate
// re-execution: every retry re-runs the full handler body.
type Runner struct {
	tasks    chan task
	workers  int
	mu       sync.RWMutex
	handlers map[ports.TaskKind]registration
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewRunner creates a Runner with numWorkers workers. If numWorkers <= 0,
// defaultWorkers is used.
func NewRunner(numWorkers int, log zerolog.Logger) *Runner {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &Runner{
		tasks:    make(chan task, channelBuffer),
		workers:  numWorkers,
		handlers: make(map[ports.TaskKind]registration),
		log:      log,
	}
}

// Register binds a task kind to its handler, retry policy, and terminal hook.
// Must be called before Start.
func (r *Runner) Register(kind ports.TaskKind, policy RetryPolicy, handler Handler, hook TerminalHook) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	r.mu.Lock()
	r.handlers[kind] = registration{policy: policy, handler: handler, hook: hook}
	r.mu.Unlock()
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.runWorker(ctx, i)
	}
}

// Wait blocks until all workers have stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Enqueue hands a task to the pool. The call is non-blocking up to
// channelBuffer capacity.
func (r *Runner) Enqueue(kind ports.TaskKind, payload any) {
	r.tasks <- task{kind: kind, payload: payload}
	metrics.TasksEnqueuedTotal.WithLabelValues(string(kind)).Inc()
	metrics.TaskQueueDepth.Set(float64(len(r.tasks)))
}

func (r *Runner) runWorker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-r.tasks:
			if !ok {
				return
			}
			metrics.TaskQueueDepth.Set(float64(len(r.tasks)))
			r.execute(ctx, id, t)
		}
	}
}

// execute runs a task to its terminal outcome: success, fast-fail on a
// semantic conflict, or exhaustion after MaxAttempts.
func (r *Runner) execute(ctx context.Context, workerID int, t task) {
	r.mu.RLock()
	reg, ok := r.handlers[t.kind]
	r.mu.RUnlock()
	if !ok {
		r.log.Error().Str("kind", string(t.kind)).Msg("no handler registered for task kind")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= reg.policy.MaxAttempts; attempt++ {
		metrics.TaskAttemptsTotal.WithLabelValues(string(t.kind)).Inc()

		lastErr = reg.handler(ctx, t.payload)
		if lastErr == nil {
			r.log.Debug().
				Str("kind", string(t.kind)).
				Int("attempt", attempt).
				Int("worker_id", workerID).
				Msg("task completed")
			return
		}

		// Semantic 4xx conflicts can never succeed on retry.
		if errors.Is(lastErr, domain.ErrExternalConflict) {
			break
		}

		if attempt == reg.policy.MaxAttempts {
			break
		}

		delay := reg.policy.Backoff(attempt)
		r.log.Warn().Err(lastErr).
			Str("kind", string(t.kind)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("task attempt failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	metrics.TasksExhaustedTotal.WithLabelValues(string(t.kind)).Inc()
	r.log.Error().Err(lastErr).
		Str("kind", string(t.kind)).
		Int("worker_id", workerID).
		Msg("task failed terminally")

	if reg.hook != nil {
		reg.hook(ctx, t.payload, lastErr)
	}
}
