// Package tasks runs batches of external commands in parallel and hands the
// caller a name-to-output map when the batch settles. Individual command
// failures are not errors; a failed task is simply missing from the results,
// matching the engine's degrade-to-absent policy for acquired fields.
package tasks

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/odvcencio/spyglass/pkg/logging"
)

// DefaultMaxParallel bounds concurrent spawned commands per batch.
const DefaultMaxParallel = 8

// DefaultTimeout is the batch aggregation window when the caller passes a
// non-positive timeout.
const DefaultTimeout = 2 * time.Second

// Task names one external command.
type Task struct {
	Name string   // result key, unique within a batch
	Argv []string // Argv[0] is the command
}

// Set is a batch of tasks submitted together.
type Set []Task

// Results maps task names to captured standard output. Tasks that failed,
// timed out, or produced no exit in time are absent.
type Results map[string]string

// Spawner starts one command and returns its captured standard output.
// Implementations must honor context cancellation.
type Spawner interface {
	Spawn(ctx context.Context, argv []string) ([]byte, error)
}

// ExecSpawner runs commands through os/exec with an optional working
// directory.
type ExecSpawner struct {
	Dir string
}

func (s ExecSpawner) Spawn(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if s.Dir != "" {
		cmd.Dir = s.Dir
	}
	return cmd.Output()
}

// Runner executes task sets with bounded parallelism.
type Runner struct {
	spawner     Spawner
	maxParallel int
	log         *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSpawner overrides the command spawner, for tests or sandboxing.
func WithSpawner(s Spawner) Option {
	return func(r *Runner) { r.spawner = s }
}

// WithMaxParallel bounds concurrent tasks per batch.
func WithMaxParallel(n int) Option {
	return func(r *Runner) { r.maxParallel = n }
}

// WithLogger attaches a logger for task-level diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// NewRunner creates a Runner spawning through os/exec by default.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		spawner:     ExecSpawner{},
		maxParallel: DefaultMaxParallel,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxParallel <= 0 {
		r.maxParallel = DefaultMaxParallel
	}
	return r
}

// Run submits a batch and returns immediately. onComplete is invoked exactly
// once, from a separate goroutine, either when every task has finished or
// when the timeout elapses, whichever comes first. On timeout the partial
// results gathered so far are delivered and outstanding commands are
// cancelled; their late output is discarded.
//
// The timeout counts from submission, not from task start. A non-positive
// timeout falls back to DefaultTimeout.
func (r *Runner) Run(ctx context.Context, set Set, timeout time.Duration, onComplete func(Results)) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if onComplete == nil {
		onComplete = func(Results) {}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	started := time.Now()

	go func() {
		defer cancel()

		var mu sync.Mutex
		results := make(Results, len(set))

		sem := make(chan struct{}, r.maxParallel)
		var wg sync.WaitGroup
		for _, task := range set {
			wg.Add(1)
			go func(t Task) {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
				case <-cctx.Done():
					return
				}
				defer func() { <-sem }()

				metricSpawned.Inc()
				out, err := r.spawner.Spawn(cctx, t.Argv)
				if err != nil {
					metricFailed.Inc()
					r.log.Debug(logging.CategoryAcquire, "task_failed", t.Name, map[string]any{
						"error": err.Error(),
					})
					return
				}
				mu.Lock()
				results[t.Name] = string(out)
				mu.Unlock()
			}(task)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-cctx.Done():
			metricTimeouts.Inc()
			r.log.Warn(logging.CategoryAcquire, "batch_timeout", "delivering partial results", map[string]any{
				"tasks":   len(set),
				"timeout": timeout.String(),
			})
		}

		mu.Lock()
		delivered := make(Results, len(results))
		for name, out := range results {
			delivered[name] = out
		}
		mu.Unlock()

		metricBatchSeconds.Observe(time.Since(started).Seconds())
		onComplete(delivered)
	}()
}

// RunWait submits a batch and blocks until its results are delivered.
func (r *Runner) RunWait(ctx context.Context, set Set, timeout time.Duration) Results {
	ch := make(chan Results, 1)
	r.Run(ctx, set, timeout, func(res Results) { ch <- res })
	return <-ch
}
