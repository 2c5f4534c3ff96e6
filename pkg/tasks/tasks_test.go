package tasks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSpawner serves canned outputs keyed by the joined argv, with optional
// per-command delay and failure.
type fakeSpawner struct {
	mu      sync.Mutex
	outputs map[string]string
	fails   map[string]bool
	delays  map[string]time.Duration
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		outputs: make(map[string]string),
		fails:   make(map[string]bool),
		delays:  make(map[string]time.Duration),
	}
}

func (f *fakeSpawner) Spawn(ctx context.Context, argv []string) ([]byte, error) {
	f.calls.Add(1)
	cur := f.active.Add(1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer f.active.Add(-1)

	key := strings.Join(argv, " ")
	f.mu.Lock()
	delay := f.delays[key]
	fail := f.fails[key]
	out := f.outputs[key]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("exit status 1")
	}
	return []byte(out), nil
}

func TestRunAggregatesAllResults(t *testing.T) {
	sp := newFakeSpawner()
	sp.outputs["git branch"] = "main\n"
	sp.outputs["git status"] = "clean\n"

	r := NewRunner(WithSpawner(sp))
	got := r.RunWait(context.Background(), Set{
		{Name: "branch", Argv: []string{"git", "branch"}},
		{Name: "status", Argv: []string{"git", "status"}},
	}, time.Second)

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d: %v", len(got), got)
	}
	if got["branch"] != "main\n" || got["status"] != "clean\n" {
		t.Errorf("unexpected results: %v", got)
	}
}

func TestFailedTaskIsAbsentNotError(t *testing.T) {
	sp := newFakeSpawner()
	sp.outputs["git branch"] = "main\n"
	sp.fails["git fetch"] = true

	r := NewRunner(WithSpawner(sp))
	got := r.RunWait(context.Background(), Set{
		{Name: "branch", Argv: []string{"git", "branch"}},
		{Name: "fetch", Argv: []string{"git", "fetch"}},
	}, time.Second)

	if _, ok := got["fetch"]; ok {
		t.Errorf("failed task should be absent from results")
	}
	if got["branch"] != "main\n" {
		t.Errorf("sibling task lost: %v", got)
	}
}

func TestTimeoutDeliversPartialResults(t *testing.T) {
	sp := newFakeSpawner()
	sp.outputs["fast cmd"] = "ok"
	sp.outputs["slow cmd"] = "never seen"
	sp.delays["slow cmd"] = 5 * time.Second

	r := NewRunner(WithSpawner(sp))
	start := time.Now()
	got := r.RunWait(context.Background(), Set{
		{Name: "fast", Argv: []string{"fast", "cmd"}},
		{Name: "slow", Argv: []string{"slow", "cmd"}},
	}, 100*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed >= time.Second {
		t.Fatalf("delivery took %v, should settle near the 100ms timeout", elapsed)
	}
	if got["fast"] != "ok" {
		t.Errorf("fast result missing: %v", got)
	}
	if _, ok := got["slow"]; ok {
		t.Errorf("slow task should have been cut off: %v", got)
	}
}

func TestOnCompleteExactlyOnce(t *testing.T) {
	sp := newFakeSpawner()
	sp.outputs["a"] = "1"
	sp.delays["b"] = 300 * time.Millisecond

	var calls atomic.Int32
	done := make(chan struct{})
	r := NewRunner(WithSpawner(sp))
	r.Run(context.Background(), Set{
		{Name: "a", Argv: []string{"a"}},
		{Name: "b", Argv: []string{"b"}},
	}, 50*time.Millisecond, func(Results) {
		calls.Add(1)
		close(done)
	})

	<-done
	// Give the late task time to finish and try to double-deliver.
	time.Sleep(400 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("onComplete called %d times, want exactly 1", n)
	}
}

func TestEmptySetCompletesImmediately(t *testing.T) {
	r := NewRunner(WithSpawner(newFakeSpawner()))
	got := r.RunWait(context.Background(), nil, time.Second)
	if len(got) != 0 {
		t.Fatalf("expected empty results, got %v", got)
	}
}

func TestParallelismBounded(t *testing.T) {
	sp := newFakeSpawner()
	var set Set
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		sp.outputs[name] = name
		sp.delays[name] = 50 * time.Millisecond
		set = append(set, Task{Name: name, Argv: []string{name}})
	}

	r := NewRunner(WithSpawner(sp), WithMaxParallel(2))
	got := r.RunWait(context.Background(), set, 5*time.Second)

	if len(got) != 6 {
		t.Fatalf("expected all 6 results, got %d", len(got))
	}
	if peak := sp.peak.Load(); peak > 2 {
		t.Errorf("observed %d concurrent spawns, limit is 2", peak)
	}
}

func TestRunReturnsImmediately(t *testing.T) {
	sp := newFakeSpawner()
	sp.delays["slow"] = 500 * time.Millisecond
	sp.outputs["slow"] = "x"

	r := NewRunner(WithSpawner(sp))
	start := time.Now()
	r.Run(context.Background(), Set{{Name: "slow", Argv: []string{"slow"}}}, time.Second, nil)
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Run blocked for %v, must return without waiting", elapsed)
	}
}
