package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"citron/asr"
	"go.uber.org/zap"
)

// waitForTerminal polls the store until the job reaches a terminal state.
func waitForTerminal(t *testing.T, store *Store, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return Job{}
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	store := newTestStore()
	runner := newTestRunner(store, &fakeASR{segments: recognizedHello()}, &fakeConverter{})
	pool := NewPool(PoolOptions{
		ParentLogger: zap.NewNop(),
		Runner:       runner,
		Workers:      2,
		QueueSize:    8,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	ids := []string{"job-1", "job-2", "job-3"}
	for _, id := range ids {
		if _, err := store.Create(id); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if err := pool.Submit(id, InputSource{Path: writeTempMedia(t, id+".wav")}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	for _, id := range ids {
		job := waitForTerminal(t, store, id)
		if job.Status != StatusCompleted {
			t.Fatalf("%s status = %s (error %q), want completed", id, job.Status, job.Error)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("pool run: %v", err)
	}
}

func TestPoolQueueFull(t *testing.T) {
	store := newTestStore()
	runner := newTestRunner(store, &fakeASR{segments: recognizedHello()}, &fakeConverter{})
	pool := NewPool(PoolOptions{
		ParentLogger: zap.NewNop(),
		Runner:       runner,
		Workers:      1,
		QueueSize:    1,
	})

	// workers never started, so the queue fills immediately
	if err := pool.Submit("job-1", InputSource{Path: "a"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := pool.Submit("job-2", InputSource{Path: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second submit err = %v, want ErrQueueFull", err)
	}
}

func TestPoolStopsOnContextCancel(t *testing.T) {
	store := newTestStore()
	runner := newTestRunner(store, &fakeASR{segments: recognizedHello()}, &fakeConverter{})
	pool := NewPool(PoolOptions{
		ParentLogger: zap.NewNop(),
		Runner:       runner,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("pool run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

// TestPoolFailsJobOnPanic submits a task whose pipeline panics and expects
// the job to end failed rather than stuck in processing.
func TestPoolFailsJobOnPanic(t *testing.T) {
	store := newTestStore()
	runner := newTestRunner(store, panickingASR{}, &fakeConverter{})
	pool := NewPool(PoolOptions{
		ParentLogger: zap.NewNop(),
		Runner:       runner,
		Workers:      1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pool.Submit("job-1", InputSource{Path: writeTempMedia(t, "input.wav")}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	job := waitForTerminal(t, store, "job-1")
	if job.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("pool run: %v", err)
	}
}

type panickingASR struct{}

func (panickingASR) Generate(ctx context.Context, audioPath string) ([]asr.Segment, error) {
	panic("engine blew up")
}
