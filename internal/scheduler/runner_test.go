package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunnerExecutesTasksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(RunnerConfig{QueueSize: 4}, nil)
	runner.Start(ctx)

	var (
		mu    sync.Mutex
		order []string
	)
	done := make(chan struct{})
	record := func(name string) Task {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			if name == "third" {
				close(done)
			}
			return nil
		}
	}

	for _, name := range []string{"first", "second", "third"} {
		if err := runner.Submit(name, record(name)); err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestRunnerRejectsWhenQueueIsFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(RunnerConfig{QueueSize: 1}, nil)
	runner.Start(ctx)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := runner.Submit("blocking", func(context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("submit blocking: %v", err)
	}
	<-started

	if current := runner.Current(); current != "blocking" {
		t.Fatalf("expected blocking task to be current, got %q", current)
	}
	if err := runner.Submit("queued", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("submit queued: %v", err)
	}
	if err := runner.Submit("overflow", func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
	close(release)
}

func TestRunnerSurvivesFailingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(RunnerConfig{}, nil)
	runner.Start(ctx)

	if err := runner.Submit("error", func(context.Context) error { return errors.New("boom") }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := runner.Submit("panic", func(context.Context) error { panic("boom") }); err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := make(chan struct{})
	if err := runner.Submit("after", func(context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner stopped after failing tasks")
	}

	deadline := time.Now().Add(2 * time.Second)
	for runner.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("runner still busy after failed and panicked tasks")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunnerStopWait(t *testing.T) {
	runner := NewRunner(RunnerConfig{}, nil)
	if err := runner.Submit("early", func(context.Context) error { return nil }); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected not running before start, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		runner.StopWait(2 * time.Second)
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatalf("stop wait did not return")
	}

	if err := runner.Submit("late", func(context.Context) error { return nil }); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected not running after stop, got %v", err)
	}
}

func TestRunnerTrySubmitRefusesWhileBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(RunnerConfig{QueueSize: 4}, nil)
	runner.Start(ctx)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := runner.TrySubmit("first", func(context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("submit first: %v", err)
	}

	// The task may still sit in the queue or be between dequeue and start.
	if !runner.Busy() {
		t.Fatalf("expected runner busy right after submit")
	}
	if err := runner.TrySubmit("second", func(context.Context) error { return nil }); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy before the task starts, got %v", err)
	}

	<-started
	if err := runner.TrySubmit("third", func(context.Context) error { return nil }); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected busy while the task runs, got %v", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for runner.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("runner still busy after the task finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := runner.TrySubmit("fourth", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected idle runner to accept, got %v", err)
	}
}
