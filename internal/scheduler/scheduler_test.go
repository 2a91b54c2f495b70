package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/driftwood/driftwood/internal/testutil"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	s, err := New(testutil.NopLogger())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func waitForRuns(t *testing.T, runs *atomic.Int32, want int32) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runs.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("runs = %d, want at least %d", runs.Load(), want)
}

func TestRegisterTaskRejectsDuplicateID(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{
		ID:   "sweep",
		Name: "Sweep",
		Cron: "@every 1h",
		Func: func(ctx context.Context) error { return nil },
	}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("first RegisterTask error: %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Error("duplicate RegisterTask succeeded, want error")
	}
}

func TestRunOnStartExecutesTask(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	err := s.RegisterTask(TaskConfig{
		ID:         "sweep",
		Name:       "Sweep",
		Cron:       "@every 1h",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask error: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	waitForRuns(t, &runs, 1)
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	err := s.RegisterTask(TaskConfig{
		ID:   "health",
		Name: "Health",
		Cron: "@every 1h",
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask error: %v", err)
	}

	if err := s.RunNow("health"); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	waitForRuns(t, &runs, 1)

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow(missing) succeeded, want error")
	}
}

func TestListTasksReportsState(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	err := s.RegisterTask(TaskConfig{
		ID:          "sweep",
		Name:        "Sweep",
		Description: "removes stale files",
		Cron:        "@every 1h",
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask error: %v", err)
	}

	tasks := s.ListTasks()
	if len(tasks) != 1 {
		t.Fatalf("len(ListTasks()) = %d, want 1", len(tasks))
	}
	info := tasks[0]
	if info.ID != "sweep" || info.Name != "Sweep" || info.Cron != "@every 1h" {
		t.Errorf("unexpected task info: %+v", info)
	}
	if info.LastRun != nil {
		t.Error("LastRun set before any run")
	}

	if err := s.RunNow("sweep"); err != nil {
		t.Fatalf("RunNow error: %v", err)
	}
	waitForRuns(t, &runs, 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lr := s.ListTasks()[0].LastRun; lr != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("LastRun not recorded after run")
}
