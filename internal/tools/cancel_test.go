package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jverrill/cortex/internal/tasks"
)

func TestCancelScheduledTaskToolDeactivates(t *testing.T) {
	store := newFakeStore()
	sched := tasks.NewScheduler(store, &noopExecutor{}, nil)

	task := &tasks.Task{ID: tasks.NewID(), Name: "reminder", Type: tasks.TypeOneOff}
	task.Schedule.RunAt = time.Now().Add(time.Hour)
	if err := sched.ScheduleTask(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tool := NewCancelScheduledTaskTool(sched, store)
	args, _ := json.Marshal(map[string]any{"task_id": task.ID})

	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected tool error: %s", result.Error)
	}

	got, err := store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Active {
		t.Fatalf("expected task to be inactive after cancel")
	}
}

func TestCancelScheduledTaskToolUnknownIDFails(t *testing.T) {
	store := newFakeStore()
	sched := tasks.NewScheduler(store, &noopExecutor{}, nil)
	tool := NewCancelScheduledTaskTool(sched, store)

	args, _ := json.Marshal(map[string]any{"task_id": "does-not-exist"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Fatalf("expected a not-found error")
	}
}

func TestDescriberDescribesKnownTask(t *testing.T) {
	store := newFakeStore()
	lastRun := time.Now()
	store.Create(context.Background(), &tasks.Task{
		ID: "t1", Name: "daily digest", Type: tasks.TypeRecurring, Active: true,
		Schedule: tasks.Schedule{Cron: "0 9 * * *"}, LastRunAt: &lastRun,
	})

	d := NewDescriber(store)
	desc, ok := d.DescribeTask(context.Background(), "t1")
	if !ok {
		t.Fatalf("expected task to be found")
	}
	if desc == "" {
		t.Fatalf("expected a non-empty description")
	}
}

func TestDescriberUnknownTaskFails(t *testing.T) {
	store := newFakeStore()
	d := NewDescriber(store)
	_, ok := d.DescribeTask(context.Background(), "missing")
	if ok {
		t.Fatalf("expected unknown task to report not-found")
	}
}
