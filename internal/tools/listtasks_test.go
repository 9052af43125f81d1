package tools

import (
	"context"
	"testing"
	"time"

	"github.com/jverrill/cortex/internal/tasks"
)

func TestListTasksToolReturnsOnlyActive(t *testing.T) {
	store := newFakeStore()
	next := time.Now().Add(time.Hour)
	store.Create(context.Background(), &tasks.Task{
		ID: "t1", Name: "active one", Type: tasks.TypeOneOff, Active: true, NextRunAt: &next,
	})
	store.Create(context.Background(), &tasks.Task{
		ID: "t2", Name: "inactive one", Type: tasks.TypeOneOff, Active: false,
	})

	tool := NewListTasksTool(store)
	result, err := tool.Execute(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected tool error: %s", result.Error)
	}
	count, _ := result.Data["count"].(int)
	if count != 1 {
		t.Fatalf("expected 1 active task, got %d (%+v)", count, result.Data)
	}
}

func TestListTasksToolIncludesCronForRecurring(t *testing.T) {
	store := newFakeStore()
	store.Create(context.Background(), &tasks.Task{
		ID: "t1", Name: "daily", Type: tasks.TypeRecurring, Active: true,
		Schedule: tasks.Schedule{Cron: "0 9 * * *"},
	})

	tool := NewListTasksTool(store)
	result, err := tool.Execute(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := result.Data["tasks"].([]map[string]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one task item, got %+v", result.Data)
	}
	if items[0]["cron"] != "0 9 * * *" {
		t.Fatalf("expected cron field in item, got %+v", items[0])
	}
}

func TestListTasksToolFiltersByQuery(t *testing.T) {
	store := newFakeStore()
	store.Create(context.Background(), &tasks.Task{
		ID: "t1", Name: "water plants", Type: tasks.TypeOneOff, Active: true,
	})
	store.Create(context.Background(), &tasks.Task{
		ID: "t2", Name: "pay rent", Type: tasks.TypeOneOff, Active: true,
	})

	tool := NewListTasksTool(store)
	result, err := tool.Execute(context.Background(), []byte(`{"query": "plants"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := result.Data["tasks"].([]map[string]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one matching task, got %+v", result.Data)
	}
	if items[0]["name"] != "water plants" {
		t.Fatalf("expected the matching task, got %+v", items[0])
	}
}
