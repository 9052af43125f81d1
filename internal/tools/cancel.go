package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jverrill/cortex/internal/tasks"
	"github.com/jverrill/cortex/internal/toolkit"
)

// CancelScheduledTaskTool cancels a scheduled task by id. Its name matches
// the turn loop's well-known cancel_scheduled_task hook, which enriches the
// confirmation prompt with the task's current state before dispatch.
type CancelScheduledTaskTool struct {
	scheduler *tasks.Scheduler
	store     tasks.Store
}

// NewCancelScheduledTaskTool builds a CancelScheduledTaskTool.
func NewCancelScheduledTaskTool(scheduler *tasks.Scheduler, store tasks.Store) *CancelScheduledTaskTool {
	return &CancelScheduledTaskTool{scheduler: scheduler, store: store}
}

func (t *CancelScheduledTaskTool) Name() string        { return "cancel_scheduled_task" }
func (t *CancelScheduledTaskTool) Category() string    { return "tasks" }
func (t *CancelScheduledTaskTool) RequiresConfirmation() bool { return true }

func (t *CancelScheduledTaskTool) Description() string {
	return "Cancel a scheduled task by id. Destructive: the task is deactivated and will not fire again."
}

func (t *CancelScheduledTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "string", "description": "The id of the task to cancel"}
		},
		"required": ["task_id"]
	}`)
}

type cancelInput struct {
	TaskID string `json:"task_id"`
}

func (t *CancelScheduledTaskTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	var in cancelInput
	if err := json.Unmarshal(args, &in); err != nil {
		return toolkit.Err(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if in.TaskID == "" {
		return toolkit.Err("task_id is required"), nil
	}

	if _, err := t.store.Get(ctx, in.TaskID); err != nil {
		return toolkit.Err("task not found"), nil
	}

	if err := t.scheduler.CancelTask(ctx, in.TaskID); err != nil {
		return toolkit.Err(fmt.Sprintf("cancel task: %v", err)), nil
	}
	return toolkit.OK(map[string]any{"cancelled": true, "task_id": in.TaskID}), nil
}

// Describer implements agent.TaskDescriber over a tasks.Store, used by the
// turn loop to enrich cancel_scheduled_task confirmation prompts with the
// task's current state.
type Describer struct {
	store tasks.Store
}

// NewDescriber builds a Describer backed by store.
func NewDescriber(store tasks.Store) *Describer {
	return &Describer{store: store}
}

// DescribeTask resolves taskID to its current state summary.
func (d *Describer) DescribeTask(ctx context.Context, taskID string) (string, bool) {
	task, err := d.store.Get(ctx, taskID)
	if err != nil {
		return "", false
	}
	return task.DescribeState(), true
}
