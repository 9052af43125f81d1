package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jverrill/cortex/internal/tasks"
	"github.com/jverrill/cortex/internal/toolkit"
)

// ListTasksTool lists the owner's active scheduled tasks.
type ListTasksTool struct {
	store tasks.Store
}

// NewListTasksTool builds a ListTasksTool backed by store.
func NewListTasksTool(store tasks.Store) *ListTasksTool {
	return &ListTasksTool{store: store}
}

func (t *ListTasksTool) Name() string        { return "list_tasks" }
func (t *ListTasksTool) Category() string    { return "tasks" }
func (t *ListTasksTool) RequiresConfirmation() bool { return false }

func (t *ListTasksTool) Description() string {
	return "List the owner's active scheduled tasks, including their next run time. An optional query filters by name or description."
}

func (t *ListTasksTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Optional text to filter active tasks by name or description"}
		}
	}`)
}

type listTasksInput struct {
	Query string `json:"query"`
}

func (t *ListTasksTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	var in listTasksInput
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return toolkit.Err(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}

	var active []*tasks.Task
	var err error
	if in.Query != "" {
		active, err = t.store.SearchActive(ctx, in.Query)
	} else {
		active, err = t.store.ListActive(ctx)
	}
	if err != nil {
		return toolkit.Err(fmt.Sprintf("list tasks: %v", err)), nil
	}

	items := make([]map[string]any, 0, len(active))
	for _, task := range active {
		item := map[string]any{
			"id":   task.ID,
			"name": task.Name,
			"type": string(task.Type),
		}
		if task.NextRunAt != nil {
			item["next_run_at"] = formatNextRun(task.NextRunAt)
		}
		if task.Type == tasks.TypeRecurring {
			item["cron"] = task.Schedule.Cron
		}
		items = append(items, item)
	}

	return toolkit.OK(map[string]any{"tasks": items, "count": len(items)}), nil
}
