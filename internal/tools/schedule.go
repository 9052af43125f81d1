// Package tools implements the built-in tool catalogue: scheduling,
// listing, and cancelling tasks, sending email (stub), and scratch-file
// read/write.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jverrill/cortex/internal/tasks"
	"github.com/jverrill/cortex/internal/toolkit"
)

// ScheduleTool lets the model schedule a one-shot or recurring task.
type ScheduleTool struct {
	scheduler *tasks.Scheduler
}

// NewScheduleTool builds a ScheduleTool backed by scheduler.
func NewScheduleTool(scheduler *tasks.Scheduler) *ScheduleTool {
	return &ScheduleTool{scheduler: scheduler}
}

func (t *ScheduleTool) Name() string        { return "schedule" }
func (t *ScheduleTool) Category() string    { return "tasks" }
func (t *ScheduleTool) RequiresConfirmation() bool { return false }

func (t *ScheduleTool) Description() string {
	return "Schedule a one-shot or recurring task. One-shot tasks fire once at a given time " +
		"('in 10 minutes' or an ISO8601 timestamp); recurring tasks fire " +
		"on a 5- or 6-field cron expression."
}

func (t *ScheduleTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Short label for the task"},
			"when": {"type": "string", "description": "For one-shot tasks: 'in X minutes/hours/days' or an ISO8601 timestamp"},
			"cron": {"type": "string", "description": "For recurring tasks: a cron expression"},
			"action": {"type": "string", "enum": ["simple_message", "ai_task"], "description": "What the task does when it fires"},
			"message": {"type": "string", "description": "The text to send, for a simple_message action"},
			"prompt": {"type": "string", "description": "The prompt to run through the assistant, for an ai_task action"},
			"channel": {"type": "string", "description": "Optional notification channel override"},
			"model": {"type": "string", "description": "Optional model override for ai_task"}
		},
		"required": ["name", "action"]
	}`)
}

type scheduleInput struct {
	Name    string `json:"name"`
	When    string `json:"when"`
	Cron    string `json:"cron"`
	Action  string `json:"action"`
	Message string `json:"message"`
	Prompt  string `json:"prompt"`
	Channel string `json:"channel"`
	Model   string `json:"model"`
}

func (t *ScheduleTool) Execute(ctx context.Context, args json.RawMessage) (*toolkit.Result, error) {
	var in scheduleInput
	if err := json.Unmarshal(args, &in); err != nil {
		return toolkit.Err(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if in.Name == "" {
		return toolkit.Err("name is required"), nil
	}

	action, err := buildAction(in)
	if err != nil {
		return toolkit.Err(err.Error()), nil
	}

	task := &tasks.Task{
		Name:                in.Name,
		Action:              action,
		NotificationChannel: in.Channel,
		Model:               in.Model,
	}

	switch {
	case in.Cron != "":
		task.Type = tasks.TypeRecurring
		task.Schedule = tasks.Schedule{Cron: in.Cron}
	case in.When != "":
		when, err := parseWhen(in.When)
		if err != nil {
			return toolkit.Err(fmt.Sprintf("invalid time: %v", err)), nil
		}
		if when.Before(time.Now()) {
			return toolkit.Err("cannot schedule a task in the past"), nil
		}
		task.Type = tasks.TypeOneOff
		task.Schedule = tasks.Schedule{RunAt: when}
	default:
		return toolkit.Err("either when or cron is required"), nil
	}

	if err := t.scheduler.ScheduleTask(ctx, task); err != nil {
		return toolkit.Err(fmt.Sprintf("schedule task: %v", err)), nil
	}

	return toolkit.OK(map[string]any{
		"task_id":     task.ID,
		"next_run_at": formatNextRun(task.NextRunAt),
	}), nil
}

func buildAction(in scheduleInput) (tasks.Action, error) {
	switch in.Action {
	case string(tasks.ActionSimpleMessage):
		if in.Message == "" {
			return tasks.Action{}, fmt.Errorf("message is required for a simple_message action")
		}
		return tasks.Action{Type: tasks.ActionSimpleMessage, Message: in.Message}, nil
	case string(tasks.ActionAITask):
		if in.Prompt == "" {
			return tasks.Action{}, fmt.Errorf("prompt is required for an ai_task action")
		}
		return tasks.Action{Type: tasks.ActionAITask, Prompt: in.Prompt}, nil
	default:
		return tasks.Action{}, fmt.Errorf("unknown action %q", in.Action)
	}
}

func formatNextRun(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// parseWhen parses a one-shot trigger time: a relative offset ("in 5
// minutes") or an ISO8601 timestamp.
func parseWhen(when string) (time.Time, error) {
	trimmed := strings.TrimSpace(strings.ToLower(when))
	if strings.HasPrefix(trimmed, "in ") {
		return parseRelativeTime(strings.TrimPrefix(trimmed, "in "))
	}
	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("could not parse time: %s", when)
}

var relativeTimePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(seconds?|minutes?|mins?|hours?|hrs?|days?|weeks?)$`)

func parseRelativeTime(s string) (time.Time, error) {
	matches := relativeTimePattern.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid relative time: %s", s)
	}
	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid number: %s", matches[1])
	}

	var unit time.Duration
	switch {
	case strings.HasPrefix(matches[2], "second"):
		unit = time.Second
	case strings.HasPrefix(matches[2], "min"):
		unit = time.Minute
	case strings.HasPrefix(matches[2], "hour"), strings.HasPrefix(matches[2], "hr"):
		unit = time.Hour
	case strings.HasPrefix(matches[2], "day"):
		unit = 24 * time.Hour
	case strings.HasPrefix(matches[2], "week"):
		unit = 7 * 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("unknown unit: %s", matches[2])
	}

	return time.Now().Add(time.Duration(amount * float64(unit))), nil
}
