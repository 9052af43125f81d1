package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jverrill/cortex/internal/agent"
	"github.com/jverrill/cortex/internal/msgctx"
	"github.com/jverrill/cortex/internal/notify"
)

// GenerateFunc drives one ai_task prompt to a final text response. It is
// satisfied by (*agent.Loop).Generate, or by a minimal no-streaming,
// no-confirmation variant suitable for unattended execution — the
// executor is parameterised on this rather than holding a *agent.Loop
// directly so the same executor type serves both the interactive turn
// loop and scheduled firing.
type GenerateFunc func(ctx context.Context, history []agent.CompletionMessage, opts agent.GenerateOptions) (string, error)

// TaskExecutor runs a task's configured action against the notification
// router, updating last_run_at only when the action itself succeeds.
type TaskExecutor struct {
	store    Store
	router   *notify.Router
	generate GenerateFunc
	ownerID  string
	logger   *slog.Logger
}

// NewExecutor builds a TaskExecutor. generate is used only for ai_task
// actions and may be nil if the deployment never schedules one.
func NewExecutor(store Store, router *notify.Router, generate GenerateFunc, ownerID string, logger *slog.Logger) *TaskExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskExecutor{
		store:    store,
		router:   router,
		generate: generate,
		ownerID:  ownerID,
		logger:   logger.With("component", "task_executor"),
	}
}

// SetGenerate installs the generate function after construction, breaking
// the construction-order cycle between the executor (needed by the
// scheduler) and the turn loop (needed by ai_task execution, and itself
// built from a registry of tools that reference the scheduler).
func (e *TaskExecutor) SetGenerate(fn GenerateFunc) {
	e.generate = fn
}

// Execute loads taskID, dispatches on its action type, and records the
// outcome. An absent or inactive task is logged and skipped rather than
// treated as an error, per the engine's idempotence contract.
func (e *TaskExecutor) Execute(ctx context.Context, taskID string) error {
	task, err := e.store.Get(ctx, taskID)
	if err != nil {
		e.logger.Info("execute: task not found, skipping", "task_id", taskID)
		return nil
	}
	if !task.Active {
		e.logger.Info("execute: task inactive, skipping", "task_id", taskID)
		return nil
	}

	if err := e.dispatch(ctx, task); err != nil {
		e.notifyFailure(ctx, task, err)
		return err
	}

	if err := e.store.UpdateLastRun(ctx, task.ID, time.Now()); err != nil {
		e.logger.Error("execute: update last_run_at failed", "task_id", task.ID, "error", err)
	}
	return nil
}

func (e *TaskExecutor) dispatch(ctx context.Context, task *Task) error {
	switch task.Action.Type {
	case ActionSimpleMessage:
		if ok := e.router.Send(ctx, e.ownerID, task.Action.Message, task.NotificationChannel); !ok {
			return fmt.Errorf("tasks: simple_message send failed for task %s", task.ID)
		}
		return nil
	case ActionAITask:
		if e.generate == nil {
			return fmt.Errorf("tasks: ai_task scheduled but no generate function configured")
		}
		history := []agent.CompletionMessage{agent.Text(agent.RoleUser, task.Action.Prompt)}
		mc := (&msgctx.Context{
			UserID:          e.ownerID,
			SourceTransport: "scheduler",
			ConversationID:  "task:" + task.ID,
		}).Normalize()
		text, err := e.generate(ctx, history, agent.GenerateOptions{Model: task.Model, MsgContext: mc})
		if err != nil {
			return fmt.Errorf("tasks: ai_task generate failed: %w", err)
		}
		if ok := e.router.Send(ctx, e.ownerID, text, task.NotificationChannel); !ok {
			return fmt.Errorf("tasks: ai_task send failed for task %s", task.ID)
		}
		return nil
	default:
		return fmt.Errorf("tasks: unknown action type %q", task.Action.Type)
	}
}

// notifyFailure sends a best-effort error notification identifying the
// failed task by name and id. Its own failure is logged, never returned;
// Execute returns only the dispatch error, which the scheduler logs.
func (e *TaskExecutor) notifyFailure(ctx context.Context, task *Task, cause error) {
	text := fmt.Sprintf("Scheduled task %q (%s) failed: %v", task.Name, task.ID, cause)
	if ok := e.router.Send(ctx, e.ownerID, text, ""); !ok {
		e.logger.Error("notifyFailure: error notification send failed", "task_id", task.ID)
	}
}
