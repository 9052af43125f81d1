package tasks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jverrill/cortex/internal/notify"
)

// RunNowCallback and DeleteCallback are the two button payloads a recovery
// notification carries, matching the mst:<key>:run / mst:<key>:del contract
// a transport must route back to Recovery.Resolve.
const (
	RunNowCallback = "run"
	DeleteCallback = "del"
)

// Recovery implements startup missed-task recovery: one-shot tasks whose
// run_at elapsed while the process was offline are surfaced to the owner
// with Run Now / Delete buttons rather than silently auto-fired.
type Recovery struct {
	store     Store
	scheduler *Scheduler
	router    *notify.Router
	ownerID   string
	logger    *slog.Logger

	mu   sync.Mutex
	keys map[string]string // recovery key -> task id
}

// NewRecovery builds a Recovery. Invoke Scan once at startup, after the
// scheduler is running.
func NewRecovery(store Store, scheduler *Scheduler, router *notify.Router, ownerID string, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recovery{
		store:     store,
		scheduler: scheduler,
		router:    router,
		ownerID:   ownerID,
		logger:    logger.With("component", "missed_task_recovery"),
		keys:      make(map[string]string),
	}
}

// Scan enumerates active one-shot tasks with no last_run_at whose run_at has
// already elapsed, and sends one recovery prompt per task.
func (r *Recovery) Scan(ctx context.Context) error {
	active, err := r.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("tasks: recovery scan: %w", err)
	}

	now := time.Now()
	for _, task := range active {
		if task.Type != TypeOneOff || task.LastRunAt != nil {
			continue
		}
		if task.NextRunAt == nil || task.NextRunAt.After(now) {
			continue
		}
		r.notifyMissed(ctx, task)
	}
	return nil
}

func (r *Recovery) notifyMissed(ctx context.Context, task *Task) {
	key := newRecoveryKey()
	r.mu.Lock()
	r.keys[key] = task.ID
	r.mu.Unlock()

	text := fmt.Sprintf("Missed scheduled task %q (was due %s). Run it now or delete it?",
		task.Name, task.Schedule.RunAt.Format(time.RFC3339))
	buttons := []notify.Button{
		{Label: "Run Now", Callback: fmt.Sprintf("mst:%s:%s", key, RunNowCallback)},
		{Label: "Delete", Callback: fmt.Sprintf("mst:%s:%s", key, DeleteCallback)},
	}
	if ok := r.router.SendRich(ctx, r.ownerID, text, buttons, task.NotificationChannel); !ok {
		r.logger.Error("recovery: failed to notify owner of missed task", "task_id", task.ID)
	}
}

// Resolve handles a `run` or `del` callback for a recovery key, returning a
// short outcome string the transport can use to edit its original message.
// An unknown key (e.g. after a second restart cleared the in-memory map)
// yields ok=false so the caller can reply with a friendly "expired" message.
func (r *Recovery) Resolve(ctx context.Context, key, action string) (string, bool) {
	r.mu.Lock()
	taskID, ok := r.keys[key]
	if ok {
		delete(r.keys, key)
	}
	r.mu.Unlock()
	if !ok {
		return "expired", false
	}

	switch action {
	case RunNowCallback:
		r.scheduler.FireNow(ctx, taskID)
		return "→ Executed", true
	case DeleteCallback:
		if err := r.scheduler.CancelTask(ctx, taskID); err != nil {
			r.logger.Error("recovery: cancel failed", "task_id", taskID, "error", err)
		}
		return "→ Deleted", true
	default:
		return "unknown action", false
	}
}

func newRecoveryKey() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
