package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jverrill/cortex/internal/notify"
)

type richRecordingChannel struct {
	name    string
	texts   []string
	buttons [][]notify.Button
}

func (c *richRecordingChannel) Name() string { return c.name }
func (c *richRecordingChannel) Capabilities() []notify.Capability {
	return []notify.Capability{notify.CapSend, notify.CapSendRich}
}
func (c *richRecordingChannel) Send(ctx context.Context, userID, text string) bool {
	c.texts = append(c.texts, text)
	return true
}
func (c *richRecordingChannel) SendRich(ctx context.Context, userID, text string, buttons []notify.Button) bool {
	c.texts = append(c.texts, text)
	c.buttons = append(c.buttons, buttons)
	return true
}
func (c *richRecordingChannel) SendPhoto(ctx context.Context, userID string, photo []byte, caption string) bool {
	return true
}

// TestRecoveryFlagsElapsedOneShotWithButtons covers scenario E6: a task
// whose run_at elapsed before restart is surfaced with Run Now / Delete
// buttons carrying the mst:<key>:<action> payload contract.
func TestRecoveryFlagsElapsedOneShotWithButtons(t *testing.T) {
	store := openTestStore(t)
	executor := &recordingExecutor{}
	sched := NewScheduler(store, executor, nil)
	ch := &richRecordingChannel{name: "primary"}
	router := notify.NewRouter(nil)
	router.Register(ch)

	task := sampleTask(NewID())
	past := time.Now().Add(-time.Hour)
	task.Schedule.RunAt = past
	task.NextRunAt = &past
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sched.Stop(context.Background())

	recovery := NewRecovery(store, sched, router, "owner", nil)
	if err := recovery.Scan(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ch.buttons) != 1 || len(ch.buttons[0]) != 2 {
		t.Fatalf("expected exactly one rich notification with two buttons, got %v", ch.buttons)
	}
	runBtn, delBtn := ch.buttons[0][0], ch.buttons[0][1]
	if !strings.HasPrefix(runBtn.Callback, "mst:") || !strings.HasSuffix(runBtn.Callback, ":run") {
		t.Fatalf("expected run-now callback to match mst:<key>:run, got %q", runBtn.Callback)
	}
	if !strings.HasPrefix(delBtn.Callback, "mst:") || !strings.HasSuffix(delBtn.Callback, ":del") {
		t.Fatalf("expected delete callback to match mst:<key>:del, got %q", delBtn.Callback)
	}
}

func TestRecoveryResolveRunExecutesAndDeactivates(t *testing.T) {
	store := openTestStore(t)
	executor := &recordingExecutor{}
	sched := NewScheduler(store, executor, nil)
	ch := &richRecordingChannel{name: "primary"}
	router := notify.NewRouter(nil)
	router.Register(ch)

	task := sampleTask(NewID())
	past := time.Now().Add(-time.Hour)
	task.Schedule.RunAt = past
	task.NextRunAt = &past
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sched.Stop(context.Background())

	recovery := NewRecovery(store, sched, router, "owner", nil)
	if err := recovery.Scan(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := strings.Split(ch.buttons[0][0].Callback, ":")[1]
	outcome, ok := recovery.Resolve(context.Background(), key, RunNowCallback)
	if !ok || outcome != "→ Executed" {
		t.Fatalf("expected a successful run-now resolution, got %q ok=%v", outcome, ok)
	}

	if executor.count() != 1 {
		t.Fatalf("expected the task to have executed, count=%d", executor.count())
	}
	got, err := store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Active {
		t.Fatalf("expected task to be inactive after run-now")
	}
}

func TestRecoveryResolveDeleteDeactivatesWithoutExecuting(t *testing.T) {
	store := openTestStore(t)
	executor := &recordingExecutor{}
	sched := NewScheduler(store, executor, nil)
	ch := &richRecordingChannel{name: "primary"}
	router := notify.NewRouter(nil)
	router.Register(ch)

	task := sampleTask(NewID())
	past := time.Now().Add(-time.Hour)
	task.Schedule.RunAt = past
	task.NextRunAt = &past
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sched.Stop(context.Background())

	recovery := NewRecovery(store, sched, router, "owner", nil)
	if err := recovery.Scan(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := strings.Split(ch.buttons[0][0].Callback, ":")[1]
	outcome, ok := recovery.Resolve(context.Background(), key, DeleteCallback)
	if !ok || outcome != "→ Deleted" {
		t.Fatalf("expected a successful delete resolution, got %q ok=%v", outcome, ok)
	}
	if executor.count() != 0 {
		t.Fatalf("expected delete not to execute the task")
	}
}

func TestRecoveryResolveUnknownKeyExpires(t *testing.T) {
	store := openTestStore(t)
	sched := NewScheduler(store, &recordingExecutor{}, nil)
	router := notify.NewRouter(nil)
	router.Register(&richRecordingChannel{name: "primary"})

	recovery := NewRecovery(store, sched, router, "owner", nil)
	outcome, ok := recovery.Resolve(context.Background(), "deadbeef", RunNowCallback)
	if ok {
		t.Fatalf("expected unknown key to report not-ok")
	}
	if outcome != "expired" {
		t.Fatalf("expected friendly expired outcome, got %q", outcome)
	}
}

func TestRecoveryIgnoresRecurringAndAlreadyRunTasks(t *testing.T) {
	store := openTestStore(t)
	sched := NewScheduler(store, &recordingExecutor{}, nil)
	ch := &richRecordingChannel{name: "primary"}
	router := notify.NewRouter(nil)
	router.Register(ch)

	recurring := &Task{
		ID: NewID(), Name: "heartbeat", Type: TypeRecurring,
		Schedule: Schedule{Cron: "0 * * * * *"}, Active: true, CreatedAt: time.Now(),
		Action: Action{Type: ActionSimpleMessage, Message: "tick"},
	}
	past := time.Now().Add(-time.Hour)
	recurring.NextRunAt = &past
	if err := store.Create(context.Background(), recurring); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alreadyRun := sampleTask(NewID())
	alreadyRun.Schedule.RunAt = past
	alreadyRun.NextRunAt = &past
	lastRun := past.Add(time.Minute)
	alreadyRun.LastRunAt = &lastRun
	if err := store.Create(context.Background(), alreadyRun); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recovery := NewRecovery(store, sched, router, "owner", nil)
	if err := recovery.Scan(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.buttons) != 0 {
		t.Fatalf("expected recurring and already-run tasks not to be flagged, got %v", ch.buttons)
	}
}
