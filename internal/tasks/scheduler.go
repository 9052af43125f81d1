package tasks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both standard 5-field and extended 6-field (seconds)
// cron expressions, matching the scheduler's job-derivation rule.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Executor runs a task's action when its trigger fires. It is handed only
// the task id, loads the task itself, and is responsible for its own
// success/failure bookkeeping (last_run_at, owner error notification) —
// the scheduler's post-fire step only ever touches active/next_run_at.
type Executor interface {
	Execute(ctx context.Context, taskID string) error
}

// Scheduler owns the cron engine for recurring tasks and a goroutine per
// one-shot task's remaining delay. Start loads every active task from the
// store and registers a job derived from its schedule record; Stop
// cancels all of them.
type Scheduler struct {
	store    Store
	executor Executor
	logger   *slog.Logger

	cron *cron.Cron

	mu        sync.Mutex
	oneShots  map[string]context.CancelFunc
	cronJobs  map[string]cron.EntryID
	running   bool
}

// NewScheduler builds a Scheduler. store and executor are required.
func NewScheduler(store Store, executor Executor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		logger:   logger.With("component", "scheduler"),
		cron:     cron.New(),
		oneShots: make(map[string]context.CancelFunc),
		cronJobs: make(map[string]cron.EntryID),
	}
}

// Start loads every active task and registers its trigger, then starts the
// cron engine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	tasksList, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list active tasks: %w", err)
	}
	for _, t := range tasksList {
		if err := s.register(ctx, t); err != nil {
			s.logger.Error("failed to register task", "task_id", t.ID, "error", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "tasks", len(tasksList))
	return nil
}

// Stop cancels every registered job and stops the cron engine without
// waiting for in-flight executions; incomplete jobs resume naturally on the
// next restart.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	for _, cancel := range s.oneShots {
		cancel()
	}
	s.oneShots = make(map[string]context.CancelFunc)

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.cronJobs = make(map[string]cron.EntryID)
	return nil
}

// ScheduleTask persists a new task and registers its trigger.
func (s *Scheduler) ScheduleTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = NewID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.Active = true

	switch task.Type {
	case TypeOneOff:
		if task.Schedule.RunAt.IsZero() {
			return fmt.Errorf("scheduler: one-shot task requires run_at")
		}
		next := task.Schedule.RunAt
		task.NextRunAt = &next
	case TypeRecurring:
		if task.Schedule.Cron == "" {
			return fmt.Errorf("scheduler: recurring task requires cron")
		}
		sched, err := cronParser.Parse(task.Schedule.Cron)
		if err != nil {
			return fmt.Errorf("scheduler: invalid cron expression: %w", err)
		}
		next := sched.Next(time.Now())
		task.NextRunAt = &next
	default:
		return fmt.Errorf("scheduler: unknown task type %q", task.Type)
	}

	if err := s.store.Create(ctx, task); err != nil {
		return err
	}
	return s.register(ctx, task)
}

// CancelTask removes the job (if any) and deactivates the store row.
// Cancelling an unknown id logs but does not fail, matching the engine's
// idempotence guarantee.
func (s *Scheduler) CancelTask(ctx context.Context, id string) error {
	s.mu.Lock()
	if cancel, ok := s.oneShots[id]; ok {
		cancel()
		delete(s.oneShots, id)
	}
	if entryID, ok := s.cronJobs[id]; ok {
		s.cron.Remove(entryID)
		delete(s.cronJobs, id)
	}
	s.mu.Unlock()

	if err := s.store.Deactivate(ctx, id); err != nil {
		s.logger.Warn("cancel_task: deactivate failed (possibly unknown task)", "task_id", id, "error", err)
	}
	return nil
}

func (s *Scheduler) register(ctx context.Context, task *Task) error {
	switch task.Type {
	case TypeOneOff:
		return s.registerOneShot(ctx, task)
	case TypeRecurring:
		return s.registerRecurring(task)
	default:
		return fmt.Errorf("scheduler: unknown task type %q", task.Type)
	}
}

func (s *Scheduler) registerOneShot(parent context.Context, task *Task) error {
	if task.NextRunAt == nil {
		return fmt.Errorf("scheduler: one-shot task %s missing next_run_at", task.ID)
	}
	delay := time.Until(*task.NextRunAt)
	if delay <= 0 {
		// Already elapsed — this is missed-task territory, not an
		// auto-fire: leave it inactive-in-schedule until Recovery.Scan
		// surfaces it to the owner for an explicit run/delete decision.
		s.logger.Info("one-shot task already elapsed, deferring to recovery", "task_id", task.ID)
		return nil
	}
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	s.oneShots[task.ID] = cancel
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.fire(ctx, task.ID)
		}
	}()
	return nil
}

func (s *Scheduler) registerRecurring(task *Task) error {
	sched, err := cronParser.Parse(task.Schedule.Cron)
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression: %w", err)
	}
	entryID := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.fire(context.Background(), task.ID)
	}))
	s.mu.Lock()
	s.cronJobs[task.ID] = entryID
	s.mu.Unlock()
	return nil
}

// FireNow runs taskID's action immediately and applies the same post-fire
// bookkeeping as a natural trigger. Used by missed-task recovery's "Run Now"
// response, where no timer or cron entry is registered for the task.
func (s *Scheduler) FireNow(ctx context.Context, taskID string) {
	s.fire(ctx, taskID)
}

// fire loads the current task row, invokes the executor by id, and then
// writes back the scheduler's own post-fire bookkeeping unconditionally:
// one-shot tasks are deactivated with next_run_at cleared; recurring tasks
// get their next trigger time recomputed. last_run_at is the executor's
// concern, not the scheduler's — a failed run leaves it untouched.
func (s *Scheduler) fire(ctx context.Context, taskID string) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		s.logger.Error("fire: load task failed", "task_id", taskID, "error", err)
		return
	}
	if !task.Active {
		return
	}

	if err := s.executor.Execute(ctx, taskID); err != nil {
		s.logger.Error("task execution failed", "task_id", taskID, "error", err)
	}

	var nextRunAt *time.Time
	active := task.Active
	switch task.Type {
	case TypeOneOff:
		active = false
	case TypeRecurring:
		if sched, err := cronParser.Parse(task.Schedule.Cron); err == nil {
			next := sched.Next(time.Now())
			nextRunAt = &next
		}
	}

	if err := s.store.UpdateSchedule(ctx, taskID, active, nextRunAt); err != nil {
		s.logger.Error("fire: update schedule failed", "task_id", taskID, "error", err)
	}

	s.mu.Lock()
	if task.Type == TypeOneOff {
		delete(s.oneShots, taskID)
	}
	s.mu.Unlock()
}

// NewID generates the scheduler's 32-hex-character task id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
