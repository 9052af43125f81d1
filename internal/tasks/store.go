package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo
)

// Store persists scheduled tasks.
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	ListActive(ctx context.Context) ([]*Task, error)
	// UpdateLastRun records a successful execution. Only called when the
	// executor's dispatch succeeded, so a failed run stays visible as an
	// unchanged last_run_at.
	UpdateLastRun(ctx context.Context, id string, at time.Time) error
	// UpdateSchedule writes back the scheduler's post-fire bookkeeping:
	// active and next_run_at, applied regardless of execution outcome.
	UpdateSchedule(ctx context.Context, id string, active bool, nextRunAt *time.Time) error
	Deactivate(ctx context.Context, id string) error
	// UpdateModel changes which LLM model an ai_task invokes. A nil/empty
	// model clears the override, falling back to the loop's default model.
	UpdateModel(ctx context.Context, id string, model string) error
	// SearchActive returns active tasks whose name or description contains
	// query, case-insensitively.
	SearchActive(ctx context.Context, query string) ([]*Task, error)
}

// SQLiteStore is a Store backed by a single-file sqlite database via the
// pure-Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) the sqlite database at path and
// ensures the scheduled_tasks table exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("tasks: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("tasks: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	task_type TEXT NOT NULL,
	schedule TEXT NOT NULL,
	action TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	notification_channel TEXT NULL,
	model TEXT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	last_run_at TEXT NULL,
	next_run_at TEXT NULL
)`

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, task *Task) error {
	schedule, err := json.Marshal(task.Schedule)
	if err != nil {
		return fmt.Errorf("tasks: marshal schedule: %w", err)
	}
	action, err := json.Marshal(task.Action)
	if err != nil {
		return fmt.Errorf("tasks: marshal action: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks
			(id, name, task_type, schedule, action, description, notification_channel, model, active, created_at, last_run_at, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Name, string(task.Type), string(schedule), string(action), task.Description,
		nullableString(task.NotificationChannel), nullableString(task.Model), boolToInt(task.Active),
		task.CreatedAt.Format(time.RFC3339), nullableTime(task.LastRunAt), nullableTime(task.NextRunAt),
	)
	if err != nil {
		return fmt.Errorf("tasks: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	tasks, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("tasks: %s: not found", id)
	}
	return tasks[0], nil
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Task, error) {
	return s.query(ctx, `WHERE active = 1`)
}

// query runs the select with the given WHERE clause, tolerating a
// pre-migration table that lacks the model column: sqlite reports a
// missing-column error at query time (unlike Postgres's "no such column",
// modernc.org/sqlite's driver surfaces the same message), so on that
// specific failure we retry against the legacy column set.
func (s *SQLiteStore) query(ctx context.Context, where string, args ...any) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, baseSelect+` `+where, args...)
	if err != nil {
		if !isMissingModelColumn(err) {
			return nil, fmt.Errorf("tasks: query: %w", err)
		}
		rows, err = s.db.QueryContext(ctx, legacySelect+` `+where, args...)
		if err != nil {
			return nil, fmt.Errorf("tasks: legacy query: %w", err)
		}
		defer rows.Close()
		return scanTasks(rows, false)
	}
	defer rows.Close()
	return scanTasks(rows, true)
}

func isMissingModelColumn(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such column: model")
}

func (s *SQLiteStore) UpdateLastRun(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_tasks SET last_run_at = ? WHERE id = ?`,
		at.Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("tasks: update last_run_at: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSchedule(ctx context.Context, id string, active bool, nextRunAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET active = ?, next_run_at = ?
		WHERE id = ?`,
		boolToInt(active), nullableTime(nextRunAt), id,
	)
	if err != nil {
		return fmt.Errorf("tasks: update schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Deactivate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_tasks SET active = 0, next_run_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("tasks: deactivate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateModel(ctx context.Context, id string, model string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_tasks SET model = ? WHERE id = ?`, nullableString(model), id)
	if err != nil {
		return fmt.Errorf("tasks: update model: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SearchActive(ctx context.Context, query string) ([]*Task, error) {
	like := "%" + strings.ToLower(query) + "%"
	return s.query(ctx, `WHERE active = 1 AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)`, like, like)
}

const baseSelect = `
	SELECT id, name, task_type, schedule, action, description, notification_channel, model, active, created_at, last_run_at, next_run_at
	FROM scheduled_tasks`

const legacySelect = `
	SELECT id, name, task_type, schedule, action, description, notification_channel, active, created_at, last_run_at, next_run_at
	FROM scheduled_tasks`

// scanTasks decodes rows. hasModel is false when querying a pre-migration
// table that lacks the model column entirely, in which case Model is left
// empty rather than failing the scan.
func scanTasks(rows *sql.Rows, hasModel bool) ([]*Task, error) {
	var out []*Task
	for rows.Next() {
		var (
			id, name, taskType, schedule, action, description string
			notificationChannel, model, lastRunAt, nextRunAt   sql.NullString
			active                                             int
			createdAt                                          string
		)

		dest := []any{&id, &name, &taskType, &schedule, &action, &description, &notificationChannel}
		if hasModel {
			dest = append(dest, &model)
		}
		dest = append(dest, &active, &createdAt, &lastRunAt, &nextRunAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}

		task := &Task{
			ID:                  id,
			Name:                name,
			Type:                Type(taskType),
			Description:         description,
			NotificationChannel: notificationChannel.String,
			Model:               model.String,
			Active:              active != 0,
		}
		if err := json.Unmarshal([]byte(schedule), &task.Schedule); err != nil {
			return nil, fmt.Errorf("tasks: unmarshal schedule: %w", err)
		}
		if err := json.Unmarshal([]byte(action), &task.Action); err != nil {
			return nil, fmt.Errorf("tasks: unmarshal action: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			task.CreatedAt = t
		}
		if lastRunAt.Valid {
			if t, err := time.Parse(time.RFC3339, lastRunAt.String); err == nil {
				task.LastRunAt = &t
			}
		}
		if nextRunAt.Valid {
			if t, err := time.Parse(time.RFC3339, nextRunAt.String); err == nil {
				task.NextRunAt = &t
			}
		}

		out = append(out, task)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
