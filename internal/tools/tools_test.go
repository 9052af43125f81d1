package tools

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jverrill/cortex/internal/tasks"
)

// fakeStore is a minimal in-memory tasks.Store for tool tests.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*tasks.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*tasks.Task)}
}

func (s *fakeStore) Create(ctx context.Context, task *tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) ListActive(ctx context.Context) ([]*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*tasks.Task
	for _, t := range s.tasks {
		if t.Active {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateLastRun(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.LastRunAt = &at
	}
	return nil
}

func (s *fakeStore) UpdateSchedule(ctx context.Context, id string, active bool, nextRunAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Active = active
		t.NextRunAt = nextRunAt
	}
	return nil
}

func (s *fakeStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Active = false
		t.NextRunAt = nil
	}
	return nil
}

func (s *fakeStore) UpdateModel(ctx context.Context, id string, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Model = model
	}
	return nil
}

func (s *fakeStore) SearchActive(ctx context.Context, query string) ([]*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []*tasks.Task
	for _, t := range s.tasks {
		if !t.Active {
			continue
		}
		if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Description), q) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "task not found" }

var errNotFound = notFoundError{}
