package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"deadline-tasks/domain"
)

// Memory is a process-local task store. It lists tasks in insertion order.
type Memory struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]domain.Task
	newID func() string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tasks: map[string]domain.Task{}, newID: uuid.NewString}
}

func (m *Memory) CreateTask(_ context.Context, in domain.NewTask) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task := in.Task(m.newID())
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	return task.ID, nil
}

func (m *Memory) ListTasks(context.Context) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id])
	}
	return out, nil
}

func (m *Memory) GetTask(_ context.Context, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return task, nil
}

func (m *Memory) MarkDone(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	task.Done = true
	m.tasks[id] = task
	return nil
}
