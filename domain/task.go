package domain

import (
	"strings"
	"time"
)

// Task represents a single tracked item with a reminder deadline.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Email       string    `json:"email"`
	Deadline    time.Time `json:"deadline"`
	Done        bool      `json:"done"`
}

// NewTask carries the fields supplied when a task is created. The store
// assigns the ID and Done always starts out false.
type NewTask struct {
	Title       string
	Description string
	Email       string
	Deadline    time.Time
}

// Validate reports the required fields that are absent.
func (n NewTask) Validate() error {
	var missing []string
	if strings.TrimSpace(n.Title) == "" {
		missing = append(missing, "title")
	}
	if n.Deadline.IsZero() {
		missing = append(missing, "deadline")
	}
	if strings.TrimSpace(n.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Task materializes the input as a pending task with the given ID.
func (n NewTask) Task(id string) Task {
	return Task{
		ID:          id,
		Title:       n.Title,
		Description: n.Description,
		Email:       n.Email,
		Deadline:    n.Deadline.UTC(),
	}
}
