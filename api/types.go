package api

import (
	"context"
	"time"

	"deadline-tasks/domain"
)

const maxBodySize = 64 * 1024 // 64 KiB

// Storage abstracts persistence for handlers.
type Storage interface {
	CreateTask(ctx context.Context, in domain.NewTask) (string, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	MarkDone(ctx context.Context, id string) error
}

// Reminder is implemented by types able to deliver a reminder email.
type Reminder interface {
	Send(ctx context.Context, email, title string, deadline time.Time) error
}

// POST /api/tasks request body
type createTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Deadline    string `json:"deadline" validate:"required"`
	Email       string `json:"email" validate:"required"`
}

// PATCH /api/tasks/done and POST /api/tasks/remind request body
type taskIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type taskResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Email       string           `json:"email"`
	Deadline    domain.Timestamp `json:"deadline"`
	Done        bool             `json:"done"`
}

func newTaskResponse(t domain.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Email:       t.Email,
		Deadline:    domain.TimestampOf(t.Deadline),
		Done:        t.Done,
	}
}

type successResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}
