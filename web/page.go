// Package web serves the task page: a form for new tasks above the list of
// every task, with per-task complete and reminder actions.
package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"deadline-tasks/domain"
)

// Store is the task persistence the page needs.
type Store interface {
	CreateTask(ctx context.Context, in domain.NewTask) (string, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	MarkDone(ctx context.Context, id string) error
}

// Reminder delivers reminder emails on the server side.
type Reminder interface {
	Send(ctx context.Context, email, title string, deadline time.Time) error
}

const (
	noticeReminderSent   = "reminder-sent"
	noticeReminderFailed = "reminder-failed"
	noticeTaskMissing    = "task-missing"
)

var notices = map[string]Notice{
	noticeReminderSent:   {Text: "Reminder email sent.", Kind: "success"},
	noticeReminderFailed: {Text: "The reminder email could not be sent.", Kind: "error"},
	noticeTaskMissing:    {Text: "That task no longer exists.", Kind: "error"},
}

// Draft holds the new-task form exactly as typed.
type Draft struct {
	Title       string
	Description string
	Deadline    string
	Email       string
}

// Notice is a one-off message shown above the page.
type Notice struct {
	Text string
	Kind string
}

// TaskItem is a task prepared for display.
type TaskItem struct {
	ID          string
	Title       string
	Description string
	Email       string
	Deadline    string
	Done        bool
}

// View is the complete page state for one render.
type View struct {
	Tasks   []TaskItem
	Draft   Draft
	Missing map[string]bool
	Notice  *Notice
}

// Page owns the page state transitions. Every action ends by refetching the
// list, either by rendering it directly or by redirecting to the index.
type Page struct {
	store  Store
	sender Reminder
	loc    *time.Location
	logger *log.Logger
}

// NewPage builds the page controller. Deadlines are read and shown in loc.
func NewPage(store Store, sender Reminder, loc *time.Location, logger *log.Logger) *Page {
	if loc == nil {
		loc = time.Local
	}
	return &Page{store: store, sender: sender, loc: loc, logger: logger}
}

// Register installs the page routes and the template renderer on e.
func (p *Page) Register(e *echo.Echo) {
	e.Renderer = renderer{tmpl: pageTmpl}
	e.StaticFS("/static", StaticFS())
	e.GET("/", p.index)
	e.POST("/tasks", p.create)
	e.POST("/tasks/:id/done", p.markDone)
	e.POST("/tasks/:id/remind", p.remind)
}

func (p *Page) index(c echo.Context) error {
	view := View{}
	if n, ok := notices[c.QueryParam("notice")]; ok {
		view.Notice = &n
	}
	return p.render(c, http.StatusOK, view)
}

func (p *Page) create(c echo.Context) error {
	draft := Draft{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Deadline:    c.FormValue("deadline"),
		Email:       c.FormValue("email"),
	}
	in := domain.NewTask{
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Email:       strings.TrimSpace(draft.Email),
	}
	missing := map[string]bool{}
	if strings.TrimSpace(draft.Deadline) != "" {
		deadline, err := domain.ParseDeadline(draft.Deadline, p.loc)
		if err != nil {
			missing["deadline"] = true
		}
		in.Deadline = deadline
	}
	var verr *domain.ValidationError
	if err := in.Validate(); errors.As(err, &verr) {
		for _, f := range verr.Fields {
			missing[f] = true
		}
	}
	if len(missing) > 0 {
		return p.render(c, http.StatusBadRequest, View{Draft: draft, Missing: missing})
	}

	if _, err := p.store.CreateTask(c.Request().Context(), in); err != nil {
		p.logger.WithError(err).Error("ui: create task failed")
		return p.render(c, http.StatusInternalServerError, View{Draft: draft})
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (p *Page) markDone(c echo.Context) error {
	id := c.Param("id")
	if err := p.store.MarkDone(c.Request().Context(), id); err != nil {
		p.logger.WithError(err).WithField("task_id", id).Error("ui: mark done failed")
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (p *Page) remind(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	task, err := p.store.GetTask(ctx, id)
	if err != nil {
		p.logger.WithError(err).WithField("task_id", id).Error("ui: load task for reminder failed")
		if errors.Is(err, domain.ErrNotFound) {
			return redirectWithNotice(c, noticeTaskMissing)
		}
		return redirectWithNotice(c, noticeReminderFailed)
	}
	if err := p.sender.Send(ctx, task.Email, task.Title, task.Deadline); err != nil {
		p.logger.WithError(err).WithField("task_id", id).Warn("ui: reminder not sent")
		return redirectWithNotice(c, noticeReminderFailed)
	}
	return redirectWithNotice(c, noticeReminderSent)
}

func redirectWithNotice(c echo.Context, notice string) error {
	return c.Redirect(http.StatusSeeOther, "/?notice="+url.QueryEscape(notice))
}

// render fills in the current task list. A failed load renders an empty list.
func (p *Page) render(c echo.Context, status int, view View) error {
	tasks, err := p.store.ListTasks(c.Request().Context())
	if err != nil {
		p.logger.WithError(err).Error("ui: list tasks failed")
	}
	view.Tasks = make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		view.Tasks = append(view.Tasks, TaskItem{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Email:       t.Email,
			Deadline:    domain.FormatDeadline(t.Deadline, p.loc),
			Done:        t.Done,
		})
	}
	return c.Render(status, "index.html", view)
}
