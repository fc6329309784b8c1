package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"deadline-tasks/domain"
	"deadline-tasks/reminder"
)

// Register wires up all API routes on the provided Echo instance. Zone-less
// deadlines are read in loc.
func Register(e *echo.Echo, store Storage, sender Reminder, loc *time.Location, logger *log.Logger) {
	if loc == nil {
		loc = time.Local
	}
	// BodyLimit caps the wire body; decodeBody caps it again after gzip
	// decoding.
	g := e.Group("/api",
		RequestMetrics(logger),
		middleware.BodyLimit("64K"),
		middleware.Decompress(),
	)
	g.GET("/tasks", listTasks(store, logger))
	g.POST("/tasks", createTask(store, loc, logger))
	g.POST("/tasks/add", createTask(store, loc, logger))
	g.PATCH("/tasks/done", markDone(store, logger))
	g.POST("/tasks/remind", sendReminder(store, sender, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	return sonic.ConfigStd.NewDecoder(lr).Decode(v)
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := store.ListTasks(c.Request().Context())
		if err != nil {
			setErrorStage(c, "storage")
			logger.WithError(err).Error("list tasks failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to list tasks"})
		}
		setTasksReturned(c, len(tasks))
		resp := make([]taskResponse, 0, len(tasks))
		for _, t := range tasks {
			resp = append(resp, newTaskResponse(t))
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func createTask(store Storage, loc *time.Location, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			setErrorStage(c, "decode")
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid body"})
		}
		missing, err := missingFields(req)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			setErrorStage(c, "validate")
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing fields", Fields: missing})
		}
		deadline, err := domain.ParseDeadline(req.Deadline, loc)
		if err != nil {
			setErrorStage(c, "validate")
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid deadline", Fields: []string{"deadline"}})
		}

		id, err := store.CreateTask(c.Request().Context(), domain.NewTask{
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Email:       strings.TrimSpace(req.Email),
			Deadline:    deadline,
		})
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				setErrorStage(c, "validate")
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing fields", Fields: verr.Fields})
			}
			setErrorStage(c, "storage")
			logger.WithError(err).Error("create task failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to create task"})
		}
		logger.WithField("task_id", id).Debug("task created")
		return c.JSON(http.StatusCreated, successResponse{Success: true, ID: id})
	}
}

// decodeTaskID reads an {id} body. It writes the 400 response itself and
// returns ok=false when the ID is absent.
func decodeTaskID(c echo.Context) (string, bool, error) {
	var req taskIDRequest
	if err := decodeBody(c, &req); err != nil {
		setErrorStage(c, "decode")
		return "", false, c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid body"})
	}
	req.ID = strings.TrimSpace(req.ID)
	missing, err := missingFields(req)
	if err != nil {
		return "", false, err
	}
	if len(missing) > 0 {
		setErrorStage(c, "validate")
		return "", false, c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing ID"})
	}
	return req.ID, true, nil
}

func markDone(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok, err := decodeTaskID(c)
		if !ok {
			return err
		}
		if err := store.MarkDone(c.Request().Context(), id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				setErrorStage(c, "not_found")
				return c.JSON(http.StatusNotFound, errorResponse{Error: "Task not found"})
			}
			setErrorStage(c, "storage")
			logger.WithError(err).WithField("task_id", id).Error("mark done failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to update task"})
		}
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func sendReminder(store Storage, sender Reminder, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok, err := decodeTaskID(c)
		if !ok {
			return err
		}
		ctx := c.Request().Context()
		task, err := store.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				setErrorStage(c, "not_found")
				return c.JSON(http.StatusNotFound, errorResponse{Error: "Task not found"})
			}
			setErrorStage(c, "storage")
			logger.WithError(err).WithField("task_id", id).Error("load task for reminder failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to load task"})
		}
		if err := sender.Send(ctx, task.Email, task.Title, task.Deadline); err != nil {
			setErrorStage(c, "send")
			logger.WithError(err).WithField("task_id", id).Warn("reminder not sent")
			if errors.Is(err, reminder.ErrNotConfigured) {
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "Reminders are not configured"})
			}
			return c.JSON(http.StatusBadGateway, errorResponse{Error: "Failed to send reminder"})
		}
		logger.WithField("task_id", id).Info("reminder sent")
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}
