package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "deadline-tasks/api"
	requestEventName  = "http.request"
	metricsContextKey = "api.request_metrics"
)

type requestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	method        string
	route         string
	errorStage    string
	tasksReturned int
}

// RequestMetrics opens a server span per request and logs one summary entry
// when the handler returns.
func RequestMetrics(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			ctx, span := otel.Tracer(tracerName).Start(req.Context(), req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			c.SetRequest(req.WithContext(ctx))

			m := &requestMetrics{
				logger:        logger,
				span:          span,
				start:         time.Now(),
				method:        req.Method,
				route:         route,
				tasksReturned: -1,
			}
			c.Set(metricsContextKey, m)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			m.finish(c.Response().Status, err)
			return nil
		}
	}
}

func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsContextKey).(*requestMetrics)
	return m
}

func setErrorStage(c echo.Context, stage string) {
	if m := metricsFrom(c); m != nil && stage != "" {
		m.errorStage = stage
	}
}

func setTasksReturned(c echo.Context, n int) {
	if m := metricsFrom(c); m != nil {
		if n < 0 {
			n = 0
		}
		m.tasksReturned = n
	}
}

func (m *requestMetrics) finish(status int, err error) {
	if m == nil {
		return
	}
	elapsed := time.Since(m.start)

	m.span.SetAttributes(attribute.Int("http.response.status_code", status))
	if m.tasksReturned >= 0 {
		m.span.SetAttributes(attribute.Int("tasks.returned", m.tasksReturned))
	}
	if m.errorStage != "" {
		m.span.SetAttributes(attribute.String("error.stage", m.errorStage))
	}
	if err != nil {
		m.span.RecordError(err)
	}
	if status >= http.StatusInternalServerError {
		m.span.SetStatus(codes.Error, http.StatusText(status))
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":    m.route,
		"method":   m.method,
		"status":   status,
		"total_ms": durationToMillis(elapsed),
	}
	if sc := m.span.SpanContext(); sc.IsValid() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}
	if m.tasksReturned >= 0 {
		fields["tasks_returned"] = m.tasksReturned
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info(requestEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
