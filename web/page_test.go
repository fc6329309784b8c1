package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"deadline-tasks/domain"
	"deadline-tasks/storage"
)

type stubSender struct {
	calls int
	last  string
	err   error
}

func (s *stubSender) Send(ctx context.Context, email, title string, deadline time.Time) error {
	s.calls++
	s.last = email + "|" + title + "|" + deadline.UTC().Format(time.RFC3339)
	return s.err
}

func newTestPage(t *testing.T) (*echo.Echo, *storage.Memory, *stubSender) {
	t.Helper()
	e := echo.New()
	store := storage.NewMemory()
	sender := &stubSender{}
	NewPage(store, sender, time.UTC, log.New()).Register(e)
	return e, store, sender
}

func serve(e *echo.Echo, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedTask(t *testing.T, store *storage.Memory, title string) string {
	t.Helper()
	deadline := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	id, err := store.CreateTask(context.Background(), domain.NewTask{Title: title, Email: "a@b.com", Deadline: deadline})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func TestIndexRendersTasks(t *testing.T) {
	e, store, _ := newTestPage(t)
	pending := seedTask(t, store, "Pay rent")
	done := seedTask(t, store, "Call mom")
	if err := store.MarkDone(context.Background(), done); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	rec := serve(e, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Pay rent", "Call mom", "01.01.2025, 10:00", "a@b.com", "/tasks/" + pending + "/done", "/tasks/" + done + "/remind"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page", want)
		}
	}
	if strings.Contains(body, "/tasks/"+done+"/done") {
		t.Fatal("complete action must be hidden for done tasks")
	}
	if strings.Count(body, "✅ Complete") != 1 {
		t.Fatal("expected exactly one done badge")
	}
}

func TestCreateRedirectsAndClearsDraft(t *testing.T) {
	e, store, _ := newTestPage(t)

	rec := serve(e, http.MethodPost, "/tasks", url.Values{
		"title":       {"Pay rent"},
		"description": {"before the 5th"},
		"email":       {"a@b.com"},
		"deadline":    {"2025-01-01T10:00"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get(echo.HeaderLocation) != "/" {
		t.Fatalf("expected redirect to index, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	tasks, _ := store.ListTasks(context.Background())
	if len(tasks) != 1 || tasks[0].Title != "Pay rent" || tasks[0].Description != "before the 5th" || tasks[0].Done {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if !tasks[0].Deadline.Equal(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected deadline: %v", tasks[0].Deadline)
	}

	page := serve(e, http.MethodGet, "/", nil).Body.String()
	if strings.Contains(page, `value="Pay rent"`) {
		t.Fatal("expected draft to be cleared after create")
	}
}

func TestCreateMissingFieldsKeepsDraft(t *testing.T) {
	e, store, _ := newTestPage(t)

	rec := serve(e, http.MethodPost, "/tasks", url.Values{
		"title": {"Pay rent"},
		"email": {""},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="Pay rent"`) {
		t.Fatal("expected draft title to be preserved")
	}
	if strings.Count(body, `class="missing"`) != 2 {
		t.Fatalf("expected email and deadline to be flagged")
	}
	tasks, _ := store.ListTasks(context.Background())
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestMarkDoneRedirects(t *testing.T) {
	e, store, _ := newTestPage(t)
	id := seedTask(t, store, "Pay rent")

	rec := serve(e, http.MethodPost, "/tasks/"+id+"/done", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect got %d", rec.Code)
	}
	task, err := store.GetTask(context.Background(), id)
	if err != nil || !task.Done {
		t.Fatalf("expected task to be done: %+v %v", task, err)
	}

	rec = serve(e, http.MethodPost, "/tasks/missing/done", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect for unknown id got %d", rec.Code)
	}
}

func TestRemindSendsServerSide(t *testing.T) {
	e, store, sender := newTestPage(t)
	id := seedTask(t, store, "Pay rent")

	rec := serve(e, http.MethodPost, "/tasks/"+id+"/remind", url.Values{})
	if rec.Code != http.StatusSeeOther || rec.Header().Get(echo.HeaderLocation) != "/?notice=reminder-sent" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	if sender.calls != 1 || sender.last != "a@b.com|Pay rent|2025-01-01T10:00:00Z" {
		t.Fatalf("unexpected send: %d %q", sender.calls, sender.last)
	}

	page := serve(e, http.MethodGet, "/?notice=reminder-sent", nil).Body.String()
	if !strings.Contains(page, "Reminder email sent.") {
		t.Fatal("expected success notice")
	}
}

func TestRemindFailures(t *testing.T) {
	e, store, sender := newTestPage(t)
	id := seedTask(t, store, "Pay rent")
	sender.err = errors.New("provider down")

	rec := serve(e, http.MethodPost, "/tasks/"+id+"/remind", url.Values{})
	if got := rec.Header().Get(echo.HeaderLocation); got != "/?notice=reminder-failed" {
		t.Fatalf("unexpected redirect %q", got)
	}
	if sender.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", sender.calls)
	}

	rec = serve(e, http.MethodPost, "/tasks/missing/remind", url.Values{})
	if got := rec.Header().Get(echo.HeaderLocation); got != "/?notice=task-missing" {
		t.Fatalf("unexpected redirect %q", got)
	}

	page := serve(e, http.MethodGet, "/?notice=reminder-failed", nil).Body.String()
	if !strings.Contains(page, "could not be sent") || !strings.Contains(page, `role="alert"`) {
		t.Fatal("expected failure alert")
	}
}

func TestIndexIgnoresUnknownNotice(t *testing.T) {
	e, _, _ := newTestPage(t)
	page := serve(e, http.MethodGet, "/?notice=bogus", nil).Body.String()
	if strings.Contains(page, `role="alert"`) {
		t.Fatal("unexpected notice rendered")
	}
}

func TestStaticStylesheet(t *testing.T) {
	e, _, _ := newTestPage(t)
	rec := serve(e, http.MethodGet, "/static/style.css", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".task.done") {
		t.Fatalf("unexpected stylesheet response %d", rec.Code)
	}
}
