package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nethegre/overseer/internal/config"
	"github.com/nethegre/overseer/internal/execution"
	"github.com/nethegre/overseer/internal/history"
	"github.com/nethegre/overseer/internal/supervisor"
)

func newTestServer(t *testing.T, archive history.Store) (*Server, *supervisor.Supervisor) {
	t.Helper()

	sup := supervisor.New(supervisor.Config{
		MaxNameAttempts: 5,
		// Keep entries visible for assertions; sweep liveness is covered by
		// the supervisor package tests.
		SweepInterval: time.Hour,
	}, nil, archive)
	t.Cleanup(sup.Shutdown)

	runner := execution.NewRunner()
	if err := runner.Register("sleep", func(ctx context.Context, payload string) error {
		d, err := time.ParseDuration(payload)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}); err != nil {
		t.Fatalf("Register(sleep) error = %v", err)
	}

	cfg := config.Config{BindAddr: ":0", MetricsNamespace: "test"}
	return New(cfg, sup, runner, archive, nil), sup
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitNamedTask(t *testing.T) {
	srv, sup := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{
		Name:    "job-http",
		Kind:    "sleep",
		Payload: "100ms",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp submitTaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "job-http" {
		t.Fatalf("response name = %q, want %q", resp.Name, "job-http")
	}
	if got := sup.StatusOf("job-http"); got == supervisor.StatusUnknown {
		t.Fatalf("StatusOf(job-http) = %q after submit", got)
	}

	// Same name again collides.
	rec = doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{
		Name:    "job-http",
		Kind:    "sleep",
		Payload: "100ms",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate submit status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSubmitAnonymousTask(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{
		Kind:    "sleep",
		Payload: "50ms",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var resp submitTaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name == "" {
		t.Fatalf("anonymous submit returned empty name")
	}
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{Name: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing kind status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{Kind: "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetTaskStatusAndUnknown(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{
		Name:    "job-status",
		Kind:    "sleep",
		Payload: "100ms",
	})

	rec := doJSON(t, router, http.MethodGet, "/v1/tasks/job-status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/tasks/never-submitted", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCancelTask(t *testing.T) {
	srv, sup := newTestServer(t, nil)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{
		Name:    "job-cancel",
		Kind:    "sleep",
		Payload: "10s",
	})

	rec := doJSON(t, router, http.MethodPost, "/v1/tasks/job-cancel/cancel", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sup.StatusOf("job-cancel") == supervisor.StatusCanceled {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if got := sup.StatusOf("job-cancel"); got != supervisor.StatusCanceled {
		t.Fatalf("StatusOf(job-cancel) = %q, want %q", got, supervisor.StatusCanceled)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/tasks/never-submitted/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListTasks(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	router := srv.Router()

	doJSON(t, router, http.MethodPost, "/v1/tasks", submitTaskRequest{
		Name:    "job-list",
		Kind:    "sleep",
		Payload: "1s",
	})

	rec := doJSON(t, router, http.MethodGet, "/v1/tasks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Tasks []taskStatusResponse `json:"tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, task := range resp.Tasks {
		if task.Name == "job-list" {
			found = true
		}
	}
	if !found {
		t.Fatalf("job-list missing from task list: %+v", resp.Tasks)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/v1/history", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("history without archive status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}

	archive := newFakeArchive()
	now := time.Now().UTC()
	_ = archive.SaveRecord(context.Background(), history.Record{
		Name:        "job-old",
		Status:      "completed",
		SubmittedAt: now,
	})

	srv, _ = newTestServer(t, archive)
	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/history?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp struct {
		Records []history.Record `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Name != "job-old" {
		t.Fatalf("history records = %+v, want the seeded record", resp.Records)
	}

	rec = doJSON(t, srv.Router(), http.MethodGet, "/v1/history?limit=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("history bad limit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, sup := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusOK)
	}

	sup.Shutdown()
	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after shutdown status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

type fakeArchive struct {
	mu      sync.Mutex
	records []history.Record
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{}
}

func (a *fakeArchive) SaveRecord(_ context.Context, rec history.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *fakeArchive) ListRecent(_ context.Context, limit int) ([]history.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]history.Record, 0, len(a.records))
	for i := len(a.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.records[i])
	}
	return out, nil
}

func (a *fakeArchive) Close() error {
	return nil
}
