package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nethegre/overseer/internal/supervisor"
)

type submitTaskRequest struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
}

type submitTaskResponse struct {
	Name   string            `json:"name"`
	Status supervisor.Status `json:"status"`
}

type taskStatusResponse struct {
	Name   string            `json:"name"`
	Status supervisor.Status `json:"status"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Kind = strings.TrimSpace(req.Kind)
	if req.Kind == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "kind is required")
		return
	}
	fn, ok := s.runner.Resolve(req.Kind)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown_kind", "no job registered for kind "+strconv.Quote(req.Kind))
		return
	}

	payload := req.Payload
	work := func(ctx context.Context) error {
		return fn(ctx, payload)
	}

	if req.Name == "" {
		name := s.sup.SubmitAnonymous(work)
		if name == "" {
			if s.sup.ShuttingDown() {
				respondError(w, http.StatusServiceUnavailable, "shutting_down", "supervisor is shut down")
				return
			}
			respondError(w, http.StatusInternalServerError, "names_exhausted", "could not reserve a unique task name")
			return
		}
		respondJSON(w, http.StatusCreated, submitTaskResponse{Name: name, Status: s.sup.StatusOf(name)})
		return
	}

	if !s.sup.Submit(req.Name, work) {
		if s.sup.ShuttingDown() {
			respondError(w, http.StatusServiceUnavailable, "shutting_down", "supervisor is shut down")
			return
		}
		respondError(w, http.StatusConflict, "duplicate_name", "a task with this name is already registered")
		return
	}
	respondJSON(w, http.StatusCreated, submitTaskResponse{Name: req.Name, Status: s.sup.StatusOf(req.Name)})
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	names := s.sup.Names()
	out := make([]taskStatusResponse, 0, len(names))
	for _, name := range names {
		status := s.sup.StatusOf(name)
		if status == supervisor.StatusUnknown {
			// Swept between snapshot and lookup.
			continue
		}
		out = append(out, taskStatusResponse{Name: name, Status: status})
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_task_name", "missing task name")
		return
	}
	status := s.sup.StatusOf(name)
	if status == supervisor.StatusUnknown {
		respondError(w, http.StatusNotFound, "task_unknown", "task not registered (never submitted, or already completed and swept)")
		return
	}
	respondJSON(w, http.StatusOK, taskStatusResponse{Name: name, Status: status})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_task_name", "missing task name")
		return
	}
	if !s.sup.Cancel(name) {
		respondError(w, http.StatusNotFound, "task_not_cancelable", "task not registered or already terminal")
		return
	}
	respondJSON(w, http.StatusAccepted, taskStatusResponse{Name: name, Status: s.sup.StatusOf(name)})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotImplemented, "history_disabled", "no task history archive is configured")
		return
	}

	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	records, err := s.archive.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}
