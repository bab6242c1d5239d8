package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nethegre/overseer/internal/config"
	"github.com/nethegre/overseer/internal/execution"
	"github.com/nethegre/overseer/internal/history"
	"github.com/nethegre/overseer/internal/observability"
	"github.com/nethegre/overseer/internal/supervisor"
)

type Server struct {
	cfg      config.Config
	sup      *supervisor.Supervisor
	runner   *execution.Runner
	archive  history.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sup *supervisor.Supervisor, runner *execution.Runner, archive history.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		sup:     sup,
		runner:  runner,
		archive: archive,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/tasks", s.handleSubmitTask)
	r.Get("/v1/tasks", s.handleListTasks)
	r.Get("/v1/tasks/{name}", s.handleGetTask)
	r.Post("/v1/tasks/{name}/cancel", s.handleCancelTask)
	r.Get("/v1/history", s.handleListHistory)
	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"shutting_down": s.sup.ShuttingDown(),
		"archive_mode":  s.archiveMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.sup.ShuttingDown() {
		respondError(w, http.StatusServiceUnavailable, "shutting_down", "supervisor is shut down")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"archive_mode": s.archiveMode(),
		"job_kinds":    s.runner.Kinds(),
	})
}

func (s *Server) archiveMode() string {
	if s.archive == nil {
		return "disabled"
	}
	return "postgres"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
