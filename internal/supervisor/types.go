package supervisor

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFaulted   Status = "faulted"
	StatusCanceled  Status = "canceled"

	// StatusUnknown is returned for names not present in the registry. A name
	// that was never submitted and a name whose task already completed and was
	// swept are indistinguishable; callers that need the distinction should
	// watch the event stream instead.
	StatusUnknown Status = "unknown"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFaulted, StatusCanceled:
		return true
	default:
		return false
	}
}

// Work is a unit of background work. It runs on its own goroutine; the context
// is canceled only by a cooperative Cancel call, never by Shutdown.
type Work func(ctx context.Context) error

// Handle is the registry's record of a submitted unit of work. The name never
// changes after registration; the status is written only by the goroutine
// running the work.
type Handle struct {
	name string

	mu          sync.Mutex
	status      Status
	errDetail   string
	cancel      context.CancelFunc
	submittedAt time.Time
	startedAt   *time.Time
	endedAt     *time.Time
}

func newHandle(name string, cancel context.CancelFunc) *Handle {
	return &Handle{
		name:        name,
		status:      StatusPending,
		cancel:      cancel,
		submittedAt: time.Now().UTC(),
	}
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) ErrDetail() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errDetail
}

func (h *Handle) markRunning() {
	now := time.Now().UTC()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusPending {
		return
	}
	h.status = StatusRunning
	h.startedAt = &now
}

func (h *Handle) markTerminal(status Status, detail string) {
	now := time.Now().UTC()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return
	}
	h.status = status
	h.errDetail = detail
	h.endedAt = &now
}

// requestCancel cancels the task's context. Returns false when the task has no
// context yet or already reached a terminal status.
func (h *Handle) requestCancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() || h.cancel == nil {
		return false
	}
	h.cancel()
	return true
}

func (h *Handle) timestamps() (submitted time.Time, started, ended *time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.submittedAt, h.startedAt, h.endedAt
}

type EventType string

const (
	EventSubmitted EventType = "task_submitted"
	EventStarted   EventType = "task_started"
	EventCompleted EventType = "task_completed"
	EventFaulted   EventType = "task_faulted"
	EventCanceled  EventType = "task_canceled"
	EventSwept     EventType = "task_swept"
	EventShutdown  EventType = "supervisor_shutdown"
)

type Event struct {
	Type   EventType `json:"type"`
	Name   string    `json:"name,omitempty"`
	Status Status    `json:"status,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}
