// Package supervisor is a process-local registry of named background tasks.
// Work is launched under an explicit or generated name, its completion status
// can be queried while registered, and a single self-starting sweeper loop
// evicts finished entries so the registry never grows unbounded.
package supervisor

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nethegre/overseer/internal/history"
	"github.com/nethegre/overseer/internal/observability"
)

type Config struct {
	// MaxNameAttempts bounds the collision-retry loop for anonymous
	// submissions. Defaults to 5.
	MaxNameAttempts int
	// SweepInterval is the pause between sweeper iterations. Defaults to 50ms.
	SweepInterval time.Duration
	// NameRetrySleep is the pause between name-collision retries. Defaults to
	// the sweep interval.
	NameRetrySleep time.Duration
	// Generator overrides the default uuid-based name source.
	Generator Generator
}

// Supervisor owns a registry of named background tasks, a lazily bootstrapped
// cleanup sweeper and a shutdown gate. All methods are safe for concurrent
// use. Metrics and archive may be nil.
type Supervisor struct {
	maxNameAttempts int
	sweepInterval   time.Duration
	nameRetrySleep  time.Duration
	gen             Generator

	reg     *registry
	metrics *observability.Metrics
	archive history.Store

	shutdown   atomic.Bool
	sweeping   atomic.Bool
	loopStarts atomic.Int64
	stopCh     chan struct{}

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

func New(cfg Config, metrics *observability.Metrics, archive history.Store) *Supervisor {
	if cfg.MaxNameAttempts <= 0 {
		cfg.MaxNameAttempts = 5
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 50 * time.Millisecond
	}
	if cfg.NameRetrySleep <= 0 {
		cfg.NameRetrySleep = cfg.SweepInterval
	}
	if cfg.Generator == nil {
		cfg.Generator = uuidGenerator{}
	}
	return &Supervisor{
		maxNameAttempts: cfg.MaxNameAttempts,
		sweepInterval:   cfg.SweepInterval,
		nameRetrySleep:  cfg.NameRetrySleep,
		gen:             cfg.Generator,
		reg:             newRegistry(),
		metrics:         metrics,
		archive:         archive,
		stopCh:          make(chan struct{}),
		subscribers:     make(map[int]chan Event),
	}
}

// Submit registers work under an explicit name and starts it on its own
// goroutine. It returns false when the supervisor is shut down, the name is
// empty, the work is nil, or the name is already registered. Failures never
// propagate as panics to the caller.
func (s *Supervisor) Submit(name string, work Work) bool {
	name = strings.TrimSpace(name)
	if name == "" || work == nil {
		s.observeSubmission("invalid")
		return false
	}
	if s.shutdown.Load() {
		s.observeSubmission("shutdown")
		return false
	}
	s.ensureSweeper()

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(name, cancel)
	if !s.reg.TryInsert(name, h) {
		cancel()
		s.observeSubmission("duplicate")
		return false
	}
	s.observeSubmission("accepted")
	s.start(ctx, cancel, h, work)
	return true
}

// SubmitAnonymous registers work under a generated collision-resistant name
// and returns it. It returns the empty string when the supervisor is shut
// down, the work is nil, or name generation is exhausted.
func (s *Supervisor) SubmitAnonymous(work Work) string {
	if work == nil {
		s.observeSubmission("invalid")
		return ""
	}
	if s.shutdown.Load() {
		s.observeSubmission("shutdown")
		return ""
	}
	s.ensureSweeper()

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle("", cancel)
	name, err := s.reserveName(h)
	if err != nil {
		cancel()
		if errors.Is(err, ErrNamesExhausted) {
			log.Printf("supervisor: anonymous submission gave up after %d name collisions", s.maxNameAttempts)
			s.observeSubmission("exhausted")
		}
		return ""
	}
	s.observeSubmission("accepted")
	s.start(ctx, cancel, h, work)
	return name
}

// StatusOf returns the current status of the named task, or StatusUnknown when
// the name is not registered. An unknown name may never have existed or may
// already have completed and been swept; the two are indistinguishable here.
func (s *Supervisor) StatusOf(name string) Status {
	h, ok := s.reg.Get(strings.TrimSpace(name))
	if !ok || h == nil {
		return StatusUnknown
	}
	return h.Status()
}

// Names returns a snapshot of the currently registered task names.
func (s *Supervisor) Names() []string {
	return s.reg.SnapshotKeys()
}

// Cancel requests cooperative cancellation of the named task by canceling its
// context. The work decides when to stop; nothing is forcibly terminated.
func (s *Supervisor) Cancel(name string) bool {
	h, ok := s.reg.Get(strings.TrimSpace(name))
	if !ok || h == nil {
		return false
	}
	return h.requestCancel()
}

// Shutdown gates all new registrations, stops the sweeper and drains the
// registry. In-flight work is not canceled; its handles are simply released.
// Safe to call multiple times.
func (s *Supervisor) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)

	drained := 0
	for _, name := range s.reg.SnapshotKeys() {
		if _, ok := s.reg.Remove(name); ok {
			drained++
		}
	}
	if s.metrics != nil {
		s.metrics.RegistrySize.Set(0)
	}
	s.publish(Event{Type: EventShutdown, At: time.Now().UTC()})
	log.Printf("supervisor: shut down, released %d registry entries", drained)
}

// ShuttingDown reports whether Shutdown has been called.
func (s *Supervisor) ShuttingDown() bool {
	return s.shutdown.Load()
}

// Subscribe returns a channel of supervisor events and a cancel func. Slow
// subscribers drop events rather than blocking the supervisor.
func (s *Supervisor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 256)
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

func (s *Supervisor) start(ctx context.Context, cancel context.CancelFunc, h *Handle, work Work) {
	now := time.Now().UTC()
	if s.metrics != nil {
		s.metrics.RegistrySize.Set(float64(s.reg.Len()))
	}
	s.publish(Event{Type: EventSubmitted, Name: h.Name(), Status: h.Status(), At: now})
	s.archiveHandle(h, "")
	log.Printf("supervisor: registered task %q", h.Name())

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.finish(h, StatusFaulted, "panic in task")
				log.Printf("supervisor: task %q panicked: %v", h.Name(), r)
			}
		}()

		h.markRunning()
		s.publish(Event{Type: EventStarted, Name: h.Name(), Status: StatusRunning, At: time.Now().UTC()})

		err := work(ctx)
		switch {
		case err == nil:
			s.finish(h, StatusCompleted, "")
		case errors.Is(err, context.Canceled):
			s.finish(h, StatusCanceled, err.Error())
		default:
			s.finish(h, StatusFaulted, err.Error())
		}
	}()
}

func (s *Supervisor) finish(h *Handle, status Status, detail string) {
	h.markTerminal(status, detail)
	if s.metrics != nil {
		s.metrics.TaskOutcomes.WithLabelValues(string(status)).Inc()
	}
	evt := EventCompleted
	switch status {
	case StatusFaulted:
		evt = EventFaulted
	case StatusCanceled:
		evt = EventCanceled
	}
	s.publish(Event{Type: evt, Name: h.Name(), Status: status, Detail: detail, At: time.Now().UTC()})
	s.archiveHandle(h, detail)
}

func (s *Supervisor) publish(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// archiveHandle records a best-effort snapshot of the task in the history
// store. The registry is never rebuilt from the archive, so failures here
// cannot affect supervisor correctness.
func (s *Supervisor) archiveHandle(h *Handle, detail string) {
	store := s.archive
	if store == nil {
		return
	}
	submitted, started, ended := h.timestamps()
	rec := history.Record{
		Name:        h.Name(),
		Status:      string(h.Status()),
		Error:       detail,
		SubmittedAt: submitted,
		StartedAt:   started,
		EndedAt:     ended,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.SaveRecord(ctx, rec); err != nil {
			log.Printf("supervisor: archive write for %q failed: %v", rec.Name, err)
		}
	}()
}

func (s *Supervisor) observeSubmission(result string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(result).Inc()
	}
}
