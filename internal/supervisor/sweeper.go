package supervisor

import (
	"log"
	"time"
)

// ensureSweeper lazily starts the cleanup loop. Any number of submitters may
// race here; the compare-and-swap guarantees at most one live loop. The flag
// is released when a loop exits, so if a loop ever dies unexpectedly the next
// submission starts a fresh one.
func (s *Supervisor) ensureSweeper() {
	if s.shutdown.Load() {
		return
	}
	if !s.sweeping.CompareAndSwap(false, true) {
		return
	}
	s.loopStarts.Add(1)
	if s.metrics != nil {
		s.metrics.SweeperLoops.Inc()
	}
	go s.sweepLoop()
}

// LoopStarts reports how many sweeper loops have been started over the
// supervisor's lifetime. Exactly 1 is expected in normal operation.
func (s *Supervisor) LoopStarts() int64 {
	return s.loopStarts.Load()
}

func (s *Supervisor) sweepLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("supervisor: sweeper panic: %v", r)
		}
		s.sweeping.Store(false)
	}()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			// No final sweep: remaining entries are drained by Shutdown.
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce evicts every terminal entry visible in a point-in-time snapshot of
// the registry. Entries removed by racing calls are skipped; nil entries
// should not occur but are evicted defensively.
func (s *Supervisor) sweepOnce() int {
	removed := 0
	for _, name := range s.reg.SnapshotKeys() {
		h, ok := s.reg.Get(name)
		if !ok {
			continue
		}
		if h == nil {
			s.reg.Remove(name)
			log.Printf("supervisor: evicted invalid registry entry %q", name)
			continue
		}
		status := h.Status()
		if !status.Terminal() {
			continue
		}
		if _, ok := s.reg.Remove(name); !ok {
			continue
		}
		removed++
		if s.metrics != nil {
			s.metrics.SweepRemovals.Inc()
		}
		s.publish(Event{
			Type:   EventSwept,
			Name:   name,
			Status: status,
			At:     time.Now().UTC(),
		})
	}
	if removed > 0 {
		log.Printf("supervisor: swept %d terminal task(s)", removed)
		if s.metrics != nil {
			s.metrics.RegistrySize.Set(float64(s.reg.Len()))
		}
	}
	return removed
}
