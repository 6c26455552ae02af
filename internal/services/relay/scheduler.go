package relay

import (
	"sync"
	"time"
)

// scheduler runs deferred room transitions keyed by room code. At most one
// task is pending per code; scheduling again replaces the previous task.
type scheduler struct {
	mu      sync.Mutex
	seq     uint64
	tasks   map[string]task
	stopped bool
}

type task struct {
	id    uint64
	timer *time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{tasks: make(map[string]task)}
}

func (s *scheduler) schedule(code string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.tasks[code]; ok {
		prev.timer.Stop()
	}
	s.seq++
	id := s.seq
	s.tasks[code] = task{
		id: id,
		timer: time.AfterFunc(d, func() {
			s.forget(code, id)
			fn()
		}),
	}
}

// cancel stops the pending task for code. It reports whether a task was
// stopped before firing.
func (s *scheduler) cancel(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[code]
	if !ok {
		return false
	}
	delete(s.tasks, code)
	return t.timer.Stop()
}

func (s *scheduler) pending(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[code]
	return ok
}

func (s *scheduler) forget(code string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[code]; ok && t.id == id {
		delete(s.tasks, code)
	}
}

func (s *scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for code, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, code)
	}
}
