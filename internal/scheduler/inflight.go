package scheduler

import "sync"

// inflightSet is the process-wide single-flight guard: a task id that is
// currently executing is skipped by any concurrent or later tick. Only the
// executor inserts and removes ids.
type inflightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{ids: map[string]struct{}{}}
}

// tryAcquire claims id. It returns false when the id is already in flight.
func (s *inflightSet) tryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.ids[id]; busy {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *inflightSet) release(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *inflightSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
