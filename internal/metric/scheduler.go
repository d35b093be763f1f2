package metric

import "time"

// Scheduler tracks which module is active and when it next needs a fetch.
// Not safe for concurrent use.
type Scheduler struct {
	active    int
	lastFetch time.Time
	fetched   bool
}

// NewScheduler starts on the module with the given id, or the first
// registered module if the id is unknown.
func NewScheduler(activeID string) *Scheduler {
	s := &Scheduler{}
	for i, m := range registry {
		if m.ID() == activeID {
			s.active = i
		}
	}
	return s
}

// Active returns the active module.
func (s *Scheduler) Active() Module {
	return registry[s.active]
}

// Cycle advances to the next module and makes it due immediately.
func (s *Scheduler) Cycle() Module {
	s.active = (s.active + 1) % len(registry)
	s.ForceDue()
	return s.Active()
}

// Due reports whether the active module should be fetched at now.
func (s *Scheduler) Due(now time.Time, interval time.Duration) bool {
	if !s.fetched {
		return true
	}
	return now.Sub(s.lastFetch) >= interval
}

// MarkFetched records a fetch attempt, successful or not.
func (s *Scheduler) MarkFetched(now time.Time) {
	s.lastFetch = now
	s.fetched = true
}

// ForceDue makes the active module due on the next check.
func (s *Scheduler) ForceDue() {
	s.fetched = false
}
