package components

import "sync"

// StatsCounter tracks terminal moderation outcomes. Counters only move when a
// submission actually reaches a terminal state, so a failed publish changes
// nothing here.
type StatsCounter struct {
	mu        sync.Mutex
	published uint64
	rejected  uint64
}

type StatsSnapshot struct {
	Published uint64 `json:"published"`
	Rejected  uint64 `json:"rejected"`
	Total     uint64 `json:"total"`
}

func NewStatsCounter() *StatsCounter {
	return &StatsCounter{}
}

func (s *StatsCounter) AddPublished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published++
}

func (s *StatsCounter) AddRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rejected++
}

func (s *StatsCounter) Report() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		Published: s.published,
		Rejected:  s.rejected,
		Total:     s.published + s.rejected,
	}
}
