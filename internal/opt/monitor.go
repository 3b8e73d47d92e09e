package opt

import (
	"context"
	"time"
)

// MonitorRecord is one sample of the search progress.
type MonitorRecord struct {
	Objective         int64 `json:"objective" yaml:"objective"`
	PriorityServed    int   `json:"priorityServed" yaml:"priorityServed"`
	Unmatched         int   `json:"unmatched" yaml:"unmatched"`
	UnmatchedPriority int   `json:"unmatchedPriority" yaml:"unmatchedPriority"`
	Iteration         int   `json:"iteration" yaml:"iteration"`
	ElapsedMs         int64 `json:"elapsedMs" yaml:"elapsedMs"`
}

// SearchMonitor runs on the solving goroutine once per search iteration. It
// collects the best assignment seen so far, samples the search every
// IterationsBetweenMonitoring calls and decides when to stop.
//
// The observer, when set, receives every sample. It runs inline with the
// search and must not block.
type SearchMonitor struct {
	ctx       context.Context
	model     *RoutingModel
	every     int
	maxIter   int
	started   time.Time
	calls     int
	best      *Assignment
	records   []MonitorRecord
	observer  func(MonitorRecord)
	nodeCount int
	priority  int
}

// NewSearchMonitor returns a monitor for one solve.
func NewSearchMonitor(ctx context.Context, m *RoutingModel, observer func(MonitorRecord)) *SearchMonitor {
	every := m.Config.IterationsBetweenMonitoring
	if every <= 0 {
		every = 1
	}
	return &SearchMonitor{
		ctx:       ctx,
		model:     m,
		every:     every,
		maxIter:   m.Config.MaxIterations,
		started:   time.Now(),
		observer:  observer,
		nodeCount: m.Export.Len(),
		priority:  m.Export.PriorityTotal(),
	}
}

// Current reports the state of the best assignment, or the "no solution
// yet" state: objective and priority 0, N-1 unmatched nodes carrying every
// priority.
func (s *SearchMonitor) Current() MonitorRecord {
	rec := MonitorRecord{
		Iteration: s.calls,
		ElapsedMs: time.Since(s.started).Milliseconds(),
	}
	if s.best == nil {
		rec.Unmatched = s.nodeCount - 1
		rec.UnmatchedPriority = s.priority
		return rec
	}
	rec.Objective = s.best.Objective
	rec.PriorityServed, rec.Unmatched, rec.UnmatchedPriority = s.model.summary(s.best)
	return rec
}

// Collect offers an assignment to the best-solution collector.
func (s *SearchMonitor) Collect(a *Assignment) {
	if a == nil {
		return
	}
	if s.best == nil || a.Objective < s.best.Objective {
		s.best = a.clone()
	}
}

// OnIteration is called by the search after every iteration with the
// current assignment. It returns true when the search must stop.
func (s *SearchMonitor) OnIteration(a *Assignment) bool {
	s.calls++
	s.Collect(a)
	if s.calls%s.every == 0 {
		rec := s.Current()
		s.records = append(s.records, rec)
		if s.observer != nil {
			s.observer(rec)
		}
	}
	if s.maxIter > 0 && s.calls >= s.maxIter {
		return true
	}
	return s.ctx.Err() != nil
}

// Best returns a copy of the best assignment, or nil.
func (s *SearchMonitor) Best() *Assignment {
	if s.best == nil {
		return nil
	}
	return s.best.clone()
}

// BestSolution decodes the best assignment collected so far with every
// dimension cumul, or returns nil before the first collection. It can be
// called from the observer to inspect partial results.
func (s *SearchMonitor) BestSolution() *MatchingSolution {
	if s.best == nil {
		return nil
	}
	sol := NewMatchingSolution(s.model)
	sol.SetAssignment(s.best)
	return sol
}

// BestObjective returns the objective of the best assignment collected.
func (s *SearchMonitor) BestObjective() (int64, bool) {
	if s.best == nil {
		return 0, false
	}
	return s.best.Objective, true
}

// Iterations returns the number of OnIteration calls.
func (s *SearchMonitor) Iterations() int { return s.calls }

// Records returns the samples taken so far.
func (s *SearchMonitor) Records() []MonitorRecord {
	return append([]MonitorRecord(nil), s.records...)
}
