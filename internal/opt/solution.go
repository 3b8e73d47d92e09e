package opt

import (
	"time"

	"dronematch/internal/model"
)

// Status is the lifecycle state of a MatchingSolution.
type Status int

const (
	StatusUnsolved Status = iota
	StatusSolved
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unsolved"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Visit is one traversed node of a vehicle route with its dimension cumuls.
type Visit struct {
	Node     int
	TimeMin  int64
	TimeMax  int64
	Load     map[model.PackageType]int64
	Priority int64
}

// MatchingSolution decodes an assignment back into domain terms. It is
// derived once per solve and read-only afterwards.
type MatchingSolution struct {
	status    Status
	model     *RoutingModel
	objective int64
	// routes[v] is the full node sequence of vehicle v, reload nodes included.
	routes [][]Visit
	next   []int
	drops  []int
}

// NewMatchingSolution returns an unsolved solution for m.
func NewMatchingSolution(m *RoutingModel) *MatchingSolution {
	return &MatchingSolution{model: m}
}

// Status returns the lifecycle state.
func (s *MatchingSolution) Status() Status { return s.status }

// Objective returns the objective of the decoded assignment.
func (s *MatchingSolution) Objective() int64 { return s.objective }

// MarkInfeasible moves the solution to StatusInfeasible.
func (s *MatchingSolution) MarkInfeasible() {
	s.status = StatusInfeasible
	s.routes = nil
	s.next = nil
	s.drops = append([]int(nil), s.model.Requests()...)
}

// SetAssignment decodes a and moves the solution to StatusSolved. Next
// pointers of dropped requests point at themselves; real docks have no
// single successor because vehicles share them, so theirs stay -1.
func (s *MatchingSolution) SetAssignment(a *Assignment) {
	m := s.model
	s.status = StatusSolved
	s.objective = a.Objective
	s.next = make([]int, m.Size())
	for i := range s.next {
		s.next[i] = -1
	}
	for _, i := range m.Requests() {
		s.next[i] = i
	}
	s.routes = make([][]Visit, len(a.Plans))
	pkgs := model.PackageTypes()
	for _, p := range a.Plans {
		e, ok := m.walk(p.Vehicle, p.Visits, true)
		if !ok {
			// never collected by the search; keep the vehicle idle
			continue
		}
		latest := m.latestTimes(p.Vehicle, e)
		visits := make([]Visit, len(e.seq))
		for k, node := range e.seq {
			load := make(map[model.PackageType]int64, len(pkgs))
			for pi, pkg := range pkgs {
				load[pkg] = e.cumuls[k][m.timeDim+1+pi]
			}
			visits[k] = Visit{
				Node:     node,
				TimeMin:  e.cumuls[k][m.timeDim],
				TimeMax:  latest[k],
				Load:     load,
				Priority: e.cumuls[k][m.prioDim],
			}
			if k+1 < len(e.seq) && !m.Export.IsDepot(node) {
				s.next[node] = e.seq[k+1]
			}
		}
		s.routes[p.Vehicle] = visits
	}
	s.drops = s.drops[:0]
	for _, i := range m.Requests() {
		if s.next[i] == i {
			s.drops = append(s.drops, i)
		}
	}
}

// Next returns the successor of node i, i itself when i is dropped, or -1.
func (s *MatchingSolution) Next(i int) int {
	if i < 0 || i >= len(s.next) {
		return -1
	}
	return s.next[i]
}

// Dropped returns the dropped request indices in ascending order.
func (s *MatchingSolution) Dropped() []int { return append([]int(nil), s.drops...) }

// Route returns the visible stops of vehicle v: every visited node that is
// neither a dock nor a reload node.
func (s *MatchingSolution) Route(v int) []Visit {
	if v < 0 || v >= len(s.routes) {
		return nil
	}
	var out []Visit
	for _, vis := range s.routes[v] {
		if s.model.Reloader.IsReload(vis.Node) || s.model.Export.IsDepot(vis.Node) {
			continue
		}
		out = append(out, vis)
	}
	return out
}

// FullRoute returns every node vehicle v traverses, start to end.
func (s *MatchingSolution) FullRoute(v int) []Visit {
	if v < 0 || v >= len(s.routes) {
		return nil
	}
	return append([]Visit(nil), s.routes[v]...)
}

// DeliveryBoard maps the solution back to delivery requests, scheduling each
// stop at zero time plus its earliest time cumul in minutes.
func (s *MatchingSolution) DeliveryBoard() model.DroneDeliveryBoard {
	m := s.model
	ex := m.Export
	if s.status != StatusSolved {
		return model.EmptyBoard(m.Fleet, ex.Requests())
	}
	board := model.EmptyBoard(m.Fleet, nil)
	for v := range board.Deliveries {
		for _, vis := range s.Route(v) {
			board.Deliveries[v].Stops = append(board.Deliveries[v].Stops, model.ScheduledDelivery{
				Request:     *ex.NodeAt(vis.Node).Request,
				ScheduledAt: ex.ZeroTime.Add(time.Duration(vis.TimeMin) * time.Minute),
			})
		}
	}
	for _, i := range s.drops {
		board.Dropped = append(board.Dropped, *ex.NodeAt(i).Request)
	}
	return board
}
