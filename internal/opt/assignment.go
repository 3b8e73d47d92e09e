package opt

import "sort"

// Plan is the route of one vehicle as the search sees it: delivery requests
// and mid-route reload arrive markers between the vehicle's start and end.
type Plan struct {
	Vehicle int
	Visits  []int
	Cost    int64
}

// Assignment is a complete candidate solution. Delivery requests not on any
// plan are dropped.
type Assignment struct {
	Plans     []Plan
	Objective int64
}

func (a *Assignment) clone() *Assignment {
	out := &Assignment{Plans: make([]Plan, len(a.Plans)), Objective: a.Objective}
	for i, p := range a.Plans {
		out.Plans[i] = Plan{Vehicle: p.Vehicle, Visits: append([]int(nil), p.Visits...), Cost: p.Cost}
	}
	return out
}

// emptyAssignment puts every vehicle on its mandatory route: the reload
// markers in slot order and nothing else. ok is false when some vehicle
// cannot even do that.
func (m *RoutingModel) emptyAssignment() (*Assignment, bool) {
	a := &Assignment{Plans: make([]Plan, m.Vehicles())}
	for v := range a.Plans {
		visits := m.Reloader.Markers(v)
		c, ok := m.planCost(v, visits)
		if !ok {
			return nil, false
		}
		a.Plans[v] = Plan{Vehicle: v, Visits: visits, Cost: c}
	}
	m.refresh(a)
	return a, true
}

// refresh recomputes the objective from cached plan costs.
func (m *RoutingModel) refresh(a *Assignment) {
	var total int64
	for _, p := range a.Plans {
		total += p.Cost
	}
	for _, i := range m.dropped(a) {
		total += m.penalties[i]
	}
	a.Objective = total
}

// served marks every delivery request routed by a.
func (m *RoutingModel) served(a *Assignment) []bool {
	out := make([]bool, m.Export.Len())
	for _, p := range a.Plans {
		for _, n := range p.Visits {
			if n < len(out) {
				out[n] = true
			}
		}
	}
	return out
}

// dropped returns the unrouted delivery requests in ascending index order.
func (m *RoutingModel) dropped(a *Assignment) []int {
	s := m.served(a)
	var out []int
	for _, i := range m.Export.DeliveryRequestIndices {
		if !s[i] {
			out = append(out, i)
		}
	}
	return out
}

// routed returns the delivery requests on a's plans, plan by plan.
func (m *RoutingModel) routed(a *Assignment) []int {
	var out []int
	for _, p := range a.Plans {
		for _, n := range p.Visits {
			if !m.Reloader.IsReload(n) {
				out = append(out, n)
			}
		}
	}
	return out
}

// summary returns the raw priority served, the dropped count and the raw
// priority dropped.
func (m *RoutingModel) summary(a *Assignment) (served, unmatched, unmatchedPriority int) {
	for _, i := range m.dropped(a) {
		unmatched++
		unmatchedPriority += m.Export.Priorities[i]
	}
	return m.Export.PriorityTotal() - unmatchedPriority, unmatched, unmatchedPriority
}

func insertAt(visits []int, pos, node int) []int {
	out := make([]int, 0, len(visits)+1)
	out = append(out, visits[:pos]...)
	out = append(out, node)
	return append(out, visits[pos:]...)
}

func removeAt(visits []int, pos int) []int {
	out := make([]int, 0, len(visits))
	out = append(out, visits[:pos]...)
	return append(out, visits[pos+1:]...)
}

// without drops the given nodes from a's plans. A plan that becomes
// infeasible without them (waiting slack is the usual culprit) is kept as is
// and its nodes are not reported as removed.
func (m *RoutingModel) without(a *Assignment, nodes []int) (*Assignment, []int) {
	if len(nodes) == 0 {
		return a, nil
	}
	rm := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		rm[n] = true
	}
	out := a.clone()
	var removed []int
	for i, p := range out.Plans {
		kept := make([]int, 0, len(p.Visits))
		var gone []int
		for _, n := range p.Visits {
			if rm[n] {
				gone = append(gone, n)
				continue
			}
			kept = append(kept, n)
		}
		if len(gone) == 0 {
			continue
		}
		c, ok := m.planCost(p.Vehicle, kept)
		if !ok {
			continue
		}
		out.Plans[i].Visits = kept
		out.Plans[i].Cost = c
		removed = append(removed, gone...)
	}
	sort.Ints(removed)
	m.refresh(out)
	return out, removed
}
