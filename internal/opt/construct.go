package opt

import (
	"fmt"
	"math"
	"sort"
)

const noInsertion int64 = math.MaxInt64

// insertion is one feasible placement of a request on a plan.
type insertion struct {
	node  int
	plan  int
	pos   int
	cost  int64 // plan cost after inserting
	delta int64
}

// cheapest scans every plan and position for node. second is the delta of
// the runner-up position, or noInsertion.
func (m *RoutingModel) cheapest(a *Assignment, node int) (best insertion, second int64, ok bool) {
	second = noInsertion
	for pi, p := range a.Plans {
		for pos := 0; pos <= len(p.Visits); pos++ {
			c, feasible := m.planCost(p.Vehicle, insertAt(p.Visits, pos, node))
			if !feasible {
				continue
			}
			d := c - p.Cost
			switch {
			case !ok || d < best.delta:
				if ok {
					second = best.delta
				}
				best = insertion{node: node, plan: pi, pos: pos, cost: c, delta: d}
				ok = true
			case d < second:
				second = d
			}
		}
	}
	return best, second, ok
}

// worthIt reports whether routing a request beats paying its drop penalty.
func (m *RoutingModel) worthIt(ins insertion) bool {
	return ins.delta < m.penalties[ins.node]
}

func (a *Assignment) apply(ins insertion) {
	p := &a.Plans[ins.plan]
	p.Visits = insertAt(p.Visits, ins.pos, ins.node)
	p.Cost = ins.cost
}

// greedyInsert repeatedly applies the globally cheapest insertion over pool
// until nothing left is worth routing. Equal deltas go to the lowest node.
func (m *RoutingModel) greedyInsert(a *Assignment, pool []int) *Assignment {
	pool = append([]int(nil), pool...)
	sort.Ints(pool)
	for len(pool) > 0 {
		var best insertion
		bestAt := -1
		for i, n := range pool {
			ins, _, ok := m.cheapest(a, n)
			if !ok || !m.worthIt(ins) {
				continue
			}
			if bestAt == -1 || ins.delta < best.delta {
				best, bestAt = ins, i
			}
		}
		if bestAt == -1 {
			break
		}
		a.apply(best)
		pool = removeAt(pool, bestAt)
	}
	m.refresh(a)
	return a
}

// regretInsert inserts the request that would lose the most by not getting
// its best position first (regret-2). A request with a single feasible
// position has maximal regret.
func (m *RoutingModel) regretInsert(a *Assignment, pool []int) *Assignment {
	pool = append([]int(nil), pool...)
	sort.Ints(pool)
	for len(pool) > 0 {
		var best insertion
		bestAt := -1
		bestRegret := int64(-1)
		for i, n := range pool {
			ins, second, ok := m.cheapest(a, n)
			if !ok || !m.worthIt(ins) {
				continue
			}
			regret := noInsertion
			if second != noInsertion {
				regret = second - ins.delta
			}
			if bestAt == -1 || regret > bestRegret || (regret == bestRegret && ins.delta < best.delta) {
				best, bestAt, bestRegret = ins, i, regret
			}
		}
		if bestAt == -1 {
			break
		}
		a.apply(best)
		pool = removeAt(pool, bestAt)
	}
	m.refresh(a)
	return a
}

// localCheapestInsertion inserts requests one at a time in index order, each
// at its cheapest position.
func (m *RoutingModel) localCheapestInsertion(a *Assignment) *Assignment {
	for _, n := range m.Requests() {
		ins, _, ok := m.cheapest(a, n)
		if ok && m.worthIt(ins) {
			a.apply(ins)
		}
	}
	m.refresh(a)
	return a
}

// pathCheapestArc extends each vehicle's current trip with the unrouted
// request reached by the cheapest arc from the last node, moving on to the
// next reload trip when no request fits.
func (m *RoutingModel) pathCheapestArc(a *Assignment) *Assignment {
	used := make([]bool, m.Export.Len())
	for v := range a.Plans {
		p := &a.Plans[v]
		last := m.Start(v)
		pos := 0
		for {
			cands := make([]int, 0, len(m.Requests()))
			for _, n := range m.Requests() {
				if !used[n] && reachable(m.Export, m.Reloader, last, n) {
					cands = append(cands, n)
				}
			}
			from := last
			sort.SliceStable(cands, func(i, j int) bool {
				return m.arcCost.Evaluate(from, cands[i]) < m.arcCost.Evaluate(from, cands[j])
			})
			placed := false
			for _, n := range cands {
				visits := insertAt(p.Visits, pos, n)
				c, ok := m.planCost(v, visits)
				if !ok || c-p.Cost >= m.penalties[n] {
					continue
				}
				p.Visits, p.Cost = visits, c
				used[n] = true
				last = n
				pos++
				placed = true
				break
			}
			if placed {
				continue
			}
			if pos < len(p.Visits) && m.Reloader.IsArrive(p.Visits[pos]) {
				last = p.Visits[pos] + 1
				pos++
				continue
			}
			break
		}
	}
	m.refresh(a)
	return a
}

// firstSolution builds the starting assignment with the configured strategy.
func (m *RoutingModel) firstSolution(base *Assignment) (*Assignment, error) {
	a := base.clone()
	switch m.Config.FirstSolutionStrategy {
	case StrategyAutomatic, StrategyParallelCheapestInsertion:
		return m.greedyInsert(a, m.Requests()), nil
	case StrategyLocalCheapestInsertion:
		return m.localCheapestInsertion(a), nil
	case StrategyPathCheapestArc:
		return m.pathCheapestArc(a), nil
	}
	return nil, fmt.Errorf("first solution: %w: %q", ErrUnknownStrategy, m.Config.FirstSolutionStrategy)
}
