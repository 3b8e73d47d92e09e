package opt

// Local improvement operators. Each keeps every plan feasible, only accepts
// strict improvements and gives up after maxLocalPasses sweeps.

const maxLocalPasses = 3

// twoOptImprove reverses visit segments of each plan while that lowers the
// plan cost.
func (m *RoutingModel) twoOptImprove(a *Assignment) *Assignment {
	for pi := range a.Plans {
		p := &a.Plans[pi]
		n := len(p.Visits)
		for pass := 0; pass < maxLocalPasses; pass++ {
			improved := false
			for i := 0; i < n-1; i++ {
				for k := i + 1; k < n; k++ {
					cand := twoOptSwap(p.Visits, i, k)
					c, ok := m.planCost(p.Vehicle, cand)
					if ok && c < p.Cost {
						p.Visits, p.Cost = cand, c
						improved = true
					}
				}
			}
			if !improved {
				break
			}
		}
	}
	m.refresh(a)
	return a
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// relocateImprove moves single requests to another position, in the same
// plan or another one. Reload markers never move between vehicles.
func (m *RoutingModel) relocateImprove(a *Assignment) *Assignment {
	for pass := 0; pass < maxLocalPasses; pass++ {
		improved := false
		for pa := range a.Plans {
			for i := 0; i < len(a.Plans[pa].Visits); i++ {
				node := a.Plans[pa].Visits[i]
				if m.Reloader.IsReload(node) {
					continue
				}
				if m.relocate(a, pa, i) {
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	m.refresh(a)
	return a
}

// relocate applies the best strictly improving move of Visits[i] of plan pa.
func (m *RoutingModel) relocate(a *Assignment, pa, i int) bool {
	src := a.Plans[pa]
	node := src.Visits[i]
	rest := removeAt(src.Visits, i)
	restCost, ok := m.planCost(src.Vehicle, rest)
	if !ok {
		return false
	}
	bestGain := int64(0)
	bestPlan, bestPos := -1, -1
	var bestCost int64
	for pb, dst := range a.Plans {
		base := dst.Visits
		if pb == pa {
			base = rest
		}
		for j := 0; j <= len(base); j++ {
			if pb == pa && j == i {
				continue
			}
			c, ok := m.planCost(dst.Vehicle, insertAt(base, j, node))
			if !ok {
				continue
			}
			var gain int64
			if pb == pa {
				gain = src.Cost - c
			} else {
				gain = src.Cost + dst.Cost - restCost - c
			}
			if gain > bestGain {
				bestGain, bestPlan, bestPos, bestCost = gain, pb, j, c
			}
		}
	}
	if bestPlan == -1 {
		return false
	}
	if bestPlan == pa {
		a.Plans[pa].Visits = insertAt(rest, bestPos, node)
		a.Plans[pa].Cost = bestCost
		return true
	}
	a.Plans[pa].Visits, a.Plans[pa].Cost = rest, restCost
	a.Plans[bestPlan].Visits = insertAt(a.Plans[bestPlan].Visits, bestPos, node)
	a.Plans[bestPlan].Cost = bestCost
	return true
}

// crossExchangeImprove swaps requests between two plans if the combined cost
// decreases and both plans stay feasible.
func (m *RoutingModel) crossExchangeImprove(a *Assignment) *Assignment {
	if len(a.Plans) < 2 {
		return a
	}
	for pass := 0; pass < maxLocalPasses; pass++ {
		improved := false
		for pa := 0; pa < len(a.Plans); pa++ {
			for pb := pa + 1; pb < len(a.Plans); pb++ {
				if m.exchange(a, pa, pb) {
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	m.refresh(a)
	return a
}

func (m *RoutingModel) exchange(a *Assignment, pa, pb int) bool {
	changed := false
	for i := 0; i < len(a.Plans[pa].Visits); i++ {
		for j := 0; j < len(a.Plans[pb].Visits); j++ {
			x, y := a.Plans[pa], a.Plans[pb]
			if m.Reloader.IsReload(x.Visits[i]) || m.Reloader.IsReload(y.Visits[j]) {
				continue
			}
			ca := append([]int(nil), x.Visits...)
			cb := append([]int(nil), y.Visits...)
			ca[i], cb[j] = cb[j], ca[i]
			costA, ok := m.planCost(x.Vehicle, ca)
			if !ok {
				continue
			}
			costB, ok := m.planCost(y.Vehicle, cb)
			if !ok {
				continue
			}
			if costA+costB < x.Cost+y.Cost {
				a.Plans[pa].Visits, a.Plans[pa].Cost = ca, costA
				a.Plans[pb].Visits, a.Plans[pb].Cost = cb, costB
				changed = true
			}
		}
	}
	return changed
}

// improve runs every local operator once.
func (m *RoutingModel) improve(a *Assignment) *Assignment {
	a = m.twoOptImprove(a)
	a = m.relocateImprove(a)
	return m.crossExchangeImprove(a)
}
