package opt

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// Removal and insertion operators, indexed as in SearchStats.
const (
	removeRandom = iota
	removeRelated
	removeWorst
)

const (
	insertGreedy = iota
	insertRegret
)

// SearchStats summarizes one search run.
type SearchStats struct {
	RemovalSelects        [3]int           `json:"removalSelects"` // random, related, worst
	InsertSelects         [2]int           `json:"insertSelects"`  // greedy, regret2
	Iterations            int              `json:"iterations"`
	Improvements          int              `json:"improvements"`
	AcceptedWorse         int              `json:"acceptedWorse"`
	InitialObjective      int64            `json:"initialObjective"`
	BestObjective         int64            `json:"bestObjective"`
	FinalRemovalWeights   [3]float64       `json:"finalRemovalWeights"`
	FinalInsertionWeights [2]float64       `json:"finalInsertionWeights"`
	Snapshots             []WeightSnapshot `json:"snapshots,omitempty"`
	TimedOut              bool             `json:"timedOut"`
}

// WeightSnapshot records the operator weights at some iteration.
type WeightSnapshot struct {
	Iteration int        `json:"iteration"`
	Removal   [3]float64 `json:"removal"`
	Insertion [2]float64 `json:"insertion"`
}

const snapshotEvery = 50

// search improves start with adaptive large neighbourhood search until the
// monitor stops it or the timeout elapses. Acceptance is simulated annealing
// against the current assignment for ALNS and strict improvement for
// GREEDY_DESCENT. The best assignment is left in the monitor.
func (m *RoutingModel) search(start *Assignment, mon *SearchMonitor) SearchStats {
	cfg := m.Config
	rng := rand.New(rand.NewSource(cfg.Seed))
	remW := []float64{1, 1, 1}
	insW := []float64{1, 1}
	temp := cfg.InitialTemp
	cool := cfg.Cooling

	curr := m.improve(start.clone())
	mon.Collect(start)
	mon.Collect(curr)
	st := SearchStats{InitialObjective: start.Objective}

	var deadline time.Time
	if cfg.SolverTimeoutMs > 0 {
		deadline = time.Now().Add(cfg.SolverTimeout())
	}
	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			st.TimedOut = true
			break
		}
		st.Iterations++
		k := 1 + rng.Intn(3)
		// select operators by roulette wheel
		op := selectOp(remW, rng)
		st.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		st.InsertSelects[ip]++

		var picked []int
		switch op {
		case removeRandom:
			picked = m.randomRemoval(curr, k, rng)
		case removeRelated:
			picked = m.relatedRemoval(curr, k, rng)
		case removeWorst:
			picked = m.worstRemoval(curr, k)
		}
		cand, _ := m.without(curr, picked)
		pool := m.dropped(cand)
		switch ip {
		case insertGreedy:
			cand = m.greedyInsert(cand, pool)
		case insertRegret:
			cand = m.regretInsert(cand, pool)
		}
		cand = m.improve(cand)

		delta := float64(cand.Objective - curr.Objective)
		accept := delta < 0
		if !accept && cfg.SolverName == SolverALNS {
			accept = rng.Float64() < math.Exp(-delta/(temp+1e-9))
		}
		if accept {
			if best, ok := mon.BestObjective(); !ok || cand.Objective < best {
				remW[op] += 0.1
				insW[ip] += 0.1
				st.Improvements++
			} else {
				remW[op] += 0.01
				insW[ip] += 0.01
				if delta > 0 {
					st.AcceptedWorse++
				}
			}
			curr = cand
		} else {
			// slight penalty for non-acceptance
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cool
		if st.Iterations%snapshotEvery == 0 {
			st.Snapshots = append(st.Snapshots, WeightSnapshot{
				Iteration: st.Iterations,
				Removal:   [3]float64{remW[0], remW[1], remW[2]},
				Insertion: [2]float64{insW[0], insW[1]},
			})
		}
		if mon.OnIteration(curr) {
			break
		}
	}
	st.BestObjective, _ = mon.BestObjective()
	st.FinalRemovalWeights = [3]float64{remW[0], remW[1], remW[2]}
	st.FinalInsertionWeights = [2]float64{insW[0], insW[1]}
	return st
}

func (m *RoutingModel) randomRemoval(a *Assignment, k int, rng *rand.Rand) []int {
	all := m.routed(a)
	removed := []int{}
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = removeAt(all, j)
	}
	return removed
}

// relatedRemoval picks a random routed request and the k-1 requests closest
// to it in travel time and time window start.
func (m *RoutingModel) relatedRemoval(a *Assignment, k int, rng *rand.Rand) []int {
	assigned := m.routed(a)
	if len(assigned) == 0 {
		return nil
	}
	seed := assigned[rng.Intn(len(assigned))]
	type pair struct {
		idx   int
		score int64
	}
	ex := m.Export
	rel := make([]pair, 0, len(assigned))
	for _, idx := range assigned {
		if idx == seed {
			continue
		}
		travel := int64(ex.TravelTime[seed][idx])
		if back := int64(ex.TravelTime[idx][seed]); back < travel {
			travel = back
		}
		gap := int64(ex.TimeWindows[seed].Earliest) - int64(ex.TimeWindows[idx].Earliest)
		if gap < 0 {
			gap = -gap
		}
		rel = append(rel, pair{idx: idx, score: travel + gap})
	}
	sort.SliceStable(rel, func(i, j int) bool {
		if rel[i].score != rel[j].score {
			return rel[i].score < rel[j].score
		}
		return rel[i].idx < rel[j].idx
	})
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].idx)
	}
	return removed
}

// worstRemoval picks the k requests whose removal saves the most cost.
func (m *RoutingModel) worstRemoval(a *Assignment, k int) []int {
	type pair struct {
		idx    int
		saving int64
	}
	var cands []pair
	for _, p := range a.Plans {
		for i, n := range p.Visits {
			if m.Reloader.IsReload(n) {
				continue
			}
			c, ok := m.planCost(p.Vehicle, removeAt(p.Visits, i))
			if !ok {
				continue
			}
			cands = append(cands, pair{idx: n, saving: p.Cost - c})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].saving != cands[j].saving {
			return cands[i].saving > cands[j].saving
		}
		return cands[i].idx < cands[j].idx
	})
	out := make([]int, 0, k)
	for i := 0; i < len(cands) && i < k; i++ {
		out = append(out, cands[i].idx)
	}
	return out
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
