package opt

import "dronematch/internal/graph"

// Evaluator returns the value a dimension or the objective accumulates when
// a route moves from one model node to the next. Indices are model indices;
// reload nodes are translated to their dock before any lookup.
type Evaluator interface {
	Evaluate(from, to int) int64
}

// ArcCostEvaluator returns the travel cost of an arc.
type ArcCostEvaluator struct {
	cost   [][]int
	reload *Reloader
}

func (e ArcCostEvaluator) Evaluate(from, to int) int64 {
	return int64(e.cost[e.reload.Resolve(from)][e.reload.Resolve(to)])
}

// TransitTimeEvaluator returns the service time at from plus the travel time
// of the arc. service is indexed by model node.
type TransitTimeEvaluator struct {
	travel  [][]int
	service []int64
	reload  *Reloader
}

func (e TransitTimeEvaluator) Evaluate(from, to int) int64 {
	return e.service[from] + int64(e.travel[e.reload.Resolve(from)][e.reload.Resolve(to)])
}

// DemandEvaluator returns the demand of one package type picked up at from.
type DemandEvaluator struct {
	demand []int
	reload *Reloader
}

func (e DemandEvaluator) Evaluate(from, _ int) int64 {
	return int64(e.demand[e.reload.Resolve(from)])
}

// PriorityEvaluator returns priority(from) scaled by the cost coefficient.
// Reload nodes carry the priority of their dock, which is zero.
type PriorityEvaluator struct {
	priorities  []int
	coefficient int64
	reload      *Reloader
}

func (e PriorityEvaluator) Evaluate(from, _ int) int64 {
	return int64(e.priorities[e.reload.Resolve(from)]) * e.coefficient
}

// reachable reports whether an arc exists in both exported matrices.
func reachable(ex *graph.Export, r *Reloader, from, to int) bool {
	f, t := r.Resolve(from), r.Resolve(to)
	return ex.TravelTime[f][t] < graph.Unreachable && ex.TravelCost[f][t] < graph.Unreachable
}
