package opt

import "dronematch/internal/graph"

// Dimension names.
const (
	DimensionTime     = "time"
	DimensionPriority = "priority"
)

// CapacityDimensionName returns the name of the capacity dimension of a
// package type, e.g. "capacity_small".
func CapacityDimensionName(pkg string) string { return "capacity_" + pkg }

// Dimension is a quantity accumulated node to node along a route:
// cumul(next) = cumul(prev) + Transit(prev, next), plus waiting slack on
// dimensions that carry time windows.
type Dimension struct {
	Name    string
	Transit Evaluator

	// Start is the cumul at each vehicle's start node. Dimensions that reset
	// at a reload also fall back to it after every depart node.
	Start []int64
	// Capacity bounds the cumul per vehicle; nil means unbounded.
	Capacity []int64
	// Windows bound the cumul per model node; nil for dimensions without
	// windows. SlackMax bounds waiting for a window to open.
	Windows  []graph.Window
	SlackMax int64
	// SpanMax bounds cumul(trip end) - cumul(trip start); 0 disables it.
	SpanMax int64

	ResetOnDepart bool
}

// step advances cumul by transit onto node to. tripStart is the cumul at the
// last depart node (or the route start).
func (d *Dimension) step(v int, cumul, tripStart, transit int64, to int) (int64, bool) {
	next := cumul + transit
	if d.Windows != nil {
		w := d.Windows[to]
		if next > int64(w.Latest) {
			return next, false
		}
		if e := int64(w.Earliest); next < e {
			if e-next > d.SlackMax {
				return next, false
			}
			next = e
		}
	}
	if d.Capacity != nil && next > d.Capacity[v] {
		return next, false
	}
	if d.SpanMax > 0 && next-tripStart > d.SpanMax {
		return next, false
	}
	return next, true
}
