package graph

import (
	"fmt"
	"math"
	"time"

	"dronematch/internal/model"
)

// Unreachable is the travel time/cost exported for ordered pairs without an
// edge, and the latest bound of an open time window.
const Unreachable = math.MaxInt32

// Window is a time window in whole minutes relative to the export zero time.
type Window struct {
	Earliest int
	Latest   int
}

// Feasible reports whether the window is internally consistent.
func (w Window) Feasible() bool { return w.Earliest <= w.Latest }

// Export is the flat, index-addressed view of a graph consumed by the routing
// model. Index i everywhere refers to Nodes[i].
type Export struct {
	ZeroTime               time.Time
	Nodes                  []OperationalNode
	TimeWindows            []Window
	Priorities             []int
	ServiceTimes           []int
	TravelTime             [][]int
	TravelCost             [][]int
	Demand                 map[model.PackageType][]int
	DepotIndices           []int
	DeliveryRequestIndices []int

	index map[string]int
}

// Export flattens the graph using its insertion order as the 0..N-1 indexing.
// Time windows are expressed in minutes from zeroTime; a zero zeroTime falls
// back to the graph's own ZeroTime.
func (og *OperationalGraph) Export(zeroTime time.Time) (*Export, error) {
	if zeroTime.IsZero() {
		zeroTime = og.ZeroTime
	}
	n := len(og.nodes)
	ex := &Export{
		ZeroTime:     zeroTime,
		Nodes:        og.Nodes(),
		TimeWindows:  make([]Window, n),
		Priorities:   make([]int, n),
		ServiceTimes: make([]int, n),
		TravelTime:   make([][]int, n),
		TravelCost:   make([][]int, n),
		Demand:       make(map[model.PackageType][]int, len(model.PackageTypes())),
		index:        make(map[string]int, n),
	}
	for _, pt := range model.PackageTypes() {
		ex.Demand[pt] = make([]int, n)
	}
	for i, node := range og.nodes {
		ex.index[node.Key()] = i
		ex.TimeWindows[i] = exportWindow(node.window(), zeroTime)
		switch {
		case node.IsDepot():
			ex.DepotIndices = append(ex.DepotIndices, i)
			ex.ServiceTimes[i] = node.Dock.ReloadTimeMin
		case node.IsDeliveryRequest():
			ex.DeliveryRequestIndices = append(ex.DeliveryRequestIndices, i)
			ex.Priorities[i] = node.Request.Priority
			ex.ServiceTimes[i] = node.Request.ServiceTimeMin
			for pt, q := range node.Request.Demand {
				if col, ok := ex.Demand[pt]; ok {
					col[i] = q
				}
			}
		}
		ex.TravelTime[i] = make([]int, n)
		ex.TravelCost[i] = make([]int, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			e, ok := og.edgeByID(int64(i), int64(j))
			if !ok {
				ex.TravelTime[i][j] = Unreachable
				ex.TravelCost[i][j] = Unreachable
				continue
			}
			ex.TravelTime[i][j] = clampUnreachable(e.TravelTime)
			ex.TravelCost[i][j] = clampUnreachable(e.TravelCost)
		}
	}
	if len(ex.DepotIndices) == 0 {
		return nil, fmt.Errorf("export graph: %w", ErrNoDepots)
	}
	return ex, nil
}

func exportWindow(tw model.TimeWindow, zero time.Time) Window {
	w := Window{Earliest: 0, Latest: Unreachable}
	if !tw.Since.IsZero() {
		w.Earliest = minutesFrom(zero, tw.Since)
	}
	if !tw.Until.IsZero() {
		w.Latest = minutesFrom(zero, tw.Until)
	}
	return w
}

// minutesFrom returns whole minutes from zero to t, rounding toward the
// earlier minute so negative offsets stay ordered.
func minutesFrom(zero, t time.Time) int {
	d := t.Sub(zero)
	m := int(d / time.Minute)
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return m
}

// Solver-side arithmetic treats anything at or above Unreachable as missing,
// so raw values that large (or negative sentinels) are folded into it.
func clampUnreachable(v int) int {
	if v < 0 || v >= Unreachable {
		return Unreachable
	}
	return v
}

// Len returns the number of exported nodes.
func (e *Export) Len() int { return len(e.Nodes) }

// NodeAt returns the node at index i.
func (e *Export) NodeAt(i int) OperationalNode { return e.Nodes[i] }

// IndexOf returns the export index of n.
func (e *Export) IndexOf(n OperationalNode) (int, bool) {
	i, ok := e.index[n.Key()]
	return i, ok
}

// DockIndex returns the export index of the dock with the given id.
func (e *Export) DockIndex(id string) (int, bool) {
	i, ok := e.index[KindDock.String()+":"+id]
	return i, ok
}

// IsDepot reports whether index i is a dock.
func (e *Export) IsDepot(i int) bool {
	return i >= 0 && i < len(e.Nodes) && e.Nodes[i].IsDepot()
}

// IsDeliveryRequest reports whether index i is a delivery request.
func (e *Export) IsDeliveryRequest(i int) bool {
	return i >= 0 && i < len(e.Nodes) && e.Nodes[i].IsDeliveryRequest()
}

// PriorityTotal sums the priorities of every delivery request.
func (e *Export) PriorityTotal() int {
	sum := 0
	for _, i := range e.DeliveryRequestIndices {
		sum += e.Priorities[i]
	}
	return sum
}

// Requests returns the delivery requests in enumeration order.
func (e *Export) Requests() []model.DeliveryRequest {
	out := make([]model.DeliveryRequest, 0, len(e.DeliveryRequestIndices))
	for _, i := range e.DeliveryRequestIndices {
		out = append(out, *e.Nodes[i].Request)
	}
	return out
}
