package opt

import (
	"fmt"

	"dronematch/internal/graph"
	"dronematch/internal/model"
)

// Mandatory is the penalty reported for nodes that may not be dropped.
const Mandatory int64 = -1

// RoutingModel is the node/arc/dimension model of one solve over the real
// nodes of an export plus the synthetic reload nodes of every vehicle. It is
// read-only once built and must not be shared between concurrent solves.
type RoutingModel struct {
	Export   *graph.Export
	Fleet    model.FleetPool
	Config   MatchConfig
	Reloader *Reloader

	arcCost   Evaluator
	dims      []*Dimension
	timeDim   int
	prioDim   int
	penalties []int64
	service   []int64
	docks     []int
}

// NewRoutingModel validates the inputs and attaches the cost evaluator, the
// time, capacity and priority dimensions and one single-node disjunction per
// delivery request.
func NewRoutingModel(ex *graph.Export, fleet model.FleetPool, cfg MatchConfig) (*RoutingModel, error) {
	for _, i := range ex.DeliveryRequestIndices {
		if !ex.TimeWindows[i].Feasible() {
			return nil, fmt.Errorf("build routing model: request %q: %w", ex.NodeAt(i).ID(), ErrInvalidTimeWindow)
		}
	}
	if cfg.ReloadPerVehicle < 0 {
		return nil, fmt.Errorf("build routing model: %w", ErrNegativeReload)
	}

	ids := make([]string, 0, fleet.Len())
	docks := make([]int, 0, fleet.Len())
	seen := make(map[string]bool, fleet.Len())
	for _, v := range fleet.Vehicles {
		if seen[v.ID] {
			return nil, fmt.Errorf("build routing model: vehicle %q: %w", v.ID, ErrDuplicateVehicle)
		}
		seen[v.ID] = true
		dock := ex.DepotIndices[0]
		if v.StartDock != "" {
			i, ok := ex.DockIndex(v.StartDock)
			if !ok {
				return nil, fmt.Errorf("build routing model: vehicle %q dock %q: %w", v.ID, v.StartDock, ErrUnknownDock)
			}
			dock = i
		}
		ids = append(ids, v.ID)
		docks = append(docks, dock)
	}

	r := NewReloader(ex.Len(), ids, docks, cfg.ReloadPerVehicle)
	m := &RoutingModel{
		Export:   ex,
		Fleet:    fleet,
		Config:   cfg,
		Reloader: r,
		docks:    docks,
	}
	m.buildNodes()
	m.arcCost = ArcCostEvaluator{cost: ex.TravelCost, reload: r}
	m.addTimeDimension()
	m.addCapacityDimensions()
	m.addPriorityDimension()
	return m, nil
}

func (m *RoutingModel) buildNodes() {
	ex, r := m.Export, m.Reloader
	size := r.Size()
	m.service = make([]int64, size)
	m.penalties = make([]int64, size)
	for i := 0; i < size; i++ {
		m.penalties[i] = Mandatory
		switch {
		case r.IsArrive(i):
			m.service[i] = int64(ex.ServiceTimes[r.Resolve(i)])
		case ex.IsDeliveryRequest(i):
			m.service[i] = int64(ex.ServiceTimes[i])
			m.penalties[i] = int64(m.Config.DroppedPenalty)
		}
	}
}

func (m *RoutingModel) addTimeDimension() {
	ex, r := m.Export, m.Reloader
	windows := make([]graph.Window, r.Size())
	for i := range windows {
		windows[i] = ex.TimeWindows[r.Resolve(i)]
	}
	start := make([]int64, len(m.docks))
	for v, d := range m.docks {
		if !m.Config.Time.CountTimeFromZero {
			start[v] = int64(ex.TimeWindows[d].Earliest)
		}
	}
	m.timeDim = len(m.dims)
	m.dims = append(m.dims, &Dimension{
		Name:     DimensionTime,
		Transit:  TransitTimeEvaluator{travel: ex.TravelTime, service: m.service, reload: r},
		Start:    start,
		Windows:  windows,
		SlackMax: int64(m.Config.Time.WaitingTimeAllowedMin),
		SpanMax:  int64(m.Config.Time.MaxTotalRouteTimeMin),
	})
}

func (m *RoutingModel) addCapacityDimensions() {
	for _, pkg := range model.PackageTypes() {
		capacity := make([]int64, m.Fleet.Len())
		floor := make([]int64, m.Fleet.Len())
		for v, veh := range m.Fleet.Vehicles {
			capacity[v] = int64(veh.Formation.Capacity[pkg])
			if !m.Config.CapacityCountFromZero {
				floor[v] = int64(veh.CommittedLoad[pkg])
			}
		}
		m.dims = append(m.dims, &Dimension{
			Name:          CapacityDimensionName(string(pkg)),
			Transit:       DemandEvaluator{demand: m.Export.Demand[pkg], reload: m.Reloader},
			Start:         floor,
			Capacity:      capacity,
			ResetOnDepart: true,
		})
	}
}

func (m *RoutingModel) addPriorityDimension() {
	ex := m.Export
	start := make([]int64, len(m.docks))
	for v, d := range m.docks {
		if !m.Config.Priority.CountPriorityFromZero {
			start[v] = int64(ex.Priorities[d])
		}
	}
	m.prioDim = len(m.dims)
	m.dims = append(m.dims, &Dimension{
		Name: DimensionPriority,
		Transit: PriorityEvaluator{
			priorities:  ex.Priorities,
			coefficient: int64(m.Config.Priority.PriorityCostCoefficient),
			reload:      m.Reloader,
		},
		Start: start,
	})
}

// Shortfall is demand of one package type that a single trip per vehicle
// cannot carry.
type Shortfall struct {
	Package  model.PackageType
	Demand   int64
	Capacity int64
}

// SingleTripShortfalls lists the package types whose total request demand
// exceeds what the fleet carries in one trip. Requests are optional, so a
// shortfall is not an error: the excess is dropped at DroppedPenalty each.
// The list is empty once mid-route reloads are enabled.
func (m *RoutingModel) SingleTripShortfalls() []Shortfall {
	if m.Reloader.PerVehicle() > 1 {
		return nil
	}
	var out []Shortfall
	for _, pkg := range model.PackageTypes() {
		var demand, capacity int64
		for _, i := range m.Export.DeliveryRequestIndices {
			demand += int64(m.Export.Demand[pkg][i])
		}
		for _, veh := range m.Fleet.Vehicles {
			c := int64(veh.Formation.Capacity[pkg])
			if !m.Config.CapacityCountFromZero {
				c -= int64(veh.CommittedLoad[pkg])
			}
			if c > 0 {
				capacity += c
			}
		}
		if demand > capacity {
			out = append(out, Shortfall{Package: pkg, Demand: demand, Capacity: capacity})
		}
	}
	return out
}

// Size returns the number of model nodes, real and synthetic.
func (m *RoutingModel) Size() int { return m.Reloader.Size() }

// Vehicles returns the number of vehicles.
func (m *RoutingModel) Vehicles() int { return len(m.docks) }

// Start returns the start node of vehicle v.
func (m *RoutingModel) Start(v int) int { return m.Reloader.Start(v) }

// End returns the end node of vehicle v.
func (m *RoutingModel) End(v int) int { return m.Reloader.End(v) }

// Dimensions returns the dimensions in registration order: time, one
// capacity dimension per package type, priority.
func (m *RoutingModel) Dimensions() []*Dimension { return m.dims }

// Dimension looks a dimension up by name.
func (m *RoutingModel) Dimension(name string) (*Dimension, bool) {
	for _, d := range m.dims {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// ArcCost returns the objective evaluator.
func (m *RoutingModel) ArcCost() Evaluator { return m.arcCost }

// Penalty returns the drop penalty of a node, or Mandatory.
func (m *RoutingModel) Penalty(i int) int64 { return m.penalties[i] }

// Optional reports whether node i sits in a disjunction.
func (m *RoutingModel) Optional(i int) bool { return m.penalties[i] != Mandatory }

// Requests returns the optional nodes in ascending index order.
func (m *RoutingModel) Requests() []int { return m.Export.DeliveryRequestIndices }

// expand turns a plan's visits into the full node sequence of vehicle v:
// start, visits with each reload arrive followed by its depart, end.
func (m *RoutingModel) expand(v int, visits []int) []int {
	seq := make([]int, 0, len(visits)*2+2)
	seq = append(seq, m.Start(v))
	for _, n := range visits {
		seq = append(seq, n)
		if m.Reloader.IsArrive(n) {
			seq = append(seq, n+1)
		}
	}
	return append(seq, m.End(v))
}

// routeEval is the outcome of walking one vehicle's route.
type routeEval struct {
	arcCost  int64
	prioCost int64
	seq      []int
	// cumuls[k][d] is the cumul of dimension d at seq[k]; only kept when
	// walking for extraction.
	cumuls [][]int64
}

func (e routeEval) cost() int64 { return e.arcCost + e.prioCost }

// walk evaluates the route of vehicle v. It fails on the first unreachable
// arc or violated dimension bound.
func (m *RoutingModel) walk(v int, visits []int, keep bool) (routeEval, bool) {
	seq := m.expand(v, visits)
	out := routeEval{seq: seq}
	cum := make([]int64, len(m.dims))
	trip := make([]int64, len(m.dims))
	for d, dim := range m.dims {
		cum[d] = dim.Start[v]
		trip[d] = cum[d]
	}
	if keep {
		out.cumuls = make([][]int64, 0, len(seq))
		out.cumuls = append(out.cumuls, append([]int64(nil), cum...))
	}
	for k := 1; k < len(seq); k++ {
		from, to := seq[k-1], seq[k]
		if !reachable(m.Export, m.Reloader, from, to) {
			return out, false
		}
		out.arcCost += m.arcCost.Evaluate(from, to)
		for d, dim := range m.dims {
			next, ok := dim.step(v, cum[d], trip[d], m.transit(d, seq, k), to)
			if !ok {
				return out, false
			}
			cum[d] = next
		}
		if m.Reloader.IsDepart(to) {
			for d, dim := range m.dims {
				if dim.ResetOnDepart {
					cum[d] = dim.Start[v]
				}
				trip[d] = cum[d]
			}
		}
		if keep {
			out.cumuls = append(out.cumuls, append([]int64(nil), cum...))
		}
	}
	out.prioCost = cum[m.prioDim] - m.dims[m.prioDim].Start[v]
	return out, true
}

// transit is the value dimension d accumulates from seq[k-1] to seq[k]. A
// reload pair entered straight from a depart node closes an empty trip: the
// drone never left the dock, so no reload time is spent.
func (m *RoutingModel) transit(d int, seq []int, k int) int64 {
	from := seq[k-1]
	t := m.dims[d].Transit.Evaluate(from, seq[k])
	if d == m.timeDim && k >= 2 && m.Reloader.IsArrive(from) && m.Reloader.IsDepart(seq[k-2]) {
		t -= m.service[from]
	}
	return t
}

// planCost returns the arc plus priority cost of a route, and whether the
// route is feasible.
func (m *RoutingModel) planCost(v int, visits []int) (int64, bool) {
	e, ok := m.walk(v, visits, false)
	if !ok {
		return 0, false
	}
	return e.cost(), true
}

// latestTimes returns the latest feasible time cumul at every position of a
// walked route, given its earliest schedule.
func (m *RoutingModel) latestTimes(v int, e routeEval) []int64 {
	dim := m.dims[m.timeDim]
	n := len(e.seq)
	upper := make([]int64, n)
	upper[0] = e.cumuls[0][m.timeDim]
	tripStart := upper[0]
	for k := 1; k < n; k++ {
		to := e.seq[k]
		u := upper[k-1] + m.transit(m.timeDim, e.seq, k) + dim.SlackMax
		if l := int64(dim.Windows[to].Latest); u > l {
			u = l
		}
		if dim.SpanMax > 0 && u > tripStart+dim.SpanMax {
			u = tripStart + dim.SpanMax
		}
		upper[k] = u
		if m.Reloader.IsDepart(to) {
			tripStart = e.cumuls[k][m.timeDim]
		}
	}
	for k := n - 2; k >= 0; k-- {
		b := upper[k+1] - m.transit(m.timeDim, e.seq, k+1)
		if b < upper[k] {
			upper[k] = b
		}
	}
	for k := range upper {
		if lo := e.cumuls[k][m.timeDim]; upper[k] < lo {
			upper[k] = lo
		}
	}
	return upper
}
