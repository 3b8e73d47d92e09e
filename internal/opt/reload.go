package opt

// ReloadDepotPair is one synthetic arrive/depart pair of a vehicle. Both
// indices lie beyond the real node range and stand in for the vehicle's dock.
type ReloadDepotPair struct {
	Vehicle int
	Slot    int
	Arrive  int
	Depart  int
}

// Reloader allocates the synthetic reload nodes of every vehicle right after
// the n real nodes: pair (v, r) is Arrive = n + 2(v*R + r), Depart = Arrive+1.
//
// Slot 0 doubles as the vehicle's start (its depart node) and end (its arrive
// node). Slots 1..R-1 are mid-route returns to the dock, so a vehicle makes at
// most R trips. With R = 0 no synthetic nodes exist and the vehicle starts
// and ends on its dock directly.
type Reloader struct {
	n          int
	perVehicle int
	pairs      [][]ReloadDepotPair
	docks      []int
	byID       map[string]int
}

// NewReloader builds every pair once. vehicleIDs and vehicleDocks are indexed
// by vehicle; vehicleDocks holds the real index of each vehicle's start dock.
func NewReloader(n int, vehicleIDs []string, vehicleDocks []int, perVehicle int) *Reloader {
	if perVehicle < 0 {
		perVehicle = 0
	}
	r := &Reloader{
		n:          n,
		perVehicle: perVehicle,
		pairs:      make([][]ReloadDepotPair, len(vehicleIDs)),
		docks:      append([]int(nil), vehicleDocks...),
		byID:       make(map[string]int, len(vehicleIDs)),
	}
	for v, id := range vehicleIDs {
		r.byID[id] = v
		r.pairs[v] = make([]ReloadDepotPair, perVehicle)
		for s := 0; s < perVehicle; s++ {
			arrive := n + 2*(v*perVehicle+s)
			r.pairs[v][s] = ReloadDepotPair{Vehicle: v, Slot: s, Arrive: arrive, Depart: arrive + 1}
		}
	}
	return r
}

// PerVehicle returns the number of pairs each vehicle owns.
func (r *Reloader) PerVehicle() int { return r.perVehicle }

// SyntheticCount returns vehicles × reload_per_vehicle × 2.
func (r *Reloader) SyntheticCount() int { return 2 * len(r.pairs) * r.perVehicle }

// Size is the total node count of the routing model.
func (r *Reloader) Size() int { return r.n + r.SyntheticCount() }

// IsReload reports whether index is a synthetic node.
func (r *Reloader) IsReload(index int) bool {
	return index >= r.n && index < r.Size()
}

// IsArrive reports whether index is the arrive node of some pair.
func (r *Reloader) IsArrive(index int) bool {
	return r.IsReload(index) && (index-r.n)%2 == 0
}

// IsDepart reports whether index is the depart node of some pair.
func (r *Reloader) IsDepart(index int) bool {
	return r.IsReload(index) && (index-r.n)%2 == 1
}

// VehicleOf returns the vehicle owning a synthetic index, or -1.
func (r *Reloader) VehicleOf(index int) int {
	if !r.IsReload(index) || r.perVehicle == 0 {
		return -1
	}
	return (index - r.n) / (2 * r.perVehicle)
}

// PairOf returns the pair a synthetic index belongs to.
func (r *Reloader) PairOf(index int) (ReloadDepotPair, bool) {
	v := r.VehicleOf(index)
	if v < 0 {
		return ReloadDepotPair{}, false
	}
	slot := ((index - r.n) / 2) % r.perVehicle
	return r.pairs[v][slot], true
}

// PairsOf returns the pairs of vehicle v in slot order.
func (r *Reloader) PairsOf(v int) []ReloadDepotPair {
	if v < 0 || v >= len(r.pairs) {
		return nil
	}
	return r.pairs[v]
}

// PairsOfVehicle looks the pairs up by vehicle id.
func (r *Reloader) PairsOfVehicle(id string) []ReloadDepotPair {
	v, ok := r.byID[id]
	if !ok {
		return nil
	}
	return r.pairs[v]
}

// Resolve maps a synthetic index to the real dock it stands in for. Real
// indices resolve to themselves.
func (r *Reloader) Resolve(index int) int {
	if v := r.VehicleOf(index); v >= 0 {
		return r.docks[v]
	}
	return index
}

// Start returns the start node of vehicle v.
func (r *Reloader) Start(v int) int {
	if r.perVehicle == 0 {
		return r.docks[v]
	}
	return r.pairs[v][0].Depart
}

// End returns the end node of vehicle v.
func (r *Reloader) End(v int) int {
	if r.perVehicle == 0 {
		return r.docks[v]
	}
	return r.pairs[v][0].Arrive
}

// Markers returns the arrive indices of the mid-route pairs of vehicle v.
// A route lists only these; each is followed implicitly by its depart node.
func (r *Reloader) Markers(v int) []int {
	if r.perVehicle <= 1 {
		return nil
	}
	out := make([]int, 0, r.perVehicle-1)
	for _, p := range r.pairs[v][1:] {
		out = append(out, p.Arrive)
	}
	return out
}
