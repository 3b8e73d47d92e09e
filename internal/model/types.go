package model

import "time"

// Core domain types shared by the graph, the matcher and the service.

// PackageType classifies a parcel by the compartment it needs on a drone.
type PackageType string

const (
	PackageTiny   PackageType = "tiny"
	PackageSmall  PackageType = "small"
	PackageMedium PackageType = "medium"
	PackageLarge  PackageType = "large"
)

// PackageTypes returns every package type in a stable order. Exported demand
// vectors and capacity dimensions are indexed in this order.
func PackageTypes() []PackageType {
	return []PackageType{PackageTiny, PackageSmall, PackageMedium, PackageLarge}
}

// Valid reports whether p is a known package type.
func (p PackageType) Valid() bool {
	for _, t := range PackageTypes() {
		if t == p {
			return true
		}
	}
	return false
}

// TimeWindow bounds when a node may be visited. A zero Since or Until means
// the bound is open.
type TimeWindow struct {
	Since time.Time `json:"since" yaml:"since"`
	Until time.Time `json:"until" yaml:"until"`
}

// DeliveryRequest is a job that must be served by some vehicle or dropped.
type DeliveryRequest struct {
	ID             string              `json:"id" yaml:"id"`
	Priority       int                 `json:"priority" yaml:"priority"`
	TimeWindow     TimeWindow          `json:"timeWindow" yaml:"timeWindow"`
	Demand         map[PackageType]int `json:"demand,omitempty" yaml:"demand,omitempty"`
	ServiceTimeMin int                 `json:"serviceTimeMin,omitempty" yaml:"serviceTimeMin,omitempty"`
}

// Dock is a loading station where drone formations start, end and reload.
type Dock struct {
	ID            string     `json:"id" yaml:"id"`
	TimeWindow    TimeWindow `json:"timeWindow" yaml:"timeWindow"`
	ReloadTimeMin int        `json:"reloadTimeMin,omitempty" yaml:"reloadTimeMin,omitempty"`
}

// Formation is a drone archetype with a fixed capacity per package type.
type Formation struct {
	Name     string              `json:"name" yaml:"name"`
	Capacity map[PackageType]int `json:"capacity" yaml:"capacity"`
}

// Vehicle is one routable drone formation.
type Vehicle struct {
	ID        string    `json:"id" yaml:"id"`
	Formation Formation `json:"formation" yaml:"formation"`
	StartDock string    `json:"startDock" yaml:"startDock"`
	// CommittedLoad is payload already on board before the solve starts.
	CommittedLoad map[PackageType]int `json:"committedLoad,omitempty" yaml:"committedLoad,omitempty"`
}

// FleetPool is the ordered set of vehicles available to one solve; it is the
// empty board the matcher fills in.
type FleetPool struct {
	Vehicles []Vehicle `json:"vehicles" yaml:"vehicles"`
}

// Len returns the number of vehicles in the pool.
func (f FleetPool) Len() int { return len(f.Vehicles) }

// ScheduledDelivery is a request placed on a route at a concrete time.
type ScheduledDelivery struct {
	Request     DeliveryRequest `json:"request" yaml:"request"`
	ScheduledAt time.Time       `json:"scheduledAt" yaml:"scheduledAt"`
}

// VehicleDelivery is the ordered list of deliveries assigned to one vehicle.
type VehicleDelivery struct {
	VehicleID string              `json:"vehicleId" yaml:"vehicleId"`
	Formation Formation           `json:"formation" yaml:"formation"`
	Stops     []ScheduledDelivery `json:"stops" yaml:"stops"`
}

// DroneDeliveryBoard is the externally consumed result of a match.
type DroneDeliveryBoard struct {
	Deliveries []VehicleDelivery `json:"deliveries" yaml:"deliveries"`
	Dropped    []DeliveryRequest `json:"dropped" yaml:"dropped"`
}

// EmptyBoard returns a board with every vehicle on an empty route and the
// given requests dropped.
func EmptyBoard(fleet FleetPool, dropped []DeliveryRequest) DroneDeliveryBoard {
	out := DroneDeliveryBoard{Deliveries: make([]VehicleDelivery, 0, fleet.Len()), Dropped: dropped}
	for _, v := range fleet.Vehicles {
		out.Deliveries = append(out.Deliveries, VehicleDelivery{VehicleID: v.ID, Formation: v.Formation, Stops: []ScheduledDelivery{}})
	}
	if out.Dropped == nil {
		out.Dropped = []DeliveryRequest{}
	}
	return out
}

// ServedCount returns the number of requests routed on the board.
func (b DroneDeliveryBoard) ServedCount() int {
	n := 0
	for _, d := range b.Deliveries {
		n += len(d.Stops)
	}
	return n
}

// ServedPriority sums the priority of every routed request.
func (b DroneDeliveryBoard) ServedPriority() int {
	sum := 0
	for _, d := range b.Deliveries {
		for _, s := range d.Stops {
			sum += s.Request.Priority
		}
	}
	return sum
}
