package opt

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dronematch/internal/graph"
	"dronematch/internal/model"
)

var zero = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func at(min int) time.Time { return zero.Add(time.Duration(min) * time.Minute) }

func window(from, to int) model.TimeWindow {
	return model.TimeWindow{Since: at(from), Until: at(to)}
}

func small(n int) map[model.PackageType]int {
	return map[model.PackageType]int{model.PackageSmall: n}
}

func vehicle(id string, capacity int) model.Vehicle {
	return model.Vehicle{
		ID:        id,
		StartDock: "dock",
		Formation: model.Formation{Name: "quad", Capacity: small(capacity)},
	}
}

// completeGraph connects one dock and the requests in both directions with
// the same travel time and cost on every arc.
func completeGraph(t *testing.T, reqs []model.DeliveryRequest, travel int) *graph.OperationalGraph {
	t.Helper()
	g := graph.New(zero)
	nodes := []graph.OperationalNode{graph.DockNode(model.Dock{ID: "dock", ReloadTimeMin: 5})}
	for _, r := range reqs {
		nodes = append(nodes, graph.RequestNode(r))
	}
	require.NoError(t, g.AddNodes(nodes...))
	for _, a := range nodes {
		for _, b := range nodes {
			if a.Equal(b) {
				continue
			}
			require.NoError(t, g.AddEdges(graph.NewEdge(a, b, travel, travel)))
		}
	}
	return g
}

// threeRequests have priorities 1..3 and non-overlapping windows in that order.
func threeRequests() []model.DeliveryRequest {
	return []model.DeliveryRequest{
		{ID: "r1", Priority: 1, TimeWindow: window(10, 30), Demand: small(1)},
		{ID: "r2", Priority: 2, TimeWindow: window(40, 60), Demand: small(1)},
		{ID: "r3", Priority: 3, TimeWindow: window(70, 90), Demand: small(1)},
	}
}

// openRequests are three identical requests without windows.
func openRequests() []model.DeliveryRequest {
	return []model.DeliveryRequest{
		{ID: "r1", Priority: 1, Demand: small(1)},
		{ID: "r2", Priority: 2, Demand: small(1)},
		{ID: "r3", Priority: 3, Demand: small(1)},
	}
}

// testConfig runs a short, purely iteration-bounded search.
func testConfig() MatchConfig {
	cfg := DefaultMatchConfig()
	cfg.SolverTimeoutMs = 0
	cfg.MaxIterations = 25
	cfg.IterationsBetweenMonitoring = 5
	return cfg
}

// randomInstance builds a reproducible instance with scattered windows,
// mixed demands and asymmetric travel.
func randomInstance(t *testing.T, requests int, seed int64) *graph.OperationalGraph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g := graph.New(zero)
	nodes := []graph.OperationalNode{graph.DockNode(model.Dock{ID: "dock", ReloadTimeMin: 3})}
	pkgs := model.PackageTypes()
	for i := 0; i < requests; i++ {
		start := rng.Intn(150)
		nodes = append(nodes, graph.RequestNode(model.DeliveryRequest{
			ID:             fmt.Sprintf("req-%02d", i),
			Priority:       1 + rng.Intn(5),
			TimeWindow:     window(start, start+20+rng.Intn(60)),
			Demand:         map[model.PackageType]int{pkgs[rng.Intn(len(pkgs))]: 1 + rng.Intn(2)},
			ServiceTimeMin: rng.Intn(3),
		}))
	}
	require.NoError(t, g.AddNodes(nodes...))
	for _, a := range nodes {
		for _, b := range nodes {
			if a.Equal(b) {
				continue
			}
			d := 4 + rng.Intn(20)
			require.NoError(t, g.AddEdges(graph.NewEdge(a, b, d*3, d)))
		}
	}
	return g
}

func randomFleet() model.FleetPool {
	capacity := map[model.PackageType]int{
		model.PackageTiny: 3, model.PackageSmall: 3, model.PackageMedium: 2, model.PackageLarge: 2,
	}
	var fleet model.FleetPool
	for i := 0; i < 3; i++ {
		fleet.Vehicles = append(fleet.Vehicles, model.Vehicle{
			ID:        fmt.Sprintf("drone-%d", i),
			StartDock: "dock",
			Formation: model.Formation{Name: "hex", Capacity: capacity},
		})
	}
	return fleet
}
