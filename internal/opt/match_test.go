package opt

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronematch/internal/graph"
	"dronematch/internal/logger"
	"dronematch/internal/model"
)

func TestMatchThreeRequestsSequencedByWindow(t *testing.T) {
	g := completeGraph(t, threeRequests(), 10)
	fleet := model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 10)}}

	res, err := Match(context.Background(), g, fleet, testConfig())
	require.NoError(t, err)
	assert.Equal(t, StatusSolved, res.Status)
	assert.Empty(t, res.Board.Dropped)
	require.Len(t, res.Board.Deliveries, 1)

	stops := res.Board.Deliveries[0].Stops
	require.Len(t, stops, 3)
	for i, want := range []string{"r1", "r2", "r3"} {
		assert.Equal(t, want, stops[i].Request.ID)
	}
	assert.Equal(t, at(10), stops[0].ScheduledAt)
	assert.Equal(t, at(40), stops[1].ScheduledAt)
	assert.Equal(t, at(70), stops[2].ScheduledAt)
	// four arcs of cost 10 plus priorities 1+2+3
	assert.EqualValues(t, 46, res.Objective)
}

func TestMatchEveryStrategyServesThreeRequests(t *testing.T) {
	for _, strategy := range []string{StrategyAutomatic, StrategyPathCheapestArc, StrategyParallelCheapestInsertion, StrategyLocalCheapestInsertion} {
		t.Run(strategy, func(t *testing.T) {
			g := completeGraph(t, threeRequests(), 10)
			cfg := testConfig()
			cfg.FirstSolutionStrategy = strategy
			cfg.MaxIterations = 3
			res, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 10)}}, cfg)
			require.NoError(t, err)
			assert.Empty(t, res.Board.Dropped)
			assert.Equal(t, 3, res.Board.ServedCount())
		})
	}
}

func TestMatchCapacityOneKeepsByPriorityDirection(t *testing.T) {
	cases := []struct {
		name string
		coef int
		keep string
	}{
		{name: "positive coefficient keeps lowest priority value", coef: 1, keep: "r1"},
		{name: "negative coefficient keeps highest priority value", coef: -1, keep: "r3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := completeGraph(t, openRequests(), 10)
			cfg := testConfig()
			cfg.Priority.PriorityCostCoefficient = tc.coef
			res, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1)}}, cfg)
			require.NoError(t, err)

			require.Equal(t, 1, res.Board.ServedCount())
			assert.Len(t, res.Board.Dropped, 2)
			assert.Equal(t, tc.keep, res.Board.Deliveries[0].Stops[0].Request.ID)
		})
	}
}

func TestMatchSingleTripShortfallDropsAndWarns(t *testing.T) {
	fleet := model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1)}}
	var buf bytes.Buffer
	res, err := Match(context.Background(), completeGraph(t, openRequests(), 10), fleet, testConfig(),
		WithLogger(logger.NewWithWriter("opt", &buf)))
	require.NoError(t, err)
	assert.Equal(t, StatusSolved, res.Status)
	assert.Equal(t, 1, res.Board.ServedCount())
	assert.Len(t, res.Board.Dropped, 2)
	assert.Contains(t, buf.String(), "single-trip fleet capacity 1")
}

func TestMatchReloadAllowsMoreTrips(t *testing.T) {
	fleet := model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1)}}

	single, err := Match(context.Background(), completeGraph(t, openRequests(), 10), fleet, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, single.Board.ServedCount())

	cfg := testConfig()
	cfg.ReloadPerVehicle = 3
	multi, err := Match(context.Background(), completeGraph(t, openRequests(), 10), fleet, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, multi.Board.ServedCount())
	assert.Empty(t, multi.Board.Dropped)

	// each trip returns to the dock and reloads for 5 minutes
	stops := multi.Board.Deliveries[0].Stops
	require.Len(t, stops, 3)
	assert.Equal(t, at(10), stops[0].ScheduledAt)
	assert.Equal(t, at(35), stops[1].ScheduledAt)
	assert.Equal(t, at(60), stops[2].ScheduledAt)
}

func TestMatchZeroPenaltyDropsEverything(t *testing.T) {
	g := completeGraph(t, threeRequests(), 10)
	cfg := testConfig()
	cfg.DroppedPenalty = 0
	res, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 10)}}, cfg)
	require.NoError(t, err)
	assert.Zero(t, res.Board.ServedCount())
	assert.Len(t, res.Board.Dropped, 3)
}

func TestMatchEmptyFleetDropsAllWithoutError(t *testing.T) {
	g := completeGraph(t, threeRequests(), 10)
	res, err := Match(context.Background(), g, model.FleetPool{}, testConfig())
	require.NoError(t, err)
	assert.Equal(t, StatusSolved, res.Status)
	assert.Empty(t, res.Board.Deliveries)
	assert.Len(t, res.Board.Dropped, 3)
	assert.EqualValues(t, 3*DefaultMatchConfig().DroppedPenalty, res.Objective)
	assert.Zero(t, res.Iterations)
}

func TestMatchInfeasibleMandatoryRoute(t *testing.T) {
	g := graph.New(zero)
	// the dock closes before the vehicle can come back from its only trip
	dock := graph.DockNode(model.Dock{ID: "dock", TimeWindow: window(-10, -5)})
	req := graph.RequestNode(model.DeliveryRequest{ID: "r1", Priority: 1, Demand: small(1)})
	require.NoError(t, g.AddNodes(dock, req))
	require.NoError(t, g.AddEdges(graph.NewEdge(dock, req, 1, 1), graph.NewEdge(req, dock, 1, 1)))
	cfg := testConfig()
	cfg.ReloadPerVehicle = 1

	res, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1)}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, res.Status)
	require.Len(t, res.Board.Deliveries, 1)
	assert.Empty(t, res.Board.Deliveries[0].Stops)
	assert.Len(t, res.Board.Dropped, 1)
}

func TestMatchUnusedReloadCostsNoTime(t *testing.T) {
	g := graph.New(zero)
	// reloading once would already overrun the dock window
	dock := graph.DockNode(model.Dock{ID: "dock", ReloadTimeMin: 40, TimeWindow: window(0, 30)})
	req := graph.RequestNode(model.DeliveryRequest{ID: "r1", Priority: 1, Demand: small(1)})
	require.NoError(t, g.AddNodes(dock, req))
	require.NoError(t, g.AddEdges(graph.NewEdge(dock, req, 10, 10), graph.NewEdge(req, dock, 10, 10)))
	cfg := testConfig()
	cfg.ReloadPerVehicle = 3

	res, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1)}}, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSolved, res.Status)
	assert.Empty(t, res.Board.Dropped)
	stops := res.Board.Deliveries[0].Stops
	require.Len(t, stops, 1)
	assert.Equal(t, at(10), stops[0].ScheduledAt)

	full := res.Solution.FullRoute(0)
	assert.LessOrEqual(t, full[len(full)-1].TimeMin, int64(30))
}

func TestMatchConfigurationErrors(t *testing.T) {
	fleet := model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1)}}

	t.Run("no depots", func(t *testing.T) {
		g := graph.New(zero)
		require.NoError(t, g.AddNodes(graph.RequestNode(model.DeliveryRequest{ID: "r1"})))
		_, err := Match(context.Background(), g, fleet, testConfig())
		assert.ErrorIs(t, err, ErrNoDepots)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
	t.Run("inverted window", func(t *testing.T) {
		reqs := openRequests()
		reqs[1].TimeWindow = window(50, 20)
		_, err := Match(context.Background(), completeGraph(t, reqs, 10), fleet, testConfig())
		assert.ErrorIs(t, err, ErrInvalidTimeWindow)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
	t.Run("unknown dock", func(t *testing.T) {
		v := vehicle("v1", 1)
		v.StartDock = "elsewhere"
		_, err := Match(context.Background(), completeGraph(t, openRequests(), 10), model.FleetPool{Vehicles: []model.Vehicle{v}}, testConfig())
		assert.ErrorIs(t, err, ErrUnknownDock)
	})
	t.Run("duplicate vehicle", func(t *testing.T) {
		dup := model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 1), vehicle("v1", 2)}}
		_, err := Match(context.Background(), completeGraph(t, openRequests(), 10), dup, testConfig())
		assert.ErrorIs(t, err, ErrDuplicateVehicle)
	})
	t.Run("negative reload", func(t *testing.T) {
		cfg := testConfig()
		cfg.ReloadPerVehicle = -1
		_, err := Match(context.Background(), completeGraph(t, openRequests(), 10), fleet, cfg)
		assert.ErrorIs(t, err, ErrNegativeReload)
	})
	t.Run("zero time unset", func(t *testing.T) {
		g := completeGraph(t, threeRequests(), 10)
		g.ZeroTime = time.Time{}
		cfg := testConfig()
		cfg.ZeroTime = time.Time{}
		_, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 3)}}, cfg)
		assert.ErrorIs(t, err, ErrMissingZeroTime)
		assert.ErrorIs(t, err, ErrConfiguration)

		// either source is enough
		cfg.ZeroTime = zero
		res, err := Match(context.Background(), g, model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 3)}}, cfg)
		require.NoError(t, err)
		assert.Empty(t, res.Board.Dropped)
	})
	t.Run("unknown strategy", func(t *testing.T) {
		cfg := testConfig()
		cfg.FirstSolutionStrategy = "savings"
		_, err := Match(context.Background(), completeGraph(t, openRequests(), 10), fleet, cfg)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})
}

func TestMatchIsDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 40
	cfg.ReloadPerVehicle = 2
	cfg.Time.MaxTotalRouteTimeMin = 120

	first, err := Match(context.Background(), randomInstance(t, 14, 7), randomFleet(), cfg)
	require.NoError(t, err)
	second, err := Match(context.Background(), randomInstance(t, 14, 7), randomFleet(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Board, second.Board)
	assert.Equal(t, first.Objective, second.Objective)
	assert.Equal(t, first.Stats.RemovalSelects, second.Stats.RemovalSelects)
}

func TestMatchSolvedBoardInvariants(t *testing.T) {
	for _, solver := range []string{SolverALNS, SolverGreedyDescent} {
		t.Run(solver, func(t *testing.T) {
			cfg := testConfig()
			cfg.SolverName = solver
			cfg.ReloadPerVehicle = 2
			cfg.Time.MaxTotalRouteTimeMin = 90
			cfg.Time.WaitingTimeAllowedMin = 20
			g := randomInstance(t, 16, 11)
			fleet := randomFleet()

			res, err := Match(context.Background(), g, fleet, cfg)
			require.NoError(t, err)
			require.Equal(t, StatusSolved, res.Status)
			sol := res.Solution
			m := sol.model

			// partition: every request is routed or dropped, exactly once
			count := map[string]int{}
			for _, d := range res.Board.Deliveries {
				for _, s := range d.Stops {
					count[s.Request.ID]++
				}
			}
			for _, r := range res.Board.Dropped {
				count[r.ID]++
			}
			require.Len(t, count, 16)
			for id, n := range count {
				assert.Equal(t, 1, n, id)
			}

			for v, veh := range fleet.Vehicles {
				full := sol.FullRoute(v)
				require.NotEmpty(t, full)
				tripStart := full[0].TimeMin
				for _, vis := range full {
					for pkg, load := range vis.Load {
						assert.LessOrEqual(t, load, int64(veh.Formation.Capacity[pkg]), "vehicle %s %s", veh.ID, pkg)
					}
					assert.LessOrEqual(t, vis.TimeMin-tripStart, int64(cfg.Time.MaxTotalRouteTimeMin))
					assert.LessOrEqual(t, vis.TimeMin, vis.TimeMax)
					if m.Reloader.IsDepart(vis.Node) {
						tripStart = vis.TimeMin
					}
				}
				for _, stop := range res.Board.Deliveries[v].Stops {
					tw := stop.Request.TimeWindow
					slack := time.Duration(cfg.Time.WaitingTimeAllowedMin) * time.Minute
					assert.False(t, stop.ScheduledAt.Before(tw.Since.Add(-slack)), stop.Request.ID)
					assert.False(t, stop.ScheduledAt.After(tw.Until), stop.Request.ID)
				}
			}
		})
	}
}

func TestMatchObserverAndRecords(t *testing.T) {
	cfg := testConfig()
	cfg.MaxIterations = 10
	cfg.IterationsBetweenMonitoring = 2
	var seen []MonitorRecord
	res, err := Match(context.Background(), completeGraph(t, threeRequests(), 10),
		model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 10)}}, cfg,
		WithObserver(func(r MonitorRecord) { seen = append(seen, r) }))
	require.NoError(t, err)

	assert.Equal(t, 10, res.Iterations)
	require.Len(t, res.Records, 5)
	assert.Equal(t, res.Records, seen)
	for i, r := range res.Records {
		assert.Equal(t, 2*(i+1), r.Iteration)
	}
	last := res.Records[len(res.Records)-1]
	assert.Equal(t, 6, last.PriorityServed)
	assert.Zero(t, last.Unmatched)
	assert.Equal(t, res.Objective, last.Objective)
}

func TestMatchStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig()
	cfg.MaxIterations = 0
	cfg.SolverTimeoutMs = 5000
	res, err := Match(ctx, completeGraph(t, threeRequests(), 10), model.FleetPool{Vehicles: []model.Vehicle{vehicle("v1", 10)}}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, StatusSolved, res.Status)
	assert.Equal(t, 3, res.Board.ServedCount())
}
