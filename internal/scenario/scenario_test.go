package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronematch/internal/graph"
	"dronematch/internal/model"
	"dronematch/internal/opt"
)

func TestLoadAndBuildThreeRequests(t *testing.T) {
	s, err := Load("testdata/three_requests.json")
	require.NoError(t, err)
	assert.Equal(t, "three-requests", s.Name)

	g, fleet, cfg, err := s.Build(opt.DefaultMatchConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
	// six listed edges plus their reverses
	assert.Equal(t, 12, g.EdgeCount())
	assert.Equal(t, 1, fleet.Len())
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.Equal(t, 0, cfg.SolverTimeoutMs)
	assert.Equal(t, 5, cfg.IterationsBetweenMonitoring)
	// untouched keys keep the base value
	assert.Equal(t, 10000, cfg.DroppedPenalty)
	assert.Equal(t, s.ZeroTime, cfg.ZeroTime)

	back, ok := g.Edge(g.Nodes()[3], g.Nodes()[0])
	require.True(t, ok)
	assert.Equal(t, 14, back.TravelTime)
}

func TestBuiltScenarioMatchesEndToEnd(t *testing.T) {
	s, err := Load("testdata/three_requests.json")
	require.NoError(t, err)
	g, fleet, cfg, err := s.Build(opt.DefaultMatchConfig())
	require.NoError(t, err)

	res, err := opt.Match(context.Background(), g, fleet, cfg)
	require.NoError(t, err)
	require.Equal(t, opt.StatusSolved, res.Status)
	require.Empty(t, res.Board.Dropped)
	stops := res.Board.Deliveries[0].Stops
	require.Len(t, stops, 3)
	for i, want := range []string{"r1", "r2", "r3"} {
		assert.Equal(t, want, stops[i].Request.ID)
	}
	assert.Equal(t, s.ZeroTime.Add(10*time.Minute), stops[0].ScheduledAt)
	assert.Equal(t, s.ZeroTime.Add(40*time.Minute), stops[1].ScheduledAt)
	assert.Equal(t, s.ZeroTime.Add(70*time.Minute), stops[2].ScheduledAt)
	// arcs 10+5+6+14 plus served priority 1+2+3
	assert.EqualValues(t, 41, res.Objective)
	assert.Len(t, res.Records, 4)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"docks":[],"bogus":1}`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Scenario {
		s, err := Decode(strings.NewReader(`{
			"docks":[{"id":"dock"}],
			"requests":[{"id":"r1","priority":1,"demand":{"tiny":1}}],
			"edges":[{"from":"dock","to":"r1","travelCost":1,"travelTime":1}],
			"fleet":{"vehicles":[{"id":"v","startDock":"dock","formation":{"name":"f","capacity":{"tiny":1}}}]}
		}`))
		require.NoError(t, err)
		return s
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Scenario){
		"no docks":         func(s *Scenario) { s.Docks = nil },
		"duplicate id":     func(s *Scenario) { s.Requests[0].ID = "dock" },
		"unknown endpoint": func(s *Scenario) { s.Edges[0].To = "nowhere" },
		"negative travel":  func(s *Scenario) { s.Edges[0].TravelTime = -1 },
		"bad package": func(s *Scenario) {
			s.Fleet.Vehicles[0].Formation.Capacity = map[model.PackageType]int{"huge": 1}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := base()
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalid)
		})
	}
}

func TestBuildRejectsSelfEdgeAndBadConfig(t *testing.T) {
	s, err := Decode(strings.NewReader(`{
		"zeroTime":"2024-05-01T08:00:00Z",
		"docks":[{"id":"dock"}],
		"edges":[{"from":"dock","to":"dock","travelCost":1,"travelTime":1}],
		"fleet":{"vehicles":[]}
	}`))
	require.NoError(t, err)
	_, _, _, err = s.Build(opt.DefaultMatchConfig())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, graph.ErrSelfLoop)

	s.Edges = nil
	s.Config = []byte(`{"max_iterations":"many"}`)
	_, _, _, err = s.Build(opt.DefaultMatchConfig())
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBuildRequiresZeroTime(t *testing.T) {
	s, err := Load("testdata/three_requests.json")
	require.NoError(t, err)
	s.ZeroTime = time.Time{}

	_, _, _, err = s.Build(opt.DefaultMatchConfig())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, opt.ErrMissingZeroTime)

	// a zero time from the config overlay is enough
	base := opt.DefaultMatchConfig()
	base.ZeroTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	g, _, cfg, err := s.Build(base)
	require.NoError(t, err)
	assert.Equal(t, base.ZeroTime, cfg.ZeroTime)
	assert.Equal(t, base.ZeroTime, g.ZeroTime)
}
