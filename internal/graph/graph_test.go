package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronematch/internal/model"
)

var zero = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleGraph(t *testing.T) (*OperationalGraph, OperationalNode, []OperationalNode) {
	t.Helper()
	g := New(zero)
	dock := DockNode(model.Dock{ID: "dock-1", ReloadTimeMin: 5})
	reqs := []OperationalNode{
		RequestNode(model.DeliveryRequest{ID: "r1", Priority: 1, Demand: map[model.PackageType]int{model.PackageSmall: 2},
			TimeWindow: model.TimeWindow{Since: zero.Add(10 * time.Minute), Until: zero.Add(40 * time.Minute)}}),
		RequestNode(model.DeliveryRequest{ID: "r2", Priority: 3, Demand: map[model.PackageType]int{model.PackageLarge: 1}}),
	}
	require.NoError(t, g.AddNodes(append([]OperationalNode{dock}, reqs...)...))
	require.NoError(t, g.AddEdges(
		NewEdge(dock, reqs[0], 7, 12),
		NewEdge(reqs[0], dock, 7, 12),
		NewEdge(reqs[0], reqs[1], 4, 6),
	))
	return g, dock, reqs
}

func TestAddNodesIsIdempotent(t *testing.T) {
	g, dock, reqs := sampleGraph(t)
	require.NoError(t, g.AddNodes(dock, reqs[1]))
	assert.Equal(t, 3, g.Len())

	// Equality is by identity, so a differently-populated copy is the same node.
	again := RequestNode(model.DeliveryRequest{ID: "r1", Priority: 99})
	require.NoError(t, g.AddNodes(again))
	assert.Equal(t, 3, g.Len())
	idx, ok := g.IndexOf(again)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestAddEdgesReplacesAttributes(t *testing.T) {
	g, dock, reqs := sampleGraph(t)
	require.NoError(t, g.AddEdges(NewEdge(dock, reqs[0], 70, 120)))
	e, ok := g.Edge(dock, reqs[0])
	require.True(t, ok)
	assert.Equal(t, 70, e.TravelCost)
	assert.Equal(t, 120, e.TravelTime)
	assert.Equal(t, 3, g.EdgeCount())
}

func TestAddEdgesRejectsUnknownAndSelf(t *testing.T) {
	g, dock, _ := sampleGraph(t)
	stranger := RequestNode(model.DeliveryRequest{ID: "ghost"})
	assert.ErrorIs(t, g.AddEdges(NewEdge(dock, stranger, 1, 1)), ErrUnknownNode)
	assert.ErrorIs(t, g.AddEdges(NewEdge(dock, dock, 1, 1)), ErrSelfLoop)
	assert.ErrorIs(t, g.AddNodes(OperationalNode{Kind: KindDock}), ErrInvalidNode)
}

func TestExportMatrices(t *testing.T) {
	g, _, _ := sampleGraph(t)
	ex, err := g.Export(time.Time{})
	require.NoError(t, err)

	assert.Equal(t, []int{0}, ex.DepotIndices)
	assert.Equal(t, []int{1, 2}, ex.DeliveryRequestIndices)
	assert.Equal(t, Window{Earliest: 10, Latest: 40}, ex.TimeWindows[1])
	assert.Equal(t, Window{Earliest: 0, Latest: Unreachable}, ex.TimeWindows[2])
	assert.Equal(t, []int{0, 1, 3}, ex.Priorities)
	assert.Equal(t, []int{5, 0, 0}, ex.ServiceTimes)

	assert.Equal(t, 0, ex.TravelTime[1][1])
	assert.Equal(t, 12, ex.TravelTime[0][1])
	assert.Equal(t, 6, ex.TravelTime[1][2])
	assert.Equal(t, Unreachable, ex.TravelTime[2][0])
	assert.Equal(t, Unreachable, ex.TravelCost[0][2])

	assert.Equal(t, []int{0, 2, 0}, ex.Demand[model.PackageSmall])
	assert.Equal(t, []int{0, 0, 1}, ex.Demand[model.PackageLarge])
	assert.Equal(t, 4, ex.PriorityTotal())
}

func TestExportIndexRoundTrip(t *testing.T) {
	g, _, _ := sampleGraph(t)
	ex, err := g.Export(zero)
	require.NoError(t, err)
	for i := 0; i < ex.Len(); i++ {
		j, ok := ex.IndexOf(ex.NodeAt(i))
		require.True(t, ok)
		assert.Equal(t, i, j)
		assert.True(t, ex.NodeAt(i).Equal(g.Nodes()[i]))
	}
	di, ok := ex.DockIndex("dock-1")
	require.True(t, ok)
	assert.Equal(t, 0, di)
}

func TestExportWithoutDepots(t *testing.T) {
	g := New(zero)
	require.NoError(t, g.AddNodes(RequestNode(model.DeliveryRequest{ID: "r"})))
	_, err := g.Export(zero)
	assert.ErrorIs(t, err, ErrNoDepots)
}

func TestExportNormalizesSentinels(t *testing.T) {
	g := New(zero)
	a := DockNode(model.Dock{ID: "a"})
	b := RequestNode(model.DeliveryRequest{ID: "b"})
	require.NoError(t, g.AddNodes(a, b))
	require.NoError(t, g.AddEdges(NewEdge(a, b, -1, 1<<40)))
	ex, err := g.Export(zero)
	require.NoError(t, err)
	assert.Equal(t, Unreachable, ex.TravelCost[0][1])
	assert.Equal(t, Unreachable, ex.TravelTime[0][1])
}

func TestMinutesFromRoundsDown(t *testing.T) {
	assert.Equal(t, 1, minutesFrom(zero, zero.Add(90*time.Second)))
	assert.Equal(t, -2, minutesFrom(zero, zero.Add(-90*time.Second)))
	assert.Equal(t, -1, minutesFrom(zero, zero.Add(-time.Minute)))
}
