// Package graph holds the operational graph a match is solved over: docks and
// delivery requests connected by directed edges that carry travel cost and
// travel time, plus the flat exporter used by the routing model.
package graph

import (
	"errors"
	"fmt"
	"time"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrUnknownNode is returned when an edge references a node that was never added.
	ErrUnknownNode = errors.New("graph: edge endpoint is not a graph member")
	// ErrSelfLoop is returned for edges whose endpoints are the same node.
	ErrSelfLoop = errors.New("graph: self edge")
	// ErrInvalidNode is returned for nodes whose kind and payload disagree.
	ErrInvalidNode = errors.New("graph: node has no payload for its kind")
	// ErrNoDepots is returned when exporting a graph without any dock.
	ErrNoDepots = errors.New("graph: no depots")
)

// OperationalEdge connects two nodes with travel attributes.
type OperationalEdge struct {
	From       OperationalNode
	To         OperationalNode
	TravelCost int
	TravelTime int
}

// NewEdge builds an edge between two nodes.
func NewEdge(from, to OperationalNode, travelCost, travelTime int) OperationalEdge {
	return OperationalEdge{From: from, To: to, TravelCost: travelCost, TravelTime: travelTime}
}

// storedEdge adapts an OperationalEdge to gonum's graph.Edge.
type storedEdge struct {
	OperationalEdge
	f, t simple.Node
}

func (e storedEdge) From() gonum.Node { return e.f }
func (e storedEdge) To() gonum.Node   { return e.t }
func (e storedEdge) ReversedEdge() gonum.Edge {
	r := e
	r.f, r.t = e.t, e.f
	r.OperationalEdge.From, r.OperationalEdge.To = e.OperationalEdge.To, e.OperationalEdge.From
	return r
}

// OperationalGraph owns the node and edge sets of one matching attempt.
// Nodes keep their insertion order, which is the canonical 0..N-1 indexing
// used by Export. The graph is built once and read-only while solving.
type OperationalGraph struct {
	ZeroTime time.Time

	g     *simple.DirectedGraph
	nodes []OperationalNode
	index map[string]int64
}

// New returns an empty graph anchored at zeroTime.
func New(zeroTime time.Time) *OperationalGraph {
	return &OperationalGraph{
		ZeroTime: zeroTime,
		g:        simple.NewDirectedGraph(),
		index:    map[string]int64{},
	}
}

// AddNodes adds nodes in order. Nodes already present are skipped.
func (og *OperationalGraph) AddNodes(nodes ...OperationalNode) error {
	for _, n := range nodes {
		if !n.valid() {
			return fmt.Errorf("add node %q: %w", n.Key(), ErrInvalidNode)
		}
		if _, ok := og.index[n.Key()]; ok {
			continue
		}
		id := int64(len(og.nodes))
		og.nodes = append(og.nodes, n)
		og.index[n.Key()] = id
		og.g.AddNode(simple.Node(id))
	}
	return nil
}

// AddEdges adds or replaces edges. Both endpoints must already be members.
func (og *OperationalGraph) AddEdges(edges ...OperationalEdge) error {
	for _, e := range edges {
		fid, ok := og.index[e.From.Key()]
		if !ok {
			return fmt.Errorf("add edge %s->%s: %w", e.From.Key(), e.To.Key(), ErrUnknownNode)
		}
		tid, ok := og.index[e.To.Key()]
		if !ok {
			return fmt.Errorf("add edge %s->%s: %w", e.From.Key(), e.To.Key(), ErrUnknownNode)
		}
		if fid == tid {
			return fmt.Errorf("add edge %s: %w", e.From.Key(), ErrSelfLoop)
		}
		se := storedEdge{OperationalEdge: e}
		se.OperationalEdge.From = og.nodes[fid]
		se.OperationalEdge.To = og.nodes[tid]
		se.f, se.t = simple.Node(fid), simple.Node(tid)
		og.g.SetEdge(se)
	}
	return nil
}

// Nodes returns the nodes in enumeration order.
func (og *OperationalGraph) Nodes() []OperationalNode {
	return append([]OperationalNode(nil), og.nodes...)
}

// Len returns the number of nodes.
func (og *OperationalGraph) Len() int { return len(og.nodes) }

// Has reports whether n is a member.
func (og *OperationalGraph) Has(n OperationalNode) bool {
	_, ok := og.index[n.Key()]
	return ok
}

// IndexOf returns the enumeration index of n.
func (og *OperationalGraph) IndexOf(n OperationalNode) (int, bool) {
	id, ok := og.index[n.Key()]
	return int(id), ok
}

// Edge returns the edge from -> to, if present.
func (og *OperationalGraph) Edge(from, to OperationalNode) (OperationalEdge, bool) {
	fid, ok := og.index[from.Key()]
	if !ok {
		return OperationalEdge{}, false
	}
	tid, ok := og.index[to.Key()]
	if !ok {
		return OperationalEdge{}, false
	}
	return og.edgeByID(fid, tid)
}

func (og *OperationalGraph) edgeByID(fid, tid int64) (OperationalEdge, bool) {
	e := og.g.Edge(fid, tid)
	if e == nil {
		return OperationalEdge{}, false
	}
	se, ok := e.(storedEdge)
	if !ok {
		return OperationalEdge{}, false
	}
	return se.OperationalEdge, true
}

// EdgeCount returns the number of directed edges.
func (og *OperationalGraph) EdgeCount() int {
	return og.g.Edges().Len()
}

// Depots returns the dock nodes in enumeration order.
func (og *OperationalGraph) Depots() []OperationalNode {
	var out []OperationalNode
	for _, n := range og.nodes {
		if n.IsDepot() {
			out = append(out, n)
		}
	}
	return out
}

// DeliveryRequests returns the delivery request nodes in enumeration order.
func (og *OperationalGraph) DeliveryRequests() []OperationalNode {
	var out []OperationalNode
	for _, n := range og.nodes {
		if n.IsDeliveryRequest() {
			out = append(out, n)
		}
	}
	return out
}
