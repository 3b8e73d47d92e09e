// Package scenario decodes a self-contained match document: docks, delivery
// requests, travel edges, the fleet and an optional match config overlay.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"dronematch/internal/graph"
	"dronematch/internal/model"
	"dronematch/internal/opt"
)

// ErrInvalid wraps every structural problem found while building a scenario.
var ErrInvalid = errors.New("scenario: invalid")

// Edge is a directed travel link between two node ids.
type Edge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	TravelCost int    `json:"travelCost"`
	TravelTime int    `json:"travelTime"`
}

// Scenario is one match problem in transport form.
type Scenario struct {
	Name     string                  `json:"name,omitempty"`
	ZeroTime time.Time               `json:"zeroTime"`
	Docks    []model.Dock            `json:"docks"`
	Requests []model.DeliveryRequest `json:"requests"`
	Edges    []Edge                  `json:"edges"`
	// Symmetric adds the reverse of every edge whose reverse is not listed.
	Symmetric bool            `json:"symmetric,omitempty"`
	Fleet     model.FleetPool `json:"fleet"`
	// Config is decoded on top of the base config passed to Build, so a
	// document only lists the keys it changes.
	Config json.RawMessage `json:"config,omitempty"`
}

// Decode reads a JSON scenario. Unknown fields are rejected.
func Decode(r io.Reader) (Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("decode scenario: %w", err)
	}
	return s, nil
}

// Load reads a JSON scenario file.
func Load(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return Decode(bytes.NewReader(b))
}

// Validate checks the document without building anything.
func (s Scenario) Validate() error {
	if len(s.Docks) == 0 {
		return fmt.Errorf("%w: no docks", ErrInvalid)
	}
	seen := map[string]string{}
	for _, d := range s.Docks {
		if d.ID == "" {
			return fmt.Errorf("%w: dock without id", ErrInvalid)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalid, d.ID)
		}
		seen[d.ID] = "dock"
	}
	for _, r := range s.Requests {
		if r.ID == "" {
			return fmt.Errorf("%w: request without id", ErrInvalid)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalid, r.ID)
		}
		seen[r.ID] = "request"
		for pt, q := range r.Demand {
			if !pt.Valid() {
				return fmt.Errorf("%w: request %q: unknown package type %q", ErrInvalid, r.ID, pt)
			}
			if q < 0 {
				return fmt.Errorf("%w: request %q: negative demand", ErrInvalid, r.ID)
			}
		}
	}
	for _, v := range s.Fleet.Vehicles {
		for pt := range v.Formation.Capacity {
			if !pt.Valid() {
				return fmt.Errorf("%w: vehicle %q: unknown package type %q", ErrInvalid, v.ID, pt)
			}
		}
	}
	for i, e := range s.Edges {
		if _, ok := seen[e.From]; !ok {
			return fmt.Errorf("%w: edge %d: unknown node %q", ErrInvalid, i, e.From)
		}
		if _, ok := seen[e.To]; !ok {
			return fmt.Errorf("%w: edge %d: unknown node %q", ErrInvalid, i, e.To)
		}
		if e.TravelCost < 0 || e.TravelTime < 0 {
			return fmt.Errorf("%w: edge %d: negative travel", ErrInvalid, i)
		}
	}
	return nil
}

// Build returns the graph, fleet and effective config of the scenario. Nodes
// are added docks first, then requests, in document order.
func (s Scenario) Build(base opt.MatchConfig) (*graph.OperationalGraph, model.FleetPool, opt.MatchConfig, error) {
	cfg := base
	if err := s.Validate(); err != nil {
		return nil, model.FleetPool{}, cfg, err
	}
	if len(s.Config) > 0 && !bytes.Equal(bytes.TrimSpace(s.Config), []byte("null")) {
		if err := json.Unmarshal(s.Config, &cfg); err != nil {
			return nil, model.FleetPool{}, cfg, fmt.Errorf("%w: config: %w", ErrInvalid, err)
		}
	}
	if !s.ZeroTime.IsZero() && cfg.ZeroTime.IsZero() {
		cfg.ZeroTime = s.ZeroTime
	}
	if cfg.ZeroTime.IsZero() {
		return nil, model.FleetPool{}, cfg, fmt.Errorf("%w: %w", ErrInvalid, opt.ErrMissingZeroTime)
	}

	g := graph.New(cfg.ZeroTime)
	byID := make(map[string]graph.OperationalNode, len(s.Docks)+len(s.Requests))
	nodes := make([]graph.OperationalNode, 0, len(s.Docks)+len(s.Requests))
	for _, d := range s.Docks {
		n := graph.DockNode(d)
		byID[d.ID] = n
		nodes = append(nodes, n)
	}
	for _, r := range s.Requests {
		n := graph.RequestNode(r)
		byID[r.ID] = n
		nodes = append(nodes, n)
	}
	if err := g.AddNodes(nodes...); err != nil {
		return nil, model.FleetPool{}, cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	listed := make(map[[2]string]bool, len(s.Edges))
	for _, e := range s.Edges {
		listed[[2]string{e.From, e.To}] = true
	}
	edges := make([]graph.OperationalEdge, 0, len(s.Edges))
	for _, e := range s.Edges {
		from, to := byID[e.From], byID[e.To]
		edges = append(edges, graph.NewEdge(from, to, e.TravelCost, e.TravelTime))
		if s.Symmetric && !listed[[2]string{e.To, e.From}] {
			edges = append(edges, graph.NewEdge(to, from, e.TravelCost, e.TravelTime))
		}
	}
	if err := g.AddEdges(edges...); err != nil {
		return nil, model.FleetPool{}, cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return g, s.Fleet, cfg, nil
}
