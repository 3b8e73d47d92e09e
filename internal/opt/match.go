package opt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dronematch/internal/graph"
	"dronematch/internal/logger"
	"dronematch/internal/metrics"
	"dronematch/internal/model"
)

// Result is everything one match produces.
type Result struct {
	Board      model.DroneDeliveryBoard `json:"board"`
	Status     Status                   `json:"status"`
	Objective  int64                    `json:"objective"`
	Records    []MonitorRecord          `json:"records"`
	Stats      SearchStats              `json:"stats"`
	TimedOut   bool                     `json:"timedOut"`
	Iterations int                      `json:"iterations"`
	Elapsed    time.Duration            `json:"elapsed"`

	Solution *MatchingSolution `json:"-"`
}

type matchOptions struct {
	log      logger.Logger
	observer func(MonitorRecord)
}

// Option customizes a Match call.
type Option func(*matchOptions)

// WithLogger sets the logger used for solve lifecycle events.
func WithLogger(l logger.Logger) Option {
	return func(o *matchOptions) { o.log = l }
}

// WithObserver registers a callback receiving every monitor record. It runs
// on the solving goroutine and must not block.
func WithObserver(fn func(MonitorRecord)) Option {
	return func(o *matchOptions) { o.observer = fn }
}

// Match assigns the fleet to the delivery requests of g. Configuration
// errors are returned before any search work; an infeasible model or an
// elapsed timeout still yield a well-formed board.
func Match(ctx context.Context, g *graph.OperationalGraph, fleet model.FleetPool, cfg MatchConfig, opts ...Option) (*Result, error) {
	o := matchOptions{log: logger.NopLogger{}}
	for _, fn := range opts {
		fn(&o)
	}
	began := time.Now()

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	zero := cfg.ZeroTime
	if zero.IsZero() {
		zero = g.ZeroTime
	}
	// windows and schedules are minute offsets from zero
	if zero.IsZero() {
		return nil, fmt.Errorf("match: %w", ErrMissingZeroTime)
	}
	ex, err := g.Export(zero)
	if err != nil {
		if errors.Is(err, graph.ErrNoDepots) {
			return nil, fmt.Errorf("match: %w", ErrNoDepots)
		}
		return nil, fmt.Errorf("match: %w", err)
	}
	m, err := NewRoutingModel(ex, fleet, cfg)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	for _, sf := range m.SingleTripShortfalls() {
		o.log.Warnf("match: %s demand %d exceeds single-trip fleet capacity %d with reload_per_vehicle=%d; excess requests will be dropped",
			sf.Package, sf.Demand, sf.Capacity, cfg.ReloadPerVehicle)
	}

	mon := NewSearchMonitor(ctx, m, o.observer)
	sol := NewMatchingSolution(m)
	res := &Result{Solution: sol}
	defer func() {
		res.Elapsed = time.Since(began)
		res.Status = sol.Status()
		res.Objective = sol.Objective()
		res.Board = sol.DeliveryBoard()
		res.Records = mon.Records()
		res.Iterations = mon.Iterations()
		metrics.ObserveSolve(cfg.SolverName, res.Status.String(), res.TimedOut, res.Elapsed, len(res.Board.Dropped))
		o.log.Infof("match %s: %d routed, %d dropped, objective %d, %d iterations in %s",
			res.Status, res.Board.ServedCount(), len(res.Board.Dropped), res.Objective, res.Iterations, res.Elapsed)
	}()

	if fleet.Len() == 0 {
		o.log.Warnf("match: empty fleet, dropping all %d requests", len(ex.DeliveryRequestIndices))
		empty := &Assignment{}
		m.refresh(empty)
		sol.SetAssignment(empty)
		return res, nil
	}

	base, ok := m.emptyAssignment()
	if !ok {
		o.log.Warnf("match: mandatory routes violate dock windows or capacity, no assignment possible")
		sol.MarkInfeasible()
		return res, nil
	}
	first, err := m.firstSolution(base)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	o.log.Debugw("first solution", map[string]any{
		"strategy":  cfg.FirstSolutionStrategy,
		"objective": first.Objective,
		"dropped":   len(m.dropped(first)),
	})

	res.Stats = m.search(first, mon)
	res.TimedOut = res.Stats.TimedOut
	if res.TimedOut {
		o.log.Warnf("match: solver timeout after %d iterations (%s), using best found", res.Stats.Iterations, cfg.SolverTimeout())
	}
	if ctx.Err() != nil {
		o.log.Warnf("match: search cancelled: %v", ctx.Err())
	}
	sol.SetAssignment(mon.Best())
	return res, nil
}
