package store

import (
	"context"
	"errors"
	"time"

	"dronematch/internal/model"
	"dronematch/internal/opt"
)

// Match lifecycle states. Solved and infeasible mirror opt.Status.
const (
	MatchRunning    = "running"
	MatchSolved     = "solved"
	MatchInfeasible = "infeasible"
	MatchFailed     = "failed"
)

// Match is a persisted match attempt and, once finished, its result.
type Match struct {
	ID         string                    `json:"id"`
	Name       string                    `json:"name,omitempty"`
	Status     string                    `json:"status"`
	Objective  int64                     `json:"objective"`
	Board      *model.DroneDeliveryBoard `json:"board,omitempty"`
	Stats      *opt.SearchStats          `json:"stats,omitempty"`
	Iterations int                       `json:"iterations"`
	TimedOut   bool                      `json:"timedOut"`
	ElapsedMs  int64                     `json:"elapsedMs"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"createdAt"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
}

// Finished reports whether the match reached a terminal state.
func (m Match) Finished() bool { return m.Status != MatchRunning }

// Complete copies a solver result into m.
func (m *Match) Complete(res *opt.Result) {
	board := res.Board
	stats := res.Stats
	m.Status = res.Status.String()
	m.Objective = res.Objective
	m.Board = &board
	m.Stats = &stats
	m.Iterations = res.Iterations
	m.TimedOut = res.TimedOut
	m.ElapsedMs = res.Elapsed.Milliseconds()
	m.Error = ""
}

// Fail marks m as failed with err.
func (m *Match) Fail(err error) {
	m.Status = MatchFailed
	m.Error = err.Error()
}

// Store is the persistence interface used by the API server.
type Store interface {
	// Matches
	CreateMatch(ctx context.Context, m Match) (Match, error)
	UpdateMatch(ctx context.Context, m Match) error
	GetMatch(ctx context.Context, id string) (Match, error)
	ListMatches(ctx context.Context, status, cursor string, limit int) ([]Match, string, error)

	// Monitor series
	AppendMonitorRecords(ctx context.Context, matchID string, recs []opt.MonitorRecord) error
	ListMonitorRecords(ctx context.Context, matchID string) ([]opt.MonitorRecord, error)

	// Default match config; nil when never saved
	GetMatchConfig(ctx context.Context) (*opt.MatchConfig, error)
	SaveMatchConfig(ctx context.Context, cfg opt.MatchConfig) error
}

var ErrNotFound = errors.New("not found")
