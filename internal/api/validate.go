package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"dronematch/internal/opt"
	"dronematch/internal/store"
)

// maxSolverTimeout bounds a single solve requested over HTTP.
const maxSolverTimeout = 5 * time.Minute

func validateMatchConfig(cfg *opt.MatchConfig) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.SolverTimeout() > maxSolverTimeout {
		return fmt.Errorf("%w: solver_timeout_ms must be <= %d", opt.ErrInvalidConfig, maxSolverTimeout.Milliseconds())
	}
	return nil
}

type listQuery struct {
	status string
	cursor string
	limit  int
}

func parseListQuery(q url.Values) (listQuery, error) {
	lq := listQuery{status: q.Get("status"), cursor: q.Get("cursor"), limit: 100}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return lq, fmt.Errorf("limit must be an integer in [1,500]")
		}
		lq.limit = n
	}
	switch lq.status {
	case "", store.MatchRunning, store.MatchSolved, store.MatchInfeasible, store.MatchFailed:
	default:
		return lq, fmt.Errorf("invalid status: %s", lq.status)
	}
	return lq, nil
}
