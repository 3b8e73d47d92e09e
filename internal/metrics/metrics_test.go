package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSolve(t *testing.T) {
	RegisterDefault()
	RegisterDefault() // idempotent

	before := testutil.ToFloat64(Solves.WithLabelValues("solved"))
	timeouts := testutil.ToFloat64(SolveTimeouts)
	ObserveSolve("ALNS", "solved", true, 120*time.Millisecond, 2)

	assert.Equal(t, before+1, testutil.ToFloat64(Solves.WithLabelValues("solved")))
	assert.Equal(t, timeouts+1, testutil.ToFloat64(SolveTimeouts))

	mfs, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["match_solves_total"])
	assert.True(t, names["match_solve_duration_ms"])
}
