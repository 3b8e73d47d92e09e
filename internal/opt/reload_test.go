package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloaderIndexLayout(t *testing.T) {
	r := NewReloader(5, []string{"a", "b"}, []int{0, 2}, 3)

	assert.Equal(t, 12, r.SyntheticCount())
	assert.Equal(t, 17, r.Size())

	pairs := r.PairsOfVehicle("b")
	require.Len(t, pairs, 3)
	assert.Equal(t, ReloadDepotPair{Vehicle: 1, Slot: 0, Arrive: 11, Depart: 12}, pairs[0])
	assert.Equal(t, ReloadDepotPair{Vehicle: 1, Slot: 2, Arrive: 15, Depart: 16}, pairs[2])

	seen := map[int]bool{}
	for v := 0; v < 2; v++ {
		for _, p := range r.PairsOf(v) {
			for _, i := range []int{p.Arrive, p.Depart} {
				assert.False(t, seen[i], "index %d allocated twice", i)
				assert.GreaterOrEqual(t, i, 5)
				seen[i] = true
				assert.Equal(t, v, r.VehicleOf(i))
			}
			assert.True(t, r.IsArrive(p.Arrive))
			assert.True(t, r.IsDepart(p.Depart))
			got, ok := r.PairOf(p.Depart)
			require.True(t, ok)
			assert.Equal(t, p, got)
		}
	}
	assert.Len(t, seen, 12)
}

func TestReloaderResolve(t *testing.T) {
	r := NewReloader(5, []string{"a", "b"}, []int{0, 2}, 2)
	assert.Equal(t, 3, r.Resolve(3))
	assert.Equal(t, 0, r.Resolve(5))
	assert.Equal(t, 0, r.Resolve(8))
	assert.Equal(t, 2, r.Resolve(9))
	assert.Equal(t, -1, r.VehicleOf(4))
	assert.False(t, r.IsReload(13))
	assert.Nil(t, r.PairsOfVehicle("ghost"))
}

func TestReloaderStartEndAndMarkers(t *testing.T) {
	r := NewReloader(4, []string{"a"}, []int{1}, 3)
	assert.Equal(t, 5, r.Start(0))
	assert.Equal(t, 4, r.End(0))
	assert.Equal(t, []int{6, 8}, r.Markers(0))

	none := NewReloader(4, []string{"a"}, []int{1}, 0)
	assert.Equal(t, 0, none.SyntheticCount())
	assert.Equal(t, 1, none.Start(0))
	assert.Equal(t, 1, none.End(0))
	assert.Nil(t, none.Markers(0))
	assert.Equal(t, -1, none.VehicleOf(4))
}
