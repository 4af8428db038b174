package redist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nindanaoto/superlu-dist/blocklayout"
	"github.com/nindanaoto/superlu-dist/commplan"
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/permute"
	"github.com/nindanaoto/superlu-dist/super"
)

func TestSingleProcessRoundTripIsIdentity(t *testing.T) {
	g, err := grid.New(1, 1, 0)
	require.NoError(t, err)
	idx, err := super.New(4, []int{0, 2, 4})
	require.NoError(t, err)
	perm := permute.Identity(4)
	const nrhs = 2

	plan, err := commplan.Build(context.Background(), nil, g, idx, perm, 4, 0, nrhs)
	require.NoError(t, err)
	xl := blocklayout.BuildX(idx, g, nrhs)

	b := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	x, recv, err := ToX(context.Background(), nil, g, idx, plan, xl, b, 4, nrhs, nrhs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, recv.procs)

	// Header words carry the owning supernode id at each block's offset.
	for k := 0; k < idx.NSupers(); k++ {
		off, ok := xl.Offset(k)
		require.True(t, ok)
		assert.Equal(t, float64(k), x[off-blocklayout.HeaderWords])
	}

	bOut, err := ToB(context.Background(), nil, plan, idx, xl, x, recv, 4, nrhs, nrhs, nil)
	require.NoError(t, err)
	assert.Equal(t, b, bOut)
}

func TestWriteRowAndReadRowRoundTrip(t *testing.T) {
	idx, err := super.New(4, []int{0, 2, 4})
	require.NoError(t, err)
	g, err := grid.New(1, 1, 0)
	require.NoError(t, err)
	xl := blocklayout.BuildX(idx, g, 2)
	x := xl.NewBuffer()

	writeRow(x, xl, idx, 3, []float64{9, 10})
	got := make([]float64, 2)
	readRow(x, xl, idx, 3, got)
	assert.Equal(t, []float64{9, 10}, got)
}
