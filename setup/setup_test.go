package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/super"
)

func TestEqualSupernodesCoversWholeRange(t *testing.T) {
	assert.Equal(t, []int{0, 2, 4, 6}, EqualSupernodes(6, 2))
	assert.Equal(t, []int{0, 3, 6, 8}, EqualSupernodes(8, 3))
}

func TestBuildFactorsExtractsDiagonalInverses(t *testing.T) {
	l := IdentityMatrix(4)
	l[2][0] = 1
	l[2][1] = 1
	u := IdentityMatrix(4)
	for i := range u {
		u[i][i] = 2
	}

	idx, err := super.New(4, []int{0, 2, 4})
	require.NoError(t, err)
	g, err := grid.New(1, 1, 0)
	require.NoError(t, err)

	b, err := BuildFactors(idx, g, l, u)
	require.NoError(t, err)

	require.Contains(t, b.L, 0)
	require.Contains(t, b.U, 0)
	assert.NotEmpty(t, b.L[0].Linv)
	assert.NotEmpty(t, b.U[0].Uinv)
}

func TestBlockTridiagonalConfinesNonzerosToTheBand(t *testing.T) {
	const supers, supersize = 4, 3
	l, u := BlockTridiagonal(supers, supersize)
	n := supers * supersize

	for i := 0; i < n; i++ {
		bi := i / supersize
		for j := 0; j < n; j++ {
			bj := j / supersize
			if bj < bi-1 || bj > bi {
				assert.Zero(t, l[i][j], "L[%d][%d] outside the band", i, j)
			}
			if bj < bi || bj > bi+1 {
				assert.Zero(t, u[i][j], "U[%d][%d] outside the band", i, j)
			}
		}
		assert.Equal(t, 1.0, l[i][i])
		assert.NotZero(t, u[i][i])
	}
}

func TestRandomMatrixIsSquareAndBounded(t *testing.T) {
	m := RandomMatrix(5)
	require.Len(t, m, 5)
	for _, row := range m {
		require.Len(t, row, 5)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 10.0)
		}
	}
}
