package superludist

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/permute"
	"github.com/nindanaoto/superlu-dist/setup"
	"github.com/nindanaoto/superlu-dist/solveconfig"
	"github.com/nindanaoto/superlu-dist/solvestats"
	"github.com/nindanaoto/superlu-dist/super"
	"github.com/nindanaoto/superlu-dist/transport/onesided"
)

// multiply computes A*x for dense row-major n-by-n A against a single
// right-hand-side column x.
func multiply(a [][]float64, x []float64) []float64 {
	n := len(a)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += a[i][j] * x[j]
		}
		out[i] = sum
	}
	return out
}

func denseProduct(l, u [][]float64) [][]float64 {
	n := len(l)
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += l[i][k] * u[k][j]
			}
			a[i][j] = sum
		}
	}
	return a
}

// TestS1IdentityRightHandSideRecoversOnes is the S1 seed scenario (spec
// §8): a random unit-lower/upper-triangular pair on a single process,
// with B chosen so the exact solution is the all-ones vector.
func TestS1IdentityRightHandSideRecoversOnes(t *testing.T) {
	const n = 5
	l := setup.IdentityMatrix(n)
	u := setup.IdentityMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			l[i][j] = setup.RandomMatrix(1)[0][0] - 5
		}
		u[i][i] = setup.RandomMatrix(1)[0][0] + 1
		for j := i + 1; j < n; j++ {
			u[i][j] = setup.RandomMatrix(1)[0][0] - 5
		}
	}
	a := denseProduct(l, u)
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	b := multiply(a, ones)

	idx, err := super.New(n, setup.EqualSupernodes(n, 1))
	require.NoError(t, err)
	g, err := grid.New(1, 1, 0)
	require.NoError(t, err)
	bundle, err := setup.BuildFactors(idx, g, l, u)
	require.NoError(t, err)

	bBuf := make([]float64, n)
	copy(bBuf, b)

	info, err := Solve(context.Background(), SolveInput{
		N: n, LU: bundle, Perm: permute.Identity(n), Grid: g, Index: idx,
		B: bBuf, MLoc: n, FstRow: 0, LDB: 1, NRHS: 1,
		Config: solveconfig.Default(), Stats: solvestats.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, info)

	for i, v := range bBuf {
		assert.InDelta(t, 1.0, v, 1e-8, "x[%d]", i)
	}
}

// TestS3IdentityMatrixReturnsBUnchanged is the S3 seed scenario: L=U=I,
// so X must equal B exactly.
func TestS3IdentityMatrixReturnsBUnchanged(t *testing.T) {
	const n = 16
	l := setup.IdentityMatrix(n)
	u := setup.IdentityMatrix(n)

	idx, err := super.New(n, setup.EqualSupernodes(n, 1))
	require.NoError(t, err)
	g, err := grid.New(1, 1, 0)
	require.NoError(t, err)
	bundle, err := setup.BuildFactors(idx, g, l, u)
	require.NoError(t, err)

	b := setup.RandomMatrix(n)[0]
	bBuf := make([]float64, n)
	copy(bBuf, b)

	info, err := Solve(context.Background(), SolveInput{
		N: n, LU: bundle, Perm: permute.Identity(n), Grid: g, Index: idx,
		B: bBuf, MLoc: n, FstRow: 0, LDB: 1, NRHS: 1,
		Config: solveconfig.Default(), Stats: solvestats.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, info)

	for i := range b {
		assert.InDelta(t, b[i], bBuf[i], 1e-12, "x[%d]", i)
	}
}

// rowRangeFor splits n global rows across pr*pc ranks as evenly as the
// reference source's fstRow/m_loc row-block distribution.
func rowRangeFor(rank, pr, pc, n int) (mLoc, fstRow int) {
	procs := pr * pc
	base := n / procs
	rem := n % procs
	fstRow = rank * base
	mLoc = base
	if rank < rem {
		mLoc++
		fstRow += rank
	} else {
		fstRow += rem
	}
	return mLoc, fstRow
}

// solveMulti runs Solve concurrently across pr*pc software-emulated
// ranks sharing one onesided.Fabric (spec §4.F/§6's one-sided transport
// variant, exercised end to end rather than only via the single-process
// shortcut every other seed scenario takes), and gathers the per-rank X
// back into one dense row-major nrhs-wide matrix.
func solveMulti(t *testing.T, pr, pc, n, nrhs int, idx *super.Index, l, u [][]float64, b [][]float64) [][]float64 {
	t.Helper()
	procs := pr * pc
	fabric := onesided.NewFabric(procs)

	xGot := make([][]float64, n)
	for i := range xGot {
		xGot[i] = make([]float64, nrhs)
	}

	errs := make(chan error, procs)
	for rank := 0; rank < procs; rank++ {
		rank := rank
		go func() {
			g, err := grid.New(pr, pc, rank)
			if err != nil {
				errs <- err
				return
			}
			bundle, err := setup.BuildFactors(idx, g, l, u)
			if err != nil {
				errs <- err
				return
			}
			mLoc, fstRow := rowRangeFor(rank, pr, pc, n)
			localB := make([]float64, mLoc*nrhs)
			for i := 0; i < mLoc; i++ {
				copy(localB[i*nrhs:(i+1)*nrhs], b[fstRow+i])
			}
			tr := onesided.New(fabric, rank)
			info, err := Solve(context.Background(), SolveInput{
				N: n, LU: bundle, Perm: permute.Identity(n), Grid: g, Index: idx,
				B: localB, MLoc: mLoc, FstRow: fstRow, LDB: nrhs, NRHS: nrhs,
				Transport: tr, Config: solveconfig.Default(), Stats: solvestats.New(),
			})
			if err != nil {
				errs <- err
				return
			}
			if info != 0 {
				errs <- fmt.Errorf("rank %d: solve returned info=%d", rank, info)
				return
			}
			for i := 0; i < mLoc; i++ {
				copy(xGot[fstRow+i], localB[i*nrhs:(i+1)*nrhs])
			}
			errs <- nil
		}()
	}
	for i := 0; i < procs; i++ {
		require.NoError(t, <-errs)
	}
	return xGot
}

// residualInf returns ||A*X-B||_inf and ||A||_inf.
func residualInf(a [][]float64, x, b [][]float64) (resid, normA float64) {
	n := len(a)
	nrhs := len(b[0])
	for i := 0; i < n; i++ {
		var rowSum float64
		for k := 0; k < n; k++ {
			rowSum += math.Abs(a[i][k])
		}
		if rowSum > normA {
			normA = rowSum
		}
		for j := 0; j < nrhs; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[i][k] * x[k][j]
			}
			if d := math.Abs(sum - b[i][j]); d > resid {
				resid = d
			}
		}
	}
	return resid, normA
}

// TestS2BlockTridiagonalResidualIsTiny is the S2 seed scenario: a 10x10
// block-tridiagonal system, supernode size 2, nrhs=3, on a 2x2 grid.
func TestS2BlockTridiagonalResidualIsTiny(t *testing.T) {
	const supers, supersize, nrhs = 5, 2, 3
	n := supers * supersize
	l, u := setup.BlockTridiagonal(supers, supersize)
	a := denseProduct(l, u)

	xWant := make([][]float64, n)
	for i := range xWant {
		xWant[i] = setup.RandomMatrix(nrhs)[0]
	}
	b := make([][]float64, n)
	for i := 0; i < n; i++ {
		b[i] = make([]float64, nrhs)
		for j := 0; j < nrhs; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[i][k] * xWant[k][j]
			}
			b[i][j] = sum
		}
	}

	idx, err := super.New(n, setup.EqualSupernodes(n, supersize))
	require.NoError(t, err)

	xGot := solveMulti(t, 2, 2, n, nrhs, idx, l, u, b)
	resid, normA := residualInf(a, xGot, b)
	assert.LessOrEqual(t, resid, 1e-10*normA)
}

// TestS4SingletonSupernodesOnTwoByTwoGrid is the S4 seed scenario: every
// supernode has size 1 on a 2x2 grid, so every reduce tree this process
// roots has at most the depth-0 fan-in from its own mesh row's other
// columns — no intermediate relay hop.
func TestS4SingletonSupernodesOnTwoByTwoGrid(t *testing.T) {
	const n, nrhs = 8, 1
	l := setup.IdentityMatrix(n)
	u := setup.IdentityMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			l[i][j] = setup.RandomMatrix(1)[0][0] - 5
		}
		u[i][i] = setup.RandomMatrix(1)[0][0] + 1
		for j := i + 1; j < n; j++ {
			u[i][j] = setup.RandomMatrix(1)[0][0] - 5
		}
	}
	a := denseProduct(l, u)

	xWant := make([]float64, n)
	for i := range xWant {
		xWant[i] = 1
	}
	bFlat := multiply(a, xWant)
	b := make([][]float64, n)
	for i := range b {
		b[i] = []float64{bFlat[i]}
	}

	idx, err := super.New(n, setup.EqualSupernodes(n, 1))
	require.NoError(t, err)

	xGot := solveMulti(t, 2, 2, n, nrhs, idx, l, u, b)
	for i, row := range xGot {
		assert.InDelta(t, 1.0, row[0], 1e-8, "x[%d]", i)
	}
}

// TestS5UnbalancedFanInMergesRegardlessOfArrivalOrder is the S5 seed
// scenario: supernode n-1 depends on every earlier column (its L row is
// fully dense while every other row is the identity), forcing a maximally
// unbalanced dependency DAG whose fan-in messages the atomic fmod
// counters must merge correctly no matter which arrives first.
func TestS5UnbalancedFanInMergesRegardlessOfArrivalOrder(t *testing.T) {
	const n, nrhs = 9, 1
	l := setup.IdentityMatrix(n)
	u := setup.IdentityMatrix(n)
	for j := 0; j < n-1; j++ {
		l[n-1][j] = setup.RandomMatrix(1)[0][0] - 5
	}
	a := denseProduct(l, u)

	xWant := make([]float64, n)
	for i := range xWant {
		xWant[i] = 1
	}
	bFlat := multiply(a, xWant)
	b := make([][]float64, n)
	for i := range b {
		b[i] = []float64{bFlat[i]}
	}

	idx, err := super.New(n, setup.EqualSupernodes(n, 1))
	require.NoError(t, err)

	xGot := solveMulti(t, 2, 2, n, nrhs, idx, l, u, b)
	for i, row := range xGot {
		assert.InDelta(t, 1.0, row[0], 1e-8, "x[%d]", i)
	}
}

// TestTreeShapeParsesKaryFanout covers solveconfig.Config.TreeShape's
// documented "kary:N" format, not just the bare "flat"/"binary" literals.
func TestTreeShapeParsesKaryFanout(t *testing.T) {
	cases := []struct {
		shape     string
		wantShape int
		wantKary  int
	}{
		{"flat", 0, 0},
		{"binary", 1, 2},
		{"kary:8", 2, 8},
		{"kary:3", 2, 3},
		{"kary:notanumber", 1, 2},
		{"kary:1", 1, 2},
		{"", 1, 2},
	}
	for _, c := range cases {
		shape, kary := treeShape(solveconfig.Config{TreeShape: c.shape})
		assert.Equal(t, c.wantShape, int(shape), "shape for %q", c.shape)
		assert.Equal(t, c.wantKary, kary, "kary for %q", c.shape)
	}
}

// TestArgumentValidationReturnsInfoWithoutWork covers spec §7's
// argument-validation error kind.
func TestArgumentValidationReturnsInfoWithoutWork(t *testing.T) {
	g, err := grid.New(1, 1, 0)
	require.NoError(t, err)

	info, err := Solve(context.Background(), SolveInput{N: -1, Grid: g})
	require.NoError(t, err)
	assert.Equal(t, -1, info)

	info, err = Solve(context.Background(), SolveInput{N: 4, NRHS: -1, Grid: g})
	require.NoError(t, err)
	assert.Equal(t, -9, info)
}
