// Package setup builds small test fixtures for the solve engines: dense
// L/U factors cut into supernodes and distributed across a process
// grid, plus the random/identity matrix generators used to seed them.
// Building a real distributed factorization is out of scope for this
// module (spec §1); this package only arranges already-known dense L/U
// values into the Bundle/Index shapes the solver consumes, grounded on
// the teacher's generateRandomMatrix/generateIdentityMatrix/printMatrix
// helpers (adapted from whole-matrix to per-supernode block extraction).
package setup

import (
	"fmt"
	"math/rand"

	"github.com/nindanaoto/superlu-dist/blockops"
	"github.com/nindanaoto/superlu-dist/factor"
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/super"
)

// RandomMatrix returns an n-by-n dense matrix of uniform [0,10) values.
func RandomMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = rand.Float64() * 10
		}
	}
	return m
}

// IdentityMatrix returns the n-by-n identity matrix.
func IdentityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

// PrintMatrix writes m to stdout in a fixed-width grid, for interactive
// debugging of small test fixtures.
func PrintMatrix(m [][]float64) {
	for range m {
		fmt.Printf("---------")
	}
	fmt.Println()
	for _, row := range m {
		fmt.Printf("|")
		for i, v := range row {
			if i+1 < len(row) {
				fmt.Printf("%7.3f, ", v)
			} else {
				fmt.Printf("%7.3f", v)
			}
		}
		fmt.Println("|")
	}
}

// EqualSupernodes returns the first-row boundaries for n columns cut
// into supernodes of size sz (the last one truncated if it does not
// divide evenly).
func EqualSupernodes(n, sz int) []int {
	var bounds []int
	for b := 0; b < n; b += sz {
		bounds = append(bounds, b)
	}
	return append(bounds, n)
}

// BlockTridiagonal returns a random unit-lower L and upper U, each
// n-by-n with n = supers*supersize, whose nonzero pattern is confined to
// the block diagonal plus one block sub/super-diagonal: L's nonzero
// blocks are (k,k) and (k,k-1), U's are (k,k) and (k,k+1). This is the
// LU factorization fill pattern of a block-tridiagonal matrix (banded
// elimination introduces no fill beyond the existing band), used to
// build the block-tridiagonal seed system without needing an actual
// factorization routine.
func BlockTridiagonal(supers, supersize int) (l, u [][]float64) {
	n := supers * supersize
	l = IdentityMatrix(n)
	u = IdentityMatrix(n)
	for k := 0; k < supers; k++ {
		rs, re := k*supersize, (k+1)*supersize
		for i := rs; i < re; i++ {
			u[i][i] = rand.Float64()*4 + 1 // keep the diagonal well away from singular
			for j := i + 1; j < re; j++ {
				u[i][j] = rand.Float64()*2 - 1
			}
			for j := rs; j < i; j++ {
				l[i][j] = rand.Float64()*2 - 1
			}
		}
		if k+1 < supers {
			nrs, nre := re, (k+2)*supersize
			for i := rs; i < re; i++ {
				for j := nrs; j < nre; j++ {
					u[i][j] = rand.Float64()*2 - 1
				}
			}
		}
		if k > 0 {
			prs := (k - 1) * supersize
			for i := rs; i < re; i++ {
				for j := prs; j < prs+supersize; j++ {
					l[i][j] = rand.Float64()*2 - 1
				}
			}
		}
	}
	return l, u
}

// BuildFactors slices dense unit-lower L and upper U matrices into the
// supernode-blocked, grid-distributed factor.Bundle this process owns,
// computing Linv/Uinv for every diagonal block it holds.
func BuildFactors(idx *super.Index, g *grid.Grid, l, u [][]float64) (*factor.Bundle, error) {
	b := factor.New()

	for j := 0; j < idx.NSupers(); j++ {
		if g.ColOwner(j) != g.MyCol() {
			continue
		}
		var rows []int
		for i := j; i < idx.NSupers(); i++ {
			if g.RowOwner(i) != g.MyRow() {
				continue
			}
			if !blockNonzero(l, idx.FirstRow(i), idx.SuperSize(i), idx.FirstRow(j), idx.SuperSize(j)) && i != j {
				continue
			}
			rows = append(rows, i)
		}
		if len(rows) == 0 {
			continue
		}
		vals := make([][]float64, len(rows))
		for k, i := range rows {
			vals[k] = extractBlock(l, idx.FirstRow(i), idx.SuperSize(i), idx.FirstRow(j), idx.SuperSize(j))
		}
		lp := &factor.LPanel{Col: j, BlockRows: rows, Vals: vals}
		if rows[0] == j {
			inv, err := blockops.InvertLowerUnit(vals[0], idx.SuperSize(j))
			if err != nil {
				return nil, fmt.Errorf("setup: inverting L(%d,%d): %w", j, j, err)
			}
			lp.Linv = inv
		}
		b.L[idx.LBj(j, g)] = lp
	}

	for i := 0; i < idx.NSupers(); i++ {
		if g.RowOwner(i) != g.MyRow() {
			continue
		}
		var cols []int
		for j := i; j < idx.NSupers(); j++ {
			if g.ColOwner(j) != g.MyCol() {
				continue
			}
			if !blockNonzero(u, idx.FirstRow(i), idx.SuperSize(i), idx.FirstRow(j), idx.SuperSize(j)) && i != j {
				continue
			}
			cols = append(cols, j)
		}
		if len(cols) == 0 {
			continue
		}
		vals := make([][]float64, len(cols))
		for k, j := range cols {
			vals[k] = extractBlock(u, idx.FirstRow(i), idx.SuperSize(i), idx.FirstRow(j), idx.SuperSize(j))
		}
		up := &factor.UPanel{Row: i, BlockCols: cols, Vals: vals}
		if cols[0] == i {
			inv, err := blockops.InvertUpper(vals[0], idx.SuperSize(i))
			if err != nil {
				return nil, fmt.Errorf("setup: inverting U(%d,%d): %w", i, i, err)
			}
			up.Uinv = inv
		}
		b.U[idx.LBi(i, g)] = up
	}

	return b, nil
}

func extractBlock(m [][]float64, rowStart, rows, colStart, cols int) []float64 {
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = m[rowStart+r][colStart+c]
		}
	}
	return out
}

func blockNonzero(m [][]float64, rowStart, rows, colStart, cols int) bool {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if m[rowStart+r][colStart+c] != 0 {
				return true
			}
		}
	}
	return false
}
