// Package super maps global supernode ids to local block indices and
// exposes the size/ownership bookkeeping the rest of the solver needs.
// It is the Go counterpart of the reference source's xsup/supno arrays
// and the BlockNum/SuperSize/LBi/LBj/FstBlockC macros built on them.
package super

import (
	"fmt"

	"github.com/nindanaoto/superlu-dist/grid"
)

// Index is the read-only supernode partition of an n-by-n matrix.
type Index struct {
	// Xsup[k] is the global row number of the first row of supernode k;
	// Xsup has NSupers()+1 entries, with Xsup[NSupers()] == n.
	Xsup []int
	// Supno[row] is the supernode id owning global row `row`.
	Supno []int
}

// New builds an Index from the first-row boundaries of each supernode.
// firstRows must be strictly increasing and end with n (the matrix order).
func New(n int, firstRows []int) (*Index, error) {
	if len(firstRows) < 2 || firstRows[0] != 0 || firstRows[len(firstRows)-1] != n {
		return nil, fmt.Errorf("super: malformed supernode boundaries for n=%d", n)
	}
	for i := 1; i < len(firstRows); i++ {
		if firstRows[i] <= firstRows[i-1] {
			return nil, fmt.Errorf("super: supernode boundaries must be strictly increasing")
		}
	}
	supno := make([]int, n)
	for k := 0; k < len(firstRows)-1; k++ {
		for row := firstRows[k]; row < firstRows[k+1]; row++ {
			supno[row] = k
		}
	}
	return &Index{Xsup: firstRows, Supno: supno}, nil
}

// NSupers is the number of supernodes.
func (x *Index) NSupers() int { return len(x.Xsup) - 1 }

// SuperSize returns the number of columns/rows in supernode k.
func (x *Index) SuperSize(k int) int { return x.Xsup[k+1] - x.Xsup[k] }

// FirstRow returns the global first row of supernode k.
func (x *Index) FirstRow(k int) int { return x.Xsup[k] }

// BlockNum returns the supernode id owning global row/col `i`.
func (x *Index) BlockNum(i int) int { return x.Supno[i] }

// LBi returns the local block-row index of supernode k on a grid, i.e.
// its position among the supernodes this process's mesh row owns.
func (x *Index) LBi(k int, g *grid.Grid) int { return k / g.Pr }

// LBj returns the local block-column index of supernode k on a grid.
func (x *Index) LBj(k int, g *grid.Grid) int { return k / g.Pc }

// NLocalBlockRows is the number of local block rows this process's mesh
// row may own: ceil(NSupers/Pr).
func (x *Index) NLocalBlockRows(g *grid.Grid) int {
	return ceilDiv(x.NSupers(), g.Pr)
}

// NLocalBlockCols is the number of local block columns this process's
// mesh column may own: ceil(NSupers/Pc).
func (x *Index) NLocalBlockCols(g *grid.Grid) int {
	return ceilDiv(x.NSupers(), g.Pc)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Leaves returns every supernode k whose local row contribution is
// already complete — frecv[LBi(k)] == 0 once seeded — among every
// supernode k this process's mesh row has a local row slot for
// (g.RowOwner(k) == g.MyRow()), not only the diagonal-owned ones.
//
// Under the conservative bcast/reduce tree membership solvecore builds
// (every process sharing a supernode's owning mesh row is a reduce-tree
// member), a non-diagonal row member can reach fmod==0 at build time
// just like the diagonal owner does, and its (possibly trivial, all-zero)
// contribution still has to be folded up the reduce tree or the parent's
// receive loop blocks forever waiting on a message nobody ever sends.
// Callers must dispatch every returned k through ready() rather than
// assuming it is always the diagonal solve (ready() tells the two cases
// apart via IsDiagonal). The caller supplies frecv since it is computed
// by internal/solvecore's Build from the local factor panels and reduce
// trees.
func (x *Index) Leaves(g *grid.Grid, frecv []int) []int {
	var leaves []int
	for k := 0; k < x.NSupers(); k++ {
		if g.RowOwner(k) != g.MyRow() {
			continue
		}
		lbi := x.LBi(k, g)
		if lbi < len(frecv) && frecv[lbi] == 0 {
			leaves = append(leaves, k)
		}
	}
	return leaves
}

// Roots returns the supernodes that begin the backward (U) solve: every
// supernode this process's mesh row has a local row slot for, with no
// incoming U-reduction dependency. See Leaves for why diagonal ownership
// is not the right filter.
func (x *Index) Roots(g *grid.Grid, brecv []int) []int {
	return x.Leaves(g, brecv)
}
