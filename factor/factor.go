// Package factor holds the distributed L and U factor layout produced by
// a prior LU factorization (out of scope for this module, per spec §1).
// The triangular solver consumes a Bundle read-only.
package factor

// LPanel is the local block column J owned by this process's mesh column:
// the set of nonzero block rows below (or at) the diagonal, stored dense
// and row-major per block (gonum's blas64 storage convention), plus the
// cached inverse of the diagonal block when J is a diagonal column.
type LPanel struct {
	Col int // global supernode id of this block column

	// BlockRows lists the global block-row ids with a nonzero block in
	// this column, ascending; the diagonal block row (== Col) comes first
	// when this process owns it and is absent otherwise.
	BlockRows []int

	// Vals[i] is the dense, row-major nonzero block for BlockRows[i]:
	// SuperSize(BlockRows[i]) rows by SuperSize(Col) columns.
	Vals [][]float64

	// Linv is the inverse of the unit lower-triangular diagonal block,
	// row-major, SuperSize(Col) square. Populated only when Col is a
	// diagonal column on this process; see package blockops.
	Linv []float64
}

// UPanel is the local block row I owned by this process's mesh row: the
// set of nonzero block columns at or above the diagonal.
type UPanel struct {
	Row int // global supernode id of this block row

	// BlockCols lists the global block-column ids with a nonzero block
	// in this row, ascending; the diagonal block column comes first when
	// this process owns it and is absent otherwise.
	BlockCols []int

	// Vals[j] is the dense, row-major nonzero block for BlockCols[j]:
	// SuperSize(Row) rows by SuperSize(BlockCols[j]) columns.
	Vals [][]float64

	// Uinv is the inverse of the upper-triangular diagonal block,
	// row-major, SuperSize(Row) square.
	Uinv []float64
}

// Bundle is the distributed L/U factor this process owns, indexed by
// local block index (super.Index.LBj for L, super.Index.LBi for U).
type Bundle struct {
	L map[int]*LPanel
	U map[int]*UPanel
}

// New returns an empty Bundle ready to be populated by a setup routine.
func New() *Bundle {
	return &Bundle{L: make(map[int]*LPanel), U: make(map[int]*UPanel)}
}
