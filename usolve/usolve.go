// Package usolve is the dependency-driven back U-solve engine, spec
// §4.G: a mirror of lsolve over internal/solvecore's shared loop, using
// U's own broadcast/reduction trees and Uinv. U's factor is stored per
// local block row (factor.UPanel), the opposite orientation from the
// shared engine's "owner triggers its members" model, so Build inverts
// it into a per-column view before handing it to solvecore.
package usolve

import (
	"context"

	"gonum.org/v1/gonum/blas"

	"github.com/nindanaoto/superlu-dist/blocklayout"
	"github.com/nindanaoto/superlu-dist/factor"
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/internal/solvecore"
	"github.com/nindanaoto/superlu-dist/solveconfig"
	"github.com/nindanaoto/superlu-dist/solvestats"
	"github.com/nindanaoto/superlu-dist/super"
	"github.com/nindanaoto/superlu-dist/taskpool"
	"github.com/nindanaoto/superlu-dist/transport"
	"github.com/nindanaoto/superlu-dist/tree"
)

// Deps is the backward-solve dependency state for one process.
type Deps struct{ core *solvecore.Deps }

// Build computes fmod/frecv (named bmod/brecv in spec terms, same
// engine) and the column-broadcast/row-reduction trees for the U
// factor.
func Build(g *grid.Grid, idx *super.Index, lu *factor.Bundle, shape tree.Shape, kary, nrhs int) (*Deps, error) {
	k := solvecore.Kind{
		BcastTag:  transport.TagUBcast,
		ReduceTag: transport.TagUReduce,
		Uplo:      blas.Upper,
		Diag:      blas.NonUnit,
		Panels:    byColumn(lu),
	}
	core, err := solvecore.Build(g, idx, k, shape, kary, nrhs)
	if err != nil {
		return nil, err
	}
	return &Deps{core: core}, nil
}

// byColumn re-indexes the row-stored U factor by the column whose solved
// value triggers an update: the diagonal member of column K comes only
// from the UPanel that owns row K, inserted first so solvecore's
// solveDiagonal can rely on Members[0]==K; off-diagonal contributions
// from earlier rows I<K against column K are appended after.
func byColumn(lu *factor.Bundle) map[int]*solvecore.Panel {
	type raw struct {
		members []int
		blocks  [][]float64
		inv     []float64
	}
	byCol := make(map[int]*raw)

	for _, up := range lu.U {
		if len(up.BlockCols) == 0 || up.BlockCols[0] != up.Row {
			continue
		}
		byCol[up.Row] = &raw{members: []int{up.Row}, blocks: [][]float64{up.Vals[0]}, inv: up.Uinv}
	}
	for _, up := range lu.U {
		for j := 0; j < len(up.BlockCols); j++ {
			col := up.BlockCols[j]
			if col == up.Row {
				continue
			}
			r, ok := byCol[col]
			if !ok {
				r = &raw{}
				byCol[col] = r
			}
			r.members = append(r.members, up.Row)
			r.blocks = append(r.blocks, up.Vals[j])
		}
	}

	panels := make(map[int]*solvecore.Panel, len(byCol))
	for col, r := range byCol {
		r := r
		panels[col] = &solvecore.Panel{
			Owner:   col,
			Members: r.members,
			Block:   func(i int) []float64 { return r.blocks[i] },
			Inv:     r.inv,
		}
	}
	return panels
}

// Solve runs the back substitution to completion, mirroring lsolve.Solve.
func Solve(ctx context.Context, t transport.Transport, g *grid.Grid, idx *super.Index, d *Deps,
	xl *blocklayout.XLayout, rl *blocklayout.RowLayout, x, lsumBuf []float64,
	cfg solveconfig.Config, stats *solvestats.Stats, pool *taskpool.Pool) error {
	return solvecore.Run(ctx, t, g, idx, d.core, xl, rl, x, lsumBuf, cfg, stats, pool)
}
