// Package lsolve is the dependency-driven forward L-solve engine, spec
// §4.F (the heart of the solver): leaf frontier, self-scheduled receive
// loop, broadcast-relay-before-apply, reduction-fold, atomic fmod
// decrement, worker-pool dispatch. The loop itself lives in
// internal/solvecore, shared with usolve; this package only supplies the
// L-specific panel view, tags, and diagonal shape.
package lsolve

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

// Deps is the forward-solve dependency state for one process, built once
// per (grid, factor, tree shape) combination.
type Deps struct{ core *solvecore.Deps }

// Build computes fmod/frecv and the column-broadcast/row-reduction trees
// for the L factor, with zero inter-process communication (see
// internal/solvecore's package doc for the conservative membership this
// relies on).
func Build(g *grid.Grid, idx *super.Index, lu *factor.Bundle, shape tree.Shape, kary, nrhs int) (*Deps, error) {
	panels := make(map[int]*solvecore.Panel, len(lu.L))
	for _, lp := range lu.L {
		lp := lp
		panels[lp.Col] = &solvecore.Panel{
			Owner:   lp.Col,
			Members: lp.BlockRows,
			Block:   func(i int) []float64 { return lp.Vals[i] },
			Inv:     lp.Linv,
		}
	}
	k := solvecore.Kind{
		BcastTag:  transport.TagLBcast,
		ReduceTag: transport.TagLReduce,
		Uplo:      blas.Lower,
		Diag:      blas.Unit,
		Panels:    panels,
	}
	core, err := solvecore.Build(g, idx, k, shape, kary, nrhs)
	if err != nil {
		return nil, err
	}
	return &Deps{core: core}, nil
}

// Solve runs the forward substitution to completion, reading/writing x
// in place (diagonal blocks solved, off-diagonal lsum accumulated in
// lsumBuf) and returns once this process's expected message count has
// been fully received.
func Solve(ctx context.Context, t transport.Transport, g *grid.Grid, idx *super.Index, d *Deps,
	xl *blocklayout.XLayout, rl *blocklayout.RowLayout, x, lsumBuf []float64,
	cfg solveconfig.Config, stats *solvestats.Stats, pool *taskpool.Pool) error {
	return solvecore.Run(ctx, t, g, idx, d.core, xl, rl, x, lsumBuf, cfg, stats, pool)
}
