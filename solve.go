// Package superludist implements the core of a distributed parallel
// sparse triangular solve: given a previously computed LU factorization
// distributed over a 2D process mesh, Solve performs a forward
// substitution against L followed by a back substitution against U for
// one or more right-hand sides.
package superludist

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nindanaoto/superlu-dist/blocklayout"
	"github.com/nindanaoto/superlu-dist/commplan"
	"github.com/nindanaoto/superlu-dist/factor"
	"github.com/nindanaoto/superlu-dist/grid"
	"github.com/nindanaoto/superlu-dist/lsolve"
	"github.com/nindanaoto/superlu-dist/permute"
	"github.com/nindanaoto/superlu-dist/redist"
	"github.com/nindanaoto/superlu-dist/solveconfig"
	"github.com/nindanaoto/superlu-dist/solvestats"
	"github.com/nindanaoto/superlu-dist/super"
	"github.com/nindanaoto/superlu-dist/taskpool"
	"github.com/nindanaoto/superlu-dist/transport"
	"github.com/nindanaoto/superlu-dist/tree"
	"github.com/nindanaoto/superlu-dist/usolve"
)

// SolveInput bundles the arguments described in spec §6's external
// interface: the distributed factors, grid, supernode index, permutation,
// transport, configuration, and B. The communication plan is not an
// input; Solve builds it.
type SolveInput struct {
	N     int
	LU    *factor.Bundle
	Perm  *permute.Bundle
	Grid  *grid.Grid
	Index *super.Index

	// B is the local right-hand side, row-major, MLoc rows by LDB
	// leading dimension (>= NRHS). It is overwritten with the solution.
	B                       []float64
	MLoc, FstRow, LDB, NRHS int

	Transport transport.Transport
	Config    solveconfig.Config
	Stats     *solvestats.Stats
	Logger    *zap.Logger
}

// treeShape decodes solveconfig.Config.TreeShape ("flat", "binary", or
// "kary:N") into the tree package's Shape/fanout pair. An unrecognized
// or malformed value falls back to the binary default rather than
// aborting, since this is read once at Solve's entry, before any
// solve-phase messages are sent.
func treeShape(cfg solveconfig.Config) (tree.Shape, int) {
	switch {
	case cfg.TreeShape == "flat":
		return tree.Flat, 0
	case cfg.TreeShape == "binary":
		return tree.Binary, 2
	case strings.HasPrefix(cfg.TreeShape, "kary:"):
		n, err := strconv.Atoi(strings.TrimPrefix(cfg.TreeShape, "kary:"))
		if err != nil || n < 2 {
			return tree.Binary, 2
		}
		return tree.KAry, n
	default:
		return tree.Binary, 2
	}
}

// Solve runs A·X=B to completion for the local share of B, following
// spec §6: info=0 on success, info=-1 if N<0, info=-9 if NRHS<0. Any
// fault past argument validation is a fatal abort via Grid.Abort, not a
// returned error (spec §7 propagation policy) — err is non-nil only for
// setup failures: building the communication plan (whose count exchange
// is the only communication before that point) or the L/U dependency
// state.
func Solve(ctx context.Context, in SolveInput) (info int, err error) {
	idx := in.Index
	if in.N < 0 {
		return -1, nil
	}
	if in.NRHS < 0 {
		return -9, nil
	}
	if in.N == 0 || in.NRHS == 0 {
		return 0, nil
	}

	solveStart := time.Now()
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := in.Grid.WithLogger(logger)

	plan, err := commplan.Build(ctx, in.Transport, g, idx, in.Perm, in.MLoc, in.FstRow, in.NRHS)
	if err != nil {
		return 0, fmt.Errorf("superludist: building communication plan: %w", err)
	}

	xl := blocklayout.BuildX(idx, g, in.NRHS)
	rl := blocklayout.BuildRow(idx, g, in.NRHS)

	shape, kary := treeShape(in.Config)

	ld, err := lsolve.Build(g, idx, in.LU, shape, kary, in.NRHS)
	if err != nil {
		return 0, fmt.Errorf("superludist: building L-solve dependencies: %w", err)
	}
	ud, err := usolve.Build(g, idx, in.LU, shape, kary, in.NRHS)
	if err != nil {
		return 0, fmt.Errorf("superludist: building U-solve dependencies: %w", err)
	}

	workers := in.Config.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	pool := taskpool.New(workers)
	defer pool.Close()

	x, recv, err := redist.ToX(ctx, in.Transport, g, idx, plan, xl, in.B, in.MLoc, in.LDB, in.NRHS, in.Stats)
	if err != nil {
		g.Abort(fmt.Errorf("superludist: B->X redistribution: %w", err))
	}

	lsum := rl.NewBuffer(idx)
	if err := lsolve.Solve(ctx, in.Transport, g, idx, ld, xl, rl, x, lsum, in.Config, in.Stats, pool); err != nil {
		g.Abort(fmt.Errorf("superludist: L-solve: %w", err))
	}

	// U-solve reuses the same x buffer (now holding the L-solve result)
	// and a fresh lsum slab; its own Deps/trees were built independently.
	lsum2 := rl.NewBuffer(idx)
	if err := usolve.Solve(ctx, in.Transport, g, idx, ud, xl, rl, x, lsum2, in.Config, in.Stats, pool); err != nil {
		g.Abort(fmt.Errorf("superludist: U-solve: %w", err))
	}

	bOut, err := redist.ToB(ctx, in.Transport, plan, idx, xl, x, recv, in.MLoc, in.LDB, in.NRHS, in.Stats)
	if err != nil {
		g.Abort(fmt.Errorf("superludist: X->B redistribution: %w", err))
	}
	copy(in.B, bOut)

	if in.Stats != nil {
		in.Stats.AddTotal(time.Since(solveStart))
		in.Stats.Log(logger)
	}
	return 0, nil
}
